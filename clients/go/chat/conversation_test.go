package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/ArnavT27/Chat-Application/internal/crypto"
)

func pushMessage(id, sender, receiver, text string) Message {
	return Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       crypto.Encrypt(text, sender, receiver),
		CreatedAt:  time.Now(),
	}
}

func TestOpenReplacesWholesale(t *testing.T) {
	conv := NewConversation("alice", nil)

	// Stale partial state from a previous open.
	conv.Open("bob", []Message{pushMessage("m1", "bob", "alice", "old")})

	history := []Message{
		pushMessage("m2", "alice", "bob", "hi"),
		pushMessage("m3", "bob", "alice", "hey"),
	}
	conv.Open("bob", history)

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "hi" || msgs[1].Text != "hey" {
		t.Errorf("history not decrypted: %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestOpenClearsUnseen(t *testing.T) {
	conv := NewConversation("alice", nil)
	conv.Seed(&PeerList{UnseenMessages: map[string]int{"bob": 3}})

	if got := conv.Unseen("bob"); got != 3 {
		t.Fatalf("seed: expected 3 unseen, got %d", got)
	}

	conv.Open("bob", nil)
	if got := conv.Unseen("bob"); got != 0 {
		t.Errorf("open: expected 0 unseen, got %d", got)
	}
}

func TestPushForOpenPeerDeduplicates(t *testing.T) {
	var acked []string
	conv := NewConversation("alice", func(id string) { acked = append(acked, id) })
	conv.Open("bob", nil)

	msg := pushMessage("m1", "bob", "alice", "hello")
	conv.HandlePush(msg)
	conv.HandlePush(msg) // duplicate delivery

	msgs := conv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after duplicate push, got %d", len(msgs))
	}
	if msgs[0].Text != "hello" {
		t.Errorf("push not decrypted: %q", msgs[0].Text)
	}
	if !msgs[0].Seen {
		t.Error("open-conversation push should be marked seen locally")
	}
	if len(acked) != 2 || acked[0] != "m1" {
		t.Errorf("expected seen acks for each delivery, got %v", acked)
	}
}

func TestSendAckThenPushNoDoubleAppend(t *testing.T) {
	conv := NewConversation("alice", nil)

	// The synchronous send ack lands first.
	ack := pushMessage("m1", "alice", "bob", "hi bob")
	conv.Open("bob", []Message{ack})

	// The cross-device push for the same message follows.
	conv.HandlePush(ack)

	if got := len(conv.Messages()); got != 1 {
		t.Errorf("expected 1 message, got %d", got)
	}
}

func TestPushForOtherPeerCountsUnseen(t *testing.T) {
	var acked []string
	conv := NewConversation("alice", func(id string) { acked = append(acked, id) })
	conv.Open("bob", nil)

	conv.HandlePush(pushMessage("m1", "carol", "alice", "psst"))
	conv.HandlePush(pushMessage("m2", "carol", "alice", "hey"))

	if got := conv.Unseen("carol"); got != 2 {
		t.Errorf("expected 2 unseen from carol, got %d", got)
	}
	if got := len(conv.Messages()); got != 0 {
		t.Errorf("open list should be untouched, got %d messages", got)
	}
	if len(acked) != 0 {
		t.Errorf("no seen ack for a non-open peer, got %v", acked)
	}

	lm, ok := conv.LastMessage("carol")
	if !ok || lm.Text != "hey" {
		t.Errorf("expected decrypted summary %q, got %+v", "hey", lm)
	}
}

func TestOwnPushFromOtherDeviceNotUnseen(t *testing.T) {
	conv := NewConversation("alice", nil)

	// Alice sent this from another tab; it must not count as unseen.
	conv.HandlePush(pushMessage("m1", "alice", "carol", "from my phone"))

	if got := conv.Unseen("carol"); got != 0 {
		t.Errorf("own message counted unseen: %d", got)
	}
	lm, ok := conv.LastMessage("carol")
	if !ok || lm.SenderID != "alice" {
		t.Errorf("summary should still update, got %+v", lm)
	}
}

func TestSeedDecryptsSummaries(t *testing.T) {
	conv := NewConversation("alice", nil)

	conv.Seed(&PeerList{
		LastMessages: map[string]LastMessage{
			"bob":   {Text: crypto.Encrypt("hello there", "bob", "alice"), SenderID: "bob"},
			"carol": {Text: "\U0001F4F7 Image", SenderID: "carol"},
		},
	})

	lm, ok := conv.LastMessage("bob")
	if !ok || lm.Text != "hello there" {
		t.Errorf("seeded summary not decrypted: %+v", lm)
	}
	if strings.Contains(lm.Text, crypto.Delimiter) {
		t.Errorf("seeded summary still ciphertext: %q", lm.Text)
	}

	// Placeholder text has no delimiter and must pass through unchanged.
	lm, _ = conv.LastMessage("carol")
	if lm.Text != "\U0001F4F7 Image" {
		t.Errorf("placeholder summary mangled: %q", lm.Text)
	}

	// A later push lands in the same encoding.
	conv.HandlePush(pushMessage("m1", "bob", "alice", "hi again"))
	lm, _ = conv.LastMessage("bob")
	if lm.Text != "hi again" {
		t.Errorf("pushed summary not decrypted: %q", lm.Text)
	}
}

func TestImageOnlySummary(t *testing.T) {
	conv := NewConversation("alice", nil)

	msg := Message{
		ID:         "m1",
		SenderID:   "bob",
		ReceiverID: "alice",
		Image:      crypto.Encrypt("/assets/pic.png", "bob", "alice"),
		CreatedAt:  time.Now(),
	}
	conv.HandlePush(msg)

	lm, _ := conv.LastMessage("bob")
	if lm.Text != "\U0001F4F7 Image" {
		t.Errorf("expected image placeholder summary, got %q", lm.Text)
	}
}
