package chat

import (
	"sync"

	"github.com/ArnavT27/Chat-Application/internal/crypto"
)

// Conversation reconciles one user's view of their conversations: the
// message list for the currently open peer, per-peer last-message summaries
// and per-peer unseen counters. The server's counts are canonical; the
// local counters only bridge live pushes between conversation-list loads.
type Conversation struct {
	mu sync.Mutex

	me       string
	openPeer string

	messages []Message
	present  map[string]bool // message IDs in the open list

	unseen       map[string]int
	lastMessages map[string]LastMessage

	// seenAck issues the single-message seen acknowledgment for a push
	// that landed in the open conversation. May be nil.
	seenAck func(messageID string)
}

// NewConversation creates conversation state for the given user.
func NewConversation(me string, seenAck func(messageID string)) *Conversation {
	return &Conversation{
		me:           me,
		present:      make(map[string]bool),
		unseen:       make(map[string]int),
		lastMessages: make(map[string]LastMessage),
		seenAck:      seenAck,
	}
}

// Seed replaces the unseen counters and last-message summaries with the
// server-computed view from a conversation-list load.
func (c *Conversation) Seed(peers *PeerList) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unseen = make(map[string]int, len(peers.UnseenMessages))
	for peer, n := range peers.UnseenMessages {
		c.unseen[peer] = n
	}
	c.lastMessages = make(map[string]LastMessage, len(peers.LastMessages))
	for peer, lm := range peers.LastMessages {
		// The server stores summaries as ciphertext; decrypt so the map
		// holds the same encoding pushes produce. Placeholder text has no
		// delimiter and passes through unchanged.
		lm.Text = crypto.Decrypt(lm.Text, c.me, peer)
		c.lastMessages[peer] = lm
	}
}

// Open makes peer the open conversation, replacing the message list
// wholesale with the fetched history and clearing that peer's unseen
// counter. Any partial state held for the peer is discarded, not merged.
func (c *Conversation) Open(peer string, history []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.openPeer = peer
	c.messages = make([]Message, 0, len(history))
	c.present = make(map[string]bool, len(history))
	for _, msg := range history {
		c.messages = append(c.messages, c.decrypt(msg))
		c.present[msg.ID] = true
	}
	delete(c.unseen, peer)
}

// Close closes the open conversation without opening another.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.openPeer = ""
	c.messages = nil
	c.present = make(map[string]bool)
}

// HandlePush folds one live message push into the state. Pushes carry
// messages sent to this user and this user's own sends from other devices.
func (c *Conversation) HandlePush(msg Message) {
	c.mu.Lock()
	peer := c.peerOf(msg)
	plain := c.decrypt(msg)

	if peer == c.openPeer && c.openPeer != "" {
		// The send ack may already hold this message; the ID is the
		// idempotency key.
		if !c.present[msg.ID] {
			plain.Seen = msg.ReceiverID == c.me
			c.messages = append(c.messages, plain)
			c.present[msg.ID] = true
		}
		c.lastMessages[peer] = summaryOf(plain)

		ack := c.seenAck
		c.mu.Unlock()
		if ack != nil && msg.ReceiverID == c.me {
			ack(msg.ID)
		}
		return
	}

	// Not the open conversation: update the summary and count it unseen
	// when it was sent to us.
	c.lastMessages[peer] = summaryOf(plain)
	if msg.ReceiverID == c.me {
		c.unseen[peer]++
	}
	c.mu.Unlock()
}

// Messages returns a copy of the open conversation's message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Unseen returns the local unseen counter for a peer.
func (c *Conversation) Unseen(peer string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unseen[peer]
}

// LastMessage returns the last-message summary for a peer.
func (c *Conversation) LastMessage(peer string) (LastMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lm, ok := c.lastMessages[peer]
	return lm, ok
}

// OpenPeer returns the currently open peer, or "".
func (c *Conversation) OpenPeer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openPeer
}

// peerOf returns the other party of a message relative to this user.
func (c *Conversation) peerOf(msg Message) string {
	if msg.SenderID == c.me {
		return msg.ReceiverID
	}
	return msg.SenderID
}

// decrypt returns a copy of msg with text and image decrypted with the pair
// key. Content that fails to decrypt is left as is.
func (c *Conversation) decrypt(msg Message) Message {
	msg.Text = crypto.Decrypt(msg.Text, msg.SenderID, msg.ReceiverID)
	msg.Image = crypto.Decrypt(msg.Image, msg.SenderID, msg.ReceiverID)
	return msg
}

func summaryOf(msg Message) LastMessage {
	text := msg.Text
	if text == "" && msg.Image != "" {
		text = "\U0001F4F7 Image"
	}
	return LastMessage{Text: text, Time: msg.CreatedAt, SenderID: msg.SenderID}
}
