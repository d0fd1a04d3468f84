package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/crypto"
	"github.com/ArnavT27/Chat-Application/internal/models"
)

// fakeStore is an in-memory DataStore.
type fakeStore struct {
	users    map[string]*models.User
	messages []models.Message
	failNext error
}

func newFakeStore(userIDs ...string) *fakeStore {
	fs := &fakeStore{users: make(map[string]*models.User)}
	for _, id := range userIDs {
		fs.users[id] = &models.User{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	}
	return fs
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) UpsertUser(ctx context.Context, id, fullName, profilePic string) (*models.User, error) {
	u := &models.User{ID: id, FullName: fullName, ProfilePic: profilePic}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	var out []models.User
	for uid, u := range f.users {
		if uid != id {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStore) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkConversationSeen(ctx context.Context, senderID, receiverID string) error {
	for i := range f.messages {
		if f.messages[i].SenderID == senderID && f.messages[i].ReceiverID == receiverID {
			f.messages[i].Seen = true
		}
	}
	return nil
}

func (f *fakeStore) MarkMessageSeen(ctx context.Context, messageID string) error {
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].Seen = true
		}
	}
	return nil
}

func (f *fakeStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && !m.Seen {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (f *fakeStore) LastMessages(ctx context.Context, userID string) (map[string]models.LastMessage, error) {
	last := make(map[string]models.LastMessage)
	for _, m := range f.messages {
		peer := m.SenderID
		if peer == userID {
			peer = m.ReceiverID
		}
		last[peer] = models.LastMessage{Text: m.Text, Time: m.CreatedAt, SenderID: m.SenderID}
	}
	return last, nil
}

// fakePusher records pushes per user; only users in the live set receive.
type fakePusher struct {
	live   map[string]bool
	pushed map[string][]models.Message
}

func newFakePusher(liveUsers ...string) *fakePusher {
	p := &fakePusher{live: make(map[string]bool), pushed: make(map[string][]models.Message)}
	for _, u := range liveUsers {
		p.live[u] = true
	}
	return p
}

func (p *fakePusher) Push(userID, event string, data any) bool {
	if !p.live[userID] {
		return false
	}
	msg, ok := data.(*models.Message)
	if !ok {
		return false
	}
	p.pushed[userID] = append(p.pushed[userID], *msg)
	return true
}

func (p *fakePusher) Online() []string {
	var out []string
	for u := range p.live {
		out = append(out, u)
	}
	return out
}

// fakeAssets uploads to a fixed URL; onUpload runs mid-pipeline, which lets
// tests change liveness during the suspension point.
type fakeAssets struct {
	fail     error
	onUpload func()
}

func (a *fakeAssets) Upload(ctx context.Context, data string) (string, error) {
	if a.onUpload != nil {
		a.onUpload()
	}
	if a.fail != nil {
		return "", a.fail
	}
	return "https://assets.local/" + fmt.Sprintf("%d.png", len(data)), nil
}

func newTestService(st *fakeStore, as *fakeAssets, p *fakePusher) *Service {
	return NewService(st, as, p, p, zerolog.Nop())
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	st := newFakeStore("alice", "bob")
	svc := newTestService(st, &fakeAssets{}, newFakePusher())

	for _, in := range []SendInput{{}, {Text: "   "}, {Text: "\n\t"}} {
		_, err := svc.Send(context.Background(), "alice", "bob", in)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %+v, got %v", in, err)
		}
	}
	if len(st.messages) != 0 {
		t.Fatal("nothing must be persisted on validation failure")
	}
}

func TestSendRejectsUnknownReceiver(t *testing.T) {
	st := newFakeStore("alice")
	svc := newTestService(st, &fakeAssets{}, newFakePusher())

	_, err := svc.Send(context.Background(), "alice", "ghost", SendInput{Text: "hi"})
	if !errors.Is(err, ErrReceiverNotFound) {
		t.Fatalf("expected ErrReceiverNotFound, got %v", err)
	}
	if len(st.messages) != 0 {
		t.Fatal("nothing must be persisted for an unknown receiver")
	}
}

func TestSendAssetFailureAbortsBeforePersist(t *testing.T) {
	st := newFakeStore("alice", "bob")
	svc := newTestService(st, &fakeAssets{fail: errors.New("upstream down")}, newFakePusher())

	_, err := svc.Send(context.Background(), "alice", "bob", SendInput{Image: "aGVsbG8="})
	var ae *AssetError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AssetError, got %v", err)
	}
	if len(st.messages) != 0 {
		t.Fatal("asset failure must abort before persistence")
	}
}

func TestSendEncryptsAndPersists(t *testing.T) {
	st := newFakeStore("alice", "bob")
	pusher := newFakePusher("alice", "bob")
	svc := newTestService(st, &fakeAssets{}, pusher)

	msg, err := svc.Send(context.Background(), "alice", "bob", SendInput{Text: "hello bob"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.Seen {
		t.Fatalf("ack record malformed: %+v", msg)
	}
	if msg.Text == "hello bob" || !strings.Contains(msg.Text, crypto.Delimiter) {
		t.Fatalf("stored text must be ciphertext, got %q", msg.Text)
	}
	if got := crypto.Decrypt(msg.Text, "bob", "alice"); got != "hello bob" {
		t.Fatalf("receiver-side decrypt failed, got %q", got)
	}
	if len(st.messages) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(st.messages))
	}
}

func TestSendPushesToBothEnds(t *testing.T) {
	st := newFakeStore("alice", "bob")
	pusher := newFakePusher("alice", "bob")
	svc := newTestService(st, &fakeAssets{}, pusher)

	msg, err := svc.Send(context.Background(), "alice", "bob", SendInput{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pusher.pushed["bob"]) != 1 || pusher.pushed["bob"][0].ID != msg.ID {
		t.Fatalf("receiver did not get the push: %+v", pusher.pushed)
	}
	// Sender push keeps other tabs of the same account in sync.
	if len(pusher.pushed["alice"]) != 1 {
		t.Fatal("sender connection must also receive the push")
	}
}

func TestSendToOfflineReceiverSucceeds(t *testing.T) {
	st := newFakeStore("alice", "bob")
	pusher := newFakePusher("alice")
	svc := newTestService(st, &fakeAssets{}, pusher)

	msg, err := svc.Send(context.Background(), "alice", "bob", SendInput{Text: "offline hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pusher.pushed["bob"]) != 0 {
		t.Fatal("offline receiver must not be pushed to")
	}

	// Durable: surfaces on the receiver's next history fetch, unseen.
	msgs, err := svc.History(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("message must be retrievable via history, got %+v", msgs)
	}
}

func TestSendResolvesAfterSuspension(t *testing.T) {
	st := newFakeStore("alice", "bob")
	pusher := newFakePusher("alice")
	// Bob connects while the asset upload is in flight; the post-persist
	// resolve must see the fresh state.
	as := &fakeAssets{onUpload: func() { pusher.live["bob"] = true }}
	svc := newTestService(st, as, pusher)

	_, err := svc.Send(context.Background(), "alice", "bob", SendInput{Image: "aGVsbG8="})
	if err != nil {
		t.Fatal(err)
	}
	if len(pusher.pushed["bob"]) != 1 {
		t.Fatal("connection appearing mid-send must still receive the push")
	}
}

func TestSendUploadsRawImage(t *testing.T) {
	st := newFakeStore("alice", "bob")
	svc := newTestService(st, &fakeAssets{}, newFakePusher())

	msg, err := svc.Send(context.Background(), "alice", "bob", SendInput{Image: "data:image/png;base64,aGVsbG8="})
	if err != nil {
		t.Fatal(err)
	}
	url := crypto.Decrypt(msg.Image, "alice", "bob")
	if !strings.HasPrefix(url, "https://assets.local/") {
		t.Fatalf("stored image must be the encrypted durable URL, got %q", url)
	}
}

func TestSendDurableImageRefSkipsUpload(t *testing.T) {
	st := newFakeStore("alice", "bob")
	as := &fakeAssets{fail: errors.New("must not be called")}
	svc := newTestService(st, as, newFakePusher())

	msg, err := svc.Send(context.Background(), "alice", "bob", SendInput{Image: "https://cdn.example.com/pic.png"})
	if err != nil {
		t.Fatal(err)
	}
	if got := crypto.Decrypt(msg.Image, "alice", "bob"); got != "https://cdn.example.com/pic.png" {
		t.Fatalf("durable reference must be stored as-is (encrypted), got %q", got)
	}
}

func TestHistoryMarksPeerMessagesSeen(t *testing.T) {
	st := newFakeStore("alice", "bob")
	svc := newTestService(st, &fakeAssets{}, newFakePusher())

	ctx := context.Background()
	if _, err := svc.Send(ctx, "alice", "bob", SendInput{Text: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "alice", "bob", SendInput{Text: "two"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "bob", "alice", SendInput{Text: "reply"}); err != nil {
		t.Fatal(err)
	}

	msgs, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range msgs {
		if m.SenderID == "alice" && !m.Seen {
			t.Fatalf("history fetch must mark peer messages seen: %+v", m)
		}
		if m.SenderID == "bob" && m.Seen {
			t.Fatalf("own messages must not be marked by a fetch: %+v", m)
		}
	}

	counts, err := st.UnseenCounts(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if counts["alice"] != 0 {
		t.Fatalf("unseen count must drop to zero after fetch, got %d", counts["alice"])
	}
}

func TestListPeers(t *testing.T) {
	st := newFakeStore("alice", "bob", "carol")
	pusher := newFakePusher("bob")
	svc := newTestService(st, &fakeAssets{}, pusher)

	ctx := context.Background()
	if _, err := svc.Send(ctx, "bob", "alice", SendInput{Text: "unread 1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "bob", "alice", SendInput{Text: "unread 2"}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListPeers(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Users) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(list.Users))
	}
	if list.UnseenMessages["bob"] != 2 {
		t.Fatalf("expected 2 unseen from bob, got %d", list.UnseenMessages["bob"])
	}
	if _, ok := list.LastMessages["bob"]; !ok {
		t.Fatal("expected a last-message summary for bob")
	}
	if len(list.OnlineUserIDs) != 1 || list.OnlineUserIDs[0] != "bob" {
		t.Fatalf("expected bob online, got %v", list.OnlineUserIDs)
	}
}
