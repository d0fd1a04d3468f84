package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendCarriesIdentityHeaders(t *testing.T) {
	var gotUser, gotPath string
	var gotBody SendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-Chat-User-Id")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "Alice")
	msg, err := c.Send(context.Background(), "bob", "hi", "")
	if err != nil {
		t.Fatal(err)
	}

	if gotUser != "alice" {
		t.Errorf("expected identity header alice, got %q", gotUser)
	}
	if gotPath != "/api/messages/send/bob" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody.Text != "hi" {
		t.Errorf("unexpected body %+v", gotBody)
	}
	if msg.ID != "m1" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestErrorResponseSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "receiver not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "Alice")
	if _, err := c.Send(context.Background(), "ghost", "hi", ""); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestListPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/messages/users" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(PeerList{
			Users:          []User{{ID: "bob", FullName: "Bob"}},
			UnseenMessages: map[string]int{"bob": 2},
			OnlineUserIDs:  []string{"bob"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "Alice")
	peers, err := c.ListPeers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(peers.Users) != 1 || peers.Users[0].ID != "bob" {
		t.Errorf("unexpected users %+v", peers.Users)
	}
	if peers.UnseenMessages["bob"] != 2 {
		t.Errorf("unexpected unseen %+v", peers.UnseenMessages)
	}
}
