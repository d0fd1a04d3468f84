package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeEmitter records emitted call events.
type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) emitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

func ringIn(cs *CallState, callerID string) {
	info, _ := json.Marshal(map[string]string{"_id": callerID})
	payload, _ := json.Marshal(map[string]json.RawMessage{"callerInfo": info})
	cs.HandleEvent("callIncoming", payload)
}

func offerEvent(sdp string) json.RawMessage {
	payload, _ := json.Marshal(map[string]any{"sdp": json.RawMessage(sdp), "fromUserId": "bob"})
	return payload
}

func candidateEvent(cand string) json.RawMessage {
	payload, _ := json.Marshal(map[string]any{"candidate": json.RawMessage(cand)})
	return payload
}

func TestBufferedOfferReleasedOnAccept(t *testing.T) {
	var offers []string
	emit := &fakeEmitter{}
	cs := NewCallState(emit, CallHooks{
		OnOffer: func(sdp json.RawMessage) { offers = append(offers, string(sdp)) },
	})

	ringIn(cs, "bob")
	if cs.Status() != CallIncoming {
		t.Fatalf("expected incoming, got %s", cs.Status())
	}

	// Offer lands before the user accepts; it must not reach the hook yet.
	cs.HandleEvent("callOffer", offerEvent(`{"type":"offer"}`))
	if len(offers) != 0 {
		t.Fatal("offer processed before accept")
	}

	if err := cs.Accept(); err != nil {
		t.Fatal(err)
	}
	if len(offers) != 1 || offers[0] != `{"type":"offer"}` {
		t.Fatalf("expected buffered offer released once, got %v", offers)
	}

	// A second accept must not replay the offer.
	cs.Accept()
	if len(offers) != 1 {
		t.Errorf("buffered offer replayed: %v", offers)
	}
}

func TestLatestPreAcceptOfferWins(t *testing.T) {
	var offers []string
	cs := NewCallState(&fakeEmitter{}, CallHooks{
		OnOffer: func(sdp json.RawMessage) { offers = append(offers, string(sdp)) },
	})

	ringIn(cs, "bob")
	cs.HandleEvent("callOffer", offerEvent(`{"n":1}`))
	cs.HandleEvent("callOffer", offerEvent(`{"n":2}`))
	cs.Accept()

	if len(offers) != 1 || offers[0] != `{"n":2}` {
		t.Errorf("expected latest offer only, got %v", offers)
	}
}

func TestCandidatesQueuedUntilRemoteDescribed(t *testing.T) {
	var candidates []string
	cs := NewCallState(&fakeEmitter{}, CallHooks{
		OnCandidate: func(c json.RawMessage) { candidates = append(candidates, string(c)) },
	})

	ringIn(cs, "bob")
	cs.Accept()

	cs.HandleEvent("callIceCandidate", candidateEvent(`{"c":1}`))
	cs.HandleEvent("callIceCandidate", candidateEvent(`{"c":2}`))
	if len(candidates) != 0 {
		t.Fatal("candidates delivered before remote description")
	}

	cs.RemoteDescribed()
	if len(candidates) != 2 || candidates[0] != `{"c":1}` || candidates[1] != `{"c":2}` {
		t.Fatalf("expected queued candidates in order, got %v", candidates)
	}

	// After the description is applied, candidates flow straight through.
	cs.HandleEvent("callIceCandidate", candidateEvent(`{"c":3}`))
	if len(candidates) != 3 {
		t.Errorf("post-description candidate not delivered: %v", candidates)
	}
}

func TestRejectedDecaysToIdle(t *testing.T) {
	emit := &fakeEmitter{}
	cs := NewCallState(emit, CallHooks{})

	cs.Initiate("bob", map[string]string{"_id": "alice"})
	cs.HandleEvent("callRejected", nil)
	if cs.Status() != CallRejected {
		t.Fatalf("expected rejected, got %s", cs.Status())
	}

	deadline := time.After(3 * time.Second)
	for cs.Status() != CallIdle {
		select {
		case <-deadline:
			t.Fatal("rejected state never decayed to idle")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestEndedTeardownIdempotent(t *testing.T) {
	var ends int
	cs := NewCallState(&fakeEmitter{}, CallHooks{
		OnEnded: func() { ends++ },
	})

	ringIn(cs, "bob")
	cs.Accept()

	cs.HandleEvent("callEnded", nil)
	cs.HandleEvent("callEnded", nil)

	if ends != 1 {
		t.Errorf("expected one teardown, got %d", ends)
	}
	if cs.Status() != CallIdle {
		t.Errorf("expected idle after ended, got %s", cs.Status())
	}
}

func TestLocalEndThenRemoteEnded(t *testing.T) {
	var ends int
	emit := &fakeEmitter{}
	cs := NewCallState(emit, CallHooks{
		OnEnded: func() { ends++ },
	})

	ringIn(cs, "bob")
	cs.Accept()
	cs.End()

	// The peer's ended can still arrive after we already tore down.
	cs.HandleEvent("callEnded", nil)

	if ends != 1 {
		t.Errorf("expected one teardown, got %d", ends)
	}

	events := emit.emitted()
	if events[len(events)-1] != "callEnd" {
		t.Errorf("expected callEnd emitted, got %v", events)
	}
}

func TestInitiateWhileBusyIgnored(t *testing.T) {
	emit := &fakeEmitter{}
	cs := NewCallState(emit, CallHooks{})

	cs.Initiate("bob", nil)
	cs.Initiate("carol", nil)

	events := emit.emitted()
	if len(events) != 1 {
		t.Errorf("expected one callInitiate, got %v", events)
	}
}

func TestIncomingWhileBusyIgnored(t *testing.T) {
	var rings int
	cs := NewCallState(&fakeEmitter{}, CallHooks{
		OnIncoming: func(json.RawMessage) { rings++ },
	})

	cs.Initiate("bob", nil)
	ringIn(cs, "carol")

	if rings != 0 {
		t.Errorf("incoming accepted while calling: %d rings", rings)
	}
	if cs.Status() != CallCalling {
		t.Errorf("expected calling, got %s", cs.Status())
	}
}
