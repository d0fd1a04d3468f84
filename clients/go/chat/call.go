package chat

import (
	"encoding/json"
	"sync"
	"time"
)

// Call statuses mirrored on the client.
const (
	CallIdle      = "idle"
	CallCalling   = "calling"
	CallIncoming  = "incoming"
	CallConnected = "connected"
	CallRejected  = "rejected"
	CallEnded     = "ended"
)

// rejectedDecay is how long a rejected call lingers before resetting.
const rejectedDecay = 2 * time.Second

// Emitter sends call signaling events to the server. *Socket satisfies it.
type Emitter interface {
	Emit(event string, data any) error
}

// CallHooks receives negotiation payloads the application must feed to its
// media layer. Nil fields are skipped.
type CallHooks struct {
	// OnIncoming fires when a call rings in; the app shows the prompt.
	OnIncoming func(callerInfo json.RawMessage)
	// OnAccepted fires on the caller when the target accepts.
	OnAccepted func()
	// OnRejected fires on the caller when the target rejects.
	OnRejected func()
	// OnOffer receives the remote offer, only ever after local accept.
	OnOffer func(sdp json.RawMessage)
	// OnAnswer receives the remote answer.
	OnAnswer func(sdp json.RawMessage)
	// OnCandidate receives a remote ICE candidate, only ever after the
	// remote description has been applied.
	OnCandidate func(candidate json.RawMessage)
	// OnEnded fires once per call teardown.
	OnEnded func()
}

// CallState is the client half of the call signaling machine. It buffers a
// pre-accept offer, queues ICE candidates that arrive before the remote
// description is applied, and tears down idempotently.
type CallState struct {
	mu sync.Mutex

	status string
	peerID string

	bufferedOffer   json.RawMessage
	remoteDescribed bool
	queuedICE       []json.RawMessage

	emit  Emitter
	hooks CallHooks
}

// NewCallState creates call state emitting over the given channel.
func NewCallState(emit Emitter, hooks CallHooks) *CallState {
	return &CallState{status: CallIdle, emit: emit, hooks: hooks}
}

// Status returns the current call status.
func (cs *CallState) Status() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.status
}

// Initiate starts a call to target.
func (cs *CallState) Initiate(targetID string, callerInfo any) error {
	cs.mu.Lock()
	if cs.status != CallIdle {
		cs.mu.Unlock()
		return nil
	}
	cs.status = CallCalling
	cs.peerID = targetID
	cs.mu.Unlock()

	return cs.emit.Emit("callInitiate", map[string]any{
		"targetId":   targetID,
		"callerInfo": callerInfo,
	})
}

// Accept accepts a ringing call. The buffered offer, if the caller already
// sent one, is released to the OnOffer hook exactly once.
func (cs *CallState) Accept() error {
	cs.mu.Lock()
	if cs.status != CallIncoming {
		cs.mu.Unlock()
		return nil
	}
	cs.status = CallConnected
	caller := cs.peerID
	offer := cs.bufferedOffer
	cs.bufferedOffer = nil
	hook := cs.hooks.OnOffer
	cs.mu.Unlock()

	if err := cs.emit.Emit("callAccept", map[string]any{"callerId": caller}); err != nil {
		return err
	}
	if offer != nil && hook != nil {
		hook(offer)
	}
	return nil
}

// Reject rejects a ringing call.
func (cs *CallState) Reject() error {
	cs.mu.Lock()
	if cs.status != CallIncoming {
		cs.mu.Unlock()
		return nil
	}
	caller := cs.peerID
	cs.reset()
	cs.mu.Unlock()

	return cs.emit.Emit("callReject", map[string]any{"callerId": caller})
}

// End hangs up the current call. Safe to call repeatedly.
func (cs *CallState) End() error {
	cs.mu.Lock()
	if cs.status == CallIdle {
		cs.mu.Unlock()
		return nil
	}
	target := cs.peerID
	cs.reset()
	hook := cs.hooks.OnEnded
	cs.mu.Unlock()

	if hook != nil {
		hook()
	}
	return cs.emit.Emit("callEnd", map[string]any{"targetId": target})
}

// SendOffer relays the local offer to the call peer.
func (cs *CallState) SendOffer(sdp json.RawMessage) error {
	return cs.emitToPeer("callOffer", "sdp", sdp)
}

// SendAnswer relays the local answer to the call peer.
func (cs *CallState) SendAnswer(sdp json.RawMessage) error {
	return cs.emitToPeer("callAnswer", "sdp", sdp)
}

// SendCandidate relays a local ICE candidate to the call peer.
func (cs *CallState) SendCandidate(candidate json.RawMessage) error {
	return cs.emitToPeer("callIceCandidate", "candidate", candidate)
}

func (cs *CallState) emitToPeer(event, field string, payload json.RawMessage) error {
	cs.mu.Lock()
	target := cs.peerID
	cs.mu.Unlock()
	if target == "" {
		return nil
	}
	return cs.emit.Emit(event, map[string]any{"targetId": target, field: payload})
}

// RemoteDescribed marks the remote description as applied and releases any
// ICE candidates queued while it was pending, in arrival order.
func (cs *CallState) RemoteDescribed() {
	cs.mu.Lock()
	cs.remoteDescribed = true
	queued := cs.queuedICE
	cs.queuedICE = nil
	hook := cs.hooks.OnCandidate
	cs.mu.Unlock()

	if hook == nil {
		return
	}
	for _, cand := range queued {
		hook(cand)
	}
}

// HandleEvent folds one server call event into the state. Wire it to
// Handlers.OnCall.
func (cs *CallState) HandleEvent(event string, data json.RawMessage) {
	switch event {
	case "callIncoming":
		cs.handleIncoming(data)
	case "callAccepted":
		cs.handleAccepted()
	case "callRejected":
		cs.handleRejected()
	case "callOffer":
		cs.handleOffer(data)
	case "callAnswer":
		cs.handleAnswer(data)
	case "callIceCandidate":
		cs.handleCandidate(data)
	case "callEnded":
		cs.handleEnded()
	}
}

func (cs *CallState) handleIncoming(data json.RawMessage) {
	var p struct {
		CallerInfo json.RawMessage `json:"callerInfo"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}

	var callerID string
	var info struct {
		ID string `json:"_id"`
	}
	if json.Unmarshal(p.CallerInfo, &info) == nil {
		callerID = info.ID
	}

	cs.mu.Lock()
	if cs.status != CallIdle {
		// Already busy; the server never rings a connected client, but a
		// race with local teardown is possible.
		cs.mu.Unlock()
		return
	}
	cs.status = CallIncoming
	cs.peerID = callerID
	hook := cs.hooks.OnIncoming
	cs.mu.Unlock()

	if hook != nil {
		hook(p.CallerInfo)
	}
}

func (cs *CallState) handleAccepted() {
	cs.mu.Lock()
	if cs.status != CallCalling {
		cs.mu.Unlock()
		return
	}
	cs.status = CallConnected
	hook := cs.hooks.OnAccepted
	cs.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (cs *CallState) handleRejected() {
	cs.mu.Lock()
	if cs.status != CallCalling {
		cs.mu.Unlock()
		return
	}
	cs.status = CallRejected
	hook := cs.hooks.OnRejected
	cs.mu.Unlock()

	if hook != nil {
		hook()
	}

	time.AfterFunc(rejectedDecay, func() {
		cs.mu.Lock()
		if cs.status == CallRejected {
			cs.reset()
		}
		cs.mu.Unlock()
	})
}

func (cs *CallState) handleOffer(data json.RawMessage) {
	var p struct {
		SDP        json.RawMessage `json:"sdp"`
		FromUserID string          `json:"fromUserId"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}

	cs.mu.Lock()
	switch cs.status {
	case CallIncoming:
		// Not accepted yet: hold the offer, latest wins.
		cs.bufferedOffer = p.SDP
		cs.mu.Unlock()
		return
	case CallConnected:
		hook := cs.hooks.OnOffer
		cs.mu.Unlock()
		if hook != nil {
			hook(p.SDP)
		}
	default:
		cs.mu.Unlock()
	}
}

func (cs *CallState) handleAnswer(data json.RawMessage) {
	var p struct {
		SDP json.RawMessage `json:"sdp"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}

	cs.mu.Lock()
	if cs.status != CallConnected && cs.status != CallCalling {
		cs.mu.Unlock()
		return
	}
	cs.status = CallConnected
	hook := cs.hooks.OnAnswer
	cs.mu.Unlock()

	if hook != nil {
		hook(p.SDP)
	}
}

func (cs *CallState) handleCandidate(data json.RawMessage) {
	var p struct {
		Candidate json.RawMessage `json:"candidate"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}

	cs.mu.Lock()
	if cs.status == CallIdle {
		cs.mu.Unlock()
		return
	}
	if !cs.remoteDescribed {
		// Candidate arrived before the remote description; queue it
		// rather than dropping.
		cs.queuedICE = append(cs.queuedICE, p.Candidate)
		cs.mu.Unlock()
		return
	}
	hook := cs.hooks.OnCandidate
	cs.mu.Unlock()

	if hook != nil {
		hook(p.Candidate)
	}
}

func (cs *CallState) handleEnded() {
	cs.mu.Lock()
	if cs.status == CallIdle {
		// Already torn down locally.
		cs.mu.Unlock()
		return
	}
	cs.reset()
	hook := cs.hooks.OnEnded
	cs.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// reset returns to idle and clears negotiation state. Callers hold cs.mu.
func (cs *CallState) reset() {
	cs.status = CallIdle
	cs.peerID = ""
	cs.bufferedOffer = nil
	cs.remoteDescribed = false
	cs.queuedICE = nil
}
