// Package call coordinates WebRTC call signaling between dyads. The
// coordinator carries no media and never parses SDP or candidates; it relays
// opaque envelopes through the live event channel and tracks just enough
// per-dyad state to sequence the human accept/reject decision.
package call

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/metrics"
)

// Server-to-peer call events.
const (
	EventIncoming     = "callIncoming"
	EventAccepted     = "callAccepted"
	EventRejected     = "callRejected"
	EventEnded        = "callEnded"
	EventOffer        = "callOffer"
	EventAnswer       = "callAnswer"
	EventIceCandidate = "callIceCandidate"
)

// Session statuses. The caller holds calling until the target is notified;
// rejected and ended are terminal and a new initiate for the dyad is valid
// from either.
const (
	StatusIdle      = "idle"
	StatusCalling   = "calling"
	StatusIncoming  = "incoming"
	StatusConnected = "connected"
	StatusRejected  = "rejected"
	StatusEnded     = "ended"
)

// allowedTransitions is the per-session transition table. Transitions not
// listed here are rejected and dropped, never silently applied.
var allowedTransitions = map[string]map[string]struct{}{
	StatusIdle: {
		StatusCalling: {},
	},
	StatusCalling: {
		StatusIncoming: {},
		StatusEnded:    {},
	},
	StatusIncoming: {
		StatusConnected: {},
		StatusRejected:  {},
		StatusEnded:     {},
	},
	StatusConnected: {
		StatusEnded: {},
	},
	StatusRejected: {},
	StatusEnded:    {},
}

// rejectedDecay is how long a rejected session lingers before the dyad slot
// is reaped back to idle.
const rejectedDecay = 2 * time.Second

// Sender pushes an event to a user's live connection, resolving the
// connection at push time. Offline targets return false.
type Sender interface {
	Push(userID, event string, data any) bool
}

type dyad struct {
	caller string
	target string
}

// session is the per-ordered-dyad call state. A pre-accept offer is parked
// in bufferedOffer and consumed exactly once when the target accepts.
type session struct {
	status        string
	callerInfo    json.RawMessage
	bufferedOffer json.RawMessage
}

// OfferPayload is the relayed offer envelope, tagged with the sender's
// identity so the answer can be routed back.
type OfferPayload struct {
	SDP        json.RawMessage `json:"sdp"`
	FromUserID string          `json:"fromUserId"`
}

// AnswerPayload is the relayed answer envelope.
type AnswerPayload struct {
	SDP json.RawMessage `json:"sdp"`
}

// CandidatePayload is the relayed ICE candidate envelope.
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// IncomingPayload notifies the target of a ringing call.
type IncomingPayload struct {
	CallerInfo json.RawMessage `json:"callerInfo"`
}

// Coordinator owns all call sessions. All state lives behind one mutex;
// handlers run to completion so events for a connection relay in send order.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[dyad]*session
	sender   Sender
	logger   zerolog.Logger
}

// NewCoordinator creates an empty coordinator relaying through sender.
func NewCoordinator(sender Sender, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		sessions: make(map[dyad]*session),
		sender:   sender,
		logger:   logger.With().Str("component", "call").Logger(),
	}
}

// Initiate starts a call from caller to target. Valid only when the dyad has
// no session or the prior one reached a terminal state. An offline target
// leaves the caller in calling indefinitely; there is no timeout or fallback.
func (c *Coordinator) Initiate(caller, target string, callerInfo json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := dyad{caller: caller, target: target}
	if s, ok := c.sessions[d]; ok && !terminal(s.status) {
		c.drop("invalid_transition", caller, target, "initiate over active session")
		return
	}

	s := &session{status: StatusCalling, callerInfo: callerInfo}
	c.sessions[d] = s
	metrics.CallEvents.WithLabelValues("initiate").Inc()

	if c.sender.Push(target, EventIncoming, IncomingPayload{CallerInfo: callerInfo}) {
		s.status = StatusIncoming
	} else {
		// Target offline: the session stays calling until an end arrives.
		metrics.CallDrops.WithLabelValues("offline").Inc()
		c.logger.Debug().Str("caller", caller).Str("target", target).
			Msg("call target offline, caller left ringing")
	}
}

// Accept handles the target accepting the call from caller. The caller is
// notified and a buffered offer, if any, is handed to the target exactly
// once so media wiring starts only after consent.
func (c *Coordinator) Accept(target, caller string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := dyad{caller: caller, target: target}
	s, ok := c.sessions[d]
	if !ok {
		c.drop("no_session", caller, target, "accept without session")
		return
	}
	if !c.transition(d, s, StatusConnected) {
		return
	}
	metrics.CallEvents.WithLabelValues("accept").Inc()

	c.sender.Push(caller, EventAccepted, nil)

	if s.bufferedOffer != nil {
		offer := s.bufferedOffer
		s.bufferedOffer = nil
		c.sender.Push(target, EventOffer, OfferPayload{SDP: offer, FromUserID: caller})
	}
}

// Reject handles the target declining the call from caller. The session
// turns rejected (terminal) and the dyad slot decays back to idle shortly
// after, matching the caller-side rejected banner.
func (c *Coordinator) Reject(target, caller string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := dyad{caller: caller, target: target}
	s, ok := c.sessions[d]
	if !ok {
		// Repeated reject after teardown is a no-op.
		return
	}
	if !c.transition(d, s, StatusRejected) {
		return
	}
	metrics.CallEvents.WithLabelValues("reject").Inc()

	c.sender.Push(caller, EventRejected, nil)

	rejected := s
	time.AfterFunc(rejectedDecay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.sessions[d]; ok && cur == rejected {
			delete(c.sessions, d)
		}
	})
}

// Offer relays a caller's SDP offer to the target. Before the target has
// accepted, the offer is buffered on the session (latest wins) instead of
// relayed: media must not be wired before user consent.
func (c *Coordinator) Offer(from, target string, sdp json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, s, ok := c.findSession(from, target)
	if !ok {
		c.drop("no_session", from, target, "offer without session")
		return
	}
	metrics.CallEvents.WithLabelValues("offer").Inc()

	if s.status != StatusConnected {
		s.bufferedOffer = sdp
		c.logger.Debug().Str("caller", d.caller).Str("target", d.target).
			Msg("offer buffered pending accept")
		return
	}
	if !c.sender.Push(target, EventOffer, OfferPayload{SDP: sdp, FromUserID: from}) {
		metrics.CallDrops.WithLabelValues("offline").Inc()
	}
}

// Answer relays an SDP answer verbatim.
func (c *Coordinator) Answer(from, target string, sdp json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, ok := c.findSession(from, target); !ok {
		c.drop("no_session", from, target, "answer without session")
		return
	}
	metrics.CallEvents.WithLabelValues("answer").Inc()

	if !c.sender.Push(target, EventAnswer, AnswerPayload{SDP: sdp}) {
		metrics.CallDrops.WithLabelValues("offline").Inc()
	}
}

// IceCandidate relays an ICE candidate verbatim. Candidates flow at any
// point once the dyad has a session; the receiving client is responsible for
// queueing candidates that arrive before its remote description.
func (c *Coordinator) IceCandidate(from, target string, candidate json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, ok := c.findSession(from, target); !ok {
		c.drop("no_session", from, target, "candidate without session")
		return
	}
	metrics.CallEvents.WithLabelValues("candidate").Inc()

	if !c.sender.Push(target, EventIceCandidate, CandidatePayload{Candidate: candidate}) {
		metrics.CallDrops.WithLabelValues("offline").Inc()
	}
}

// End tears the call down from either side: the other party gets callEnded
// and the session is released. Repeated ends are no-ops.
func (c *Coordinator) End(from, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, s, ok := c.findSession(from, target)
	if !ok {
		return
	}
	delete(c.sessions, d)

	// A terminal session only lingers for the rejected decay window; the
	// peer already tore down, so releasing the slot must not ring it again.
	if terminal(s.status) {
		return
	}
	metrics.CallEvents.WithLabelValues("end").Inc()

	c.sender.Push(target, EventEnded, nil)
}

// Status reports the session status for an ordered dyad, or idle when no
// session exists.
func (c *Coordinator) Status(caller, target string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[dyad{caller: caller, target: target}]; ok {
		return s.status
	}
	return StatusIdle
}

// ReleaseUser drops every session a disconnecting user participates in and
// notifies the remaining peer. Called by the hub on socket teardown.
func (c *Coordinator) ReleaseUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for d := range c.sessions {
		if d.caller != userID && d.target != userID {
			continue
		}
		delete(c.sessions, d)
		peer := d.caller
		if peer == userID {
			peer = d.target
		}
		c.sender.Push(peer, EventEnded, nil)
	}
}

// findSession locates the session for a pair regardless of which side sent
// the event: offers flow caller to target, answers flow back.
func (c *Coordinator) findSession(a, b string) (dyad, *session, bool) {
	if s, ok := c.sessions[dyad{caller: a, target: b}]; ok {
		return dyad{caller: a, target: b}, s, true
	}
	if s, ok := c.sessions[dyad{caller: b, target: a}]; ok {
		return dyad{caller: b, target: a}, s, true
	}
	return dyad{}, nil, false
}

// transition applies a status change if the table allows it.
func (c *Coordinator) transition(d dyad, s *session, next string) bool {
	if _, ok := allowedTransitions[s.status][next]; !ok {
		c.drop("invalid_transition", d.caller, d.target, s.status+" -> "+next)
		return false
	}
	s.status = next
	return true
}

func (c *Coordinator) drop(reason, caller, target, detail string) {
	metrics.CallDrops.WithLabelValues(reason).Inc()
	c.logger.Debug().Str("caller", caller).Str("target", target).
		Str("reason", reason).Msg("signaling event dropped: " + detail)
}

func terminal(status string) bool {
	return status == StatusRejected || status == StatusEnded
}
