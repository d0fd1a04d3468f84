package ws

import "encoding/json"

// Channel event names. Presence and message events are server to client;
// call events are mirrored: the client-to-server name carries a target and
// the server relays the peer-facing counterpart.
const (
	EventPresenceChanged = "presenceChanged"

	EventCallInitiate     = "callInitiate"
	EventCallAccept       = "callAccept"
	EventCallReject       = "callReject"
	EventCallEnd          = "callEnd"
	EventCallOffer        = "callOffer"
	EventCallAnswer       = "callAnswer"
	EventCallIceCandidate = "callIceCandidate"
)

// Event is the wire envelope for every channel message.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundEvent keeps the payload raw until the event type picks a shape.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PresencePayload carries the full online set on every presence change.
type PresencePayload struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

// Client-to-server call payloads. SDP, candidates and caller info are opaque
// envelopes relayed without inspection.
type initiatePayload struct {
	TargetID   string          `json:"targetId"`
	CallerInfo json.RawMessage `json:"callerInfo"`
}

type acceptPayload struct {
	CallerID string `json:"callerId"`
}

type rejectPayload struct {
	CallerID string `json:"callerId"`
}

type endPayload struct {
	TargetID string `json:"targetId"`
}

type offerPayload struct {
	TargetID string          `json:"targetId"`
	SDP      json.RawMessage `json:"sdp"`
}

type answerPayload struct {
	TargetID string          `json:"targetId"`
	SDP      json.RawMessage `json:"sdp"`
}

type candidatePayload struct {
	TargetID  string          `json:"targetId"`
	Candidate json.RawMessage `json:"candidate"`
}
