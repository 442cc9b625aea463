package domain

import (
	"errors"
	"fmt"
)

type MessageType string

const (
	MessageOffer     MessageType = "offer"
	MessageAnswer    MessageType = "answer"
	MessageCandidate MessageType = "candidate"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrEmptyPayload   = errors.New("empty payload")
)

// Message is the signaling envelope on the wire:
//
//	{"type":"offer","sdp":"..."}
//	{"type":"answer","sdp":"..."}
//	{"type":"candidate","ice":{"candidate":"...","sdpMid":"0","sdpMLineIndex":0}}
type Message struct {
	Type MessageType `json:"type"`
	SDP  string      `json:"sdp,omitempty"`
	ICE  *Candidate  `json:"ice,omitempty"`
}

func DescriptionMessage(d SessionDescription) Message {
	return Message{Type: MessageType(d.Type), SDP: d.SDP}
}

func CandidateMessage(c Candidate) Message {
	return Message{Type: MessageCandidate, ICE: &c}
}

// Description returns the session description carried by an offer or answer.
func (m Message) Description() SessionDescription {
	return SessionDescription{Type: SDPType(m.Type), SDP: m.SDP}
}

func (m Message) Validate() error {
	switch m.Type {
	case MessageOffer, MessageAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrEmptyPayload)
		}
	case MessageCandidate:
		if m.ICE == nil {
			return fmt.Errorf("%s: %w", m.Type, ErrEmptyPayload)
		}
	default:
		return fmt.Errorf("%q: %w", m.Type, ErrUnknownMessage)
	}
	return nil
}
