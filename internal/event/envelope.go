package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for lifecycle records
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMemberJoined
	EventTypeMemberExited
	EventTypeRoundStarted
	EventTypePayoutClaimed
	EventTypeRoundCompleted
	EventTypeViolationRecorded
	EventTypeInsuranceDistributed
)

func (et EventType) String() string {
	switch et {
	case EventTypeMemberJoined:
		return "MemberJoined"
	case EventTypeMemberExited:
		return "MemberExited"
	case EventTypeRoundStarted:
		return "RoundStarted"
	case EventTypePayoutClaimed:
		return "PayoutClaimed"
	case EventTypeRoundCompleted:
		return "RoundCompleted"
	case EventTypeViolationRecorded:
		return "ViolationRecorded"
	case EventTypeInsuranceDistributed:
		return "InsuranceDistributed"
	default:
		return "Unknown"
	}
}

// Subject returns the outbound message subject for this event type.
func (et EventType) Subject() string {
	switch et {
	case EventTypeMemberJoined:
		return "stok.vault.events.member_joined"
	case EventTypeMemberExited:
		return "stok.vault.events.member_exited"
	case EventTypeRoundStarted:
		return "stok.vault.events.round_started"
	case EventTypePayoutClaimed:
		return "stok.vault.events.payout_claimed"
	case EventTypeRoundCompleted:
		return "stok.vault.events.round_completed"
	case EventTypeViolationRecorded:
		return "stok.vault.events.violation_recorded"
	case EventTypeInsuranceDistributed:
		return "stok.vault.events.insurance_distributed"
	default:
		return "stok.vault.events.unknown"
	}
}

// Record is one entry in the vault's lifecycle log. The sequence is a
// global monotonic counter assigned by the orchestrator; payloads are
// JSON-encoded per-type structs.
type Record struct {
	Sequence  int64           `json:"sequence"`
	Type      EventType       `json:"type"`
	RoundID   int64           `json:"round_id,omitempty"`
	MemberID  *uuid.UUID      `json:"member_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRecord marshals the payload and wraps it. A payload that cannot
// marshal is a programming error; the record is still emitted with a nil
// payload so the log keeps its sequence.
func NewRecord(seq int64, et EventType, roundID int64, memberID *uuid.UUID, ts time.Time, payload interface{}) Record {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return Record{
		Sequence:  seq,
		Type:      et,
		RoundID:   roundID,
		MemberID:  memberID,
		Timestamp: ts,
		Payload:   raw,
	}
}
