package event

import "time"

// DomainEventEnvelope is the canonical envelope consumed across services.
// NOTE: message_id is optional for backward compatibility.
type DomainEventEnvelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

// TournamentScheduledPayload / TournamentUpdatedPayload
// Keep fields tolerant: extra fields from producer are ignored by json.Unmarshal.
type TournamentScheduledPayload struct {
	TournamentID         string     `json:"tournament_id"`
	CategoryID           string     `json:"category_id,omitempty"`
	Capacity             *int       `json:"capacity,omitempty"` // pointer so we can detect missing
	Status               string     `json:"status,omitempty"`   // e.g. scheduled/cancelled
	RegistrationOpensAt  *time.Time `json:"registration_opens_at,omitempty"`
	RegistrationClosesAt *time.Time `json:"registration_closes_at,omitempty"`
}

type TournamentUpdatedPayload = TournamentScheduledPayload

// TournamentCancelledPayload
// Accept both tournament_id and legacy id for robustness.
type TournamentCancelledPayload struct {
	TournamentID string `json:"tournament_id,omitempty"`
	ID           string `json:"id,omitempty"`     // legacy / older producer
	Status       string `json:"status,omitempty"` // optional
	Reason       string `json:"reason,omitempty"` // optional
}
