package audit

import (
	"context"

	"github.com/courtside/registration-service/internal/domain"
	appCtx "github.com/courtside/registration-service/internal/pkg/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// RegistrationCreated logs an admission decision (registered or waitlisted)
func (l *Logger) RegistrationCreated(ctx context.Context, tournamentID, ownerID uuid.UUID, kind domain.EntityKind, status domain.RegistrationStatus, idempotencyKey string) {
	l.log.Info().
		Str("action", "registration_created").
		Str("tournament_id", tournamentID.String()).
		Str("owner_id", ownerID.String()).
		Str("entity", string(kind)).
		Str("status", string(status)).
		Str("idempotency_key", idempotencyKey).
		Str("trace_id", getTraceID(ctx)).
		Msg("Entrant admitted")
}

// RegistrationWithdrawn logs a withdrawal (self or organizer-directed)
func (l *Logger) RegistrationWithdrawn(ctx context.Context, tournamentID, ownerID, actorID uuid.UUID, idempotencyKey string) {
	l.log.Info().
		Str("action", "registration_withdrawn").
		Str("tournament_id", tournamentID.String()).
		Str("owner_id", ownerID.String()).
		Str("actor_id", actorID.String()).
		Str("idempotency_key", idempotencyKey).
		Str("trace_id", getTraceID(ctx)).
		Msg("Entrant withdrawn")
}

// Promoted logs a waitlist-to-registered promotion
func (l *Logger) Promoted(ctx context.Context, tournamentID, ownerID uuid.UUID, by domain.PromotedBy) {
	l.log.Info().
		Str("action", "promoted").
		Str("tournament_id", tournamentID.String()).
		Str("owner_id", ownerID.String()).
		Str("promoted_by", string(by)).
		Str("trace_id", getTraceID(ctx)).
		Msg("Entrant promoted from waitlist")
}

// Demoted logs an organizer demotion swap
func (l *Logger) Demoted(ctx context.Context, tournamentID, targetID, actorID uuid.UUID) {
	l.log.Warn().
		Str("action", "demoted").
		Str("tournament_id", tournamentID.String()).
		Str("target_registration_id", targetID.String()).
		Str("actor_id", actorID.String()).
		Str("trace_id", getTraceID(ctx)).
		Msg("Entrant demoted to waitlist")
}

// MembershipSuspended logs an organizer suspending a category membership
func (l *Logger) MembershipSuspended(ctx context.Context, categoryID, targetID, actorID uuid.UUID, reason string) {
	l.log.Warn().
		Str("action", "membership_suspended").
		Str("category_id", categoryID.String()).
		Str("target_player_id", targetID.String()).
		Str("actor_id", actorID.String()).
		Str("reason", reason).
		Str("trace_id", getTraceID(ctx)).
		Msg("Category membership suspended")
}

// SuspensionLifted logs a suspension being lifted
func (l *Logger) SuspensionLifted(ctx context.Context, categoryID, targetID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "suspension_lifted").
		Str("category_id", categoryID.String()).
		Str("target_player_id", targetID.String()).
		Str("actor_id", actorID.String()).
		Str("trace_id", getTraceID(ctx)).
		Msg("Category suspension lifted")
}

// OutboxMessageSent logs when an outbox message is successfully published
func (l *Logger) OutboxMessageSent(ctx context.Context, messageID, routingKey string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Msg("Outbox message sent")
}

// OutboxMessageDead logs when an outbox message is moved to dead status
func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}

// getTraceID extracts the request id from context if available
func getTraceID(ctx context.Context) string {
	return appCtx.GetRequestID(ctx)
}
