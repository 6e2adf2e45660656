package rabbitmq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/courtside/registration-service/internal/contracts/event"
	"github.com/courtside/registration-service/internal/domain"
	"github.com/courtside/registration-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	supportedVersion = 1

	rkTournamentScheduled = "tournament.scheduled"
	rkTournamentUpdated   = "tournament.updated"
	rkTournamentCancelled = "tournament.cancelled"
)

// SnapshotCache receives the tournament-open flag derived from each snapshot
// event, feeding the REST layer's fast-fail check.
type SnapshotCache interface {
	SetTournamentOpen(ctx context.Context, tournamentID uuid.UUID, open bool) error
}

type Consumer struct {
	rabbitURL string
	exchange  string
	repo      domain.RegistrationRepository
	cache     SnapshotCache // optional
}

func NewConsumer(rabbitURL, exchange string, repo domain.RegistrationRepository, cache SnapshotCache) *Consumer {
	return &Consumer{
		rabbitURL: strings.TrimSpace(rabbitURL),
		exchange:  strings.TrimSpace(exchange),
		repo:      repo,
		cache:     cache,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "rabbitmq_consumer").Logger()

	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	// Ensure exchange exists (idempotent)
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	q, err := ch.QueueDeclare(
		"registration-service.tournament-snapshots",
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	for _, rk := range []string{rkTournamentScheduled, rkTournamentUpdated, rkTournamentCancelled} {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
	}

	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	deliveries, err := ch.Consume(q.Name, "registration-service", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	go func() {
		defer func() {
			_ = ch.Close()
			_ = conn.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				if err := c.handleDelivery(ctx, d); err != nil {
					_ = d.Nack(false, true) // transient => requeue
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	log.Info().Str("queue", q.Name).Msg("consumer started")
	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	baseLog := logger.Logger.With().
		Str("component", "rabbitmq_consumer").
		Str("routing_key", d.RoutingKey).
		Logger()

	var env event.DomainEventEnvelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		baseLog.Warn().Err(err).Msg("invalid envelope json; dropping")
		return nil // poison => drop
	}

	if env.Version != supportedVersion {
		baseLog.Warn().Int("version", env.Version).Msg("unsupported envelope version; dropping")
		return nil
	}

	// message_id: prefer envelope.message_id, then AMQP MessageId, else hash fallback
	msgID := strings.TrimSpace(env.MessageID)
	if msgID == "" {
		msgID = strings.TrimSpace(d.MessageId)
	}
	if msgID == "" {
		h := sha256.Sum256(append([]byte(d.RoutingKey+"\n"), d.Body...))
		msgID = "hash:" + hex.EncodeToString(h[:])
	}

	log := baseLog.With().
		Str("message_id", msgID).
		Str("trace_id", strings.TrimSpace(env.TraceID)).
		Logger()

	// Strong path: atomic "dedupe fence + side effects" in the SAME DB tx
	type inboxTx interface {
		ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(tx pgx.Tx) error) (bool, error)
		UpsertTournamentTx(ctx context.Context, tx pgx.Tx, t domain.Tournament) error
	}
	const handlerName = "tournament_snapshots"

	if r, ok := any(c.repo).(inboxTx); ok {
		processed, err := r.ProcessOnce(ctx, msgID, handlerName, func(tx pgx.Tx) error {
			return applySnapshotTx(ctx, r, tx, d.RoutingKey, env.Payload, strings.TrimSpace(env.TraceID), log)
		})
		if err != nil {
			log.Error().Err(err).Msg("processing failed (requeue)")
			return err
		}
		if !processed {
			log.Info().Msg("duplicate delivery ignored")
		}
		refreshOpenCache(ctx, c.cache, d.RoutingKey, env.Payload, time.Now().UTC(), log)
		return nil
	}

	// Compatibility path: optional dedupe (non-atomic)
	type processedMarker interface {
		TryMarkProcessed(ctx context.Context, messageID, handlerName string) (bool, error)
	}

	if pm, ok := any(c.repo).(processedMarker); ok {
		first, err := pm.TryMarkProcessed(ctx, msgID, handlerName)
		if err != nil {
			log.Error().Err(err).Msg("processed_messages insert failed (requeue)")
			return err
		}
		if !first {
			log.Info().Msg("duplicate delivery ignored")
			return nil
		}
	} else {
		// No dedupe available -> still process; better than dropping.
		log.Warn().Msg("repo does not support processed_messages; processing without dedupe")
	}

	if err := applySnapshot(ctx, c.repo, d.RoutingKey, env.Payload, strings.TrimSpace(env.TraceID), log); err != nil {
		return err
	}
	refreshOpenCache(ctx, c.cache, d.RoutingKey, env.Payload, time.Now().UTC(), log)
	return nil
}

// refreshOpenCache mirrors the processed snapshot into the tournament-open
// cache. Best effort: a cache error never fails the delivery.
func refreshOpenCache(ctx context.Context, cache SnapshotCache, routingKey string, raw json.RawMessage, now time.Time, log zerolog.Logger) {
	if cache == nil {
		return
	}

	switch routingKey {
	case rkTournamentScheduled, rkTournamentUpdated:
		t, ok := parseSnapshot(raw, log)
		if !ok {
			return
		}
		if err := cache.SetTournamentOpen(ctx, t.ID, t.OpenForRegistration(now)); err != nil {
			log.Warn().Err(err).Msg("tournament-open cache refresh failed")
		}

	case rkTournamentCancelled:
		tid, _, ok := parseCancelled(raw, log)
		if !ok {
			return
		}
		if err := cache.SetTournamentOpen(ctx, tid, false); err != nil {
			log.Warn().Err(err).Msg("tournament-open cache refresh failed")
		}
	}
}

func parseSnapshot(raw json.RawMessage, log zerolog.Logger) (*domain.Tournament, bool) {
	var p event.TournamentScheduledPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Msg("invalid payload json; dropping")
		return nil, false
	}
	if strings.TrimSpace(p.TournamentID) == "" {
		log.Warn().Msg("missing tournament_id; dropping")
		return nil, false
	}
	tid, err := uuid.Parse(p.TournamentID)
	if err != nil {
		log.Warn().Err(err).Msg("invalid tournament_id; dropping")
		return nil, false
	}

	t := domain.Tournament{
		ID:                   tid,
		Status:               domain.TournamentStatus(strings.TrimSpace(p.Status)),
		Capacity:             p.Capacity,
		RegistrationOpensAt:  p.RegistrationOpensAt,
		RegistrationClosesAt: p.RegistrationClosesAt,
	}
	if cid := strings.TrimSpace(p.CategoryID); cid != "" {
		parsed, err := uuid.Parse(cid)
		if err != nil {
			log.Warn().Err(err).Msg("invalid category_id; dropping")
			return nil, false
		}
		t.CategoryID = parsed
	}
	return &t, true
}

func parseCancelled(raw json.RawMessage, log zerolog.Logger) (uuid.UUID, string, bool) {
	var p event.TournamentCancelledPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Msg("invalid payload json; dropping")
		return uuid.UUID{}, "", false
	}

	// tolerate legacy field
	tidStr := strings.TrimSpace(p.TournamentID)
	if tidStr == "" {
		tidStr = strings.TrimSpace(p.ID)
	}
	if tidStr == "" {
		log.Warn().Msg("missing tournament_id; dropping")
		return uuid.UUID{}, "", false
	}
	tid, err := uuid.Parse(tidStr)
	if err != nil {
		log.Warn().Err(err).Msg("invalid tournament_id; dropping")
		return uuid.UUID{}, "", false
	}

	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		reason = "tournament_cancelled"
	}
	return tid, reason, true
}

func applySnapshot(ctx context.Context, repo domain.RegistrationRepository, routingKey string, raw json.RawMessage, traceID string, log zerolog.Logger) error {
	switch routingKey {
	case rkTournamentScheduled, rkTournamentUpdated:
		t, ok := parseSnapshot(raw, log)
		if !ok {
			return nil
		}
		return repo.UpsertTournament(ctx, *t)

	case rkTournamentCancelled:
		tid, reason, ok := parseCancelled(raw, log)
		if !ok {
			return nil
		}
		return repo.HandleTournamentCancelled(ctx, traceID, tid, reason)

	default:
		log.Warn().Msg("unknown routing key; ignoring")
		return nil
	}
}

func applySnapshotTx(
	ctx context.Context,
	r interface {
		UpsertTournamentTx(ctx context.Context, tx pgx.Tx, t domain.Tournament) error
	},
	tx pgx.Tx,
	routingKey string,
	raw json.RawMessage,
	traceID string,
	log zerolog.Logger,
) error {
	switch routingKey {
	case rkTournamentScheduled, rkTournamentUpdated:
		t, ok := parseSnapshot(raw, log)
		if !ok {
			return nil
		}
		return r.UpsertTournamentTx(ctx, tx, *t)

	case rkTournamentCancelled:
		tid, reason, ok := parseCancelled(raw, log)
		if !ok {
			return nil
		}

		// HARD PATH: bulk cancel + outbox, inside the SAME ProcessOnce tx
		type cancelledHandler interface {
			HandleTournamentCancelledTx(ctx context.Context, tx pgx.Tx, traceID string, tournamentID uuid.UUID, reason string) error
		}
		if h, ok := any(r).(cancelledHandler); ok {
			return h.HandleTournamentCancelledTx(ctx, tx, traceID, tid, reason)
		}

		// Fallback: at least close the snapshot
		return r.UpsertTournamentTx(ctx, tx, domain.Tournament{ID: tid, Status: domain.TournamentCancelled})

	default:
		log.Warn().Msg("unknown routing key; ignoring")
		return nil
	}
}
