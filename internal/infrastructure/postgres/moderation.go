package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SuspendMembership suspends a player's category membership and, in the same
// transaction, withdraws every live registration the player holds in that
// category's tournaments (singles and pair entries alike), backfilling each
// freed slot from the waitlist.
//
// Lock order: tournaments ascending by id, registration rows under each, the
// membership row last. Admission takes tournament -> membership in the same
// relative order, so the two paths cannot deadlock.
func (r *Repository) SuspendMembership(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID, reason string) error {
	traceID = strings.TrimSpace(traceID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "suspended"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()

	// singles entries
	singles, err := collectLiveTournaments(ctx, tx, `
		SELECT reg.tournament_id, reg.player_id
		FROM registrations reg
		JOIN tournaments t ON t.id = reg.tournament_id
		WHERE t.category_id = $1 AND reg.player_id = $2
		  AND reg.status IN ('registered', 'waitlisted')
		ORDER BY reg.tournament_id ASC
	`, categoryID, playerID)
	if err != nil {
		return err
	}
	for _, hit := range singles {
		if err := r.forceWithdraw(ctx, tx, playerTable, domain.EntityPlayer, hit.tournamentID, hit.ownerID, actorID, traceID, now); err != nil {
			return err
		}
	}

	// pair entries where the player is either member
	pairsHit, err := collectLiveTournaments(ctx, tx, `
		SELECT pr.tournament_id, pr.pair_id
		FROM pair_registrations pr
		JOIN pairs p ON p.id = pr.pair_id
		JOIN tournaments t ON t.id = pr.tournament_id
		WHERE t.category_id = $1 AND (p.player1_id = $2 OR p.player2_id = $2)
		  AND pr.status IN ('registered', 'waitlisted')
		ORDER BY pr.tournament_id ASC
	`, categoryID, playerID)
	if err != nil {
		return err
	}
	for _, hit := range pairsHit {
		if err := r.forceWithdraw(ctx, tx, pairTable, domain.EntityPair, hit.tournamentID, hit.ownerID, actorID, traceID, now); err != nil {
			return err
		}
	}

	// membership row last
	m, err := lockMembership(ctx, tx, categoryID, playerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrMembershipNotFound
	}
	if err != nil {
		return err
	}
	if m.Status == domain.MembershipSuspended {
		return tx.Commit(ctx) // idempotent
	}

	_, err = tx.Exec(ctx, `
		UPDATE category_registrations
		SET status = 'suspended', suspended_at = $2, suspended_by = $3, suspended_reason = $4
		WHERE id = $1
	`, m.ID, now, actorID, reason)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"category_id": categoryID,
		"player_id":   playerID,
		"actor_id":    actorID,
		"reason":      reason,
		"action":      "suspended",
	})
	_, _ = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1,$2,$3,$4,NOW(),'pending')
	`, uuid.New(), traceID, "membership.suspended", payload)

	return tx.Commit(ctx)
}

type liveHit struct {
	tournamentID uuid.UUID
	ownerID      uuid.UUID
}

func collectLiveTournaments(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]liveHit, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []liveHit
	for rows.Next() {
		var h liveHit
		if err := rows.Scan(&h.tournamentID, &h.ownerID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// forceWithdraw is the moderation variant of the withdrawal path, running
// inside the caller's transaction. The row may have changed since collection,
// so a terminal status is skipped rather than treated as an error.
func (r *Repository) forceWithdraw(ctx context.Context, tx pgx.Tx, t entityTable, kind domain.EntityKind, tournamentID, ownerID, actorID uuid.UUID, traceID string, now time.Time) error {
	if _, err := lockTournament(ctx, tx, tournamentID); err != nil {
		return err
	}

	reg, err := lockRegistrationByOwner(ctx, tx, t, kind, tournamentID, ownerID)
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !domain.CanTransition(reg.Status, domain.StatusWithdrawn) {
		return nil
	}
	wasRegistered := reg.Status == domain.StatusRegistered

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'withdrawn', withdrawn_at = $2, withdrawn_by = $3, updated_at = $2
		WHERE id = $1
	`, t.name), reg.ID, now, actorID)
	if err != nil {
		return err
	}

	if wasRegistered {
		if _, err := r.promoteNext(ctx, tx, t, kind, tournamentID, traceID, now); err != nil {
			return err
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"tournament_id":   tournamentID,
		"registration_id": reg.ID,
		"entity":          kind,
		"owner_id":        ownerID,
		"actor_id":        actorID,
		"prev_status":     reg.Status,
		"reason":          "membership_suspended",
	})
	_, _ = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1,$2,$3,$4,NOW(),'pending')
	`, uuid.New(), traceID, "registration.withdrawn", payload)

	return nil
}

// LiftSuspension reinstates a suspended membership to active. The player
// re-enters tournaments through the normal admission path; nothing is
// restored automatically.
func (r *Repository) LiftSuspension(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID) error {
	traceID = strings.TrimSpace(traceID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := lockMembership(ctx, tx, categoryID, playerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrMembershipNotFound
	}
	if err != nil {
		return err
	}
	if m.Status != domain.MembershipSuspended {
		return tx.Commit(ctx) // nothing to lift
	}

	_, err = tx.Exec(ctx, `
		UPDATE category_registrations
		SET status = 'active', suspended_at = NULL, suspended_by = NULL, suspended_reason = NULL
		WHERE id = $1
	`, m.ID)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"category_id": categoryID,
		"player_id":   playerID,
		"actor_id":    actorID,
		"action":      "reinstated",
	})
	_, _ = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1,$2,$3,$4,NOW(),'pending')
	`, uuid.New(), traceID, "membership.reinstated", payload)

	return tx.Commit(ctx)
}
