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
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool       *pgxpool.Pool
	gate       domain.EligibilityGate
	categories domain.CategoryDomain
}

func New(pool *pgxpool.Pool, gate domain.EligibilityGate, categories domain.CategoryDomain) *Repository {
	return &Repository{pool: pool, gate: gate, categories: categories}
}

// entityTable maps an entity kind to its registration table. Both tables have
// identical columns apart from the owner column, so every statement below is
// written once and formatted with the table descriptor. The set is closed;
// nothing user-supplied ever reaches the format call.
type entityTable struct {
	name     string
	ownerCol string
}

var (
	playerTable = entityTable{name: "registrations", ownerCol: "player_id"}
	pairTable   = entityTable{name: "pair_registrations", ownerCol: "pair_id"}
)

func tableFor(kind domain.EntityKind) (entityTable, error) {
	switch kind {
	case domain.EntityPlayer:
		return playerTable, nil
	case domain.EntityPair:
		return pairTable, nil
	default:
		return entityTable{}, fmt.Errorf("unknown entity kind %q", kind)
	}
}

// -------------------------
// Deadlock policy:
// Always lock in this order (for the same tournament_id):
//   1) tournaments snapshot row (FOR UPDATE)
//   2) registration row for (tournament_id,owner) if needed (FOR UPDATE)
//   3) optional waitlist row (FOR UPDATE SKIP LOCKED)
//   4) category_registrations row (FOR UPDATE)
// This prevents cycles between Admit/Withdraw/Consumer(tournament.cancelled).
// -------------------------

// lockTournament takes the per-tournament write lock and returns the snapshot.
// Every admission/withdrawal transaction starts here.
func lockTournament(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID) (domain.Tournament, error) {
	var t domain.Tournament
	err := tx.QueryRow(ctx, `
		SELECT id, category_id, status, capacity, registration_opens_at, registration_closes_at, updated_at
		FROM tournaments
		WHERE id = $1
		FOR UPDATE
	`, tournamentID).Scan(&t.ID, &t.CategoryID, &t.Status, &t.Capacity, &t.RegistrationOpensAt, &t.RegistrationClosesAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, domain.ErrTournamentNotFound
	}
	return t, err
}

func (r *Repository) checkIdempotencyKey(ctx context.Context, tx pgx.Tx, key, action string, tournamentID, ownerID uuid.UUID) error {
	var insertedKey string
	err := tx.QueryRow(ctx, `
		INSERT INTO idempotency_keys (key, owner_id, tournament_id, action, created_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW() + INTERVAL '24 hours')
		ON CONFLICT (key) DO NOTHING
		RETURNING key
	`, key, ownerID, tournamentID, action).Scan(&insertedKey)

	if errors.Is(err, pgx.ErrNoRows) {
		// Key exists. Verify payload.
		var existOwner, existTournament uuid.UUID
		var existAction string
		err := tx.QueryRow(ctx, `SELECT owner_id, tournament_id, action FROM idempotency_keys WHERE key = $1`, key).
			Scan(&existOwner, &existTournament, &existAction)
		if err != nil {
			return err
		}
		if existOwner != ownerID || existTournament != tournamentID || existAction != action {
			return domain.ErrIdempotencyKeyMismatch
		}
		// Payload matches: fall through, the duplicate check decides.
		return nil
	}
	return err
}

func registrationWindowOpen(t domain.Tournament, now time.Time) error {
	if t.RegistrationOpensAt != nil && now.Before(*t.RegistrationOpensAt) {
		return domain.ErrRegistrationNotOpen
	}
	if t.RegistrationClosesAt != nil && now.After(*t.RegistrationClosesAt) {
		return domain.ErrRegistrationClosed
	}
	return nil
}

// Admit runs the full admission transaction: preconditions, capacity decision
// (with optional organizer demotion swap), row creation and category
// coordination are one atomic unit. Any failure rolls back everything.
func (r *Repository) Admit(ctx context.Context, traceID, idempotencyKey string, p domain.AdmitParams) (domain.AdmissionResult, error) {
	var res domain.AdmissionResult

	traceID = strings.TrimSpace(traceID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	t, err := tableFor(p.Entity)
	if err != nil {
		return res, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 0) Idempotency check
	if idempotencyKey != "" {
		if err := r.checkIdempotencyKey(ctx, tx, idempotencyKey, "register", p.TournamentID, p.OwnerID); err != nil {
			return res, err
		}
	}

	// 1) Lock tournament FIRST (global lock for this tournament_id)
	tournament, err := lockTournament(ctx, tx, p.TournamentID)
	if err != nil {
		return res, err
	}

	// 2) Status + window preconditions
	if tournament.Status != domain.TournamentScheduled {
		return res, &domain.TournamentStatusError{Current: tournament.Status}
	}
	now := time.Now().UTC()
	if err := registrationWindowOpen(tournament, now); err != nil {
		return res, err
	}

	// 3) Lock (tournament_id, owner) registration row second
	var existing struct {
		ID           uuid.UUID
		Status       domain.RegistrationStatus
		RegisteredAt time.Time
	}
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, status, registered_at
		FROM %s
		WHERE tournament_id = $1 AND %s = $2
		FOR UPDATE
	`, t.name, t.ownerCol), p.TournamentID, p.OwnerID).Scan(&existing.ID, &existing.Status, &existing.RegisteredAt)

	switch {
	case err == nil:
		if existing.Status == domain.StatusRegistered || existing.Status == domain.StatusWaitlisted {
			return res, &domain.DuplicateRegistrationError{
				RegistrationID: existing.ID,
				Status:         existing.Status,
				RegisteredAt:   existing.RegisteredAt,
			}
		}
		// Terminal row (withdrawn/cancelled): re-registration replaces it.
		// The entrant loses its original timestamp and re-enters at the back
		// of the queue.
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.name), existing.ID); err != nil {
			return res, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		// fresh entrant
	default:
		return res, err
	}

	// 4) Capacity decision. The count runs under the tournament lock, so two
	// concurrent admits cannot both observe a free slot.
	var registeredCount int
	if tournament.Capacity != nil {
		err = tx.QueryRow(ctx, fmt.Sprintf(`
			SELECT COUNT(*) FROM %s WHERE tournament_id = $1 AND status = 'registered'
		`, t.name), p.TournamentID).Scan(&registeredCount)
		if err != nil {
			return res, err
		}
	}

	isFull := tournament.Capacity != nil && registeredCount >= *tournament.Capacity

	newStatus := domain.StatusRegistered
	var demoted *domain.Registration
	if isFull {
		if p.DemoteRegistrationID != nil {
			demoted, err = r.demoteForSwap(ctx, tx, t, p.TournamentID, *p.DemoteRegistrationID, p.ActorID, now)
			if err != nil {
				return res, err
			}
		} else {
			newStatus = domain.StatusWaitlisted
		}
	}

	// 5) Insert the fresh row
	reg := domain.Registration{
		ID:           uuid.New(),
		TournamentID: p.TournamentID,
		Entity:       p.Entity,
		OwnerID:      p.OwnerID,
		Status:       newStatus,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, tournament_id, %s, status, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, t.name, t.ownerCol), reg.ID, reg.TournamentID, reg.OwnerID, string(reg.Status), now)
	if err != nil {
		return res, err
	}

	// 6) Category coordination, same tx. Eligibility failure rolls the whole
	// admission back. Pairs coordinate both members.
	members, err := r.memberPlayers(ctx, tx, p)
	if err != nil {
		return res, err
	}
	var membership *domain.CategoryMembership
	for _, playerID := range members {
		var m *domain.CategoryMembership
		if newStatus == domain.StatusRegistered {
			m, _, err = r.ensureMembershipTx(ctx, tx, playerID, tournament.CategoryID, now)
		} else {
			m, err = r.requireMembershipTx(ctx, tx, playerID, tournament.CategoryID)
		}
		if err != nil {
			return res, err
		}
		if playerID == p.PlayerID {
			membership = m
		}
	}

	// 7) Outbox
	if demoted != nil {
		payload, _ := json.Marshal(map[string]any{
			"tournament_id":   p.TournamentID,
			"registration_id": demoted.ID,
			"entity":          p.Entity,
			"owner_id":        demoted.OwnerID,
			"demoted_by":      p.ActorID,
		})
		_, _ = tx.Exec(ctx,
			`INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status) VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
			uuid.New(), traceID, "registration.demoted", payload,
		)
	}
	payload, _ := json.Marshal(map[string]any{
		"tournament_id":   p.TournamentID,
		"registration_id": reg.ID,
		"entity":          p.Entity,
		"owner_id":        p.OwnerID,
		"status":          newStatus,
	})
	_, _ = tx.Exec(ctx,
		`INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status) VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
		uuid.New(), traceID, "registration.created", payload,
	)

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}

	res.Registration = reg
	res.Membership = membership
	res.Demoted = demoted
	res.Capacity = domain.CapacityInfo{
		Status:          newStatus,
		Capacity:        tournament.Capacity,
		RegisteredCount: registeredCount,
		IsFull:          isFull,
	}
	switch {
	case demoted != nil:
		res.Message = "admitted via organizer swap"
	case newStatus == domain.StatusWaitlisted:
		res.Message = "tournament full, placed on waitlist"
	default:
		res.Message = "registered"
	}
	return res, nil
}

// demoteForSwap moves the organizer-chosen registered entrant to the waitlist
// so the new entrant can take its slot inside the same transaction. The
// registered count stays at exactly capacity across the swap.
func (r *Repository) demoteForSwap(ctx context.Context, tx pgx.Tx, t entityTable, tournamentID, targetID, actorID uuid.UUID, now time.Time) (*domain.Registration, error) {
	var target domain.Registration
	target.TournamentID = tournamentID
	err := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, %s, status, registered_at
		FROM %s
		WHERE id = $1 AND tournament_id = $2
		FOR UPDATE
	`, t.ownerCol, t.name), targetID, tournamentID).Scan(&target.ID, &target.OwnerID, &target.Status, &target.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(target.Status, domain.StatusWaitlisted) || target.Status != domain.StatusRegistered {
		return nil, domain.ErrDemotionTargetNotRegistered
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'waitlisted', demoted_at = $2, demoted_by = $3, updated_at = $2
		WHERE id = $1
	`, t.name), targetID, now, actorID)
	if err != nil {
		return nil, err
	}

	target.Status = domain.StatusWaitlisted
	target.DemotedAt = &now
	target.DemotedBy = &actorID
	target.UpdatedAt = now
	return &target, nil
}

// memberPlayers resolves which players need category coordination: the player
// itself for singles, both members for pairs.
func (r *Repository) memberPlayers(ctx context.Context, tx pgx.Tx, p domain.AdmitParams) ([]uuid.UUID, error) {
	if p.Entity == domain.EntityPlayer {
		return []uuid.UUID{p.OwnerID}, nil
	}

	var p1, p2 uuid.UUID
	err := tx.QueryRow(ctx, `SELECT player1_id, player2_id FROM pairs WHERE id = $1`, p.OwnerID).Scan(&p1, &p2)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPairNotFound
	}
	if err != nil {
		return nil, err
	}
	return []uuid.UUID{p1, p2}, nil
}

// Withdraw removes the caller's (or a pair's) registration and backfills the
// freed slot from the waitlist in the same transaction.
func (r *Repository) Withdraw(ctx context.Context, traceID, idempotencyKey string, tournamentID uuid.UUID, kind domain.EntityKind, ownerID, actorID uuid.UUID) (domain.WithdrawalResult, error) {
	t, err := tableFor(kind)
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	return r.withdraw(ctx, traceID, idempotencyKey, t, kind, tournamentID, actorID, func(ctx context.Context, tx pgx.Tx) (domain.Registration, error) {
		return lockRegistrationByOwner(ctx, tx, t, kind, tournamentID, ownerID)
	})
}

// WithdrawByID is the organizer-directed path: the target is addressed by
// registration id and may belong to anyone. Works for both entity kinds; the
// id is looked up in the player table first, then the pair table.
func (r *Repository) WithdrawByID(ctx context.Context, traceID, idempotencyKey string, tournamentID, registrationID, actorID uuid.UUID) (domain.WithdrawalResult, error) {
	for _, probe := range []struct {
		t    entityTable
		kind domain.EntityKind
	}{{playerTable, domain.EntityPlayer}, {pairTable, domain.EntityPair}} {
		var exists bool
		err := r.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND tournament_id = $2)
		`, probe.t.name), registrationID, tournamentID).Scan(&exists)
		if err != nil {
			return domain.WithdrawalResult{}, err
		}
		if !exists {
			continue
		}
		t, kind := probe.t, probe.kind
		return r.withdraw(ctx, traceID, idempotencyKey, t, kind, tournamentID, actorID, func(ctx context.Context, tx pgx.Tx) (domain.Registration, error) {
			return lockRegistrationByID(ctx, tx, t, kind, tournamentID, registrationID)
		})
	}
	return domain.WithdrawalResult{}, domain.ErrRegistrationNotFound
}

func lockRegistrationByOwner(ctx context.Context, tx pgx.Tx, t entityTable, kind domain.EntityKind, tournamentID, ownerID uuid.UUID) (domain.Registration, error) {
	return scanLockedRegistration(tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, %s, status, registered_at, updated_at, withdrawn_at, promoted_by, promoted_at
		FROM %s
		WHERE tournament_id = $1 AND %s = $2
		FOR UPDATE
	`, t.ownerCol, t.name, t.ownerCol), tournamentID, ownerID), kind, tournamentID)
}

func lockRegistrationByID(ctx context.Context, tx pgx.Tx, t entityTable, kind domain.EntityKind, tournamentID, registrationID uuid.UUID) (domain.Registration, error) {
	return scanLockedRegistration(tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, %s, status, registered_at, updated_at, withdrawn_at, promoted_by, promoted_at
		FROM %s
		WHERE id = $1 AND tournament_id = $2
		FOR UPDATE
	`, t.ownerCol, t.name), registrationID, tournamentID), kind, tournamentID)
}

func scanLockedRegistration(row pgx.Row, kind domain.EntityKind, tournamentID uuid.UUID) (domain.Registration, error) {
	var reg domain.Registration
	reg.Entity = kind
	reg.TournamentID = tournamentID
	err := row.Scan(&reg.ID, &reg.OwnerID, &reg.Status, &reg.RegisteredAt, &reg.UpdatedAt, &reg.WithdrawnAt, &reg.PromotedBy, &reg.PromotedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reg, domain.ErrRegistrationNotFound
	}
	return reg, err
}

func (r *Repository) withdraw(
	ctx context.Context,
	traceID, idempotencyKey string,
	t entityTable,
	kind domain.EntityKind,
	tournamentID uuid.UUID,
	actorID uuid.UUID,
	lockTarget func(context.Context, pgx.Tx) (domain.Registration, error),
) (domain.WithdrawalResult, error) {
	var res domain.WithdrawalResult

	traceID = strings.TrimSpace(traceID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) Lock tournament FIRST
	if _, err := lockTournament(ctx, tx, tournamentID); err != nil {
		return res, err
	}

	// 2) Lock target row second
	reg, err := lockTarget(ctx, tx)
	if err != nil {
		return res, err
	}

	// 0') Idempotency key after the target is known (the key is scoped to the
	// row's owner, which the by-id path only learns here).
	if idempotencyKey != "" {
		if err := r.checkIdempotencyKey(ctx, tx, idempotencyKey, "withdraw", tournamentID, reg.OwnerID); err != nil {
			return res, err
		}
	}

	// Withdrawal is deliberately not idempotent: a second call is a caller bug.
	if !domain.CanTransition(reg.Status, domain.StatusWithdrawn) {
		return res, domain.ErrAlreadyWithdrawn
	}
	wasRegistered := reg.Status == domain.StatusRegistered

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'withdrawn', withdrawn_at = $2, withdrawn_by = $3, updated_at = $2
		WHERE id = $1
	`, t.name), reg.ID, now, actorID)
	if err != nil {
		return res, err
	}
	reg.Status = domain.StatusWithdrawn
	reg.WithdrawnAt = &now
	reg.WithdrawnBy = &actorID
	reg.UpdatedAt = now

	// 3) Auto-promotion: only a registered departure frees a slot. The oldest
	// waitlisted row is selected and flipped inside this same transaction so
	// two concurrent withdrawals cannot promote the same candidate.
	var promoted *domain.Registration
	if wasRegistered {
		promoted, err = r.promoteNext(ctx, tx, t, kind, tournamentID, traceID, now)
		if err != nil {
			return res, err
		}
	}

	// 4) Outbox
	payload, _ := json.Marshal(map[string]any{
		"tournament_id":   tournamentID,
		"registration_id": reg.ID,
		"entity":          kind,
		"owner_id":        reg.OwnerID,
		"prev_status":     wasRegisteredStatus(wasRegistered),
	})
	_, _ = tx.Exec(ctx,
		`INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		 VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
		uuid.New(), traceID, "registration.withdrawn", payload,
	)

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}

	res.Registration = reg
	res.Promoted = promoted
	if promoted != nil {
		res.Message = "withdrawn, next waitlisted entrant promoted"
	} else {
		res.Message = "withdrawn"
	}
	return res, nil
}

func wasRegisteredStatus(wasRegistered bool) domain.RegistrationStatus {
	if wasRegistered {
		return domain.StatusRegistered
	}
	return domain.StatusWaitlisted
}

func (r *Repository) promoteNext(ctx context.Context, tx pgx.Tx, t entityTable, kind domain.EntityKind, tournamentID uuid.UUID, traceID string, now time.Time) (*domain.Registration, error) {
	var next domain.Registration
	next.Entity = kind
	next.TournamentID = tournamentID
	err := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, %s, registered_at
		FROM %s
		WHERE tournament_id = $1 AND status = 'waitlisted'
		ORDER BY registered_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, t.ownerCol, t.name), tournamentID).Scan(&next.ID, &next.OwnerID, &next.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // empty waitlist
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'registered', promoted_by = 'system', promoted_at = $2, updated_at = $2
		WHERE id = $1
	`, t.name), next.ID, now)
	if err != nil {
		return nil, err
	}

	by := domain.PromotedBySystem
	next.Status = domain.StatusRegistered
	next.PromotedBy = &by
	next.PromotedAt = &now
	next.UpdatedAt = now

	payload, _ := json.Marshal(map[string]any{
		"tournament_id":   tournamentID,
		"registration_id": next.ID,
		"entity":          kind,
		"owner_id":        next.OwnerID,
		"reason":          "slot_freed",
	})
	_, _ = tx.Exec(ctx,
		`INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		 VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
		uuid.New(), traceID, "registration.promoted", payload,
	)
	return &next, nil
}

// UpsertTournament refreshes the local snapshot from a producer event.
func (r *Repository) UpsertTournament(ctx context.Context, t domain.Tournament) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := r.UpsertTournamentTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertTournamentTx is used by the RabbitMQ snapshot consumer when it wants an
// atomic tx with ProcessOnce.
func (r *Repository) UpsertTournamentTx(ctx context.Context, tx pgx.Tx, t domain.Tournament) error {
	if t.Status == "" {
		t.Status = domain.TournamentScheduled
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO tournaments (id, category_id, status, capacity, registration_opens_at, registration_closes_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    capacity = EXCLUDED.capacity,
		    registration_opens_at = EXCLUDED.registration_opens_at,
		    registration_closes_at = EXCLUDED.registration_closes_at,
		    updated_at = NOW()
	`, t.ID, t.CategoryID, string(t.Status), t.Capacity, t.RegistrationOpensAt, t.RegistrationClosesAt)
	return err
}

// -------------------------
// tournament.cancelled hard path (tx):
// - lock tournaments row
// - bulk update registered/waitlisted rows in both tables -> cancelled
// - outbox per affected entrant
// - mark the snapshot cancelled
// -------------------------

func (r *Repository) HandleTournamentCancelled(ctx context.Context, traceID string, tournamentID uuid.UUID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.HandleTournamentCancelledTx(ctx, tx, traceID, tournamentID, reason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// HandleTournamentCancelledTx is called from the consumer inside a
// ProcessOnce(...) transaction. IMPORTANT: do not call ProcessOnce here;
// the caller already did.
func (r *Repository) HandleTournamentCancelledTx(ctx context.Context, tx pgx.Tx, traceID string, tournamentID uuid.UUID, reason string) error {
	traceID = strings.TrimSpace(traceID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "tournament_cancelled"
	}

	_, err := lockTournament(ctx, tx, tournamentID)
	if errors.Is(err, domain.ErrTournamentNotFound) {
		// Snapshot never arrived; record the cancelled tournament so late
		// registrations still fail cleanly.
		_, _ = tx.Exec(ctx, `
			INSERT INTO tournaments (id, category_id, status, capacity, created_at, updated_at)
			VALUES ($1, '00000000-0000-0000-0000-000000000000', 'cancelled', NULL, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
		`, tournamentID)
		_, err = lockTournament(ctx, tx, tournamentID)
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, probe := range []struct {
		t    entityTable
		kind domain.EntityKind
	}{{playerTable, domain.EntityPlayer}, {pairTable, domain.EntityPair}} {
		type affected struct {
			RegistrationID uuid.UUID
			OwnerID        uuid.UUID
			PrevStatus     string
		}
		var entrants []affected

		rows, err := tx.Query(ctx, fmt.Sprintf(`
			SELECT id, %s, status
			FROM %s
			WHERE tournament_id = $1 AND status IN ('registered', 'waitlisted')
			FOR UPDATE`, probe.t.ownerCol, probe.t.name), tournamentID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var a affected
			if err := rows.Scan(&a.RegistrationID, &a.OwnerID, &a.PrevStatus); err != nil {
				rows.Close()
				return err
			}
			entrants = append(entrants, a)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(entrants) > 0 {
			_, err = tx.Exec(ctx, fmt.Sprintf(`
				UPDATE %s
				SET status = 'cancelled', withdrawn_at = NOW(), updated_at = NOW()
				WHERE tournament_id = $1 AND status IN ('registered', 'waitlisted')`,
				probe.t.name), tournamentID)
			if err != nil {
				return err
			}
		}

		for _, a := range entrants {
			payload, _ := json.Marshal(map[string]any{
				"tournament_id":   tournamentID.String(),
				"registration_id": a.RegistrationID.String(),
				"entity":          string(probe.kind),
				"owner_id":        a.OwnerID.String(),
				"prev_status":     a.PrevStatus,
				"reason":          reason,
				"occurred_at":     now.Format(time.RFC3339Nano),
				"trace_id":        traceID,
				"producer":        "registration-service",
			})

			_, err = tx.Exec(ctx, `
				INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
				VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
				uuid.New(), traceID, "registration.cancelled", payload)
			if err != nil {
				return err
			}
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tournaments
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1`, tournamentID)
	return err
}
