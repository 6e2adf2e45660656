package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Category membership coordination. The admission engine never touches
// category_registrations directly; it goes through these two entry points,
// always inside the admission transaction.

// ensureMembershipTx guarantees an active membership for an admitted player:
// reuses an existing active row, reactivates a withdrawn one after re-running
// the eligibility gate, or creates a fresh one. A suspended membership blocks
// admission. Reactivation flips withdrawn -> active directly; no intermediate
// status is ever written, so concurrent readers only see the two real states.
func (r *Repository) ensureMembershipTx(ctx context.Context, tx pgx.Tx, playerID, categoryID uuid.UUID, now time.Time) (*domain.CategoryMembership, bool, error) {
	m, err := lockMembership(ctx, tx, categoryID, playerID)
	switch {
	case err == nil:
		switch m.Status {
		case domain.MembershipActive:
			return m, false, nil
		case domain.MembershipSuspended:
			return nil, false, domain.ErrMembershipSuspended
		default: // withdrawn: reactivate, eligibility re-checked first
			if err := r.gate.Check(ctx, playerID, categoryID); err != nil {
				return nil, false, err
			}
			_, err = tx.Exec(ctx, `
				UPDATE category_registrations
				SET status = 'active', registered_at = $2, withdrawn_at = NULL
				WHERE id = $1
			`, m.ID, now)
			if err != nil {
				return nil, false, err
			}
			m.Status = domain.MembershipActive
			m.RegisteredAt = now
			m.WithdrawnAt = nil
			return m, false, nil
		}
	case errors.Is(err, pgx.ErrNoRows):
		// fresh enrollment
	default:
		return nil, false, err
	}

	if err := r.gate.Check(ctx, playerID, categoryID); err != nil {
		return nil, false, err
	}

	fresh := &domain.CategoryMembership{
		ID:           uuid.New(),
		CategoryID:   categoryID,
		PlayerID:     playerID,
		Status:       domain.MembershipActive,
		RegisteredAt: now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO category_registrations (id, category_id, player_id, status, registered_at, has_participated)
		VALUES ($1, $2, $3, 'active', $4, FALSE)
	`, fresh.ID, categoryID, playerID, now)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// requireMembershipTx enforces the waitlist anti-spam rule: an entrant may
// only queue for a tournament whose category it has already committed to.
func (r *Repository) requireMembershipTx(ctx context.Context, tx pgx.Tx, playerID, categoryID uuid.UUID) (*domain.CategoryMembership, error) {
	m, err := lockMembership(ctx, tx, categoryID, playerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryRegistrationRequired
	}
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case domain.MembershipActive:
		return m, nil
	case domain.MembershipSuspended:
		return nil, domain.ErrMembershipSuspended
	default:
		return nil, domain.ErrCategoryRegistrationRequired
	}
}

func lockMembership(ctx context.Context, tx pgx.Tx, categoryID, playerID uuid.UUID) (*domain.CategoryMembership, error) {
	var m domain.CategoryMembership
	err := tx.QueryRow(ctx, `
		SELECT id, category_id, player_id, status, registered_at, withdrawn_at,
		       suspended_at, suspended_by, suspended_reason, has_participated
		FROM category_registrations
		WHERE category_id = $1 AND player_id = $2
		FOR UPDATE
	`, categoryID, playerID).Scan(&m.ID, &m.CategoryID, &m.PlayerID, &m.Status, &m.RegisteredAt, &m.WithdrawnAt,
		&m.SuspendedAt, &m.SuspendedBy, &m.SuspendedReason, &m.HasParticipated)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CleanupMembership asks the category domain whether anything still keeps the
// player enrolled and deletes the membership row when nothing does. Runs
// outside the withdrawal transaction: best-effort, independently retryable,
// never rolls back a committed withdrawal.
func (r *Repository) CleanupMembership(ctx context.Context, playerID, categoryID uuid.UUID) (bool, error) {
	should, _, err := r.categories.ShouldUnregister(ctx, playerID, categoryID)
	if err != nil {
		return false, err
	}
	if !should {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM category_registrations
		WHERE category_id = $1 AND player_id = $2 AND status != 'suspended'
	`, categoryID, playerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
