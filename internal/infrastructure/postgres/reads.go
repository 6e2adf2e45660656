package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// CheckCapacity is the pure capacity read: no locks, no side effects. Safe to
// call repeatedly; the count is only authoritative inside an admission
// transaction, which recomputes it under the tournament lock.
func (r *Repository) CheckCapacity(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind) (domain.CapacityInfo, error) {
	var info domain.CapacityInfo

	t, err := tableFor(kind)
	if err != nil {
		return info, err
	}

	var capacity *int
	err = r.pool.QueryRow(ctx, `SELECT capacity FROM tournaments WHERE id = $1`, tournamentID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return info, domain.ErrTournamentNotFound
	}
	if err != nil {
		return info, err
	}

	// Unlimited tournaments never waitlist; the count is not even consulted.
	if capacity == nil {
		return domain.CapacityInfo{Status: domain.StatusRegistered}, nil
	}

	var count int
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE tournament_id = $1 AND status = 'registered'
	`, t.name), tournamentID).Scan(&count)
	if err != nil {
		return info, err
	}

	info.Capacity = capacity
	info.RegisteredCount = count
	info.IsFull = count >= *capacity
	if info.IsFull {
		info.Status = domain.StatusWaitlisted
	} else {
		info.Status = domain.StatusRegistered
	}
	return info, nil
}

// NextWaitlistCandidate returns the FIFO head of the waitlist, or nil when the
// waitlist is empty. Pure read; the promoting transaction re-selects the row
// itself under its own locks.
func (r *Repository) NextWaitlistCandidate(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind) (*domain.Registration, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var reg domain.Registration
	reg.Entity = kind
	reg.TournamentID = tournamentID
	reg.Status = domain.StatusWaitlisted
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, %s, registered_at, updated_at
		FROM %s
		WHERE tournament_id = $1 AND status = 'waitlisted'
		ORDER BY registered_at ASC, id ASC
		LIMIT 1
	`, t.ownerCol, t.name), tournamentID).Scan(&reg.ID, &reg.OwnerID, &reg.RegisteredAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// /me/registrations : ORDER BY registered_at DESC, id DESC
// cursor means "start after this item" in DESC order -> WHERE (registered_at, id) < (cursor.registered_at, cursor.id)
func (r *Repository) ListMyRegistrations(ctx context.Context, playerID uuid.UUID, statuses []domain.RegistrationStatus, from, to *time.Time, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	limit = clampLimit(limit)
	args := []any{playerID}
	where := "WHERE player_id = $1"

	argN := 2

	if len(statuses) > 0 {
		// build IN (...)
		ph := ""
		for i := range statuses {
			if i > 0 {
				ph += ","
			}
			ph += fmt.Sprintf("$%d", argN)
			args = append(args, string(statuses[i]))
			argN++
		}
		where += " AND status IN (" + ph + ")"
	}

	if from != nil {
		where += fmt.Sprintf(" AND registered_at >= $%d", argN)
		args = append(args, *from)
		argN++
	}
	if to != nil {
		where += fmt.Sprintf(" AND registered_at <= $%d", argN)
		args = append(args, *to)
		argN++
	}

	if cursor != nil {
		where += fmt.Sprintf(" AND (registered_at, id) < ($%d, $%d)", argN, argN+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argN += 2
	}

	q := fmt.Sprintf(`
		SELECT id, tournament_id, player_id, status,
		       registered_at, updated_at,
		       withdrawn_at, withdrawn_by,
		       promoted_by, promoted_at,
		       demoted_at, demoted_by
		FROM registrations
		%s
		ORDER BY registered_at DESC, id DESC
		LIMIT %d
	`, where, limit+1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		var rec domain.Registration
		rec.Entity = domain.EntityPlayer
		if err := rows.Scan(
			&rec.ID, &rec.TournamentID, &rec.OwnerID, &rec.Status,
			&rec.RegisteredAt, &rec.UpdatedAt,
			&rec.WithdrawnAt, &rec.WithdrawnBy,
			&rec.PromotedBy, &rec.PromotedAt,
			&rec.DemotedAt, &rec.DemotedBy,
		); err != nil {
			return nil, nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.KeysetCursor
	if len(out) > limit {
		last := out[limit-1]
		next = &domain.KeysetCursor{CreatedAt: last.RegisteredAt, ID: last.ID}
		out = out[:limit]
	}
	return out, next, nil
}

// participants: registered only, ORDER BY registered_at ASC, id ASC
func (r *Repository) ListParticipants(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	return r.listByTournamentStatusASC(ctx, tournamentID, kind, "registered", limit, cursor)
}

// waitlist: waitlisted only, FIFO order exposed as-is
func (r *Repository) ListWaitlist(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	return r.listByTournamentStatusASC(ctx, tournamentID, kind, "waitlisted", limit, cursor)
}

func (r *Repository) listByTournamentStatusASC(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, status string, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, nil, err
	}

	limit = clampLimit(limit)
	args := []any{tournamentID, status}
	where := "WHERE tournament_id = $1 AND status = $2"
	argN := 3

	// ASC cursor: WHERE (registered_at, id) > (cursor.registered_at, cursor.id)
	if cursor != nil {
		where += fmt.Sprintf(" AND (registered_at, id) > ($%d, $%d)", argN, argN+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argN += 2
	}

	q := fmt.Sprintf(`
		SELECT id, tournament_id, %s, status,
		       registered_at, updated_at,
		       promoted_by, promoted_at
		FROM %s
		%s
		ORDER BY registered_at ASC, id ASC
		LIMIT %d
	`, t.ownerCol, t.name, where, limit+1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		var rec domain.Registration
		rec.Entity = kind
		if err := rows.Scan(
			&rec.ID, &rec.TournamentID, &rec.OwnerID, &rec.Status,
			&rec.RegisteredAt, &rec.UpdatedAt,
			&rec.PromotedBy, &rec.PromotedAt,
		); err != nil {
			return nil, nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.KeysetCursor
	if len(out) > limit {
		last := out[limit-1]
		next = &domain.KeysetCursor{CreatedAt: last.RegisteredAt, ID: last.ID}
		out = out[:limit]
	}
	return out, next, nil
}
