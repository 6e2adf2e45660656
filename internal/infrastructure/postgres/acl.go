package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func (r *Repository) GetTournament(ctx context.Context, tournamentID uuid.UUID) (domain.Tournament, error) {
	var t domain.Tournament
	err := r.pool.QueryRow(ctx, `
		SELECT id, category_id, status, capacity, registration_opens_at, registration_closes_at, updated_at
		FROM tournaments
		WHERE id = $1
	`, tournamentID).Scan(&t.ID, &t.CategoryID, &t.Status, &t.Capacity, &t.RegistrationOpensAt, &t.RegistrationClosesAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, domain.ErrTournamentNotFound
	}
	return t, err
}

func (r *Repository) GetCategoryOrganizerID(ctx context.Context, categoryID uuid.UUID) (uuid.UUID, error) {
	var organizer uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT organizer_id FROM categories WHERE id = $1`, categoryID).Scan(&organizer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.UUID{}, domain.ErrCategoryNotFound
		}
		return uuid.UUID{}, err
	}
	return organizer, nil
}

func (r *Repository) GetPair(ctx context.Context, pairID uuid.UUID) (domain.Pair, error) {
	p := domain.Pair{ID: pairID}
	err := r.pool.QueryRow(ctx, `SELECT player1_id, player2_id FROM pairs WHERE id = $1`, pairID).Scan(&p.Player1ID, &p.Player2ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pair{}, domain.ErrPairNotFound
		}
		return domain.Pair{}, err
	}
	return p, nil
}

// Shared reads the category and player tables this service shares with the
// category/profile services and implements the two collaborator contracts the
// admission core consumes: the eligibility gate and the category domain's
// decision surface.
type Shared struct {
	pool *pgxpool.Pool
}

func NewShared(pool *pgxpool.Pool) *Shared {
	return &Shared{pool: pool}
}

func (s *Shared) GetByID(ctx context.Context, categoryID uuid.UUID) (domain.Category, error) {
	var c domain.Category
	err := s.pool.QueryRow(ctx, `
		SELECT id, organizer_id, name, min_age, max_age, COALESCE(gender, '')
		FROM categories
		WHERE id = $1
	`, categoryID).Scan(&c.ID, &c.OrganizerID, &c.Name, &c.MinAge, &c.MaxAge, &c.Gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, domain.ErrCategoryNotFound
	}
	return c, err
}

// Check validates a player profile against the category's entry rules.
func (s *Shared) Check(ctx context.Context, playerID, categoryID uuid.UUID) error {
	c, err := s.GetByID(ctx, categoryID)
	if err != nil {
		return err
	}

	var birthdate *time.Time
	var gender string
	var profileComplete bool
	err = s.pool.QueryRow(ctx, `
		SELECT birthdate, COALESCE(gender, ''), profile_complete
		FROM players
		WHERE id = $1
	`, playerID).Scan(&birthdate, &gender, &profileComplete)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.EligibilityError{Code: domain.EligibilityCodeProfile, Message: "player profile not found"}
	}
	if err != nil {
		return err
	}

	return domain.CheckEligibility(c, birthdate, gender, profileComplete, time.Now().UTC())
}

// ShouldUnregister decides whether anything still ties the player to the
// category after a withdrawal: a live registration in any of the category's
// tournaments (singles or via a pair), or recorded participation, keeps the
// membership.
func (s *Shared) ShouldUnregister(ctx context.Context, playerID, categoryID uuid.UUID) (bool, string, error) {
	var hasLive bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM registrations reg
			JOIN tournaments t ON t.id = reg.tournament_id
			WHERE t.category_id = $1 AND reg.player_id = $2
			  AND reg.status IN ('registered', 'waitlisted')
		) OR EXISTS(
			SELECT 1 FROM pair_registrations pr
			JOIN pairs p ON p.id = pr.pair_id
			JOIN tournaments t ON t.id = pr.tournament_id
			WHERE t.category_id = $1 AND (p.player1_id = $2 OR p.player2_id = $2)
			  AND pr.status IN ('registered', 'waitlisted')
		)
	`, categoryID, playerID).Scan(&hasLive)
	if err != nil {
		return false, "", err
	}
	if hasLive {
		return false, "player still has live registrations in this category", nil
	}

	var participated bool
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(has_participated, FALSE)
		FROM category_registrations
		WHERE category_id = $1 AND player_id = $2
	`, categoryID, playerID).Scan(&participated)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "no membership to clean up", nil
	}
	if err != nil {
		return false, "", err
	}
	if participated {
		return false, "participation history keeps the membership", nil
	}
	return true, "no remaining tournament ties", nil
}
