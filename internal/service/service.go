package service

import (
	"context"
	"strings"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/courtside/registration-service/internal/pkg/logger"
	"github.com/google/uuid"
)

type RegistrationService struct {
	repo  domain.RegistrationRepository
	cache domain.CacheRepository
}

func NewRegistrationService(repo domain.RegistrationRepository, cache domain.CacheRepository) *RegistrationService {
	return &RegistrationService{repo: repo, cache: cache}
}

func isPrivileged(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "admin"
}

// requireOrganizerOrAdmin resolves the tournament's category and checks the
// requester against its organizer.
func (s *RegistrationService) requireOrganizerOrAdmin(ctx context.Context, tournamentID, requesterID uuid.UUID, role string) error {
	if isPrivileged(role) {
		return nil
	}
	t, err := s.repo.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	return s.requireCategoryOrganizer(ctx, t.CategoryID, requesterID)
}

func (s *RegistrationService) requireCategoryOrganizerOrAdmin(ctx context.Context, categoryID, requesterID uuid.UUID, role string) error {
	if isPrivileged(role) {
		return nil
	}
	return s.requireCategoryOrganizer(ctx, categoryID, requesterID)
}

func (s *RegistrationService) requireCategoryOrganizer(ctx context.Context, categoryID, requesterID uuid.UUID) error {
	organizer, err := s.repo.GetCategoryOrganizerID(ctx, categoryID)
	if err != nil {
		return err
	}
	if organizer != requesterID {
		return domain.ErrForbidden
	}
	return nil
}

// Register admits a player or pair into a tournament. Ownership rules: a
// player may enter itself or a pair it belongs to; entering anyone else, or
// using the demotion swap, requires the category organizer or an admin.
func (s *RegistrationService) Register(ctx context.Context, traceID, idempotencyKey string, actorID uuid.UUID, role string, p domain.AdmitParams) (domain.AdmissionResult, error) {
	var zero domain.AdmissionResult

	if !p.Entity.Valid() {
		p.Entity = domain.EntityPlayer
	}
	p.ActorID = actorID

	switch p.Entity {
	case domain.EntityPlayer:
		if p.OwnerID == uuid.Nil {
			p.OwnerID = actorID
		}
		p.PlayerID = p.OwnerID
		if p.OwnerID != actorID {
			if err := s.requireOrganizerOrAdmin(ctx, p.TournamentID, actorID, role); err != nil {
				return zero, err
			}
		}
	case domain.EntityPair:
		pair, err := s.repo.GetPair(ctx, p.OwnerID)
		if err != nil {
			return zero, err
		}
		switch actorID {
		case pair.Player1ID, pair.Player2ID:
			p.PlayerID = actorID
		default:
			if err := s.requireOrganizerOrAdmin(ctx, p.TournamentID, actorID, role); err != nil {
				return zero, err
			}
			p.PlayerID = pair.Player1ID
		}
	}

	if p.DemoteRegistrationID != nil {
		if err := s.requireOrganizerOrAdmin(ctx, p.TournamentID, actorID, role); err != nil {
			return zero, err
		}
	}

	// cache fast-fail stays advisory; the transaction re-checks everything
	if s.cache != nil {
		open, err := s.cache.GetTournamentOpen(ctx, p.TournamentID)
		if err == nil && !open {
			return zero, domain.ErrInvalidTournamentStatus
		}
		// cache miss or redis error: fall through to the DB
	}

	return s.repo.Admit(ctx, traceID, idempotencyKey, p)
}

// Withdraw removes the caller's own entry (or its pair's entry) and runs the
// post-commit category cleanup.
func (s *RegistrationService) Withdraw(ctx context.Context, traceID, idempotencyKey string, tournamentID uuid.UUID, kind domain.EntityKind, ownerID, actorID uuid.UUID) (domain.WithdrawalResult, error) {
	var zero domain.WithdrawalResult

	if !kind.Valid() {
		kind = domain.EntityPlayer
	}
	if ownerID == uuid.Nil {
		ownerID = actorID
	}

	if kind == domain.EntityPair {
		pair, err := s.repo.GetPair(ctx, ownerID)
		if err != nil {
			return zero, err
		}
		if actorID != pair.Player1ID && actorID != pair.Player2ID {
			return zero, domain.ErrNotPairMember
		}
	} else if ownerID != actorID {
		return zero, domain.ErrForbidden
	}

	res, err := s.repo.Withdraw(ctx, traceID, idempotencyKey, tournamentID, kind, ownerID, actorID)
	if err != nil {
		return zero, err
	}
	res.CategoryCleanup = s.cleanupAfterWithdrawal(ctx, tournamentID, res.Registration)
	return res, nil
}

// WithdrawRegistration is the organizer-directed variant addressed by
// registration id.
func (s *RegistrationService) WithdrawRegistration(ctx context.Context, traceID, idempotencyKey string, tournamentID, registrationID, actorID uuid.UUID, role string) (domain.WithdrawalResult, error) {
	if err := s.requireOrganizerOrAdmin(ctx, tournamentID, actorID, role); err != nil {
		return domain.WithdrawalResult{}, err
	}
	res, err := s.repo.WithdrawByID(ctx, traceID, idempotencyKey, tournamentID, registrationID, actorID)
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	res.CategoryCleanup = s.cleanupAfterWithdrawal(ctx, tournamentID, res.Registration)
	return res, nil
}

// cleanupAfterWithdrawal asks the category domain whether the withdrawn
// players should also leave the category. Deliberately outside the withdrawal
// transaction: a failure here is logged and never undoes the withdrawal.
func (s *RegistrationService) cleanupAfterWithdrawal(ctx context.Context, tournamentID uuid.UUID, reg domain.Registration) bool {
	t, err := s.repo.GetTournament(ctx, tournamentID)
	if err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Msg("category cleanup skipped: tournament lookup failed")
		return false
	}

	players := []uuid.UUID{reg.OwnerID}
	if reg.Entity == domain.EntityPair {
		pair, err := s.repo.GetPair(ctx, reg.OwnerID)
		if err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Msg("category cleanup skipped: pair lookup failed")
			return false
		}
		players = []uuid.UUID{pair.Player1ID, pair.Player2ID}
	}

	cleaned := false
	for _, playerID := range players {
		ok, err := s.repo.CleanupMembership(ctx, playerID, t.CategoryID)
		if err != nil {
			logger.WithCtx(ctx).Warn().Err(err).
				Str("player_id", playerID.String()).
				Msg("category cleanup failed")
			continue
		}
		cleaned = cleaned || ok
	}
	return cleaned
}

// Reads
func (s *RegistrationService) GetCapacity(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind) (domain.CapacityInfo, error) {
	if !kind.Valid() {
		kind = domain.EntityPlayer
	}
	return s.repo.CheckCapacity(ctx, tournamentID, kind)
}

func (s *RegistrationService) ListMyRegistrations(ctx context.Context, playerID uuid.UUID, statuses []domain.RegistrationStatus, from, to *time.Time, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	return s.repo.ListMyRegistrations(ctx, playerID, statuses, from, to, limit, cursor)
}

func (s *RegistrationService) ListParticipants(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, requesterID uuid.UUID, role string, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	if err := s.requireOrganizerOrAdmin(ctx, tournamentID, requesterID, role); err != nil {
		return nil, nil, err
	}
	if !kind.Valid() {
		kind = domain.EntityPlayer
	}
	return s.repo.ListParticipants(ctx, tournamentID, kind, limit, cursor)
}

func (s *RegistrationService) ListWaitlist(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, requesterID uuid.UUID, role string, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	if err := s.requireOrganizerOrAdmin(ctx, tournamentID, requesterID, role); err != nil {
		return nil, nil, err
	}
	if !kind.Valid() {
		kind = domain.EntityPlayer
	}
	return s.repo.ListWaitlist(ctx, tournamentID, kind, limit, cursor)
}

// Moderation
func (s *RegistrationService) SuspendMembership(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID, role string, reason string) error {
	if err := s.requireCategoryOrganizerOrAdmin(ctx, categoryID, actorID, role); err != nil {
		return err
	}
	return s.repo.SuspendMembership(ctx, traceID, categoryID, playerID, actorID, reason)
}

func (s *RegistrationService) LiftSuspension(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID, role string) error {
	if err := s.requireCategoryOrganizerOrAdmin(ctx, categoryID, actorID, role); err != nil {
		return err
	}
	return s.repo.LiftSuspension(ctx, traceID, categoryID, playerID, actorID)
}
