package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/courtside/registration-service/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Admit(ctx context.Context, traceID, idempotencyKey string, p domain.AdmitParams) (domain.AdmissionResult, error) {
	args := m.Called(ctx, traceID, idempotencyKey, p)
	return args.Get(0).(domain.AdmissionResult), args.Error(1)
}
func (m *MockRepo) Withdraw(ctx context.Context, traceID, idempotencyKey string, tournamentID uuid.UUID, kind domain.EntityKind, ownerID, actorID uuid.UUID) (domain.WithdrawalResult, error) {
	args := m.Called(ctx, traceID, idempotencyKey, tournamentID, kind, ownerID, actorID)
	return args.Get(0).(domain.WithdrawalResult), args.Error(1)
}
func (m *MockRepo) WithdrawByID(ctx context.Context, traceID, idempotencyKey string, tournamentID, registrationID, actorID uuid.UUID) (domain.WithdrawalResult, error) {
	args := m.Called(ctx, traceID, idempotencyKey, tournamentID, registrationID, actorID)
	return args.Get(0).(domain.WithdrawalResult), args.Error(1)
}

// Reads
func (m *MockRepo) CheckCapacity(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind) (domain.CapacityInfo, error) {
	args := m.Called(ctx, tournamentID, kind)
	return args.Get(0).(domain.CapacityInfo), args.Error(1)
}
func (m *MockRepo) NextWaitlistCandidate(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind) (*domain.Registration, error) {
	args := m.Called(ctx, tournamentID, kind)
	var reg *domain.Registration
	if v := args.Get(0); v != nil {
		reg = v.(*domain.Registration)
	}
	return reg, args.Error(1)
}
func (m *MockRepo) ListMyRegistrations(ctx context.Context, playerID uuid.UUID, statuses []domain.RegistrationStatus, from, to *time.Time, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	args := m.Called(ctx, playerID, statuses, from, to, limit, cursor)
	return regsArg(args.Get(0)), cursorArg(args.Get(1)), args.Error(2)
}
func (m *MockRepo) ListParticipants(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	args := m.Called(ctx, tournamentID, kind, limit, cursor)
	return regsArg(args.Get(0)), cursorArg(args.Get(1)), args.Error(2)
}
func (m *MockRepo) ListWaitlist(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error) {
	args := m.Called(ctx, tournamentID, kind, limit, cursor)
	return regsArg(args.Get(0)), cursorArg(args.Get(1)), args.Error(2)
}

// ACL
func (m *MockRepo) GetTournament(ctx context.Context, tournamentID uuid.UUID) (domain.Tournament, error) {
	args := m.Called(ctx, tournamentID)
	return args.Get(0).(domain.Tournament), args.Error(1)
}
func (m *MockRepo) GetCategoryOrganizerID(ctx context.Context, categoryID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
func (m *MockRepo) GetPair(ctx context.Context, pairID uuid.UUID) (domain.Pair, error) {
	args := m.Called(ctx, pairID)
	return args.Get(0).(domain.Pair), args.Error(1)
}

// Moderation
func (m *MockRepo) SuspendMembership(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID, reason string) error {
	return m.Called(ctx, traceID, categoryID, playerID, actorID, reason).Error(0)
}
func (m *MockRepo) LiftSuspension(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID) error {
	return m.Called(ctx, traceID, categoryID, playerID, actorID).Error(0)
}
func (m *MockRepo) CleanupMembership(ctx context.Context, playerID, categoryID uuid.UUID) (bool, error) {
	args := m.Called(ctx, playerID, categoryID)
	return args.Bool(0), args.Error(1)
}

// Consumer paths
func (m *MockRepo) UpsertTournament(ctx context.Context, t domain.Tournament) error {
	return m.Called(ctx, t).Error(0)
}
func (m *MockRepo) HandleTournamentCancelled(ctx context.Context, traceID string, tournamentID uuid.UUID, reason string) error {
	return m.Called(ctx, traceID, tournamentID, reason).Error(0)
}

func regsArg(v any) []domain.Registration {
	if v == nil {
		return nil
	}
	return v.([]domain.Registration)
}

func cursorArg(v any) *domain.KeysetCursor {
	if v == nil {
		return nil
	}
	return v.(*domain.KeysetCursor)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) GetTournamentOpen(ctx context.Context, tournamentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tournamentID)
	return args.Bool(0), args.Error(1)
}
func (m *MockCache) SetTournamentOpen(ctx context.Context, tournamentID uuid.UUID, open bool) error {
	return m.Called(ctx, tournamentID, open).Error(0)
}
func (m *MockCache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, ip, limit, window)
	return args.Bool(0), args.Error(1)
}

func admissionOf(tournamentID, ownerID uuid.UUID, status domain.RegistrationStatus) domain.AdmissionResult {
	return domain.AdmissionResult{
		Registration: domain.Registration{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Entity:       domain.EntityPlayer,
			OwnerID:      ownerID,
			Status:       status,
			RegisteredAt: time.Now().UTC(),
		},
		Capacity: domain.CapacityInfo{Status: status},
	}
}

func TestRegistrationService_Register_Self(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := service.NewRegistrationService(repo, cache)
	ctx := context.Background()
	tID := uuid.New()
	uID := uuid.New()
	traceID := "trace"

	// cache miss is ignored, the transaction decides
	cache.On("GetTournamentOpen", ctx, tID).Return(false, domain.ErrCacheMiss)
	repo.On("Admit", ctx, traceID, "key-1", mock.MatchedBy(func(p domain.AdmitParams) bool {
		return p.TournamentID == tID && p.Entity == domain.EntityPlayer &&
			p.OwnerID == uID && p.PlayerID == uID && p.ActorID == uID
	})).Return(admissionOf(tID, uID, domain.StatusRegistered), nil)

	res, err := svc.Register(ctx, traceID, "key-1", uID, "user", domain.AdmitParams{TournamentID: tID})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusRegistered, res.Registration.Status)
	repo.AssertExpectations(t)
}

func TestRegistrationService_Register_CacheFastFail(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := service.NewRegistrationService(repo, cache)
	ctx := context.Background()
	tID := uuid.New()
	uID := uuid.New()

	cache.On("GetTournamentOpen", ctx, tID).Return(false, nil)

	_, err := svc.Register(ctx, "trace", "key-1", uID, "user", domain.AdmitParams{TournamentID: tID})
	assert.ErrorIs(t, err, domain.ErrInvalidTournamentStatus)
	repo.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationService_Register_Waitlisted(t *testing.T) {
	repo := new(MockRepo)
	cache := new(MockCache)
	svc := service.NewRegistrationService(repo, cache)
	ctx := context.Background()
	tID := uuid.New()
	uID := uuid.New()

	cache.On("GetTournamentOpen", ctx, tID).Return(true, nil)
	repo.On("Admit", ctx, "trace", "key-1", mock.Anything).
		Return(admissionOf(tID, uID, domain.StatusWaitlisted), nil)

	res, err := svc.Register(ctx, "trace", "key-1", uID, "user", domain.AdmitParams{TournamentID: tID})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusWaitlisted, res.Registration.Status)
}

func TestRegistrationService_Register_OnBehalf_RequiresOrganizer(t *testing.T) {
	ctx := context.Background()
	tID := uuid.New()
	catID := uuid.New()
	organizerID := uuid.New()
	otherPlayer := uuid.New()

	t.Run("non-organizer forbidden", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		actor := uuid.New()

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()

		_, err := svc.Register(ctx, "trace", "k", actor, "user", domain.AdmitParams{
			TournamentID: tID,
			OwnerID:      otherPlayer,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("organizer allowed", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()
		repo.On("Admit", ctx, "trace", "k", mock.MatchedBy(func(p domain.AdmitParams) bool {
			return p.OwnerID == otherPlayer && p.ActorID == organizerID
		})).Return(admissionOf(tID, otherPlayer, domain.StatusRegistered), nil).Once()

		_, err := svc.Register(ctx, "trace", "k", organizerID, "organizer", domain.AdmitParams{
			TournamentID: tID,
			OwnerID:      otherPlayer,
		})
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("admin bypasses organizer lookup", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		adminID := uuid.New()

		repo.On("Admit", ctx, "trace", "k", mock.Anything).
			Return(admissionOf(tID, otherPlayer, domain.StatusRegistered), nil).Once()

		_, err := svc.Register(ctx, "trace", "k", adminID, "admin", domain.AdmitParams{
			TournamentID: tID,
			OwnerID:      otherPlayer,
		})
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "GetCategoryOrganizerID", mock.Anything, mock.Anything)
	})
}

func TestRegistrationService_Register_Pair(t *testing.T) {
	ctx := context.Background()
	tID := uuid.New()
	pairID := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()

	t.Run("member may enter the pair", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetPair", ctx, pairID).Return(domain.Pair{ID: pairID, Player1ID: p1, Player2ID: p2}, nil).Once()
		repo.On("Admit", ctx, "trace", "k", mock.MatchedBy(func(p domain.AdmitParams) bool {
			return p.Entity == domain.EntityPair && p.OwnerID == pairID && p.PlayerID == p2
		})).Return(admissionOf(tID, pairID, domain.StatusRegistered), nil).Once()

		_, err := svc.Register(ctx, "trace", "k", p2, "user", domain.AdmitParams{
			TournamentID: tID,
			Entity:       domain.EntityPair,
			OwnerID:      pairID,
		})
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("non-member needs organizer", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		catID := uuid.New()
		stranger := uuid.New()

		repo.On("GetPair", ctx, pairID).Return(domain.Pair{ID: pairID, Player1ID: p1, Player2ID: p2}, nil).Once()
		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(uuid.New(), nil).Once()

		_, err := svc.Register(ctx, "trace", "k", stranger, "user", domain.AdmitParams{
			TournamentID: tID,
			Entity:       domain.EntityPair,
			OwnerID:      pairID,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown pair", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetPair", ctx, pairID).Return(domain.Pair{}, domain.ErrPairNotFound).Once()

		_, err := svc.Register(ctx, "trace", "k", p1, "user", domain.AdmitParams{
			TournamentID: tID,
			Entity:       domain.EntityPair,
			OwnerID:      pairID,
		})
		assert.ErrorIs(t, err, domain.ErrPairNotFound)
	})
}

func TestRegistrationService_Register_DemoteSwapRequiresOrganizer(t *testing.T) {
	repo := new(MockRepo)
	svc := service.NewRegistrationService(repo, nil)
	ctx := context.Background()
	tID := uuid.New()
	catID := uuid.New()
	actor := uuid.New()
	target := uuid.New()

	repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
	repo.On("GetCategoryOrganizerID", ctx, catID).Return(uuid.New(), nil).Once()

	_, err := svc.Register(ctx, "trace", "k", actor, "user", domain.AdmitParams{
		TournamentID:         tID,
		DemoteRegistrationID: &target,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationService_Withdraw(t *testing.T) {
	ctx := context.Background()
	tID := uuid.New()
	catID := uuid.New()
	uID := uuid.New()

	withdrawn := func(owner uuid.UUID, kind domain.EntityKind) domain.WithdrawalResult {
		return domain.WithdrawalResult{
			Registration: domain.Registration{
				ID:           uuid.New(),
				TournamentID: tID,
				Entity:       kind,
				OwnerID:      owner,
				Status:       domain.StatusWithdrawn,
			},
		}
	}

	t.Run("self withdrawal runs category cleanup", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("Withdraw", ctx, "trace", "k", tID, domain.EntityPlayer, uID, uID).
			Return(withdrawn(uID, domain.EntityPlayer), nil).Once()
		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("CleanupMembership", ctx, uID, catID).Return(true, nil).Once()

		res, err := svc.Withdraw(ctx, "trace", "k", tID, domain.EntityPlayer, uID, uID)
		assert.NoError(t, err)
		assert.True(t, res.CategoryCleanup)
		repo.AssertExpectations(t)
	})

	t.Run("cleanup failure does not undo the withdrawal", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("Withdraw", ctx, "trace", "k", tID, domain.EntityPlayer, uID, uID).
			Return(withdrawn(uID, domain.EntityPlayer), nil).Once()
		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{}, errors.New("db down")).Once()

		res, err := svc.Withdraw(ctx, "trace", "k", tID, domain.EntityPlayer, uID, uID)
		assert.NoError(t, err)
		assert.False(t, res.CategoryCleanup)
	})

	t.Run("withdrawing someone else is forbidden", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		_, err := svc.Withdraw(ctx, "trace", "k", tID, domain.EntityPlayer, uuid.New(), uID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("pair withdrawal requires membership", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		pairID := uuid.New()
		p1 := uuid.New()
		p2 := uuid.New()

		// looked up for the guard, then again during cleanup
		repo.On("GetPair", ctx, pairID).Return(domain.Pair{ID: pairID, Player1ID: p1, Player2ID: p2}, nil).Times(3)

		_, err := svc.Withdraw(ctx, "trace", "k", tID, domain.EntityPair, pairID, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotPairMember)

		repo.On("Withdraw", ctx, "trace", "k", tID, domain.EntityPair, pairID, p1).
			Return(withdrawn(pairID, domain.EntityPair), nil).Once()
		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("CleanupMembership", ctx, p1, catID).Return(false, nil).Once()
		repo.On("CleanupMembership", ctx, p2, catID).Return(true, nil).Once()

		res, err := svc.Withdraw(ctx, "trace", "k", tID, domain.EntityPair, pairID, p1)
		assert.NoError(t, err)
		assert.True(t, res.CategoryCleanup)
	})
}

func TestRegistrationService_WithdrawRegistration_Guarded(t *testing.T) {
	ctx := context.Background()
	tID := uuid.New()
	catID := uuid.New()
	regID := uuid.New()
	organizerID := uuid.New()

	t.Run("non-organizer forbidden", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()

		_, err := svc.WithdrawRegistration(ctx, "trace", "k", tID, regID, uuid.New(), "user")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "WithdrawByID", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("organizer ok", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		owner := uuid.New()

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Twice()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()
		repo.On("WithdrawByID", ctx, "trace", "k", tID, regID, organizerID).
			Return(domain.WithdrawalResult{
				Registration: domain.Registration{ID: regID, TournamentID: tID, Entity: domain.EntityPlayer, OwnerID: owner, Status: domain.StatusWithdrawn},
			}, nil).Once()
		repo.On("CleanupMembership", ctx, owner, catID).Return(false, nil).Once()

		_, err := svc.WithdrawRegistration(ctx, "trace", "k", tID, regID, organizerID, "organizer")
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestRegistrationService_GuardedReads(t *testing.T) {
	ctx := context.Background()
	tID := uuid.New()
	catID := uuid.New()
	organizerID := uuid.New()
	otherID := uuid.New()
	adminID := uuid.New()
	cursor := (*domain.KeysetCursor)(nil)

	t.Run("ListParticipants: forbidden for non-organizer", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()

		_, _, err := svc.ListParticipants(ctx, tID, domain.EntityPlayer, otherID, "organizer", 10, cursor)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "ListParticipants", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ListParticipants: organizer ok", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{ID: tID, CategoryID: catID}, nil).Once()
		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()
		repo.On("ListParticipants", ctx, tID, domain.EntityPlayer, 10, cursor).
			Return([]domain.Registration{}, (*domain.KeysetCursor)(nil), nil).Once()

		_, _, err := svc.ListParticipants(ctx, tID, domain.EntityPlayer, organizerID, "organizer", 10, cursor)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("ListWaitlist: admin bypasses organizer check", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("ListWaitlist", ctx, tID, domain.EntityPair, 10, cursor).
			Return([]domain.Registration{}, (*domain.KeysetCursor)(nil), nil).Once()

		_, _, err := svc.ListWaitlist(ctx, tID, domain.EntityPair, adminID, "admin", 10, cursor)
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "GetCategoryOrganizerID", mock.Anything, mock.Anything)
	})

	t.Run("organizer lookup error is propagated", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		boom := errors.New("db down")
		repo.On("GetTournament", ctx, tID).Return(domain.Tournament{}, boom).Once()

		_, _, err := svc.ListParticipants(ctx, tID, domain.EntityPlayer, organizerID, "organizer", 10, cursor)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRegistrationService_Moderation_Guarded(t *testing.T) {
	ctx := context.Background()
	catID := uuid.New()
	organizerID := uuid.New()
	playerID := uuid.New()
	traceID := "trace-guarded"

	t.Run("Suspend: forbidden for non-organizer", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)

		repo.On("GetCategoryOrganizerID", ctx, catID).Return(organizerID, nil).Once()

		err := svc.SuspendMembership(ctx, traceID, catID, playerID, uuid.New(), "organizer", "conduct")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "SuspendMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Suspend/Lift: admin bypasses organizer check", func(t *testing.T) {
		repo := new(MockRepo)
		svc := service.NewRegistrationService(repo, nil)
		adminID := uuid.New()

		repo.On("SuspendMembership", ctx, traceID, catID, playerID, adminID, "conduct").Return(nil).Once()
		repo.On("LiftSuspension", ctx, traceID, catID, playerID, adminID).Return(nil).Once()

		err := svc.SuspendMembership(ctx, traceID, catID, playerID, adminID, "admin", "conduct")
		assert.NoError(t, err)
		err = svc.LiftSuspension(ctx, traceID, catID, playerID, adminID, "admin")
		assert.NoError(t, err)

		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "GetCategoryOrganizerID", mock.Anything, mock.Anything)
	})
}
