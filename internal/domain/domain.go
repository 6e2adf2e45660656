package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusWithdrawn  RegistrationStatus = "withdrawn"
	StatusCancelled  RegistrationStatus = "cancelled"
)

type TournamentStatus string

const (
	TournamentScheduled  TournamentStatus = "scheduled"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentCompleted  TournamentStatus = "completed"
	TournamentCancelled  TournamentStatus = "cancelled"
)

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipWithdrawn MembershipStatus = "withdrawn"
	MembershipSuspended MembershipStatus = "suspended"
)

type PromotedBy string

const (
	PromotedBySystem    PromotedBy = "system"
	PromotedByOrganizer PromotedBy = "organizer"
)

// EntityKind selects which registration table an operation runs against.
// Singles register players, doubles register pairs; the admission and
// withdrawal algorithms are identical over both.
type EntityKind string

const (
	EntityPlayer EntityKind = "player"
	EntityPair   EntityKind = "pair"
)

func (k EntityKind) Valid() bool {
	return k == EntityPlayer || k == EntityPair
}

var (
	ErrTournamentNotFound      = errors.New("tournament not found") // snapshot missing
	ErrInvalidTournamentStatus = errors.New("tournament does not accept registrations in its current status")
	ErrRegistrationNotOpen     = errors.New("registration has not opened yet")
	ErrRegistrationClosed      = errors.New("registration is closed")

	ErrAlreadyRegistered            = errors.New("already registered for tournament")
	ErrRegistrationNotFound         = errors.New("registration not found")
	ErrAlreadyWithdrawn             = errors.New("registration already withdrawn")
	ErrDemotionTargetNotRegistered  = errors.New("demotion target is not in registered status")
	ErrCategoryRegistrationRequired = errors.New("active category membership required to join waitlist")
	ErrMembershipSuspended          = errors.New("category membership is suspended")
	ErrMembershipNotFound           = errors.New("category membership not found")

	ErrCategoryNotFound = errors.New("category not found")
	ErrPairNotFound     = errors.New("pair not found")
	ErrNotPairMember    = errors.New("player is not a member of this pair")

	ErrForbidden = errors.New("forbidden")
	ErrCacheMiss = errors.New("cache miss")

	ErrIdempotencyKeyMismatch = errors.New("idempotency key reused with a different payload")
)

// Ineligible is the base error for eligibility failures; match with errors.Is
// and inspect the concrete *EligibilityError for the code.
var ErrIneligible = errors.New("player not eligible for category")

// EligibilityError carries a stable machine code (INELIGIBLE_AGE,
// INELIGIBLE_GENDER, INCOMPLETE_PROFILE) alongside the human message.
type EligibilityError struct {
	Code    string
	Message string
}

func (e *EligibilityError) Error() string { return e.Message }
func (e *EligibilityError) Unwrap() error { return ErrIneligible }

const (
	EligibilityCodeAge     = "INELIGIBLE_AGE"
	EligibilityCodeGender  = "INELIGIBLE_GENDER"
	EligibilityCodeProfile = "INCOMPLETE_PROFILE"
)

// DuplicateRegistrationError decorates ErrAlreadyRegistered with the existing
// row so callers can show who holds the slot and since when.
type DuplicateRegistrationError struct {
	RegistrationID uuid.UUID
	Status         RegistrationStatus
	RegisteredAt   time.Time
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("already registered for tournament (status=%s since %s)", e.Status, e.RegisteredAt.Format(time.RFC3339))
}
func (e *DuplicateRegistrationError) Unwrap() error { return ErrAlreadyRegistered }

// TournamentStatusError decorates ErrInvalidTournamentStatus with the actual
// status observed, for caller display.
type TournamentStatusError struct {
	Current TournamentStatus
}

func (e *TournamentStatusError) Error() string {
	return fmt.Sprintf("tournament status is %s, registrations require %s", e.Current, TournamentScheduled)
}
func (e *TournamentStatusError) Unwrap() error { return ErrInvalidTournamentStatus }

type KeysetCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Tournament is the locally maintained snapshot of a tournament, fed by the
// tournament service's events. It is also the per-tournament lock anchor for
// every admission/withdrawal transaction.
type Tournament struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	Status     TournamentStatus

	Capacity *int // nil = unlimited

	RegistrationOpensAt  *time.Time
	RegistrationClosesAt *time.Time

	UpdatedAt time.Time
}

// OpenForRegistration reports whether the tournament accepts registrations at
// the given instant: scheduled status and inside the window. Nil bounds are
// unbounded on that side.
func (t Tournament) OpenForRegistration(now time.Time) bool {
	if t.Status != TournamentScheduled {
		return false
	}
	if t.RegistrationOpensAt != nil && now.Before(*t.RegistrationOpensAt) {
		return false
	}
	if t.RegistrationClosesAt != nil && now.After(*t.RegistrationClosesAt) {
		return false
	}
	return true
}

type Registration struct {
	ID uuid.UUID

	TournamentID uuid.UUID
	Entity       EntityKind
	OwnerID      uuid.UUID // player id or pair id, per Entity
	Status       RegistrationStatus

	RegisteredAt time.Time
	UpdatedAt    time.Time

	WithdrawnAt *time.Time
	WithdrawnBy *uuid.UUID

	PromotedBy *PromotedBy
	PromotedAt *time.Time

	DemotedAt *time.Time
	DemotedBy *uuid.UUID
}

type CategoryMembership struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	PlayerID   uuid.UUID
	Status     MembershipStatus

	RegisteredAt time.Time
	WithdrawnAt  *time.Time

	SuspendedAt     *time.Time
	SuspendedBy     *uuid.UUID
	SuspendedReason *string

	HasParticipated bool
}

type Category struct {
	ID          uuid.UUID
	OrganizerID uuid.UUID
	Name        string

	MinAge *int
	MaxAge *int
	Gender string // "" = open
}

type Pair struct {
	ID        uuid.UUID
	Player1ID uuid.UUID
	Player2ID uuid.UUID
}

// CapacityInfo is the decision-basis snapshot returned with every admission
// and from the capacity read endpoint.
type CapacityInfo struct {
	Status          RegistrationStatus
	Capacity        *int
	RegisteredCount int
	IsFull          bool
}

type AdmissionResult struct {
	Registration Registration
	Membership   *CategoryMembership // set when admission created or reactivated one
	Capacity     CapacityInfo
	Demoted      *Registration // set on an organizer demotion swap
	Message      string
}

type WithdrawalResult struct {
	Registration    Registration
	Promoted        *Registration // backfilled from the waitlist, if any
	CategoryCleanup bool
	Message         string
}

// AdmitParams carries one admission request through the engine.
type AdmitParams struct {
	TournamentID uuid.UUID
	Entity       EntityKind
	OwnerID      uuid.UUID

	// PlayerID is the player being entered. For singles it equals OwnerID;
	// for pairs it must be one of the pair's members (category coordination
	// runs for both members).
	PlayerID uuid.UUID

	// ActorID is the authenticated caller. Differs from PlayerID when an
	// organizer registers someone else.
	ActorID uuid.UUID

	// DemoteRegistrationID, when set, swaps that registered entrant to the
	// waitlist to free the slot. Organizer-of-category or admin only; the
	// guard runs in the service layer.
	DemoteRegistrationID *uuid.UUID
}

// RegistrationRepository is the storage-backed admission core: transactions,
// locking, outbox writes, and the read endpoints.
type RegistrationRepository interface {
	Admit(ctx context.Context, traceID, idempotencyKey string, p AdmitParams) (AdmissionResult, error)
	Withdraw(ctx context.Context, traceID, idempotencyKey string, tournamentID uuid.UUID, kind EntityKind, ownerID, actorID uuid.UUID) (WithdrawalResult, error)
	WithdrawByID(ctx context.Context, traceID, idempotencyKey string, tournamentID, registrationID, actorID uuid.UUID) (WithdrawalResult, error)

	// Pure reads
	CheckCapacity(ctx context.Context, tournamentID uuid.UUID, kind EntityKind) (CapacityInfo, error)
	NextWaitlistCandidate(ctx context.Context, tournamentID uuid.UUID, kind EntityKind) (*Registration, error)

	ListMyRegistrations(ctx context.Context, playerID uuid.UUID, statuses []RegistrationStatus, from, to *time.Time, limit int, cursor *KeysetCursor) ([]Registration, *KeysetCursor, error)
	ListParticipants(ctx context.Context, tournamentID uuid.UUID, kind EntityKind, limit int, cursor *KeysetCursor) ([]Registration, *KeysetCursor, error)
	ListWaitlist(ctx context.Context, tournamentID uuid.UUID, kind EntityKind, limit int, cursor *KeysetCursor) ([]Registration, *KeysetCursor, error)

	// ACL against shared tables
	GetTournament(ctx context.Context, tournamentID uuid.UUID) (Tournament, error)
	GetCategoryOrganizerID(ctx context.Context, categoryID uuid.UUID) (uuid.UUID, error)
	GetPair(ctx context.Context, pairID uuid.UUID) (Pair, error)

	// Moderation
	SuspendMembership(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID, reason string) error
	LiftSuspension(ctx context.Context, traceID string, categoryID, playerID, actorID uuid.UUID) error

	// Post-withdrawal cleanup; best-effort, outside the withdrawal tx.
	CleanupMembership(ctx context.Context, playerID, categoryID uuid.UUID) (bool, error)

	// Snapshot maintenance, fed by the tournament service's events.
	UpsertTournament(ctx context.Context, t Tournament) error
	HandleTournamentCancelled(ctx context.Context, traceID string, tournamentID uuid.UUID, reason string) error
}

type CacheRepository interface {
	// GetTournamentOpen reports whether a tournament is known to accept
	// registrations; ErrCacheMiss when unknown.
	GetTournamentOpen(ctx context.Context, tournamentID uuid.UUID) (bool, error)
	SetTournamentOpen(ctx context.Context, tournamentID uuid.UUID, open bool) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

// EligibilityGate validates a player against a category's entry rules.
// Implementations return *EligibilityError on failure.
type EligibilityGate interface {
	Check(ctx context.Context, playerID, categoryID uuid.UUID) error
}

// CategoryDomain is the category service's decision surface consumed here.
type CategoryDomain interface {
	ShouldUnregister(ctx context.Context, playerID, categoryID uuid.UUID) (bool, string, error)
	GetByID(ctx context.Context, categoryID uuid.UUID) (Category, error)
}
