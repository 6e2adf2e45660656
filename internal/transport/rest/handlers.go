package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courtside/registration-service/internal/audit"
	"github.com/courtside/registration-service/internal/domain"
	appCtx "github.com/courtside/registration-service/internal/pkg/context"
	"github.com/courtside/registration-service/internal/service"
	"github.com/courtside/registration-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type Handler struct {
	svc   *service.RegistrationService
	audit *audit.Logger
}

func NewHandler(svc *service.RegistrationService, auditLog *audit.Logger) *Handler {
	return &Handler{svc: svc, audit: auditLog}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TournamentID         string `json:"tournament_id"`
		Entity               string `json:"entity"`    // "player" (default) | "pair"
		PairID               string `json:"pair_id"`   // required when entity=pair
		PlayerID             string `json:"player_id"` // optional, organizer entering someone else
		DemoteRegistrationID string `json:"demote_registration_id"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	tournamentID, err := uuid.Parse(req.TournamentID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid tournament_id", map[string]string{
			"tournament_id": "must be a valid uuid",
		})
		return
	}

	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}

	p := domain.AdmitParams{TournamentID: tournamentID}

	switch strings.TrimSpace(strings.ToLower(req.Entity)) {
	case "", "player":
		p.Entity = domain.EntityPlayer
		if s := strings.TrimSpace(req.PlayerID); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				fail(w, r, http.StatusBadRequest, "request.invalid", "invalid player_id", nil)
				return
			}
			p.OwnerID = id
		}
	case "pair":
		p.Entity = domain.EntityPair
		id, err := uuid.Parse(strings.TrimSpace(req.PairID))
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "pair_id is required for pair entries", nil)
			return
		}
		p.OwnerID = id
	default:
		fail(w, r, http.StatusBadRequest, "request.invalid", "entity must be player or pair", nil)
		return
	}

	if s := strings.TrimSpace(req.DemoteRegistrationID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid demote_registration_id", nil)
			return
		}
		p.DemoteRegistrationID = &id
	}

	res, err := h.svc.Register(r.Context(), traceID(r), idempotencyKey, auth.UserID, auth.Role, p)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	if h.audit != nil {
		h.audit.RegistrationCreated(r.Context(), tournamentID, res.Registration.OwnerID, res.Registration.Entity, res.Registration.Status, idempotencyKey)
		if res.Demoted != nil {
			h.audit.Demoted(r.Context(), tournamentID, res.Demoted.ID, auth.UserID)
		}
	}

	body := map[string]any{
		"registration": registrationJSON(res.Registration),
		"capacity":     capacityJSON(res.Capacity),
		"message":      res.Message,
	}
	if res.Membership != nil {
		body["category_registration"] = membershipJSON(*res.Membership)
	}
	if res.Demoted != nil {
		body["demoted"] = registrationJSON(*res.Demoted)
	}
	response.Data(w, http.StatusCreated, body)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuid.Parse(chi.URLParam(r, "tournamentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid tournamentID", map[string]string{
			"tournament_id": "must be a valid uuid",
		})
		return
	}

	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}

	kind := domain.EntityPlayer
	ownerID := auth.UserID
	if s := strings.TrimSpace(r.URL.Query().Get("pair_id")); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid pair_id", nil)
			return
		}
		kind = domain.EntityPair
		ownerID = id
	}

	res, err := h.svc.Withdraw(r.Context(), traceID(r), idempotencyKey, tournamentID, kind, ownerID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.writeWithdrawal(w, r, tournamentID, auth.UserID, idempotencyKey, res)
}

func (h *Handler) WithdrawRegistration(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuid.Parse(chi.URLParam(r, "tournamentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid tournamentID", nil)
		return
	}
	registrationID, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid registrationID", nil)
		return
	}

	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}

	res, err := h.svc.WithdrawRegistration(r.Context(), traceID(r), idempotencyKey, tournamentID, registrationID, auth.UserID, auth.Role)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.writeWithdrawal(w, r, tournamentID, auth.UserID, idempotencyKey, res)
}

func (h *Handler) writeWithdrawal(w http.ResponseWriter, r *http.Request, tournamentID, actorID uuid.UUID, idempotencyKey string, res domain.WithdrawalResult) {
	if h.audit != nil {
		h.audit.RegistrationWithdrawn(r.Context(), tournamentID, res.Registration.OwnerID, actorID, idempotencyKey)
		if res.Promoted != nil && res.Promoted.PromotedBy != nil {
			h.audit.Promoted(r.Context(), tournamentID, res.Promoted.OwnerID, *res.Promoted.PromotedBy)
		}
	}

	body := map[string]any{
		"registration":     registrationJSON(res.Registration),
		"category_cleanup": res.CategoryCleanup,
		"message":          res.Message,
	}
	if res.Promoted != nil {
		body["promoted"] = registrationJSON(*res.Promoted)
	}
	response.Data(w, http.StatusOK, body)
}

func (h *Handler) MeRegistrations(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cur, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid cursor", nil)
		return
	}

	// status=registered,waitlisted,...
	var statuses []domain.RegistrationStatus
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		for _, p := range strings.Split(s, ",") {
			v := domain.RegistrationStatus(strings.TrimSpace(p))
			if v != "" {
				statuses = append(statuses, v)
			}
		}
	}

	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}

	items, next, err := h.svc.ListMyRegistrations(r.Context(), auth.UserID, statuses, from, to, limit, cur)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"items":       registrationsJSON(items),
		"next_cursor": encodeCursor(next),
	})
}

func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	h.listByTournament(w, r, h.svc.ListParticipants)
}

func (h *Handler) Waitlist(w http.ResponseWriter, r *http.Request) {
	h.listByTournament(w, r, h.svc.ListWaitlist)
}

type tournamentLister func(ctx context.Context, tournamentID uuid.UUID, kind domain.EntityKind, requesterID uuid.UUID, role string, limit int, cursor *domain.KeysetCursor) ([]domain.Registration, *domain.KeysetCursor, error)

func (h *Handler) listByTournament(w http.ResponseWriter, r *http.Request, list tournamentLister) {
	tournamentID, err := uuid.Parse(chi.URLParam(r, "tournamentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid tournamentID", nil)
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	kind, ok := parseEntityParam(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cur, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid cursor", nil)
		return
	}

	items, next, err := list(r.Context(), tournamentID, kind, auth.UserID, auth.Role, limit, cur)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"items":       registrationsJSON(items),
		"next_cursor": encodeCursor(next),
	})
}

func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuid.Parse(chi.URLParam(r, "tournamentID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid tournamentID", nil)
		return
	}
	if _, ok := GetAuth(r.Context()); !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	kind, ok := parseEntityParam(w, r)
	if !ok {
		return
	}

	info, err := h.svc.GetCapacity(r.Context(), tournamentID, kind)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, capacityJSON(info))
}

func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid categoryID", nil)
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	var req struct {
		PlayerID string `json:"player_id"`
		Reason   string `json:"reason"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid player_id", nil)
		return
	}

	if err := h.svc.SuspendMembership(r.Context(), traceID(r), categoryID, playerID, auth.UserID, auth.Role, req.Reason); err != nil {
		handleErr(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.MembershipSuspended(r.Context(), categoryID, playerID, auth.UserID, req.Reason)
	}
	response.Data(w, http.StatusOK, map[string]any{"msg": "suspended"})
}

func (h *Handler) LiftSuspension(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid categoryID", nil)
		return
	}
	playerID, err := uuid.Parse(chi.URLParam(r, "playerID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid playerID", nil)
		return
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	if err := h.svc.LiftSuspension(r.Context(), traceID(r), categoryID, playerID, auth.UserID, auth.Role); err != nil {
		handleErr(w, r, err)
		return
	}
	if h.audit != nil {
		h.audit.SuspensionLifted(r.Context(), categoryID, playerID, auth.UserID)
	}
	response.Data(w, http.StatusOK, map[string]string{"status": "reinstated"})
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	var dup *domain.DuplicateRegistrationError
	if errors.As(err, &dup) {
		fail(w, r, http.StatusConflict, "ALREADY_REGISTERED", err.Error(), map[string]string{
			"registration_id": dup.RegistrationID.String(),
			"status":          string(dup.Status),
			"registered_at":   dup.RegisteredAt.Format(time.RFC3339),
		})
		return
	}
	var st *domain.TournamentStatusError
	if errors.As(err, &st) {
		fail(w, r, http.StatusConflict, "INVALID_TOURNAMENT_STATUS", err.Error(), map[string]string{
			"current_status": string(st.Current),
		})
		return
	}
	var el *domain.EligibilityError
	if errors.As(err, &el) {
		fail(w, r, http.StatusUnprocessableEntity, el.Code, el.Message, nil)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered):
		fail(w, r, http.StatusConflict, "ALREADY_REGISTERED", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidTournamentStatus):
		fail(w, r, http.StatusConflict, "INVALID_TOURNAMENT_STATUS", err.Error(), nil)
	case errors.Is(err, domain.ErrRegistrationNotOpen):
		fail(w, r, http.StatusConflict, "REGISTRATION_NOT_OPEN", err.Error(), nil)
	case errors.Is(err, domain.ErrRegistrationClosed):
		// 410 is semantically accurate; the window will not reopen.
		fail(w, r, http.StatusGone, "REGISTRATION_CLOSED", err.Error(), nil)
	case errors.Is(err, domain.ErrCategoryRegistrationRequired):
		fail(w, r, http.StatusConflict, "CATEGORY_REGISTRATION_REQUIRED", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyWithdrawn):
		fail(w, r, http.StatusConflict, "ALREADY_WITHDRAWN", err.Error(), nil)
	case errors.Is(err, domain.ErrDemotionTargetNotRegistered):
		fail(w, r, http.StatusConflict, "INVALID_DEMOTION_TARGET", err.Error(), nil)
	case errors.Is(err, domain.ErrIdempotencyKeyMismatch):
		fail(w, r, http.StatusConflict, "idempotency_key_mismatch", err.Error(), nil)

	case errors.Is(err, domain.ErrTournamentNotFound):
		fail(w, r, http.StatusNotFound, "TOURNAMENT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrRegistrationNotFound):
		fail(w, r, http.StatusNotFound, "REGISTRATION_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrCategoryNotFound):
		fail(w, r, http.StatusNotFound, "CATEGORY_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrPairNotFound):
		fail(w, r, http.StatusNotFound, "PAIR_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, domain.ErrMembershipNotFound):
		fail(w, r, http.StatusNotFound, "MEMBERSHIP_NOT_FOUND", err.Error(), nil)

	case errors.Is(err, domain.ErrMembershipSuspended):
		fail(w, r, http.StatusForbidden, "MEMBERSHIP_SUSPENDED", err.Error(), nil)
	case errors.Is(err, domain.ErrNotPairMember):
		fail(w, r, http.StatusForbidden, "NOT_PAIR_MEMBER", err.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)

	default:
		// Do not leak internal details by default.
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}

func traceID(r *http.Request) string {
	id := appCtx.GetRequestID(r.Context())
	if id == "" {
		return "no-request-id"
	}
	return id
}

// requireIdempotencyKey enforces X-Idempotency-Key on write operations.
func requireIdempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		key = r.Header.Get("Idempotency-Key") // legacy fallback
	}
	if key == "" {
		fail(w, r, http.StatusBadRequest, "idempotency_key.required", "X-Idempotency-Key header is required for this operation", nil)
		return "", false
	}
	return key, true
}

func parseEntityParam(w http.ResponseWriter, r *http.Request) (domain.EntityKind, bool) {
	switch strings.TrimSpace(strings.ToLower(r.URL.Query().Get("entity"))) {
	case "", "player":
		return domain.EntityPlayer, true
	case "pair":
		return domain.EntityPair, true
	default:
		fail(w, r, http.StatusBadRequest, "request.invalid", "entity must be player or pair", nil)
		return "", false
	}
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid "+name, nil)
		return nil, false
	}
	tt := t.UTC()
	return &tt, true
}

func parseLimit(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 20
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 20
	}
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func registrationJSON(reg domain.Registration) map[string]any {
	out := map[string]any{
		"id":            reg.ID,
		"tournament_id": reg.TournamentID,
		"entity":        reg.Entity,
		"owner_id":      reg.OwnerID,
		"status":        reg.Status,
		"registered_at": reg.RegisteredAt,
		"updated_at":    reg.UpdatedAt,
	}
	if reg.WithdrawnAt != nil {
		out["withdrawn_at"] = reg.WithdrawnAt
	}
	if reg.PromotedBy != nil {
		out["promoted_by"] = reg.PromotedBy
		out["promoted_at"] = reg.PromotedAt
	}
	if reg.DemotedAt != nil {
		out["demoted_at"] = reg.DemotedAt
	}
	return out
}

func registrationsJSON(regs []domain.Registration) []map[string]any {
	out := make([]map[string]any, 0, len(regs))
	for _, reg := range regs {
		out = append(out, registrationJSON(reg))
	}
	return out
}

func capacityJSON(ci domain.CapacityInfo) map[string]any {
	return map[string]any{
		"status":           ci.Status,
		"capacity":         ci.Capacity, // null = unlimited
		"registered_count": ci.RegisteredCount,
		"is_full":          ci.IsFull,
	}
}

func membershipJSON(m domain.CategoryMembership) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"category_id":   m.CategoryID,
		"player_id":     m.PlayerID,
		"status":        m.Status,
		"registered_at": m.RegisteredAt,
	}
}
