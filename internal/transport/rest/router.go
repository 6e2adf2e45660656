package rest

import (
	"net/http"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/courtside/registration-service/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Cache     domain.CacheRepository
	Handler   *Handler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Cache == nil {
		panic("rest.NewRouter: nil cache")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	r.Use(RateLimitMiddleware(d.Cache))
	r.Use(SecurityHeaders)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

		// admission + withdrawal
		r.Post("/registrations", d.Handler.Register)
		r.Delete("/registrations/{tournamentID}", d.Handler.Withdraw)
		r.Delete("/tournaments/{tournamentID}/registrations/{registrationID}", d.Handler.WithdrawRegistration)

		// reads
		r.Get("/me/registrations", d.Handler.MeRegistrations)

		r.Get("/tournaments/{tournamentID}/participants", d.Handler.Participants)
		r.Get("/tournaments/{tournamentID}/waitlist", d.Handler.Waitlist)
		r.Get("/tournaments/{tournamentID}/capacity", d.Handler.Capacity)

		// moderation
		r.Post("/categories/{categoryID}/suspensions", d.Handler.Suspend)
		r.Delete("/categories/{categoryID}/suspensions/{playerID}", d.Handler.LiftSuspension)
	})

	return r
}
