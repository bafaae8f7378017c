package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Middleware    *Middleware
	Metrics       *Metrics
	Health        *HealthHandler
	Auth          *AuthHandler
	Families      *FamilyHandler
	Members       *MemberHandler
	Notifications *NotificationHandler
}

// NewRouter builds the HTTP API
func NewRouter(h Handlers, corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(h.Middleware.Logging)
	if h.Metrics != nil {
		r.Use(h.Metrics.Instrument)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health.Live)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}
	r.Get("/readyz", h.Health.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.Middleware.RateLimit)
				r.Post("/register", h.Auth.Register)
				r.Post("/verify-otp", h.Auth.VerifyOTP)
				r.Post("/resend-otp", h.Auth.ResendOTP)
				r.Post("/login", h.Auth.Login)
			})
			r.With(h.Middleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.Middleware.RequireAuth)

			r.Route("/families", func(r chi.Router) {
				r.Post("/", h.Families.Create)
				r.Get("/", h.Families.List)
				r.Get("/search", h.Families.Search)
				r.Get("/code/{code}", h.Families.GetByCode)
				r.Put("/{id}", h.Families.Update)
				r.Delete("/{id}", h.Families.Delete)
			})

			r.Route("/family-members", func(r chi.Router) {
				r.Post("/request", h.Members.RequestJoin)
				r.Post("/register-and-join", h.Members.RegisterAndJoin)
				r.Get("/pending", h.Members.ListPending)
				r.Get("/family/{familyCode}", h.Members.ListApproved)
				r.Get("/family/{familyCode}/stats", h.Members.Stats)
				r.Put("/{memberId}/approve/{familyCode}", h.Members.Approve)
				r.Put("/{memberId}/reject/{familyCode}", h.Members.Reject)
				r.Delete("/{memberId}/family/{familyCode}", h.Members.Remove)
				r.Get("/{memberId}", h.Members.Get)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notifications.List)
				r.Get("/unread-count", h.Notifications.UnreadCount)
				r.Put("/{id}/read", h.Notifications.MarkRead)
			})
		})
	})

	return r
}
