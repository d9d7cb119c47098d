package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport/middleware"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport/swagger"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/metrics"
)

type Handlers struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	User     *user.Handler
	Deletion *deletion.Handler
	Audit    *audit.Handler
	Vehicle  *vehicle.Handler
	RBAC     *auth.RBACAuthorization
}

type Options struct {
	// Metrics is optional; /metrics is mounted only when set.
	Metrics     *metrics.Metrics
	MetricsPath string
	// OpenAPI serves the API document at swagger.SpecPath when set.
	OpenAPI        http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options) {
	rbac := h.RBAC
	if opts.Logger == nil {
		opts.Logger = logger.LoggerWrapper()
	}

	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}
	router.Use(middleware.LoggingMiddleware(opts.Logger))
	router.Use(chiMiddleware.StripSlashes)

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics.Handler())
	}

	if opts.OpenAPI != nil {
		router.Handle(swagger.SpecPath, opts.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		// Token and password recovery routes
		r.Post("/token", h.Auth.Login)
		r.Post("/token/refresh", h.Auth.RefreshToken)
		r.Post("/password-reset/request", h.User.RequestPasswordReset)
		r.Post("/password-reset/verify", h.User.ConfirmPasswordReset)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/", h.User.List)
				ur.With(rbac.RequireCapability(auth.CapabilityManageUsers)).Post("/", h.User.Create)

				// literal segments before /{id}
				ur.Get("/profile", h.User.Profile)
				ur.Put("/profile", h.User.UpdateProfile)
				ur.Put("/profile/update", h.User.UpdateProfile)
				ur.Put("/change-password", h.User.ChangePassword)

				ur.Get("/{id}", h.User.Get)
				ur.Group(func(mr chi.Router) {
					mr.Use(rbac.RequireCapability(auth.CapabilityManageUsers))
					mr.Put("/{id}", h.User.Update)
					mr.Delete("/{id}", h.User.Delete)
				})
				ur.With(rbac.RequireCapability(auth.CapabilityResetPasswords)).Put("/{id}/reset-password", h.User.ResetPassword)
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.Get("/", h.User.ListRoles)
				rr.Get("/{id}", h.User.GetRole)
				rr.With(rbac.RequireCapability(auth.CapabilityManageUsers)).Post("/", h.User.CreateRole)
			})

			pr.Route("/deletion-requests", func(dr chi.Router) {
				dr.Get("/", h.Deletion.List)
				dr.Post("/", h.Deletion.Create)
				dr.Get("/{id}", h.Deletion.Get)

				// Manager routes with capability protection
				dr.Group(func(mr chi.Router) {
					mr.Use(rbac.RequireCapability(auth.CapabilityApproveDeletion))
					mr.Post("/{id}/approve", h.Deletion.Approve)
					mr.Post("/{id}/reject", h.Deletion.Reject)
				})
			})

			pr.Route("/audit-logs", func(ar chi.Router) {
				ar.Get("/", h.Audit.List)
				ar.Get("/{id}", h.Audit.Get)
			})

			pr.Route("/vehicles", func(vr chi.Router) {
				vr.Get("/", h.Vehicle.List)
				vr.Post("/", h.Vehicle.Create)
				vr.Get("/{id}", h.Vehicle.Get)
				vr.Put("/{id}", h.Vehicle.Update)
				vr.Patch("/{id}", h.Vehicle.Update)
				vr.With(rbac.RequireCapability(auth.CapabilityDeleteRecords)).Delete("/{id}", h.Vehicle.Delete)
				vr.Get("/{id}/documents/{kind}", h.Vehicle.Document)
			})
		})
	})
}
