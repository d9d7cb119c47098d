package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"gorm.io/gorm"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	auditPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	authPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion"
	deletionPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/storage"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport/rest"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport/swagger"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
	userPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
	vehiclePostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/metrics"
)

// appDeps is everything the HTTP surface needs from the outside world.
type appDeps struct {
	Config   *internal.Config
	DB       *database
	Files    storage.Storage
	Notifier notification.Notifier
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Checks are extra readiness components next to the database.
	Checks map[string]rest.Check
	Logger *slog.Logger
}

// services are the domain services built over one database.
type services struct {
	Auth     *auth.Service
	Users    *user.Service
	Deletion *deletion.Service
	Audit    *audit.Service
	Vehicles *vehicle.Service
}

// deletionTargets are the modules an approved deletion request can
// soft-delete. Requests for other modules only change state.
func deletionTargets() map[deletion.Module]deletionPostgres.TargetFactory {
	return map[deletion.Module]deletionPostgres.TargetFactory{
		deletion.ModuleUser: func(tx *gorm.DB) deletion.Target {
			return deletion.MapNotFound(deletion.TargetFunc(userPostgres.NewRepository(tx).SoftDelete), user.ErrNotFound)
		},
		deletion.ModuleVehicle: func(tx *gorm.DB) deletion.Target {
			return deletion.MapNotFound(deletion.TargetFunc(vehiclePostgres.NewRepository(tx).SoftDelete), vehicle.ErrNotFound)
		},
	}
}

func newServices(deps appDeps) *services {
	cfg := deps.Config
	db := deps.DB.Gorm
	passwords := auth.NewPasswordHasher(cfg.Security.BCryptCost)
	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	// Validate has already rejected unknown zones.
	location, _ := cfg.Location()

	return &services{
		Auth: auth.NewService(authPostgres.NewRepository(db), tokens, passwords, deps.Logger),
		Users: user.NewService(
			userPostgres.NewRepository(db),
			userPostgres.NewUnitOfWork(db),
			passwords,
			deps.Notifier,
			deps.Logger,
			user.WithOTPTTL(cfg.Security.OTPTTL),
		),
		Deletion: deletion.NewService(
			deletionPostgres.NewRepository(db),
			deletionPostgres.NewUnitOfWork(db, deletionTargets()),
			deps.Metrics,
			deps.Logger,
		),
		Audit: audit.NewService(auditPostgres.NewRepository(db), deps.Logger),
		Vehicles: vehicle.NewService(
			vehiclePostgres.NewRepository(db),
			vehiclePostgres.NewUnitOfWork(db),
			deps.Files,
			deps.Logger,
			vehicle.WithLocation(location),
		),
	}
}

// newRouter wires services, handlers and routes into a chi mux.
func newRouter(deps appDeps) (*chi.Mux, error) {
	svc := newServices(deps)
	base := transport.NewBaseHandler(deps.Logger)

	health := rest.NewHealthHandler(deps.DB.SQL.DB)
	for name, check := range deps.Checks {
		health.WithCheck(name, check)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc, err := swagger.Load(ctx)
	if err != nil {
		return nil, err
	}
	spec, err := swagger.SpecHandler(doc)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:   health,
		Auth:     auth.NewHandler(base, svc.Auth),
		User:     user.NewHandler(base, svc.Users),
		Deletion: deletion.NewHandler(base, svc.Deletion),
		Audit:    audit.NewHandler(base, svc.Audit),
		Vehicle:  vehicle.NewHandler(base, svc.Vehicles, deps.Config.Server.MaxUploadBytes),
		RBAC:     auth.NewRBACAuthorization(base),
	}, rest.Options{
		Metrics:        deps.Metrics,
		MetricsPath:    deps.Config.Observability.Metrics.Path,
		OpenAPI:        spec,
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		Logger:         deps.Logger,
	})
	return router, nil
}

func newMetrics(cfg internal.MetricsConfig) *metrics.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return metrics.New(cfg)
}

func newStorage(cfg internal.StorageConfig) (storage.Storage, error) {
	files, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return files, nil
}
