package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/events"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
	userPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
)

var (
	ownerUsername string
	ownerEmail    string
	ownerPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the default roles and an owner account",
	Long:  `Create the Owner, Manager and Staff roles and a bootstrap owner user. Existing rows are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		initLogger(cfg)
		lg := logger.LoggerWrapper()

		db, err := openDatabase(cfg.Database, lg)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		svc := user.NewService(
			userPostgres.NewRepository(db.Gorm),
			userPostgres.NewUnitOfWork(db.Gorm),
			auth.NewPasswordHasher(cfg.Security.BCryptCost),
			notification.NewBusNotifier(events.NewEventBus(lg)),
			lg,
		)

		s := &seeder{db: db, users: svc}
		if err := s.run(cmd.Context()); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

type roleSeed struct {
	Name         string
	Description  string
	CanDelete    bool
	Capabilities []auth.Capability
}

var defaultRoles = []roleSeed{
	{"Owner", "Business owner with full access", true, auth.ManagerCapabilities()},
	{"Manager", "Manages staff and reviews deletion requests", false, auth.ManagerCapabilities()},
	{"Staff", "Day to day operations", false, nil},
}

type seeder struct {
	db    *database
	users *user.Service
}

func (s *seeder) run(ctx context.Context) error {
	system := auth.SystemPrincipal()

	var ownerRoleID int64
	for _, r := range defaultRoles {
		id, err := s.lookupID(ctx, "SELECT id FROM roles WHERE name = ?", r.Name)
		if err != nil {
			return err
		}
		if id == 0 {
			caps := make([]string, 0, len(r.Capabilities))
			for _, c := range r.Capabilities {
				caps = append(caps, string(c))
			}
			role, err := s.users.CreateRole(ctx, system, user.CreateRoleDTO{
				Name:         r.Name,
				Description:  r.Description,
				CanDelete:    r.CanDelete,
				Capabilities: caps,
			})
			if err != nil {
				return fmt.Errorf("create role %s: %w", r.Name, err)
			}
			id = role.ID
			fmt.Println("Seeded role:", r.Name)
		}
		if r.Name == "Owner" {
			ownerRoleID = id
		}
	}

	existing, err := s.lookupID(ctx, "SELECT id FROM users WHERE username = ? OR email = ?", ownerUsername, ownerEmail)
	if err != nil {
		return err
	}
	if existing != 0 {
		fmt.Println("owner user already exists; skipping:", ownerUsername)
		return nil
	}

	owner, err := s.users.CreateUser(ctx, system, user.CreateUserDTO{
		Username: ownerUsername,
		FullName: "Owner",
		Email:    ownerEmail,
		Password: ownerPassword,
		RoleID:   ownerRoleID,
	})
	if err != nil {
		return fmt.Errorf("create owner user: %w", err)
	}
	fmt.Printf("Seeded owner user: %s (%s)\n", owner.Username, owner.EmployeeID)
	return nil
}

// lookupID returns 0 when no row matches.
func (s *seeder) lookupID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := s.db.SQL.GetContext(ctx, &id, s.db.SQL.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", query, err)
	}
	return id, nil
}

func init() {
	seedCmd.Flags().StringVar(&ownerUsername, "owner-username", "owner", "username of the bootstrap owner")
	seedCmd.Flags().StringVar(&ownerEmail, "owner-email", "owner@purshottamtransport.com", "email of the bootstrap owner")
	seedCmd.Flags().StringVar(&ownerPassword, "owner-password", "change-me-now", "initial password of the bootstrap owner")
}
