package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/app"
	"github.com/scholchat/scholchat-api/internal/models"
	"github.com/scholchat/scholchat-api/internal/service"
	"github.com/scholchat/scholchat-api/pkg/config"
	"github.com/scholchat/scholchat-api/pkg/database"
	"github.com/scholchat/scholchat-api/pkg/logger"
)

// Lifecycle is the subset of the scheduled course service the CLI drives.
type Lifecycle interface {
	Start(ctx context.Context, id string) (*models.ScheduledCourse, error)
	Complete(ctx context.Context, id string) (*models.ScheduledCourse, error)
	Cancel(ctx context.Context, id, reason string) (*models.ScheduledCourse, error)
	List(ctx context.Context, query models.ScheduledCourseQuery, filter models.ScheduledCourseFilter) ([]models.ScheduledCourseListItem, error)
	ListAccessibleRoster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

// Dependencies lets tests replace the database backed lifecycle.
type Dependencies struct {
	// Open returns the lifecycle and a release function.
	Open    func(ctx context.Context, logLevel string) (Lifecycle, func(), error)
	Migrate func(ctx context.Context, logLevel string) error
	Out     io.Writer
}

var (
	flagLogLevel string
	flagActor    string
)

// NewRootCmd creates the lifecyclectl command tree.
func NewRootCmd(deps Dependencies) *cobra.Command {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	root := &cobra.Command{
		Use:          "lifecyclectl",
		Short:        "Maintain scheduled courses directly against the database",
		SilenceUsage: true,
	}
	root.SetOut(deps.Out)
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagActor, "actor", "", "User id recorded in audit entries")

	root.AddCommand(
		newMigrateCmd(deps),
		newListCmd(deps),
		newTransitionCmd(deps, "start", "Start a planned course", func(ctx context.Context, l Lifecycle, id string) (*models.ScheduledCourse, error) {
			return l.Start(ctx, id)
		}),
		newTransitionCmd(deps, "complete", "Complete a course in progress", func(ctx context.Context, l Lifecycle, id string) (*models.ScheduledCourse, error) {
			return l.Complete(ctx, id)
		}),
		newCancelCmd(deps),
		newRosterCmd(deps),
	)
	return root
}

// DefaultDependencies wires the CLI to the configured Postgres database.
func DefaultDependencies() Dependencies {
	return Dependencies{
		Open: func(ctx context.Context, logLevel string) (Lifecycle, func(), error) {
			cfg, log, err := bootstrap(logLevel)
			if err != nil {
				return nil, nil, err
			}
			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return nil, nil, err
			}
			release := func() {
				application.Close()
				_ = log.Sync()
			}
			return application.ScheduledCourses, release, nil
		},
		Migrate: func(ctx context.Context, logLevel string) error {
			cfg, log, err := bootstrap(logLevel)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()
			return database.RunMigrations(db.DB, log)
		},
		Out: os.Stdout,
	}
}

func bootstrap(logLevel string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewConsole(logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func withLifecycle(cmd *cobra.Command, deps Dependencies, fn func(ctx context.Context, l Lifecycle) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flagActor != "" {
		ctx = service.ContextWithActor(ctx, flagActor)
	}
	lifecycle, release, err := deps.Open(ctx, flagLogLevel)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, lifecycle)
}
