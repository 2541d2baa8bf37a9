package migrate

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orris-inc/checkout/internal/infrastructure/config"
	"github.com/orris-inc/checkout/internal/infrastructure/database"
	"github.com/orris-inc/checkout/internal/infrastructure/migration"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

var (
	env         string
	scriptsPath string
	name        string
	steps       int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage the schema of the attempt journal and the persistent challenge slot.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVar(&scriptsPath, "scripts", "", "Directory of migration scripts (default: scripts embedded in the binary)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
		newCreateCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply every pending migration with the strategy selected for the environment and driver.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of database migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the database.`,
		RunE:  runStatus,
	}
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new migration",
		Long:  `Create a goose migration for sqlite, or a golang-migrate up/down pair for mysql.`,
		RunE:  runCreate,
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the migration (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func initEnv(connect bool) (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if scriptsPath != "" {
		abs, err := filepath.Abs(scriptsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get scripts path: %w", err)
		}
		scriptsPath = abs
	}

	if connect {
		if err := database.Init(&cfg.Database); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return cfg, logger.NewLogger(), nil
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv(true)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("running up migrations", "environment", env, "driver", cfg.Database.Driver)

	manager := migration.NewManager(env, cfg.Database.Driver, log)
	if scriptsPath != "" {
		manager = migration.NewManagerWithStrategy(versionedStrategy(cfg, log), log)
	}

	if err := manager.Migrate(database.Get()); err != nil {
		return err
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv(true)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("running down migrations", "environment", env, "steps", steps)

	switch strategy := versionedStrategy(cfg, log).(type) {
	case *migration.GooseStrategy:
		err = strategy.MigrateDown(database.Get(), steps)
	case *migration.GolangMigrateStrategy:
		err = strategy.MigrateDown(database.Get(), steps)
	default:
		err = fmt.Errorf("down migration is not supported by %s", strategy.GetName())
	}
	if err != nil {
		log.Errorw("down migration failed", "error", err)
		return fmt.Errorf("down migration failed: %w", err)
	}

	log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv(true)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Infow("checking migration status", "environment", env)

	out := cmd.OutOrStdout()
	switch strategy := versionedStrategy(cfg, log).(type) {
	case *migration.GooseStrategy:
		version, err := strategy.GetVersion(database.Get())
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		fmt.Fprintf(out, "\nMigration Status:\n")
		fmt.Fprintf(out, "  Environment:     %s\n", env)
		fmt.Fprintf(out, "  Strategy:        %s\n", strategy.GetName())
		fmt.Fprintf(out, "  Current Version: %d\n", version)
		return strategy.Status(database.Get())
	case *migration.GolangMigrateStrategy:
		version, dirty, err := strategy.GetVersion(database.Get())
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		fmt.Fprintf(out, "\nMigration Status:\n")
		fmt.Fprintf(out, "  Environment:     %s\n", env)
		fmt.Fprintf(out, "  Strategy:        %s\n", strategy.GetName())
		fmt.Fprintf(out, "  Current Version: %d\n", version)
		fmt.Fprintf(out, "  Dirty:           %t\n", dirty)
		return nil
	default:
		return fmt.Errorf("status is not supported by %s", strategy.GetName())
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv(false)
	if err != nil {
		return err
	}
	if scriptsPath == "" {
		return fmt.Errorf("--scripts is required to create a migration")
	}

	log.Infow("creating new migration", "name", name)

	if cfg.Database.Driver == database.DriverMySQL {
		up, down, err := migration.NewGenerator(scriptsPath, log).CreateMigration(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\ncreated %s\n", up, down)
		return nil
	}

	strategy, ok := migration.NewGooseStrategy(cfg.Database.Driver, scriptsPath, log).(*migration.GooseStrategy)
	if !ok {
		return fmt.Errorf("create is only supported with goose strategy")
	}
	if err := strategy.Create(name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migration '%s' created in %s\n", name, scriptsPath)
	return nil
}

// versionedStrategy returns the script-based strategy for the configured
// driver, reading scriptsPath when set and the embedded scripts otherwise.
func versionedStrategy(cfg *config.Config, log logger.Interface) migration.Strategy {
	if cfg.Database.Driver == database.DriverMySQL {
		return migration.NewGolangMigrateStrategy(scriptsPath, log)
	}
	return migration.NewGooseStrategy(cfg.Database.Driver, scriptsPath, log)
}
