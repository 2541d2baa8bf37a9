package migration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/shared/logger"
)

// Strategy defines the interface for different migration strategies
type Strategy interface {
	// Migrate executes the migration strategy
	Migrate(db *gorm.DB, models ...interface{}) error
	// GetName returns the strategy name
	GetName() string
}

// GolangMigrateStrategy applies the versioned MySQL scripts with golang-migrate.
// An empty scriptsPath uses the scripts embedded in the binary.
type GolangMigrateStrategy struct {
	scriptsPath string
	logger      logger.Interface
}

func NewGolangMigrateStrategy(scriptsPath string, log logger.Interface) Strategy {
	return &GolangMigrateStrategy{
		scriptsPath: scriptsPath,
		logger:      log.Named("migration.golang-migrate"),
	}
}

// Migrate applies every pending up script. A dirty schema is left alone.
func (s *GolangMigrateStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	return s.withMigrate(db, func(m *migrate.Migrate) error {
		from, dirty, err := version(m)
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("database is in dirty state at version %d", from)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		to, _, err := version(m)
		if err != nil {
			return err
		}
		s.logger.Infow("schema migrated", "source", s.source(), "from_version", from, "to_version", to)
		return nil
	})
}

func (s *GolangMigrateStrategy) GetName() string {
	return "golang_migrate"
}

// MigrateDown rolls back steps scripts.
func (s *GolangMigrateStrategy) MigrateDown(db *gorm.DB, steps int) error {
	return s.withMigrate(db, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run down migrations: %w", err)
		}
		s.logger.Infow("schema rolled back", "steps", steps)
		return nil
	})
}

// GetVersion returns the applied version and whether the last script failed
// halfway.
func (s *GolangMigrateStrategy) GetVersion(db *gorm.DB) (uint, bool, error) {
	var (
		current uint
		dirty   bool
	)
	err := s.withMigrate(db, func(m *migrate.Migrate) error {
		var err error
		current, dirty, err = version(m)
		return err
	})
	return current, dirty, err
}

// version treats a schema without migrations as version 0.
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, dirty, nil
}

func (s *GolangMigrateStrategy) source() string {
	if s.scriptsPath == "" {
		return "embedded:" + migrateDir
	}
	return s.scriptsPath
}

// withMigrate runs fn against a migrate instance over db and the configured
// scripts.
func (s *GolangMigrateStrategy) withMigrate(db *gorm.DB, fn func(m *migrate.Migrate) error) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	driver, err := mysql.WithInstance(sqlDB, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("failed to create MySQL driver: %w", err)
	}

	var m *migrate.Migrate
	if s.scriptsPath != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+s.scriptsPath, "mysql", driver)
	} else {
		var src source.Driver
		src, err = iofs.New(scriptsFS, migrateDir)
		if err != nil {
			return fmt.Errorf("failed to open embedded scripts: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := fn(m); err != nil {
		s.logger.Errorw("golang-migrate run failed", "source", s.source(), "error", err)
		return err
	}
	return nil
}

// goose keeps its dialect and base filesystem in package state.
var gooseMu sync.Mutex

// GooseStrategy applies goose SQL migrations for sqlite or mysql. Without a
// scripts path the embedded scripts for the dialect are used.
type GooseStrategy struct {
	dialect     string
	scriptsPath string
	logger      logger.Interface
}

// NewGooseStrategy accepts the database driver name ("sqlite" or "mysql").
func NewGooseStrategy(driver, scriptsPath string, log logger.Interface) Strategy {
	return &GooseStrategy{
		dialect:     gooseDialect(driver),
		scriptsPath: scriptsPath,
		logger:      log.Named("migration.goose"),
	}
}

func gooseDialect(driver string) string {
	if driver == "mysql" {
		return "mysql"
	}
	return "sqlite3"
}

// withGoose runs fn with goose configured for this strategy.
func (s *GooseStrategy) withGoose(fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if s.scriptsPath != "" {
		goose.SetBaseFS(nil)
		return fn(s.scriptsPath)
	}

	dir := gooseSQLiteDir
	if s.dialect == "mysql" {
		dir = gooseMySQLDir
	}
	goose.SetBaseFS(scriptsFS)
	defer goose.SetBaseFS(nil)
	return fn(dir)
}

func (s *GooseStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	s.logger.Infow("starting goose migration",
		"dialect", s.dialect,
		"scripts_path", s.scriptsPath)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return s.withGoose(func(dir string) error {
		currentVersion, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			s.logger.Errorw("failed to get current version", "error", err)
			return fmt.Errorf("failed to get current version: %w", err)
		}

		s.logger.Infow("current migration status",
			"version", currentVersion)

		if err := goose.Up(sqlDB, dir); err != nil {
			s.logger.Errorw("migration failed", "error", err)
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		finalVersion, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			s.logger.Errorw("failed to get final version", "error", err)
			return fmt.Errorf("failed to get final version: %w", err)
		}

		s.logger.Infow("migration completed successfully",
			"from_version", currentVersion,
			"to_version", finalVersion)
		return nil
	})
}

func (s *GooseStrategy) GetName() string {
	return "goose"
}

func (s *GooseStrategy) MigrateDown(db *gorm.DB, steps int) error {
	s.logger.Infow("starting down migration", "steps", steps)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	err = s.withGoose(func(dir string) error {
		for i := 0; i < steps; i++ {
			if err := goose.Down(sqlDB, dir); err != nil {
				s.logger.Errorw("down migration failed", "error", err)
				return fmt.Errorf("failed to run down migration: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Infow("down migration completed successfully")
	return nil
}

func (s *GooseStrategy) GetVersion(db *gorm.DB) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	var version int64
	err = s.withGoose(func(string) error {
		v, err := goose.GetDBVersion(sqlDB)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func (s *GooseStrategy) Status(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return s.withGoose(func(dir string) error {
		if err := goose.Status(sqlDB, dir); err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		return nil
	})
}

// Create writes a new SQL migration. It needs an on-disk scripts path.
func (s *GooseStrategy) Create(name string) error {
	if s.scriptsPath == "" {
		return fmt.Errorf("creating migrations requires a scripts path")
	}

	err := s.withGoose(func(dir string) error {
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Infow("migration created successfully", "name", name)
	return nil
}
