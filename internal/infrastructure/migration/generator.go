package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orris-inc/checkout/internal/shared/logger"
)

// Generator writes golang-migrate up/down script pairs.
type Generator struct {
	scriptsPath string
	logger      logger.Interface
	now         func() time.Time
}

func NewGenerator(scriptsPath string, log logger.Interface) *Generator {
	return &Generator{
		scriptsPath: scriptsPath,
		logger:      log.Named("migration.generator"),
		now:         time.Now,
	}
}

// CreateMigration creates a new migration file pair and returns their paths.
func (g *Generator) CreateMigration(name string) (string, string, error) {
	if name == "" {
		return "", "", fmt.Errorf("migration name cannot be empty")
	}

	g.logger.Infow("creating new migration", "name", name)

	now := g.now()
	timestamp := now.Format("20060102150405")

	upFilePath := filepath.Join(g.scriptsPath, fmt.Sprintf("%s_%s.up.sql", timestamp, name))
	downFilePath := filepath.Join(g.scriptsPath, fmt.Sprintf("%s_%s.down.sql", timestamp, name))

	if err := os.MkdirAll(g.scriptsPath, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create scripts directory: %w", err)
	}

	if err := os.WriteFile(upFilePath, []byte(upTemplate(name, now)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to create up migration file: %w", err)
	}

	if err := os.WriteFile(downFilePath, []byte(downTemplate(name, now)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to create down migration file: %w", err)
	}

	g.logger.Infow("migration files created successfully",
		"up_file", upFilePath,
		"down_file", downFilePath)

	return upFilePath, downFilePath, nil
}

func upTemplate(name string, now time.Time) string {
	return fmt.Sprintf(`-- Migration: %s
-- Created: %s

-- Example:
-- ALTER TABLE checkout_attempts ADD COLUMN outcome VARCHAR(32) NULL;

`, name, now.Format("2006-01-02 15:04:05"))
}

func downTemplate(name string, now time.Time) string {
	return fmt.Sprintf(`-- Rollback Migration: %s
-- Created: %s

-- Example:
-- ALTER TABLE checkout_attempts DROP COLUMN outcome;

`, name, now.Format("2006-01-02 15:04:05"))
}
