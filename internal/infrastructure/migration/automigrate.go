package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/infrastructure/persistence/models"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

// AutoMigrateModels lists every table owned by the checkout service.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.LocalStorageModel{},
		&models.CheckoutAttemptModel{},
	}
}

// GormAutoMigrateStrategy derives the schema from the model structs.
type GormAutoMigrateStrategy struct {
	logger logger.Interface
}

func NewGormAutoMigrateStrategy(log logger.Interface) Strategy {
	return &GormAutoMigrateStrategy{
		logger: log.Named("migration.gorm"),
	}
}

func (s *GormAutoMigrateStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		models = AutoMigrateModels()
	}

	s.logger.Infow("starting gorm auto migration", "models_count", len(models))

	if err := db.AutoMigrate(models...); err != nil {
		s.logger.Errorw("auto migration failed", "error", err)
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	s.logger.Infow("auto migration completed successfully")
	return nil
}

func (s *GormAutoMigrateStrategy) GetName() string {
	return "gorm_auto_migrate"
}
