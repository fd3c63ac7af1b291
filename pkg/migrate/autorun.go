package migrate

import (
	"context"
	"database/sql"

	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// MaybeAutoRun applies pending migrations at boot when the auto-migrate
// flag is on. Intended for dev; production deploys run cmd/migrate.
func MaybeAutoRun(ctx context.Context, cfg *config.Config, db *sql.DB, log *logger.Logger) error {
	if !cfg.Flags.AutoMigrate {
		return nil
	}
	log.Info(ctx, "auto-migrate enabled, applying pending migrations")
	return Up(ctx, db)
}
