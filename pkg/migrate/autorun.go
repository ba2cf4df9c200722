package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packlist-backend/pkg/config"
	"github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/db/models"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date in dev when PACKLIST_AUTO_MIGRATE
// is set. Postgres runs the goose migrations; sqlite uses AutoMigrate of the
// models because the SQL files are Postgres-only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return nil
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	conn := client.DB()
	dialect := conn.Dialector.Name()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dialect})
		logg.Info(ctx, "migrate.dev_autorun")
	}

	if dialect == db.DriverSQLite {
		if err := conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto migrating sqlite schema: %w", err)
		}
	} else {
		sqlDB, err := conn.DB()
		if err != nil {
			return fmt.Errorf("extracting sql.DB: %w", err)
		}
		if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
			return fmt.Errorf("running goose up: %w", err)
		}
	}

	if logg != nil {
		logg.Info(ctx, "migrate.dev_autorun_completed")
	}
	return nil
}
