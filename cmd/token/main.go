// Command token mints an access token for local testing of the pack API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/packlist-backend/pkg/auth"
	"github.com/angelmondragon/packlist-backend/pkg/auth/session"
	"github.com/angelmondragon/packlist-backend/pkg/config"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
	"github.com/angelmondragon/packlist-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "token", Output: os.Stderr})

	_ = godotenv.Load()

	userFlag := flag.String("user", "", "user id (uuid) the token is issued for")
	username := flag.String("username", "", "optional username claim")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil || userID == uuid.Nil {
		fmt.Fprintln(os.Stderr, "missing or invalid -user")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		fmt.Fprintln(os.Stderr, "token minting is disabled in prod")
		os.Exit(1)
	}

	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID:   userID,
		Username: *username,
		JTI:      accessID,
	})
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}

	if cfg.Redis.Enabled() {
		if err := registerSession(ctx, cfg, logg, accessID, userID); err != nil {
			logg.Error(ctx, "failed to register session", err)
			os.Exit(1)
		}
	}

	fmt.Println(token)
}

// registerSession stores the session so Auth accepts the token when the API
// runs with Redis.
func registerSession(ctx context.Context, cfg *config.Config, logg *logger.Logger, accessID string, userID uuid.UUID) error {
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	manager, err := session.NewManager(client, cfg.JWT)
	if err != nil {
		return err
	}
	return manager.Register(ctx, accessID, userID)
}
