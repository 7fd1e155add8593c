package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"user-sync/internal/auth0"
	"user-sync/internal/config"
	"user-sync/internal/db"
	"user-sync/internal/repository"
	"user-sync/internal/service"
)

// sync_check reconcilia usuarios de Auth0 contra la tabla local, uno por argumento.
//
//	go run ./cmd/sync_check auth0|123 google-oauth2|456
func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "timeout por usuario")
	flag.Parse()

	ids := flag.Args()
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "uso: sync_check [-timeout 30s] <auth0_id>...")
		os.Exit(2)
	}

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	gateway := auth0.NewClient(auth0.Options{
		IssuerURL:    cfg.Auth0IssuerURL,
		Audience:     cfg.Auth0MgmtAudience,
		ClientID:     cfg.Auth0ClientID,
		ClientSecret: cfg.Auth0ClientSecret,
		Timeout:      cfg.Auth0HTTPTimeout,
	}, auth0.NewMemoryTokenCache(), zap.NewNop())

	userSvc := service.NewUserService(zap.NewNop(), repository.NewPgUserRepository(pool), gateway, cfg.Auth0NameSyncPolicy)

	passed := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		runCtx, cancel := context.WithTimeout(ctx, *timeout)
		user, err := userSvc.SyncProfile(runCtx, id)
		cancel()
		if err != nil {
			fmt.Printf("❌ FAIL [%s] %v\n", id, err)
			continue
		}
		fmt.Printf("✅ OK   [%s] id=%s email=%s verified=%t\n", id, user.ID, user.Email, user.EmailVerified)
		passed++
	}

	fmt.Printf("Sincronizados: %d/%d\n", passed, len(ids))
	if passed != len(ids) {
		os.Exit(1)
	}
}
