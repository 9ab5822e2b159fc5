package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/internal/api"
	"github.com/charlesng35/accountd/internal/app"
	"github.com/charlesng35/accountd/internal/app/maintenance"
	iauth "github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/mail"
)

// userStore is a store.Store that owns backend connections.
type userStore interface {
	store.Store
	Close(ctx context.Context) error
}

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Store   userStore
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// stackOverrides replaces external collaborators, mainly for tests.
type stackOverrides struct {
	Mailer   mail.Mailer
	Resolver identity.Resolver
}

// bootstrapRuntime opens the user store, builds the services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger, overrides stackOverrides) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var err error
	stack.Store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer := overrides.Mailer
	if mailer == nil {
		if mailer, err = cfg.NewMailer(); err != nil {
			return nil, fmt.Errorf("initialise mailer: %w", err)
		}
	}

	resolver := overrides.Resolver
	if resolver == nil {
		if resolver, err = identity.NewPaystackResolver(cfg.Identity.PaystackConfig()); err != nil {
			return nil, fmt.Errorf("initialise identity resolver: %w", err)
		}
	}

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	accounts, err := services.NewAccountService(stack.Store, tokens, mailer, cfg.AccountServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}

	verificationCfg := cfg.Auth.VerificationServiceConfig()
	sender, err := services.NewMailCodeSender(mailer, cfg.Email.From, verificationCfg.CodeTTL)
	if err != nil {
		return nil, fmt.Errorf("initialise code sender: %w", err)
	}
	verification, err := services.NewVerificationService(stack.Store, resolver, sender, verificationCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise verification service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Store,
		maintenance.WithResetTokenSchedule(cfg.Maintenance.ResetTokenSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:       cfg,
		Tokens:       tokens,
		Accounts:     accounts,
		Verification: verification,
		Health:       stack.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(ctx); err != nil {
			log.Warn("failed to close user store", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context, cfg *app.Config) (userStore, error) {
	log := logger.WithModule("database")

	if cfg.Database.UsesMongo() {
		st, err := store.OpenMongo(ctx, cfg.Database.MongoStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		log.Info("database connected", zap.String("driver", app.DriverMongo))
		return st, nil
	}

	dbCfg := cfg.Database.GormConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	st, err := store.NewGormStore(db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))
	return st, nil
}
