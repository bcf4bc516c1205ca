package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rankwise/internal/config"
	"rankwise/internal/db"
	"rankwise/internal/entitlement"
	"rankwise/internal/extract"
	"rankwise/internal/jobs"
	"rankwise/internal/llm"
	"rankwise/internal/metrics"
	"rankwise/internal/research"
	"rankwise/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	yamlCfg, err := config.LoadYAMLConfig(cfg.ConfigFile)
	if err != nil {
		logger.Fatal("failed to load config file", zap.String("path", cfg.ConfigFile), zap.Error(err))
	}

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations completed successfully")

	// Identity and quota
	resolver := entitlement.NewResolver(buildVerifier(ctx, cfg, logger), database, entitlement.PremiumPolicy{
		Roles: yamlCfg.PremiumRoles(entitlement.DefaultPremiumPolicy.Roles),
		Plans: yamlCfg.PremiumPlans(entitlement.DefaultPremiumPolicy.Plans),
	}, logger)
	gate := entitlement.NewGate(database, cfg.DailyLimit, logger)

	// Completion pipeline
	m := metrics.Init(database, logger)
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
		BaseURL: cfg.CompletionBaseURL,
		Timeout: cfg.CompletionTimeout,
	}, logger)
	opts := llm.Options{MaxTokens: cfg.CompletionMaxTokens, Temperature: cfg.CompletionTemperature}
	analyzer := research.NewAnalyzer(client, research.Config{
		MaxKeywords: cfg.MaxKeywords,
		Options:     opts,
		Aliases:     extract.Aliases(yamlCfg.ResearchAliases()),
	}, m, logger)

	srv := server.New(cfg, logger)
	srv.RegisterRoutes(server.Dependencies{
		Resolver:          resolver,
		Gate:              gate,
		Client:            client,
		CompletionOptions: opts,
		Extractor:         extract.NewExtractor(extract.Aliases(yamlCfg.KeywordAliases())),
		Researcher:        analyzer,
		Metrics:           m,
		Database:          database,
	})

	// Background jobs
	janitor := jobs.NewLedgerJanitor(database, gate.Fallback(), cfg.JanitorInterval, cfg.LedgerRetentionDays, logger)
	go janitor.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildVerifier combines the configured token verifiers. With none every
// caller is anonymous.
func buildVerifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) entitlement.TokenVerifier {
	if !cfg.HasBearerAuth() {
		logger.Info("no token verifier configured, all callers are anonymous")
		return nil
	}

	var verifiers entitlement.Verifiers

	if cfg.JWTSecret != "" {
		verifiers = append(verifiers, entitlement.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience))
	}

	if cfg.HasOIDC() {
		oidcVerifier, err := entitlement.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			logger.Warn("OIDC verification disabled", zap.Error(err))
		} else {
			verifiers = append(verifiers, oidcVerifier)
		}
	}

	if len(verifiers) == 0 {
		logger.Warn("token verification unavailable, all callers are anonymous")
		return nil
	}
	return verifiers
}
