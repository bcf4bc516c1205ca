package server

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"go.uber.org/zap"

	"rankwise/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App    *fiber.App
	Cfg    *config.Config
	logger *zap.Logger
	// storage backs the rate limiter; nil means fiber's in-memory store.
	storage fiber.Storage
}

// New creates a new server with middleware configured.
func New(cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "rankwise",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorHandler: errorHandler(log),
	})

	// Global middleware
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDev()}))
	app.Use(logger.New())

	// CORS middleware. Callers authenticate with bearer tokens, not cookies.
	corsConfig := cors.Config{
		AllowMethods: []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	}
	app.Use(cors.New(corsConfig))

	s := &Server{App: app, Cfg: cfg, logger: log}
	if cfg.RedisURL != "" {
		s.storage = redis.New(redis.Config{URL: cfg.RedisURL})
		log.Info("rate limiter using redis storage")
	}
	return s
}

// errorHandler logs unexpected errors with full detail and answers with a
// generic JSON body.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"code":    errorCode(fe.Code),
				"error":   fe.Message,
			})
		}

		log.Error("unhandled request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"code":    "internal_error",
			"error":   "Internal Server Error",
		})
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "body_too_large"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "bad_request"
	}
}

// rateLimiter limits requests per IP per minute. Max <= 0 disables it.
func (s *Server) rateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Next: func(c fiber.Ctx) bool {
			return s.Cfg.RateLimitPerMinute <= 0 || c.Method() == fiber.MethodOptions
		},
		Max:        s.Cfg.RateLimitPerMinute,
		Expiration: 1 * time.Minute,
		Storage:    s.storage,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"code":    "rate_limited",
				"error":   "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// Start starts the server with the configured address and TLS settings.
func (s *Server) Start() error {
	if s.Cfg.TLSEnabled {
		s.logger.Info("starting server with TLS", zap.String("addr", s.Cfg.ServerAddr))
		return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{
			CertFile:      s.Cfg.TLSCertFile,
			CertKeyFile:   s.Cfg.TLSKeyFile,
			TLSConfigFunc: func(tc *tls.Config) { tc.MinVersion = tls.VersionTLS12 },
		})
	}
	s.logger.Info("starting server", zap.String("addr", s.Cfg.ServerAddr))
	return s.App.Listen(s.Cfg.ServerAddr)
}

// Shutdown gracefully shuts down the server and closes the limiter storage.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.App.ShutdownWithContext(ctx)
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil {
			s.logger.Warn("closing limiter storage", zap.Error(cerr))
		}
	}
	return err
}
