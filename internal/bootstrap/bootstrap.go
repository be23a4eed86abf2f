// Package bootstrap opens the backing services shared by the pgm binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgmhq/pgm-backend/internal/config"
	"github.com/pgmhq/pgm-backend/internal/email"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"go.uber.org/zap"
)

// Postgres opens and pings a pgx pool.
func Postgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Redis opens and pings a Redis client from a redis:// URL.
func Redis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Mailer returns an SMTP sender when a host is configured, else a sender
// that only logs.
func Mailer(cfg config.EmailConfig, logger *zap.Logger) email.EmailSender {
	if cfg.Enabled() {
		logger.Info("SMTP email sender configured", zap.String("host", cfg.SMTPHost))
		return email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromAddress)
	}
	logger.Info("email sender: noop (set email.smtp_host to enable SMTP)")
	return email.NewNoopSender(logger)
}

// Resources holds the connections opened by OTPStore. Close releases them.
type Resources struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Close releases every open connection.
func (r *Resources) Close() {
	if r.Redis != nil {
		r.Redis.Close() //nolint:errcheck
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

// OTPStore builds the passcode store selected by cfg.OTP.Store, reusing
// res.DB for the postgres backend and opening Redis when needed.
func OTPStore(ctx context.Context, cfg *config.Config, res *Resources, logger *zap.Logger) (otp.Store, error) {
	switch cfg.OTP.Store {
	case config.StorePostgres:
		if res.DB == nil {
			db, err := Postgres(ctx, cfg.Database.URL)
			if err != nil {
				return nil, err
			}
			res.DB = db
		}
		logger.Info("otp store: postgres")
		return otp.NewPostgresStore(res.DB), nil
	case config.StoreRedis:
		rdb, err := Redis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		res.Redis = rdb
		logger.Info("otp store: redis", zap.String("prefix", cfg.OTP.RedisPrefix))
		return otp.NewRedisStore(rdb, cfg.OTP.RedisPrefix), nil
	case config.StoreMemory:
		logger.Warn("otp store: memory; codes are lost on restart and not shared between processes")
		return otp.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown otp store %q", cfg.OTP.Store)
	}
}
