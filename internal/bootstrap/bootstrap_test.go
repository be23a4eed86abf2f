package bootstrap

import (
	"context"
	"testing"

	"github.com/pgmhq/pgm-backend/internal/config"
	"github.com/pgmhq/pgm-backend/internal/email"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"go.uber.org/zap"
)

func TestMailer_selection(t *testing.T) {
	if _, ok := Mailer(config.EmailConfig{}, zap.NewNop()).(*email.NoopSender); !ok {
		t.Error("expected NoopSender without smtp host")
	}
	cfg := config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, FromAddress: "noreply@example.com"}
	if _, ok := Mailer(cfg, zap.NewNop()).(*email.SMTPSender); !ok {
		t.Error("expected SMTPSender with smtp host")
	}
}

func TestOTPStore_memory(t *testing.T) {
	cfg := &config.Config{OTP: config.OTPConfig{Store: config.StoreMemory}}
	res := &Resources{}
	defer res.Close()

	store, err := OTPStore(context.Background(), cfg, res, zap.NewNop())
	if err != nil {
		t.Fatalf("OTPStore: %v", err)
	}
	if _, ok := store.(*otp.MemoryStore); !ok {
		t.Errorf("expected *otp.MemoryStore, got %T", store)
	}
	if res.DB != nil || res.Redis != nil {
		t.Error("memory store must not open connections")
	}
}

func TestOTPStore_unknown(t *testing.T) {
	cfg := &config.Config{OTP: config.OTPConfig{Store: "mongo"}}
	if _, err := OTPStore(context.Background(), cfg, &Resources{}, zap.NewNop()); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestRedis_badURL(t *testing.T) {
	if _, err := Redis(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for malformed redis url")
	}
}
