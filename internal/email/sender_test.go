package email

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoopSender_logsMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewNoopSender(zap.New(core))

	if err := s.Send(context.Background(), "alice@example.com", "Hello", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	entries := logs.FilterField(zap.String("to", "alice@example.com")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
}

func TestSMTPSender_implicitTLSOn465(t *testing.T) {
	if !NewSMTPSender("smtp.example.com", 465, "", "", "noreply@example.com").dialer.SSL {
		t.Error("expected SSL on port 465")
	}
	if NewSMTPSender("smtp.example.com", 587, "", "", "noreply@example.com").dialer.SSL {
		t.Error("expected STARTTLS on port 587")
	}
}

func TestSMTPSender_cancelledContext(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", 1, "", "", "noreply@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, "alice@example.com", "subject", "body")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
