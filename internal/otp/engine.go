package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgmhq/pgm-backend/internal/email"
	"go.uber.org/zap"
)

// DefaultExpiry is how long an issued passcode stays valid unless configured.
const DefaultExpiry = 10 * time.Minute

// Sentinel errors for the verification engine.
var (
	ErrEmptyAddress = errors.New("email address must not be empty")
	// ErrDelivery is wrapped by Issue when the email could not be sent. The
	// passcode was persisted and is verifiable.
	ErrDelivery = errors.New("otp delivery failed")
)

// MetricsRecordFunc is an optional callback invoked once per engine
// operation with the operation name and its outcome.
type MetricsRecordFunc func(op, outcome string)

// Engine issues, verifies and expires one-time passcodes.
type Engine struct {
	store     Store
	gen       Generator
	sender    email.EmailSender
	expiry    time.Duration
	immediate bool // configured expiry was <= 0; every code is already expired
	now       func() time.Time
	locks     *addressLocks
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// minStoredExpiry is the smallest offset between IssuedAt and ExpiresAt that
// survives Postgres' microsecond timestamp precision.
const minStoredExpiry = time.Microsecond

// NewEngine creates an Engine. A nil gen uses DigitGenerator. An expiry of
// zero or less makes every issued code fail verification, whatever the clock
// does; records are still stored with ExpiresAt just after IssuedAt.
func NewEngine(store Store, gen Generator, sender email.EmailSender, expiry time.Duration, logger *zap.Logger) *Engine {
	if gen == nil {
		gen = NewDigitGenerator()
	}
	immediate := expiry <= 0
	if immediate {
		expiry = minStoredExpiry
	}
	return &Engine{
		store:     store,
		gen:       gen,
		sender:    sender,
		expiry:    expiry,
		immediate: immediate,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newAddressLocks(),
		logger:    logger,
	}
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetMetricsRecord configures the metrics recording callback.
func (e *Engine) SetMetricsRecord(fn MetricsRecordFunc) {
	e.onMetrics = fn
}

// Expiry returns the configured validity window.
func (e *Engine) Expiry() time.Duration {
	return e.expiry
}

// NormalizeAddress trims and lower-cases an email address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Issue replaces any outstanding codes for address with a fresh one and
// emails it. The code is returned for logging and tests; users receive it by
// email. When delivery fails the code is still returned alongside an error
// wrapping ErrDelivery.
func (e *Engine) Issue(ctx context.Context, address, displayName string) (string, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return "", ErrEmptyAddress
	}

	rec, err := e.replace(ctx, address)
	if err != nil {
		e.record("issue", "error")
		return "", err
	}

	subject, body := issueMessage(displayName, rec.Code, e.expiry)
	if err := e.sender.Send(ctx, address, subject, body); err != nil {
		e.logger.Warn("otp delivery failed",
			zap.String("email", address),
			zap.Error(err),
		)
		e.record("issue", "delivery_failed")
		return rec.Code, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	e.logger.Info("otp issued",
		zap.String("email", address),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	e.record("issue", "ok")
	return rec.Code, nil
}

// replace runs the delete-then-insert half of Issue under the address lock.
// The lock is released before delivery.
func (e *Engine) replace(ctx context.Context, address string) (*Record, error) {
	unlock := e.locks.lock(address)
	defer unlock()

	if err := e.store.DeleteAllFor(ctx, address); err != nil {
		return nil, fmt.Errorf("clear previous codes: %w", err)
	}

	now := e.now()
	rec := &Record{
		Address:   address,
		Code:      e.gen.Generate(),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.expiry),
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist code: %w", err)
	}
	return rec, nil
}

// Verify consumes the code issued to address. It returns false, without an
// error, when the code is unknown, expired or already used; only storage
// failures are returned as errors.
func (e *Engine) Verify(ctx context.Context, address, code string) (bool, error) {
	address = NormalizeAddress(address)

	unlock := e.locks.lock(address)
	defer unlock()

	rec, err := e.lookup(ctx, address, code)
	if err != nil {
		e.record("verify", "error")
		return false, err
	}
	if rec == nil {
		e.record("verify", "rejected")
		return false, nil
	}
	if rec.Consumed {
		e.record("verify", "replayed")
		return false, nil
	}

	rec.Consumed = true
	if err := e.store.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Superseded by a concurrent Issue or swept between read and write.
			e.record("verify", "rejected")
			return false, nil
		}
		e.record("verify", "error")
		return false, fmt.Errorf("consume code: %w", err)
	}

	e.logger.Info("otp verified", zap.String("email", address))
	e.record("verify", "ok")
	return true, nil
}

// Check reports whether the code issued to address has already been
// consumed by Verify. It never changes state. Unknown and expired codes
// report false.
func (e *Engine) Check(ctx context.Context, address, code string) (bool, error) {
	address = NormalizeAddress(address)

	rec, err := e.lookup(ctx, address, code)
	if err != nil {
		e.record("check", "error")
		return false, err
	}
	if rec == nil || !rec.Consumed {
		e.record("check", "unverified")
		return false, nil
	}
	e.record("check", "verified")
	return true, nil
}

// lookup returns the unexpired record for (address, code), or nil when there
// is none. With a non-positive configured expiry nothing is ever unexpired.
func (e *Engine) lookup(ctx context.Context, address, code string) (*Record, error) {
	code = strings.TrimSpace(code)
	if address == "" || code == "" {
		return nil, nil
	}

	rec, err := e.store.FindByAddressAndCode(ctx, address, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	if e.immediate || rec.Expired(e.now()) {
		return nil, nil
	}
	return rec, nil
}

// CleanupExpired deletes every record whose deadline has passed and returns
// how many were removed. Unexpired records, consumed or not, are kept.
// Safe to call from a background goroutine.
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteExpiredBefore(ctx, e.now())
	if err != nil {
		e.record("cleanup", "error")
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	if n > 0 {
		e.logger.Info("pruned expired otp records", zap.Int64("count", n))
	}
	e.record("cleanup", "ok")
	return n, nil
}

// SendResetConfirmation emails address that its password was changed.
func (e *Engine) SendResetConfirmation(ctx context.Context, address, displayName string) error {
	address = NormalizeAddress(address)
	if address == "" {
		return ErrEmptyAddress
	}
	subject, body := confirmationMessage(displayName)
	if err := e.sender.Send(ctx, address, subject, body); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (e *Engine) record(op, outcome string) {
	if e.onMetrics != nil {
		e.onMetrics(op, outcome)
	}
}
