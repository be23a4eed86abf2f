package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pgmhq/pgm-backend/internal/bootstrap"
	"github.com/pgmhq/pgm-backend/internal/config"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	storeFlag string
	debug     bool
	timeout   time.Duration
)

// errRejected makes verify/check exit non-zero without an extra error line.
var errRejected = errors.New("rejected")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pgmctl",
	Short: "PGM backend operator CLI",
	Long: `pgmctl runs one-off operations against the PGM backend's stores,
such as issuing or verifying a password-reset code by hand and purging
expired codes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/pgm.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "override otp.store (postgres, redis, memory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout")

	otpCmd.AddCommand(otpIssueCmd, otpVerifyCmd, otpCheckCmd, otpCleanupCmd)
	rootCmd.AddCommand(otpCmd, versionCmd)

	otpIssueCmd.Flags().String("name", "", "display name used in the email greeting")
}

// ── wiring ───────────────────────────────────────────────────────────────────

type session struct {
	engine *otp.Engine
	res    *bootstrap.Resources
	logger *zap.Logger
}

func (s *session) close() {
	s.res.Close()
	s.logger.Sync() //nolint:errcheck
}

func openSession(ctx context.Context) (*session, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if storeFlag != "" {
		cfg.OTP.Store = storeFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	res := &bootstrap.Resources{}
	store, err := bootstrap.OTPStore(ctx, cfg, res, logger)
	if err != nil {
		res.Close()
		return nil, err
	}
	engine := otp.NewEngine(store, otp.NewDigitGenerator(), bootstrap.Mailer(cfg.Email, logger), cfg.OTP.Expiry(), logger)
	return &session{engine: engine, res: res, logger: logger}, nil
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// withSession opens a session bounded by --timeout and runs fn.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

// ── otp ──────────────────────────────────────────────────────────────────────

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Manage password-reset codes",
}

var otpIssueCmd = &cobra.Command{
	Use:   "issue <email>",
	Short: "Issue a new code for an address and email it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		return withSession(cmd, func(ctx context.Context, s *session) error {
			code, err := s.engine.Issue(ctx, args[0], name)
			if errors.Is(err, otp.ErrDelivery) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		})
	},
}

var otpVerifyCmd = &cobra.Command{
	Use:   "verify <email> <code>",
	Short: "Consume a code; exits non-zero when it is rejected",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			ok, err := s.engine.Verify(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return report(cmd, ok, "verified", "rejected")
		})
	},
}

var otpCheckCmd = &cobra.Command{
	Use:   "check <email> <code>",
	Short: "Report whether a code has been verified, without changing it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			ok, err := s.engine.Check(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return report(cmd, ok, "verified", "not verified")
		})
	},
}

var otpCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every expired code now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			n, err := s.engine.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired code(s)\n", n)
			return nil
		})
	},
}

func report(cmd *cobra.Command, ok bool, yes, no string) error {
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), yes)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), no)
	cmd.SilenceErrors = true
	return errRejected
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pgmctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pgmctl %s (PGM backend)\n", version)
	},
}
