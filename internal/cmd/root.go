// Package cmd implements the ticketsync command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/debug"
	"github.com/chatwoot/ticketsync/internal/validation"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Profile      string
	Debug        bool
	Verbose      bool
	LogJSON      bool
	JSON         bool
	Query        string
	AllowPrivate bool
	Timeout      time.Duration

	MaxRateLimitRetries        int
	MaxRateLimitRetriesSet     bool
	Max5xxRetries              int
	Max5xxRetriesSet           bool
	CircuitBreakerThreshold    int
	CircuitBreakerThresholdSet bool
}

// flags holds the global command flags. It is reset at the start of every
// Execute call.
var flags rootFlags

func parseBoolEnv(key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && value
}

// loadDotEnv loads .env from the working directory and from the user config
// directory. Variables already set in the environment are not overwritten.
func loadDotEnv() {
	paths := []string{".env"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "ticketsync", ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	loadDotEnv()

	flags = rootFlags{
		AllowPrivate: parseBoolEnv(validation.EnvAllowPrivate),
		Timeout:      api.DefaultTimeout,
	}

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ticketsync",
		Short:         "Real-time ticket sync for the support console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			debug.SetupLogger(debug.Options{
				Debug:   flags.Debug,
				Verbose: flags.Verbose,
				JSON:    flags.LogJSON,
			})
			ctx := debug.WithDebug(cmd.Context(), flags.Debug)

			validation.SetAllowPrivate(flags.AllowPrivate)
			if flags.Timeout <= 0 {
				return fmt.Errorf("--timeout must be > 0")
			}
			if flags.Query != "" {
				flags.JSON = true
			}
			pf := cmd.Flags()
			flags.MaxRateLimitRetriesSet = pf.Changed("max-rate-limit-retries")
			flags.Max5xxRetriesSet = pf.Changed("max-5xx-retries")
			flags.CircuitBreakerThresholdSet = pf.Changed("circuit-breaker-threshold")
			if flags.MaxRateLimitRetriesSet && flags.MaxRateLimitRetries < 0 {
				return fmt.Errorf("--max-rate-limit-retries must be >= 0")
			}
			if flags.Max5xxRetriesSet && flags.Max5xxRetries < 0 {
				return fmt.Errorf("--max-5xx-retries must be >= 0")
			}
			if flags.CircuitBreakerThresholdSet && flags.CircuitBreakerThreshold < 1 {
				return fmt.Errorf("--circuit-breaker-threshold must be >= 1")
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Profile, "profile", "", "Profile to use (env TICKETSYNC_PROFILE)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Log connection lifecycle")
	pf.BoolVar(&flags.LogJSON, "log-json", false, "Write logs as JSON")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Output JSON")
	pf.StringVarP(&flags.Query, "query", "q", "", "JQ expression applied to JSON output (implies --json)")
	pf.BoolVar(&flags.AllowPrivate, "allow-private", flags.AllowPrivate, "Allow private/localhost URLs (unsafe)")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.IntVar(&flags.MaxRateLimitRetries, "max-rate-limit-retries", api.DefaultMaxRateLimitRetries, "Retries after a 429 response")
	pf.IntVar(&flags.Max5xxRetries, "max-5xx-retries", api.DefaultMax5xxRetries, "Retries after a 5xx response")
	pf.IntVar(&flags.CircuitBreakerThreshold, "circuit-breaker-threshold", api.DefaultCircuitBreakerThreshold, "Consecutive failures before requests are short-circuited")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newTicketsCmd())
	root.AddCommand(newTechniciansCmd())
	root.AddCommand(newWatchCmd())
	return root
}
