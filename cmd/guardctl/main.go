package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/config"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/logging"
)

var (
	envFile string
	Version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "guardctl",
		Short:         "Inspect and probe the OrbitFinance rate limiters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before reading config")

	rootCmd.AddCommand(
		checkCmd(),
		countCmd(),
		policiesCmd(),
		versionCmd(),
	)
	return rootCmd
}

// withLimiters loads config, opens the store and hands the limiter set to fn.
func withLimiters(fn func(*services.Limiters) error) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// A memory store lives only as long as this command, so every window
	// would start empty.
	if cfg.Storage.Type != "redis" {
		return fmt.Errorf("check and count need the shared store: set STORAGE_TYPE=redis (got %q)", cfg.Storage.Type)
	}

	logger := logging.New(cfg.Logging)
	store, _, closeFn, err := storage.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	limiters, err := services.NewLimiters(store, cfg.RateLimiter.Policies, cfg.RateLimiter.KeyPrefix, zerolog.Nop())
	if err != nil {
		return err
	}
	return fn(limiters)
}

func lookup(limiters *services.Limiters, name string) (services.Guard, error) {
	g, ok := limiters.ByName(strings.ToLower(name))
	if !ok {
		return services.Guard{}, fmt.Errorf("unknown limiter %q (want one of %s)", name, strings.Join(limiters.Names(), ", "))
	}
	return g, nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <limiter> <token>",
		Short: "Record one attempt for token and print the decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLimiters(func(limiters *services.Limiters) error {
				g, err := lookup(limiters, args[0])
				if err != nil {
					return err
				}
				decision, err := g.Check(cmd.Context(), args[1])
				if err != nil && !domain.IsRateLimitExceeded(err) {
					return err
				}
				printDecision(cmd.OutOrStdout(), decision)
				return nil
			})
		},
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <limiter> <token>",
		Short: "Print the attempts token has in the current window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLimiters(func(limiters *services.Limiters) error {
				g, err := lookup(limiters, args[0])
				if err != nil {
					return err
				}
				count, err := g.Limiter.Count(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d in the last %s\n", count, g.Limit, g.Limiter.Window())
				return nil
			})
		},
	}
}

func policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show the effective limiter policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			printPolicies(cmd.OutOrStdout(), cfg.RateLimiter.Policies)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guardctl %s\n", Version)
		},
	}
}

func printDecision(out io.Writer, d domain.Decision) {
	verdict := "allowed"
	if !d.Allowed {
		verdict = "rejected"
	}
	fmt.Fprintf(out, "%s: %s token=%s count=%d limit=%d remaining=%d\n",
		d.Limiter, verdict, d.Token, d.Count, d.Limit, d.Remaining)
}

func printPolicies(out io.Writer, policies map[string]domain.Policy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LIMITER\tREQUESTS\tWINDOW\tCAPACITY HINT")
	for _, name := range []string{services.AILimiter, services.APILimiter, services.AuthLimiter} {
		p, ok := policies[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", name, p.Limit, p.Window, p.CapacityHint)
	}
	w.Flush()
}
