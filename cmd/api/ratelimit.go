package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agency-backoffice/internal/config"
)

var ratelimitJSON bool

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect or reset the per-admin scoring limit",
}

var ratelimitStatusCmd = &cobra.Command{
	Use:   "status <principal>",
	Short: "Show limit, remaining calls and reset time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}
		warnIfMemory(cmd, cfg)
		limiter, _, err := openLimiter(cmd.Context(), cfg, lg)
		if err != nil {
			return err
		}
		st, err := limiter.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ratelimitJSON {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Principal: %s\nLimit:     %d\nRemaining: %d\nResets in: %s\n",
			args[0], st.Limit, st.Remaining, st.ResetIn.Round(time.Second))
		return nil
	},
}

var ratelimitResetCmd = &cobra.Command{
	Use:   "reset <principal>",
	Short: "Clear the principal's current window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}
		warnIfMemory(cmd, cfg)
		limiter, _, err := openLimiter(cmd.Context(), cfg, lg)
		if err != nil {
			return err
		}
		if err := limiter.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset rate limit for %s\n", args[0])
		return nil
	},
}

// The memory store lives inside the serving process; a CLI run sees an empty one.
func warnIfMemory(cmd *cobra.Command, cfg *config.Config) {
	if cfg.RateLimit.Driver == config.DriverMemory {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: RATE_LIMIT_DRIVER=memory; this command only sees its own process")
	}
}

func init() {
	ratelimitStatusCmd.Flags().BoolVar(&ratelimitJSON, "json", false, "output as JSON")
	ratelimitCmd.AddCommand(ratelimitStatusCmd, ratelimitResetCmd)
}
