package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	notifapp "github.com/agency-backoffice/internal/application/notification"
	"github.com/agency-backoffice/internal/eventbus"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete admin notifications older than the retention period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = lg.Sync() }()

		retention := sweepOlderThan
		if retention == 0 {
			retention = cfg.NotificationRetention
		}
		st, err := openStores(cmd.Context(), cfg, lg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = st.close() }()

		svc := notifapp.NewService(notifapp.ServiceDeps{Store: st.notifications, Emitter: eventbus.NoopEmitter{}})
		n, err := svc.Sweep(cmd.Context(), retention)
		if err != nil {
			return err
		}
		lg.Info("sweep finished", zap.Int("deleted", n), zap.Duration("older_than", retention))
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d notifications older than %s\n", n, retention)
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "retention period (default NOTIFICATION_RETENTION)")
}
