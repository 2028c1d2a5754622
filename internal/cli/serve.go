package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/retention"
	"github.com/rcliao/guildkeeper/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the retention scheduler and the ops server",
		Long: "Sweeps expired departed members on retention.interval (and once at start when " +
			"retention.run_on_start is set) and serves /healthz, /metrics and retention state on ops.addr " +
			"until interrupted.",
		Run: runServe,
	}

	cmd.Flags().String("addr", "", "Ops server address (overrides ops.addr)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Ops.Addr
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := retention.NewScheduler(newSweeper(s), cfg.Retention.RunOnStart, log)
	if err := sched.Start(cfg.Retention.Interval); err != nil {
		exitErr("start scheduler", err)
	}

	srv := server.New(sched, newRetentionService(s), log)
	serveErr := srv.Run(ctx, addr)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Retention.PurgeTimeout+5*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("scheduler did not stop cleanly")
	}

	if serveErr != nil {
		exitErr("ops server", serveErr)
	}
}
