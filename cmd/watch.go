package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/config"
	"github.com/werner/examsync/internal/engine"
	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background sync daemon",
	Long: `Keeps a connectivity monitor running and flushes pending answers
whenever the server becomes reachable, a wake request is registered by an
offline save, or the periodic interval elapses. Failed passes are retried
with exponential backoff instead of hammering the server.

Runs until interrupted.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go rt.Monitor.Run(ctx)

		interval := config.GetAutoSyncInterval()
		output.Info("watching, flush interval %s", interval)

		if config.GetAutoSyncOnStart() && rt.Monitor.IsOnline() {
			runWatchPass(rt)
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 5 * time.Second
		bo.MaxInterval = interval
		bo.MaxElapsedTime = 0 // the daemon never gives up

		delay := interval
		timer := time.NewTimer(delay)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				output.Info("shutting down")
				return nil
			case <-timer.C:
			}

			switch {
			case !config.GetAutoSyncEnabled():
				// Stay alive so reconnect drains still happen.
				delay = interval
			case !rt.Monitor.IsOnline():
				delay = interval
			default:
				runWatchPass(rt)
				output.Info("flush pass %s", output.FormatStatus(rt.Engine.Status()))
				if rt.Engine.Status() == models.StatusError {
					delay = bo.NextBackOff()
					slog.Debug("flush pass failed, backing off", "delay", delay)
				} else {
					bo.Reset()
					delay = interval
				}
			}
			timer.Reset(delay)
		}
	},
}

// runWatchPass drains the backlog and clears any wake request once the
// queue is empty.
func runWatchPass(rt *runtime) {
	if err := rt.Engine.SyncAllPendingAnswers(); err != nil {
		slog.Debug("watch: flush", "err", err)
		return
	}
	stats, err := rt.Store.Stats()
	if err != nil {
		return
	}
	if stats.UnsyncedAnswers == 0 {
		if err := rt.Wake.Clear(engine.WakeTag); err != nil {
			slog.Debug("watch: clear wake request", "err", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
