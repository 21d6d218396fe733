package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pyforge-dev/pyforge/internal/output"
)

var (
	watchInterval time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Monitor runtime health and requirements files",
		Long: `Run the pyforge monitor in the foreground.

The monitor does two things:
  • Health sweeps: every registered runtime is probed on a fixed interval
    and the result is kept for 'pyforge doctor' style summaries.
  • Requirements watching: changes to *.txt files in the requirements
    directory reload the package set catalog immediately, so edited sets
    are picked up without restarting.

Stop with Ctrl+C.`,
		Example: `  # Watch with the configured interval
  pyforge watch

  # Sweep health every minute
  pyforge watch --interval 1m`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "health sweep interval (default: from config)")
	RootCmd.AddCommand(watchCmd)
}

// isRequirementsEvent reports whether a filesystem event should trigger a
// package set reload: a write, create, or rename of a .txt file.
func isRequirementsEvent(ev fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(ev.Name), ".txt") {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	env, err := newAppEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	interval := watchInterval
	if interval <= 0 {
		interval = env.cfg.Health.Interval
	}

	if err := env.packs.LoadFromFiles(); err != nil {
		return fmt.Errorf("failed to load package sets: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(env.cfg.RequirementsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", env.cfg.RequirementsDir, err)
	}

	env.monitor.Start(interval)
	defer env.monitor.Stop()

	if report := env.monitor.Latest(); report != nil {
		fmt.Print(output.RenderHealthReport(report))
	}
	fmt.Printf("\nWatching %s (health sweep every %s). Press Ctrl+C to stop.\n",
		env.cfg.RequirementsDir, interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case ev, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !isRequirementsEvent(ev) {
				continue
			}
			log.WithFields(log.Fields{"file": ev.Name, "op": ev.Op.String()}).Info("requirements changed")
			if err := env.packs.LoadFromFiles(); err != nil {
				log.Warnf("failed to reload package sets: %v", err)
				continue
			}
			fmt.Printf("✓ Reloaded package sets (%d available)\n", len(env.packs.List()))

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("filesystem watcher error: %v", err)

		case sig := <-sigCh:
			fmt.Printf("\nReceived %v, shutting down...\n", sig)
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
