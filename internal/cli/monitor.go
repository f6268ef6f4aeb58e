package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"SaveGuard/internal/events"
	"SaveGuard/internal/services"
)

func newMonitorCmd(e *env) *cobra.Command {
	var noHotkey, noTray bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the game and keep runtime snapshots until interrupted",
		Long: `monitor polls the game process and the in-raid flag, keeps a rolling
runtime snapshot while the party is in town, promotes it to the pre-raid
anchor when a raid starts and takes an in-game snapshot on F5.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noHotkey {
				e.cfg.HotkeyEnabled = false
			}
			if noTray {
				e.cfg.TrayEnabled = false
			}
			return runMonitor(cmd.Context(), e)
		},
	}
	cmd.Flags().BoolVar(&noHotkey, "no-hotkey", false, "do not register the global F5 hotkey")
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "do not show the tray icon")
	return cmd
}

func runMonitor(parent context.Context, e *env) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu      sync.Mutex
		printer = &eventPrinter{w: e.out()}
	)
	svc, err := e.newServices(services.Dependencies{
		EmitEvent: func(ev events.Event) {
			mu.Lock()
			printer.print(ev)
			mu.Unlock()
		},
		OnExitRequested: stop,
	})
	if err != nil {
		return err
	}
	svc.Start(ctx)
	defer svc.Stop()

	if e.cfgUsed != "" {
		svc.WatchConfig(e.v, e.baseDir)
	}
	if err := svc.StartMonitor(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	cfg := svc.Config()
	fmt.Fprintln(e.out(), Bold.Render(fmt.Sprintf("Watching %s (Ctrl+C to stop)", cfg.ProfileDir())))

	<-ctx.Done()
	return nil
}
