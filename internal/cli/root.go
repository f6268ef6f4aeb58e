// Package cli is the cobra command tree of the saveguard binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"SaveGuard/internal/events"
	"SaveGuard/internal/policy"
	"SaveGuard/internal/services"
)

// DesktopFunc runs the desktop window until it is closed.
type DesktopFunc func(ctx context.Context, svc *services.Services, logger *slog.Logger) error

type Options struct {
	Desktop DesktopFunc
	Out     io.Writer
}

type env struct {
	opts     Options
	v        *viper.Viper
	cfgFile  string
	logLevel string

	cfg     policy.Config
	cfgUsed string
	baseDir string

	logger   *slog.Logger
	closeLog func()
}

func (e *env) out() io.Writer {
	if e.opts.Out != nil {
		return e.opts.Out
	}
	return os.Stdout
}

func (e *env) newServices(deps services.Dependencies) (*services.Services, error) {
	deps.Logger = e.logger
	return services.New(e.cfg, deps)
}

// Execute runs the root command and returns the process exit code.
func Execute(opts Options) int {
	root := NewRootCmd(opts)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, Red.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func NewRootCmd(opts Options) *cobra.Command {
	e := &env{opts: opts, v: policy.NewViper(), closeLog: func() {}}

	root := &cobra.Command{
		Use:   "saveguard",
		Short: "Snapshot and restore Darkest Dungeon save profiles",
		Long: `saveguard watches a Darkest Dungeon save profile, keeps verified snapshots
of it in named buckets and restores any of them on request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.closeLog()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&e.cfgFile, "config", "c", "", "config file (default ./saveguard.yaml)")
	pf.StringVar(&e.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.String("save-root", "", "Steam save root holding profile_<n> directories")
	pf.Int("profile", 0, "profile number to protect")
	pf.String("jar-path", "", "path of the save decoding tool")
	pf.String("snapshots", "", "snapshots directory")
	pf.Int("quiet-ms", 0, "quiet window before each capture in milliseconds")
	pf.String("process", "", "game process name")
	pf.Int("retention", 0, "snapshots kept per bucket")
	pf.Int("retry-count", 0, "capture attempts before giving up")
	policy.BindFlags(e.v, pf)

	root.AddCommand(
		newMonitorCmd(e),
		newVerifyCmd(e),
		newListCmd(e),
		newCaptureCmd(e),
		newRestoreCmd(e),
		newClearCmd(e),
		newHistoryCmd(e),
		newConfigCmd(e),
		newGUICmd(e),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, used, err := policy.Load(e.v, e.cfgFile, dir)
	if err != nil {
		return err
	}
	e.cfg, e.cfgUsed = cfg, used
	e.baseDir = cfg.BaseDir

	logger, closeLog, err := newLogger(e.logLevel, cfg.LogsRoot(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	e.logger, e.closeLog = logger, closeLog
	slog.SetDefault(logger)
	logger.Debug("config loaded", "file", used, "save_root", cfg.SaveRoot, "profile", cfg.Profile)
	return nil
}

// printEvent renders ev on the console. Repeated identical state lines are
// suppressed.
type eventPrinter struct {
	w         io.Writer
	lastState string
}

func (p *eventPrinter) print(ev events.Event) {
	ts := ev.At.Local().Format("15:04:05")
	switch ev.Type {
	case events.TypeState:
		s := ev.Summary()
		if s == p.lastState {
			return
		}
		p.lastState = s
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Cyan.Render("state  "+s))
	case events.TypeSnapshotCreated:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Green.Render("saved  "+ev.Summary()))
	case events.TypeAnchorPromoted:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Green.Render("anchor "+ev.Summary()))
	case events.TypeRestoreDone:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Green.Render(ev.Summary()))
	case events.TypeError:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Red.Render("error  "+ev.Message))
	case events.TypeHotkeyStatus:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), Yellow.Render(ev.Summary()))
	default:
		fmt.Fprintf(p.w, "%s %s\n", Dim.Render(ts), ev.Summary())
	}
}
