package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"SaveGuard/internal/services"
)

func newGUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.opts.Desktop == nil {
				return errors.New("this build has no desktop window")
			}
			// the window replaces the tray icon
			e.cfg.TrayEnabled = false
			svc, err := e.newServices(services.Dependencies{})
			if err != nil {
				return err
			}
			return e.opts.Desktop(cmd.Context(), svc, e.logger)
		},
	}
}
