package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"SaveGuard/internal/services"
	"SaveGuard/internal/snapshot"
)

func spinner(text string) *pterm.SpinnerPrinter {
	sp, _ := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithRemoveWhenDone(true).Start(text)
	return sp
}

func newCaptureCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Save the profile now (the game must be closed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.newServices(services.Dependencies{NoTray: true})
			if err != nil {
				return err
			}
			svc.Start(cmd.Context())
			defer svc.Stop()

			sp := spinner("Capturing snapshot...")
			res := <-svc.CaptureManualAsync(cmd.Context())
			_ = sp.Stop()
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintln(e.out(), Green.Render(fmt.Sprintf("Saved %s/%s (%s)",
				res.Snapshot.Bucket, res.Snapshot.ID, humanBytes(res.Snapshot.SizeBytes))))
			return nil
		},
	}
}

func newRestoreCmd(e *env) *cobra.Command {
	var yes, force bool
	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Replace the live profile with a snapshot (the game must be closed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.newServices(services.Dependencies{NoTray: true})
			if err != nil {
				return err
			}
			svc.Start(cmd.Context())
			defer svc.Stop()

			id := args[0]
			if !yes {
				fmt.Fprintf(e.out(), "Restore %s over %s? A backup is taken first. [y/N]: ", id, svc.Config().ProfileDir())
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Fprintln(e.out(), Yellow.Render("Restore cancelled."))
					return nil
				}
			}

			sp := spinner("Restoring snapshot...")
			res := <-svc.RestoreAsync(cmd.Context(), id, force)
			_ = sp.Stop()
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintln(e.out(), Green.Render(fmt.Sprintf("Restored %s; previous state saved as %s", id, res.Backup.ID)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&force, "force", false, "allow snapshots without verified metadata")
	return cmd
}

func newClearCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <bucket>",
		Short: "Delete every snapshot of one bucket for the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.newServices(services.Dependencies{NoTray: true})
			if err != nil {
				return err
			}
			svc.Start(cmd.Context())
			defer svc.Stop()
			if err := svc.ClearBucket(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(e.out(), Green.Render("Cleared "+snapshot.Bucket(args[0]).Label()))
			return nil
		},
	}
}
