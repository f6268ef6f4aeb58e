package cli

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"SaveGuard/internal/ipcapi"
	"SaveGuard/internal/services"
	"SaveGuard/internal/snapshot"
)

func newListCmd(e *env) *cobra.Command {
	var (
		bucket string
		all    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots of the active profile, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.newServices(services.Dependencies{NoJournal: true, NoTray: true})
			if err != nil {
				return err
			}
			defer svc.Stop()

			recs, err := svc.ListSnapshots(bucket, all)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(e.out())
				enc.SetIndent("", "  ")
				return enc.Encode(ipcapi.FromRecords(recs))
			}
			if len(recs) == 0 {
				fmt.Fprintln(e.out(), Yellow.Render("No snapshots."))
				return nil
			}
			return renderRecords(recs)
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "only this bucket (closed_manual, runtime_hotkey, pre_raid_auto, _runtime_poll_temp)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include snapshots without verified metadata")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func renderRecords(recs []snapshot.Record) error {
	data := pterm.TableData{{"ID", "Bucket", "Reason", "Created", "In raid", "Size", "OK"}}
	for _, r := range recs {
		bucket := r.Bucket.Label()
		if r.PreRaidAnchor {
			bucket += " *"
		}
		data = append(data, []string{
			r.ID,
			bucket,
			snapshot.ReasonLabel(r.Reason),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			triState(r.InRaid),
			humanBytes(r.SizeBytes),
			fmt.Sprint(r.IntegrityOK),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func triState(v *bool) string {
	switch {
	case v == nil:
		return "-"
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
