package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"SaveGuard/internal/events"
	"SaveGuard/internal/services"
)

func newHistoryCmd(e *env) *cobra.Command {
	var (
		limit  int
		types  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent actions from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.newServices(services.Dependencies{NoTray: true})
			if err != nil {
				return err
			}
			defer svc.Stop()

			var filter []events.Type
			for _, t := range types {
				filter = append(filter, events.Type(t))
			}
			entries, err := svc.History(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(e.out())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(e.out(), Yellow.Render("Journal is empty."))
				return nil
			}
			data := pterm.TableData{{"Time", "Profile", "Type", "Summary"}}
			for _, en := range entries {
				data = append(data, []string{
					time.UnixMilli(en.AtUTC).Local().Format("2006-01-02 15:04:05"),
					fmt.Sprint(en.Profile),
					en.Type,
					en.Summary,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "number of entries")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "filter by event type (snapshot_created, anchor_promoted, restore_done, error, info)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
