package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"SaveGuard/internal/policy"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := policy.MarshalYAML(e.cfg)
			if err != nil {
				return err
			}
			if e.cfgUsed != "" {
				fmt.Fprintln(e.out(), Dim.Render("# "+e.cfgUsed))
			}
			_, err = e.out().Write(b)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := policy.ConfigBaseName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := policy.WriteDefault(path); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintln(e.out(), Green.Render("Wrote "+abs))
			return nil
		},
	})
	return cmd
}
