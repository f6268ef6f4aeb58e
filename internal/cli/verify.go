package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/fsutil"
	"SaveGuard/internal/policy"
)

func newVerifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the save root, profile and decoding tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			w := e.out()
			failed := false
			check := func(ok bool, label, detail string) {
				mark := Green.Render("ok  ")
				if !ok {
					mark = Red.Render("FAIL")
					failed = true
				}
				fmt.Fprintf(w, "%s %-14s %s\n", mark, label, detail)
			}

			check(cfg.SaveRoot != "" && policy.SaveRootLooksValid(cfg.SaveRoot), "save root", cfg.SaveRoot)
			check(fsutil.Exists(cfg.ProfileDir()), "profile", cfg.ProfileDir())
			if profiles := policy.DiscoverProfiles(cfg.SaveRoot); len(profiles) > 0 {
				fmt.Fprintf(w, "     %-14s %v\n", "profiles", profiles)
			}
			check(fsutil.Exists(cfg.JarFile()), "decoder tool", cfg.JarFile())

			dec := decoder.New(cfg.JarFile(), cfg.JavaPath, e.logger)
			ctx := cmd.Context()
			if err := dec.EnsureReady(ctx); err != nil {
				check(false, "java", err.Error())
				return errors.New("verification failed")
			}
			check(true, "java", cfg.JavaPath)

			inRaid, err := dec.ReadInRaid(ctx, cfg.ProfileDir())
			switch {
			case err != nil:
				check(false, "inraid", err.Error())
			case inRaid == nil:
				check(false, "inraid", "field missing")
			default:
				check(true, "inraid", fmt.Sprint(*inRaid))
			}

			cloud, err := dec.ReadCloudEnabled(ctx, cfg.SaveRoot)
			switch {
			case err != nil:
				check(false, "steam cloud", err.Error())
			case cloud == nil:
				fmt.Fprintf(w, "     %-14s %s\n", "steam cloud", "unknown")
			default:
				fmt.Fprintf(w, "     %-14s %v\n", "steam cloud", *cloud)
			}

			if failed {
				return errors.New("verification failed")
			}
			return nil
		},
	}
}
