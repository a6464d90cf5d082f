package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/AikidoSec/ratelimit-go/ratelimit"
)

func validateCommand(out io.Writer, configPath string) error {
	cfg, err := ratelimit.LoadConfig(configPath)
	if err != nil {
		return err
	}
	rules, err := cfg.BuildRules()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration OK: store=%s namespace=%s rules=%d\n", cfg.Store.Backend, cfg.Namespace, len(rules))
	if len(rules) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTRATEGY\tLIMIT\tWINDOW\tPRIORITY\tENABLED")
	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\n", r.ID, r.Strategy, r.MaxRequests, r.WindowSize, r.Priority, r.Enabled)
	}
	return w.Flush()
}
