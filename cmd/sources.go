package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/catalog"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the sources catalog",
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve every source's extraction strategy and instrument catalog without fetching",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if v, _ := cmd.Flags().GetString("sources"); v != "" {
			cfg.Catalog.SourcesPath = v
		}
		if v, _ := cmd.Flags().GetString("instruments-prefix"); v != "" {
			cfg.Catalog.InstrumentsPrefix = v
		}

		reg := extract.DefaultRegistry()
		if cfg.Extract.StrategiesFile != "" {
			if _, err := extract.LoadFile(cfg.Extract.StrategiesFile, reg); err != nil {
				return err
			}
		}

		sources, diags, err := catalog.LoadSources(cfg.Catalog.SourcesPath)
		if err != nil {
			return eris.Wrap(err, "sources check")
		}
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "skipped %s\n", d)
		}

		checks := checkSources(sources, reg, cfg.Catalog.InstrumentsPrefix)
		formatSourceChecks(os.Stdout, checks)
		return nil
	},
}

func init() {
	sourcesCheckCmd.Flags().String("sources", "", "sources catalog path (default from config)")
	sourcesCheckCmd.Flags().String("instruments-prefix", "", "directory prefix of instrument catalogs (default from config)")
	sourcesCmd.AddCommand(sourcesCheckCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// sourceCheck is the offline readiness of one source.
type sourceCheck struct {
	Site        string
	Extractor   model.ExtractorKind
	Strategy    string
	Instruments int
	Problem     string
}

func checkSources(sources []model.Source, reg *extract.Registry, instrumentsPrefix string) []sourceCheck {
	out := make([]sourceCheck, 0, len(sources))
	for _, src := range sources {
		c := sourceCheck{Site: src.Site, Extractor: src.Extractor}
		if s, ok := reg.Lookup(src.Site); ok {
			c.Strategy = s.Locator
		}
		if err := reg.Validate(src); err != nil {
			c.Problem = err.Error()
			out = append(out, c)
			continue
		}
		insts, _, err := catalog.LoadInstruments(catalog.InstrumentsPath(instrumentsPrefix, src.Site))
		if err != nil {
			c.Problem = err.Error()
		}
		c.Instruments = len(insts)
		out = append(out, c)
	}
	return out
}

func formatSourceChecks(out io.Writer, checks []sourceCheck) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SITE\tEXTRACTOR\tLOCATOR\tINSTRUMENTS\tSTATUS")
	_, _ = fmt.Fprintln(w, "----\t---------\t-------\t-----------\t------")
	for _, c := range checks {
		status := "ok"
		if c.Problem != "" {
			status = c.Problem
		}
		locator := c.Strategy
		if len(locator) > 40 {
			locator = locator[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.Site, c.Extractor, locator, c.Instruments, status)
	}
	_ = w.Flush()
}
