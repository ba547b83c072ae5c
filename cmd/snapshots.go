package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/query"
	"github.com/sells-group/quote-cli/internal/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect published snapshots",
}

// -- snapshots list --

var snapshotsListCmd = &cobra.Command{
	Use:   "list <site>",
	Short: "List a site's observation timestamps, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := snapshotService()
		if err != nil {
			return err
		}
		obs, err := svc.Observations(args[0])
		if err != nil {
			return eris.Wrap(err, "snapshots list")
		}
		if len(obs) == 0 {
			fmt.Fprintln(os.Stderr, "No snapshots found.")
			return nil
		}
		for _, o := range obs {
			fmt.Fprintln(os.Stdout, o)
		}
		return nil
	},
}

// -- snapshots show --

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <site> <obsdate|latest> [isin]",
	Short: "Print a snapshot, optionally restricted to one ISIN",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := snapshotService()
		if err != nil {
			return err
		}
		var isin string
		if len(args) == 3 {
			isin = args[2]
		}
		rows, err := svc.Rows(args[0], args[1], isin)
		if err != nil {
			return eris.Wrap(err, "snapshots show")
		}
		for _, row := range rows {
			fmt.Fprintln(os.Stdout, row)
		}
		return nil
	},
}

func init() {
	snapshotsCmd.PersistentFlags().String("output-prefix", "", "snapshot output prefix (default from config)")
	snapshotsCmd.PersistentFlags().String("format", "", "snapshot format: csv or xlsx (default from config)")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func snapshotService() (*query.Service, error) {
	prefix, _ := snapshotsCmd.PersistentFlags().GetString("output-prefix")
	if prefix == "" {
		prefix = cfg.Output.Prefix
	}
	f, _ := snapshotsCmd.PersistentFlags().GetString("format")
	if f == "" {
		f = cfg.Output.Format
	}
	format, err := snapshot.ParseFormat(f)
	if err != nil {
		return nil, err
	}
	return query.NewService(prefix, format), nil
}
