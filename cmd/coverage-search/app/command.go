package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/storage"
)

// NewCommand creates the coverage-search root command.
func NewCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "coverage-search",
		Short: "Search-based test generation driven by coverage objectives",
		Long: `coverage-search evolves test cases for a benchmark subject until every
coverage objective is met or the configured budget is spent.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newRunsCommand(), newShowCommand())
	return root
}

func newRunCommand() *cobra.Command {
	o := NewOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a search and print the resulting archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.Complete(cmd.Flags())
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.ApplyLogging(); err != nil {
				return err
			}
			ctx := klog.NewContext(cmd.Context(), klog.Background().WithName("coverage-search"))
			_, err := Run(ctx, o, cmd.OutOrStdout())
			return err
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

func newRunsCommand() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs held by a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.Open(cmd.Context(), location)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close(store) }()
			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	addStoreFlag(cmd.Flags(), &location)
	return cmd
}

func newShowCommand() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print the archive of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cmd.Context(), location)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close(store) }()
			snapshot, ok, err := store.GetArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("run %q not found in %s", args[0], location)
			}
			summary := snapshot.Summary()
			fmt.Fprintf(cmd.OutOrStdout(), "run %s (%s, %s on %s) created %s: covered %d of %d objectives\n",
				summary.ID, summary.Algorithm, summary.ObjectiveManager, summary.Subject,
				humanize.Time(summary.CreatedAt), summary.Covered, summary.Objectives)
			return printEntries(cmd.OutOrStdout(), snapshot)
		},
	}
	addStoreFlag(cmd.Flags(), &location)
	return cmd
}

// storeFlagUsage is shared by every command so run, runs and show agree
// on where archives live.
const storeFlagUsage = "Archive store as kind[:path], e.g. sqlite:runs.db. " +
	"The memory store only lives as long as the process; sqlite needs a binary built with -tags sqlite."

func addStoreFlag(fs *pflag.FlagSet, location *string) {
	fs.StringVar(location, "store", storage.DefaultLocation, storeFlagUsage)
}

func printRuns(out io.Writer, runs []storage.RunSummary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tALGORITHM\tMANAGER\tSUBJECT\tCOVERED\tARCHIVE\tAGE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n", r.ID, r.Algorithm, r.ObjectiveManager, r.Subject,
			r.Covered, r.Objectives, r.ArchiveSize, humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}
