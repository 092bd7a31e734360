// Command priority-report prints the curation priority listing for the
// configured cluster source, or stores it in the report store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ecodcluster/internal/blob"
	"ecodcluster/internal/config"
	"ecodcluster/internal/core"
	"ecodcluster/internal/logging"
	"ecodcluster/pkg/domain"
)

const formatTable = "table"

var exitFunc = os.Exit

type options struct {
	category          string
	limit             int
	includeSingletons bool
	clusterSetID      int64
	format            string
	export            bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "priority-report: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	goFlags := flag.NewFlagSet("priority-report", flag.ContinueOnError)
	cfgFlags := config.RegisterFlags(goFlags)
	opts := options{}

	cmd := &cobra.Command{
		Use:   "priority-report",
		Short: "List ECOD clusters in curation priority order",
		Long: `priority-report runs the priority listing against the configured cluster
source and prints it as an aligned table, JSON or CSV. With --export the
listing is stored in the report store and the report key is printed instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cfgFlags.Resolve(nil)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.AddGoFlagSet(goFlags)
	f.StringVar(&opts.category, "category", string(domain.CategoryAll), "category filter: all|unclassified|flagged|reclassification|diverse")
	f.IntVar(&opts.limit, "limit", domain.DefaultPriorityLimit, "maximum clusters to list")
	f.BoolVar(&opts.includeSingletons, "include-singletons", false, "include clusters of size 1")
	f.Int64Var(&opts.clusterSetID, "cluster-set", 0, "restrict to one cluster set (0 = all)")
	f.StringVarP(&opts.format, "format", "o", formatTable, "output format: table|json|csv")
	f.BoolVar(&opts.export, "export", false, "store the report in the blob store and print its key")
	return cmd
}

func (o options) query() domain.PriorityQuery {
	return domain.PriorityQuery{
		Limit:             o.limit,
		Category:          domain.Category(strings.ToLower(strings.TrimSpace(o.category))),
		ExcludeSingletons: !o.includeSingletons,
		ClusterSetID:      o.clusterSetID,
	}
}

func run(ctx context.Context, cfg config.Config, opts options, stdout io.Writer) error {
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	format := strings.ToLower(strings.TrimSpace(opts.format))
	var reportFormat core.ReportFormat
	if format != formatTable {
		if reportFormat, err = core.ParseReportFormat(format); err != nil {
			return err
		}
	}

	source, err := core.OpenClusterSource(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	svc := core.NewService(source, core.WithLogger(log))
	defer func() { _ = svc.Close() }()

	if opts.export {
		if reportFormat == "" {
			reportFormat = core.ReportJSON
		}
		store, err := blob.Open(ctx, cfg.Blob, cfg.Server.PublicURL)
		if err != nil {
			return err
		}
		info, err := core.NewReportService(svc, store).ExportPriority(ctx, opts.query(), reportFormat)
		if err != nil {
			return err
		}
		log.Info("report exported", "key", info.Key, "bytes", info.Size)
		_, err = fmt.Fprintln(stdout, info.Key)
		return err
	}

	q := opts.query()
	page, err := svc.ListPriorityClusters(ctx, q)
	if err != nil {
		return err
	}
	if reportFormat == "" {
		return writeTable(stdout, page)
	}
	return core.WritePriority(stdout, reportFormat, page, q, svc.Now())
}

func writeTable(w io.Writer, page domain.PriorityPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCLUSTER\tSIZE\tCATEGORY\tREPRESENTATIVE\tTAX\tSTRUCT\tT-GROUP")
	for _, c := range page.Clusters {
		structural := "-"
		if c.StructuralDiversity != nil {
			structural = fmt.Sprintf("%.2f", *c.StructuralDiversity)
		}
		tgroup := c.TGroup
		if tgroup == "" {
			tgroup = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%.2f\t%s\t%s\n",
			c.ID, c.Name, c.Size, c.Category, c.RepresentativeDomain, c.TaxonomicDiversity, structural, tgroup)
	}
	t := page.Totals
	_, _ = fmt.Fprintf(tw, "\ntotals: unclassified=%d flagged=%d reclassification=%d diverse=%d all=%d\n",
		t.Unclassified, t.Flagged, t.Reclassification, t.Diverse, t.All)
	return tw.Flush()
}
