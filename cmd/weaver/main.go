package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/topic-weaver/internal/config"
	"github.com/alvmarrod/topic-weaver/internal/graph"
	"github.com/alvmarrod/topic-weaver/internal/metrics"
	"github.com/alvmarrod/topic-weaver/internal/storage"
)

var (
	ConfigFile string
	Quiet      bool
	Verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "weaver",
		Short:         "Engineering topic graph builder",
		Long:          "Crawls Wikipedia from engineering seed topics, builds a link graph and ranks topics by importance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			initLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&Quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Activate verbose log output")

	rootCmd.AddCommand(
		newCrawlCmd(),
		newRankCmd(),
		newTopicCmd(),
		newInspectCmd(),
		newExportCmd(),
	)
	return rootCmd
}

func initLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level := logrus.InfoLevel
	if Verbose {
		level = logrus.DebugLevel
	}
	if Quiet {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Configuration loaded: %d seeds, depth=%d, max_nodes=%d, workers=%d",
		len(cfg.Seeds), cfg.MaxDepth, cfg.MaxNodes, cfg.ConcurrentWorkers)
	return cfg, nil
}

// loadSnapshot reads the stored graph and recomputes its metrics
func loadSnapshot(ctx context.Context, cfg *config.Config) (*graph.Graph, *metrics.Table, *storage.Run, error) {
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	defer store.Close()

	g, run, err := store.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading %s: %w (run `weaver crawl` first)", cfg.DBPath, err)
	}
	table, err := metrics.Compute(g, cfg.MetricsOptions())
	if err != nil {
		return nil, nil, nil, err
	}
	return g, table, run, nil
}

func renderRecords(w io.Writer, records []metrics.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Topic", "Depth", "In", "Out", "PageRank", "Betweenness"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, r := range records {
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Title,
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.InDegree),
			strconv.Itoa(r.OutDegree),
			fmt.Sprintf("%.6f", r.PageRank),
			fmt.Sprintf("%.4f", r.Betweenness),
		})
	}
	table.Render()
}

func renderDistribution(w io.Writer, label string, dist map[int]int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{label, "Topics"})
	for _, k := range metrics.SortedKeys(dist) {
		table.Append([]string{strconv.Itoa(k), strconv.Itoa(dist[k])})
	}
	table.Render()
}
