package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/topic-weaver/internal/crawler"
	"github.com/alvmarrod/topic-weaver/internal/export"
	"github.com/alvmarrod/topic-weaver/internal/graph"
	"github.com/alvmarrod/topic-weaver/internal/metrics"
)

var (
	RankBy    string
	RankDepth int
	RankLimit int
)

func newRankCmd() *cobra.Command {
	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank stored topics by a metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			by, err := metrics.ParseMetric(RankBy)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, table, _, err := loadSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			records := table.Records
			if RankDepth >= 0 {
				records = table.AtDepth(RankDepth)
			}
			ranked := metrics.Rank(records, by)
			if RankLimit > 0 && len(ranked) > RankLimit {
				ranked = ranked[:RankLimit]
			}
			renderRecords(cmd.OutOrStdout(), ranked)
			return nil
		},
	}

	rankCmd.Flags().StringVarP(&RankBy, "by", "b", string(metrics.ByPageRank), "Metric: pagerank, in_degree, out_degree, degree, degree_centrality or betweenness")
	rankCmd.Flags().IntVarP(&RankDepth, "depth", "d", -1, "Only rank topics at this crawl depth (<0 means all)")
	rankCmd.Flags().IntVarP(&RankLimit, "limit", "n", 20, "Number of topics to show (<=0 means all)")

	return rankCmd
}

func newTopicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topic <title>",
		Short: "Show one topic with its metrics and neighbours",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, table, _, err := loadSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			title := crawler.NormalizeTitle(strings.Join(args, " "))
			topic, ok := g.Node(title)
			if !ok {
				return fmt.Errorf("topic %q is not in the graph", title)
			}
			r, _ := table.Lookup(title)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", topic.Title, topic.URL)
			if topic.Summary != "" {
				fmt.Fprintf(out, "%s\n\n", topic.Summary)
			}

			t := tablewriter.NewWriter(out)
			t.SetHeader([]string{"Attribute", "Value"})
			t.SetAlignment(tablewriter.ALIGN_LEFT)
			t.AppendBulk([][]string{
				{"Depth", fmt.Sprint(topic.Depth)},
				{"Word count", fmt.Sprint(topic.WordCount)},
				{"Categories", strings.Join(topic.Categories, ", ")},
				{"Sections", strings.Join(topic.Sections, ", ")},
				{"Degree", fmt.Sprint(r.Degree)},
				{"In-degree", fmt.Sprint(r.InDegree)},
				{"Out-degree", fmt.Sprint(r.OutDegree)},
				{"Degree centrality", fmt.Sprintf("%.4f", r.DegreeCentrality)},
				{"PageRank", fmt.Sprintf("%.6f", r.PageRank)},
				{"Betweenness", fmt.Sprintf("%.4f", r.Betweenness)},
			})
			t.Render()

			fmt.Fprintf(out, "\nLinked from (%d): %s\n", r.InDegree, strings.Join(g.Neighbors(title, graph.In), ", "))
			fmt.Fprintf(out, "Links to (%d): %s\n", r.OutDegree, strings.Join(g.Neighbors(title, graph.Out), ", "))
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the stored graph",
		Long:  "Prints graph size, density, the most linked topic, and the depth and in-degree distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, table, run, err := loadSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			s := metrics.Summarize(g, table)

			out := cmd.OutOrStdout()
			t := tablewriter.NewWriter(out)
			t.SetHeader([]string{"Graph", "Value"})
			t.SetAlignment(tablewriter.ALIGN_LEFT)
			t.AppendBulk([][]string{
				{"Run", run.ID},
				{"Crawled", run.FinishedAt.Format("2006-01-02 15:04:05")},
				{"Seeds", fmt.Sprint(len(run.Seeds))},
				{"Topics", fmt.Sprint(s.Nodes)},
				{"Links", fmt.Sprint(s.Edges)},
				{"Avg connections per topic", fmt.Sprintf("%.2f", s.AvgDegree)},
				{"Density", fmt.Sprintf("%.5f", s.Density)},
				{"Most linked topic", s.MostConnected},
				{"PageRank converged", fmt.Sprintf("%v (%d iterations)", table.Converged, table.Iterations)},
			})
			t.Render()

			fmt.Fprintln(out, "\nDepth distribution:")
			renderDistribution(out, "Depth", s.DepthDistribution)
			fmt.Fprintln(out, "\nIn-degree distribution:")
			renderDistribution(out, "In-degree", s.InDegreeDistribution)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the metrics table and dataset from the stored graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, table, _, err := loadSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := export.WriteCSVFile(cfg.MetricsPath, table); err != nil {
				return err
			}
			return export.WriteJSONFile(cfg.DatasetPath, g, table)
		},
	}
}
