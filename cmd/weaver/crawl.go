package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/topic-weaver/internal/config"
	"github.com/alvmarrod/topic-weaver/internal/crawler"
	"github.com/alvmarrod/topic-weaver/internal/export"
	"github.com/alvmarrod/topic-weaver/internal/metrics"
	"github.com/alvmarrod/topic-weaver/internal/stats"
	"github.com/alvmarrod/topic-weaver/internal/storage"
	"github.com/alvmarrod/topic-weaver/internal/wiki"
)

var ProgressInterval = 10 * time.Second

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl Wikipedia and build the topic graph",
		Long:  "Crawls from the configured seeds, computes metrics and writes the snapshot, metrics table, dataset, manifest and crawl statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCrawl(ctx, cmd.OutOrStdout(), cfg)
		},
	}
}

func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config) error {
	client, err := wiki.NewClient(cfg.WikiOptions())
	if err != nil {
		return err
	}

	tracker := stats.NewTracker()
	c := crawler.NewCrawler(client, cfg.Filter(), cfg.CrawlerOptions(), tracker)

	logrus.Infof("Starting crawl: %d seeds, max depth %d, max %d topics", len(cfg.Seeds), cfg.MaxDepth, cfg.MaxNodes)

	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	result, err := c.Crawl(ctx, cfg.Seeds)
	close(stopProgress)

	if werr := tracker.WriteToFile(cfg.StatsPath); werr != nil {
		logrus.Errorf("Failed to write crawl stats: %v", werr)
	} else {
		logrus.Infof("Crawl stats written to %s", cfg.StatsPath)
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	table, err := metrics.Compute(result.Graph, cfg.MetricsOptions())
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	snap := tracker.GetSnapshot()
	if _, err := store.Save(ctx, result.Graph, storage.Run{
		StartedAt:  snap.StartTime,
		FinishedAt: snap.EndTime,
		Seeds:      result.Manifest.Seeds,
		MaxDepth:   cfg.MaxDepth,
		Reason:     snap.TerminationReason,
	}); err != nil {
		return err
	}

	if err := export.WriteCSVFile(cfg.MetricsPath, table); err != nil {
		return err
	}
	if err := export.WriteJSONFile(cfg.DatasetPath, result.Graph, table); err != nil {
		return err
	}
	if err := result.Manifest.WriteFile(cfg.ManifestPath); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nTop 10 topics by in-degree:")
	renderRecords(out, table.Top(10, metrics.ByInDegree))
	fmt.Fprintln(out, "\nTop 10 topics by PageRank:")
	renderRecords(out, table.Top(10, metrics.ByPageRank))
	return nil
}
