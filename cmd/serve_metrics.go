package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/metrics"
)

var serveMetricsAddr string

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics over HTTP until interrupted",
	RunE:  runServeMetrics,
}

func init() {
	serveMetricsCmd.Flags().StringVar(&serveMetricsAddr, "addr", "", "address to listen on (default from config metrics_addr)")
	rootCmd.AddCommand(serveMetricsCmd)
}

func runServeMetrics(cmd *cobra.Command, args []string) error {
	addr := serveMetricsAddr
	if addr == "" {
		addr = Cfg.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("serving metrics on %s/metrics\n", addr)
	return metrics.Serve(ctx, addr)
}
