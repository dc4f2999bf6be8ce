package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"xchain-swap/pkg/relay"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Relay step responses over NATS until interrupted",
	Long: `Run the relay: responses arriving on the response subject are applied to
their swaps and Prometheus metrics are served on metrics_addr.

Each response is applied to the latest state file under a file lock and saved
at once, so swap, pay and cancel commands can run while the daemon is up.

With daemon.serve_chain set, step requests addressed to that chain are
answered by the built-in executor. With daemon.auto_advance the next step of a
swap is dispatched as soon as the previous one is confirmed.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if a.nats == nil {
		return errors.New("the daemon needs nats.url to be configured")
	}

	r := relay.New(a.engine, a.overlay, a.storage, a.nats, relay.Config{
		AutoAdvance:     a.cfg.Daemon.AutoAdvance,
		LegacyResponses: a.cfg.Daemon.LegacyResponses,
		ServeChain:      a.cfg.Daemon.ServeChain,
		RefreshInterval: a.cfg.Daemon.RefreshInterval,
	}, a.logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		return err
	}

	var srv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.WithError(err).Error("metrics server failed")
			}
		}()
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                 XCHAIN-SWAP RELAY DAEMON")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Swaps loaded:   %d\n", a.engine.Count())
	fmt.Printf("  In flight:      %d\n", len(a.engine.Pending()))
	fmt.Printf("  Responses on:   %s\n", a.cfg.NATS.ResponseSubject)
	if a.cfg.Daemon.ServeChain != "" {
		fmt.Printf("  Serving:        %s.%s\n", a.cfg.NATS.RequestSubject, a.cfg.Daemon.ServeChain)
	}
	if srv != nil {
		fmt.Printf("  Metrics:        http://%s/metrics\n", a.cfg.MetricsAddr)
	}
	if a.cfg.Daemon.AutoAdvance {
		color.Cyan("\n• Confirmed steps advance automatically")
	}
	color.Yellow("• Press Ctrl+C to stop gracefully\n")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	color.Yellow("\nReceived shutdown signal. Stopping relay gracefully...")

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("metrics server shutdown")
		}
	}

	// every response was saved as it was applied; Stop only unsubscribes
	if err := r.Stop(); err != nil {
		return err
	}

	color.Green("\n✓ Daemon stopped, state is in %s\n", a.storage.Path())
	return nil
}
