// Command tempest is the single binary for both tempest roles. Invoked
// with no arguments it runs as the coordinator; invoked with one
// argument (the coordinator's worker-endpoint URL) it runs as a worker,
// per spec.md §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tempestgen/tempest/internal/config"
	"github.com/tempestgen/tempest/internal/coordinator"
	"github.com/tempestgen/tempest/internal/worker"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config.yaml")
	httpAddr := flag.String("http", "", "override the coordinator's control API address (host:port)")
	listenAddr := flag.String("listen", "", "override the coordinator's worker-session listen address (host:port)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("tempest: loading config: %v", err)
	}

	if *httpAddr != "" {
		host, port, err := splitHostPort(*httpAddr)
		if err != nil {
			log.Fatalf("tempest: -http %q: %v", *httpAddr, err)
		}
		cfg.Coordinator.ControlHost, cfg.Coordinator.ControlPort = host, port
	}
	if *listenAddr != "" {
		host, port, err := splitHostPort(*listenAddr)
		if err != nil {
			log.Fatalf("tempest: -listen %q: %v", *listenAddr, err)
		}
		cfg.Coordinator.WorkerHost, cfg.Coordinator.WorkerPort = host, port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch flag.NArg() {
	case 0:
		runCoordinator(ctx, cfg)
	case 1:
		runWorker(ctx, cfg, flag.Arg(0))
	default:
		fmt.Fprintln(os.Stderr, "usage: tempest [coordinator-url]")
		os.Exit(2)
	}
}

func runCoordinator(ctx context.Context, cfg *config.Config) {
	aggregator := coordinator.NewAggregator()
	hub := coordinator.NewHub(aggregator, cfg.Coordinator.HeartbeatPeriod)
	defer hub.Stop()

	mux := http.NewServeMux()
	api := coordinator.NewAPI(hub, aggregator, frontendHandler())
	api.Routes(mux)

	go func() {
		if err := coordinator.ListenAndServeWorkers(cfg.Coordinator.WorkerHost, cfg.Coordinator.WorkerPort, hub); err != nil {
			log.Fatalf("tempest: worker endpoint: %v", err)
		}
	}()

	go func() {
		if err := coordinator.ListenAndServeControl(cfg.Coordinator.ControlHost, cfg.Coordinator.ControlPort, mux); err != nil {
			log.Fatalf("tempest: control API: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("tempest: coordinator shutting down")
}

func runWorker(ctx context.Context, cfg *config.Config, coordinatorURL string) {
	stats := worker.NewLatencyStats()
	dispatcher := worker.NewCommandDispatcher(stats, cfg.Worker.HTTPTimeout)
	ticker := worker.NewSnapshotTicker(stats, cfg.Worker.SnapshotPeriod)
	defer ticker.Stop()

	client := worker.NewSessionClient(coordinatorURL, dispatcher, ticker)
	client.RunForever(ctx)
	log.Print("tempest: worker shutting down")
}

// frontendHandler returns the embedded static operator page when the
// binary is built with the "embed" tag, else nil (the "/" route 404s).
func frontendHandler() http.Handler {
	return frontendHandlerImpl()
}

// splitHostPort parses a "host:port" flag value into its parts, per the
// -http/-listen overrides above.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
