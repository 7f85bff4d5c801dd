package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridiandb/hexad/pkg/adapter"
	"github.com/meridiandb/hexad/pkg/adapter/columnarstore"
	"github.com/meridiandb/hexad/pkg/adapter/documentstore"
	"github.com/meridiandb/hexad/pkg/adapter/graphstore"
	"github.com/meridiandb/hexad/pkg/adapter/objectstore"
	"github.com/meridiandb/hexad/pkg/adapter/postgresql"
	"github.com/meridiandb/hexad/pkg/adapter/searchindex"
	"github.com/meridiandb/hexad/pkg/adapter/timeseries"
	"github.com/meridiandb/hexad/pkg/adapter/vectorstore"
	"github.com/meridiandb/hexad/pkg/config"
	"github.com/meridiandb/hexad/pkg/consensus"
	"github.com/meridiandb/hexad/pkg/events"
	hexadlog "github.com/meridiandb/hexad/pkg/log"
	"github.com/meridiandb/hexad/pkg/metrics"
	"github.com/meridiandb/hexad/pkg/registry"
	"github.com/meridiandb/hexad/pkg/resolver"
	"github.com/meridiandb/hexad/pkg/transport"
	"github.com/meridiandb/hexad/pkg/wal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this node as a member of a Hexad federation cluster",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to node YAML config (required)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health HTTP listen address")
	_ = serveCmd.MarkFlagRequired("config")
}

func buildAdapterRegistry() *adapter.Registry {
	reg := adapter.NewRegistry()
	reg.Register(documentstore.Tag, documentstore.New())
	reg.Register(searchindex.Tag, searchindex.New())
	reg.Register(graphstore.Tag, graphstore.New())
	reg.Register(vectorstore.Tag, vectorstore.New())
	reg.Register(timeseries.Tag, timeseries.New())
	reg.Register(columnarstore.Tag, columnarstore.New())
	reg.Register(objectstore.Tag, objectstore.New())
	reg.Register(postgresql.Tag, postgresql.New("postgres"))
	return reg
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := wal.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	go logEvents(eventsCtx, broker)

	adapters := buildAdapterRegistry()
	machine := registry.NewMachine(adapters)
	machine.Events = broker

	directory := transport.NewDirectory(cfg.Node.PeerAddrs)
	httpClient := &http.Client{Timeout: cfg.ConsensusConfig().RPCTimeout}
	raftTransport := transport.NewHTTPTransport(directory, httpClient)

	node, err := consensus.New(cfg.Node.ID, cfg.Node.Peers, raftTransport, store, machine, cfg.ConsensusConfig())
	if err != nil {
		return fmt.Errorf("create raft node: %w", err)
	}
	node.Events = broker

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go node.Run(ctx)

	fed := resolver.New(adapters)
	if cfg.Resolver.StrictTrustThreshold > 0 {
		fed.StrictTrustThreshold = cfg.Resolver.StrictTrustThreshold
	}

	srv := transport.NewServer(node, cfg.Node.BindAddr, node, fed)
	go func() {
		if err := srv.Start(); err != nil {
			hexadlog.Error(fmt.Sprintf("raft transport server error: %v", err))
		}
	}()

	collector := metrics.NewCollector(
		func() metrics.RaftSnapshot {
			status := node.Status()
			return metrics.RaftSnapshot{
				IsLeader:     status.Role == consensus.Leader,
				Term:         status.Term,
				CommitIndex:  status.CommitIndex,
				AppliedIndex: status.LastApplied,
				LogLength:    status.LogLength,
			}
		},
		func() metrics.RegistrySnapshot {
			reg := node.Registry()
			byType := make(map[string]int)
			for _, b := range reg.ListStores() {
				byType[b.AdapterType]++
			}
			return metrics.RegistrySnapshot{StoresByAdapterType: byType, HexadsTotal: len(reg.Hexads)}
		},
	)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("wal", true, "open")
	metrics.RegisterComponent("transport", true, "listening")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/health", metrics.HealthHandler())
	metricsMux.Handle("/ready", metrics.ReadyHandler())
	metricsMux.Handle("/live", metrics.LivenessHandler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hexadlog.Error(fmt.Sprintf("metrics server error: %v", err))
		}
	}()

	go seedStores(ctx, node, cfg)

	hexadlog.Info(fmt.Sprintf("hexadnode %s serving on %s (metrics %s)", cfg.Node.ID, cfg.Node.BindAddr, metricsAddr))

	<-ctx.Done()
	hexadlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	node.Stop()
	return store.Close()
}

// logEvents drains the broker's firehose to the structured logger until ctx
// is cancelled, then unsubscribes so the broker doesn't keep broadcasting
// into a channel nobody drains.
func logEvents(ctx context.Context, broker *events.Broker) {
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for {
		select {
		case evt := <-sub:
			hexadlog.Info(fmt.Sprintf("[%s] %s", evt.Type, evt.Message))
		case <-ctx.Done():
			return
		}
	}
}

// seedStores proposes cfg.Stores once this node becomes leader, so a
// freshly bootstrapped single-node cluster doesn't need a separate
// bootstrap script. It gives up once the stores are proposed or ctx ends.
func seedStores(ctx context.Context, node *consensus.Node, cfg config.Config) {
	if len(cfg.Stores) == 0 {
		return
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if node.Status().Role != consensus.Leader {
				continue
			}
			for _, s := range cfg.Stores {
				cmd, err := registerStoreCommand(s)
				if err != nil {
					hexadlog.Error(fmt.Sprintf("encode seed store %s: %v", s.StoreID, err))
					continue
				}
				if res := node.Propose(ctx, cmd); res.Err != nil {
					hexadlog.Error(fmt.Sprintf("seed store %s: %v", s.StoreID, res.Err))
				}
			}
			return
		}
	}
}
