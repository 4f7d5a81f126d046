package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sdryden/phiwatch/discovery"
	"github.com/sdryden/phiwatch/internal/config"
	"github.com/sdryden/phiwatch/internal/telemetry"
	"github.com/sdryden/phiwatch/pkg/monitor"
	"github.com/sdryden/phiwatch/pkg/node"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	telemetry.SetBuildInfo(version, gitSHA)

	monCfg := cfg.MonitorConfig()
	monCfg.Logger = log.Named("monitor")
	mon, err := monitor.New(monCfg)
	if err != nil {
		log.Fatal("build monitor", zap.Error(err))
	}
	mon.OnDead(func(id monitor.PeerID) {
		log.Warn("peer presumed dead", zap.String("peer", string(id)))
	})

	advertise := cfg.AdvertiseAddr
	if advertise == "" {
		advertise = cfg.ListenAddr
	}
	n := node.New(cfg.NodeID, advertise, mon, cfg.HeartbeatInterval.Std(), log.Named("node"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli, err := discovery.NewClient(cfg.EtcdEndpoints)
	if err != nil {
		log.Fatal("etcd client", zap.Error(err))
	}
	defer cli.Close()

	// Bootstrap the current membership, then register ourselves and follow
	// joins/leaves.
	peers, err := discovery.GetPeers(ctx, cli)
	if err != nil {
		log.Fatal("bootstrap peers", zap.Error(err))
	}
	for id, addr := range peers {
		n.AddPeer(id, addr)
	}

	leaseID, cancelKeepAlive, err := discovery.RegisterNode(ctx, cli, cfg.NodeID, n.Addr(), cfg.RegistrationTTL)
	if err != nil {
		log.Fatal("register node", zap.Error(err))
	}
	defer func() {
		cancelKeepAlive()
		revokeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = cli.Revoke(revokeCtx, leaseID)
	}()

	discovery.WatchPeers(ctx, cli, log.Named("discovery"), func(ev discovery.PeerEvent) {
		if ev.Left {
			n.RemovePeer(ev.ID)
			return
		}
		n.AddPeer(ev.ID, ev.Addr)
	})

	go mon.Run(ctx)
	go n.Broadcast(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", n.Healthz)
	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
	mux.Handle("/peers", telemetry.Instrument("peers", http.HandlerFunc(n.Peers)))
	mux.Handle("/heartbeat/", telemetry.Instrument("heartbeat", http.HandlerFunc(n.Heartbeat)))
	mux.Handle("/metrics", telemetry.MetricsHandler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("phiwatch node listening",
		zap.String("id", cfg.NodeID),
		zap.String("addr", cfg.ListenAddr),
		zap.String("advertise", n.Addr()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("serve", zap.Error(err))
	}
	log.Info("phiwatch node stopped")
}
