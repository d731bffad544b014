package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rackd/internal/bus"
	"rackd/internal/config"
	"rackd/internal/httpapi"
	"rackd/internal/metrics"
	"rackd/internal/node"
	"rackd/internal/secret"
	storepg "rackd/internal/store/postgres"
	"rackd/internal/telemetry"
)

func main() {
	if err := run("rackd"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
			}
		}
	}()

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return fmt.Errorf("load node config: %w", err)
	}

	pool, err := storepg.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := storepg.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	orm, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}

	var sealer *secret.Sealer
	if cfg.AgeSecretKey != "" || cfg.AgePublicKey != "" {
		sealer, err = secret.NewSealerFromEnv()
		if err != nil {
			return fmt.Errorf("init sealer: %w", err)
		}
	} else {
		logger.Printf("WARN no AGE_SECRET_KEY/AGE_PUBLIC_KEY set, credential fields are stored unsealed")
	}

	store := storepg.New(orm, pool, sealer)

	natsBus, err := bus.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer natsBus.Close()

	outbox := storepg.NewOutboxQueue(store)

	outboxInterval, err := time.ParseDuration(cfg.OutboxPollInterval)
	if err != nil {
		return fmt.Errorf("parse OUTBOX_POLL_INTERVAL: %w", err)
	}
	drainer := storepg.NewDrainer(orm, natsBus, cfg.OutboxBatchSize, logger)
	go drainer.Run(ctx, outboxInterval)

	matcher := &node.NoopTagMatcher{}
	catalogue := &node.NoopPolicyCatalogue{}

	resolver := node.NewResolver(store, nodeCfg)
	binder := node.NewBinder(matcher, catalogue, outbox)
	processor := node.NewProcessor(store, binder, nodeCfg)
	nodeLogger := node.NewLogger(store, logger)

	reconcileInterval, err := time.ParseDuration(cfg.PowerReconcileEvery)
	if err != nil {
		return fmt.Errorf("parse POWER_RECONCILE_INTERVAL: %w", err)
	}
	reconciler := node.NewPowerReconciler(store, &node.NoopManagementChannel{}, outbox)
	go runPowerReconciliation(ctx, store, reconciler, reconcileInterval, logger)

	api, err := httpapi.New(store, outbox, resolver, processor, binder, nodeLogger, logger)
	if err != nil {
		return fmt.Errorf("init http api: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/v1/", api.Routes())

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

// runPowerReconciliation walks every node on an interval, reconciling
// desired against last-known power state through the management
// channel. A real deployment would scope this to nodes due for a
// refresh rather than the full population; left as a fixed interval
// sweep here since the core exposes no such query.
func runPowerReconciliation(ctx context.Context, store node.Store, reconciler *node.PowerReconciler, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nodes, err := store.Search(ctx, "", nil)
			if err != nil {
				logger.Printf("ERROR power reconciliation: list nodes: %v", err)
				continue
			}
			for _, n := range nodes {
				desired, priorKnown := n.DesiredPowerState, n.LastKnownPowerState
				if err := reconciler.UpdatePowerState(ctx, n); err != nil {
					metrics.PowerReconcileTotal.WithLabelValues("error").Inc()
					logger.Printf("ERROR power reconciliation: node %s: %v", n.ID, err)
					continue
				}
				if desired != "" && desired != node.PowerUnknown && priorKnown != desired {
					metrics.PowerReconcileTotal.WithLabelValues("mismatch").Inc()
				} else {
					metrics.PowerReconcileTotal.WithLabelValues("match").Inc()
				}
			}
		}
	}
}
