package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/example/trade-compliance/internal/capture"
	"github.com/example/trade-compliance/internal/config"
	"github.com/example/trade-compliance/internal/dispatch"
	"github.com/example/trade-compliance/internal/entitylock"
	"github.com/example/trade-compliance/internal/infrastructure/blob"
	"github.com/example/trade-compliance/internal/infrastructure/kafka"
	"github.com/example/trade-compliance/internal/infrastructure/ledger"
	"github.com/example/trade-compliance/internal/orchestrator"
	"github.com/example/trade-compliance/internal/reaction"
	"github.com/example/trade-compliance/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(getEnv("CONFIG_PATH", "pipeline.yaml"))
	if err != nil {
		log.Fatalf("[Worker] Failed to load config: %v", err)
	}

	log.Println("[Worker] ========================================")
	log.Println("[Worker] Trade Compliance - Dispatch Worker")
	log.Println("[Worker] ========================================")
	log.Printf("[Worker] Kafka: %v", cfg.Kafka.Brokers)
	log.Printf("[Worker] Topic: %s", cfg.Kafka.Topic)
	log.Printf("[Worker] Group: %s", cfg.Kafka.Group)

	// Snapshot ledger on PostgreSQL
	db, err := ledger.ConnectPostgres(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("[Worker] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Worker] Connected to PostgreSQL (Snapshot Ledger)")

	snapLedger := ledger.NewPostgresLedger(db)

	// Blob store on S3
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("[Worker] Failed to load AWS config: %v", err)
	}
	blobStore := blob.NewS3Store(s3.NewFromConfig(awsCfg))

	// Local worker pool for cascade-triggered cycles
	pool := dispatch.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize)
	defer pool.Close()

	reg := registry.New()
	ruleReg := registry.NewRuleRegistry()

	locks := entitylock.NewKeyedMutex()
	orch := orchestrator.New(snapLedger, locks, pool, reg, ruleReg)
	captureSvc := capture.NewService(snapLedger, orch)

	engine := noopRuleEngine{}

	cascade, err := reaction.NewCascadeValidation(
		reaction.NewPostgresDependentFinder(db),
		capture.NewRuleRevalidator(snapLedger, captureSvc),
	)
	if err != nil {
		log.Fatalf("[Worker] Failed to build cascade reaction: %v", err)
	}

	for _, r := range []any{reaction.NewRuleReevaluation(blobStore, engine), cascade} {
		if err := reg.Register(r); err != nil {
			log.Fatalf("[Worker] Failed to register reaction: %v", err)
		}
	}
	if err := ruleReg.Register(reaction.NewRuleReevaluation(blobStore, engine)); err != nil {
		log.Fatalf("[Worker] Failed to register rule reaction: %v", err)
	}

	// Metrics endpoint
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(orchestrator.Metrics()...)
	promReg.MustRegister(dispatch.PoolMetrics()...)
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(getEnv("METRICS_ADDR", ":9090"), nil); err != nil {
			log.Printf("[Worker] Metrics server error: %v", err)
		}
	}()

	// Consume dispatched invocations
	worker := dispatch.NewWorker(reg, ruleReg)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group)
	defer consumer.Close()

	go func() {
		log.Println("[Worker] Starting dispatch consumer...")
		log.Printf("[Worker] Listening to topic: %s", cfg.Kafka.Topic)
		if err := consumer.Consume(ctx, worker.HandleMessage); err != nil {
			log.Printf("[Worker] Consumer error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Worker] Shutting down...")
	cancel()
}

// noopRuleEngine stands in for the rules service client until it is wired in.
// It logs each evaluation and reports success.
type noopRuleEngine struct{}

func (noopRuleEngine) Evaluate(ctx context.Context, entityType, entityID string, payload []byte) error {
	log.Printf("[Rules] Evaluating %s-%s (%d bytes)", entityType, entityID, len(payload))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
