package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/example/trade-compliance/internal/capture"
	"github.com/example/trade-compliance/internal/config"
	"github.com/example/trade-compliance/internal/dispatch"
	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/example/trade-compliance/internal/entitylock"
	"github.com/example/trade-compliance/internal/infrastructure/blob"
	"github.com/example/trade-compliance/internal/infrastructure/kafka"
	"github.com/example/trade-compliance/internal/infrastructure/ledger"
	"github.com/example/trade-compliance/internal/orchestrator"
	"github.com/example/trade-compliance/internal/reaction"
	"github.com/example/trade-compliance/internal/registry"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Operate the trade-compliance dispatch pipeline",
	}
	root.PersistentFlags().String("config", "pipeline.yaml", "path to pipeline config")

	root.AddCommand(appendCmd(), triggerCmd(), unprocessedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func appendCmd() *cobra.Command {
	var bucket, key, version string
	cmd := &cobra.Command{
		Use:   "append <entity-type> <entity-id>",
		Short: "Append an unprocessed snapshot to the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, db, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := led.Append(cmd.Context(), args[0], args[1], snapshot.KindEntity,
				snapshot.Pointer{Bucket: bucket, Key: key, Version: version})
			if err != nil {
				return err
			}
			fmt.Printf("appended snapshot %s for %s\n", snap.ID, snap.EntityKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "payload bucket")
	cmd.Flags().StringVar(&key, "key", "", "payload key")
	cmd.Flags().StringVar(&version, "version", "", "payload version")
	cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("version")
	return cmd
}

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <entity-type> <entity-id>",
		Short: "Run one dispatch cycle for an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			led, db, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			defer producer.Close()

			orch, err := buildOrchestrator(cmd.Context(), led, db, dispatch.NewKafkaDispatcher(producer))
			if err != nil {
				return err
			}
			if err := orch.Run(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("dispatch cycle complete for %s\n", snapshot.EntityKey(args[0], args[1]))
			return nil
		},
	}
}

func unprocessedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unprocessed <entity-type> <entity-id>",
		Short: "List unprocessed snapshots for an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, db, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			total := 0
			for _, kind := range []snapshot.Kind{snapshot.KindEntity, snapshot.KindRule} {
				snaps, err := led.Unprocessed(cmd.Context(), args[0], args[1], kind)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Printf("%s  %s  %-6s  s3://%s/%s@%s\n",
						s.ID, s.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"), s.Kind,
						s.Pointer.Bucket, s.Pointer.Key, s.Pointer.Version)
				}
				total += len(snaps)
			}
			fmt.Printf("%d unprocessed\n", total)
			return nil
		},
	}
}

// buildOrchestrator wires the standard registries behind a kafka dispatcher.
// Compare runs on the workers; locally only Accept filtering happens.
func buildOrchestrator(ctx context.Context, led ledger.Ledger, db *sql.DB, d dispatch.Dispatcher) (*orchestrator.Orchestrator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	blobStore := blob.NewS3Store(s3.NewFromConfig(awsCfg))

	engine := reaction.RuleEngineFunc(func(ctx context.Context, entityType, entityID string, payload []byte) error {
		log.Printf("[Rules] Evaluating %s-%s (%d bytes)", entityType, entityID, len(payload))
		return nil
	})

	reg := registry.New()
	ruleReg := registry.NewRuleRegistry()

	locks := entitylock.NewKeyedMutex()
	orch := orchestrator.New(led, locks, d, reg, ruleReg)
	captureSvc := capture.NewService(led, orch)

	cascade, err := reaction.NewCascadeValidation(
		reaction.NewPostgresDependentFinder(db),
		capture.NewRuleRevalidator(led, captureSvc),
	)
	if err != nil {
		return nil, err
	}

	for _, r := range []any{reaction.NewRuleReevaluation(blobStore, engine), cascade} {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	if err := ruleReg.Register(reaction.NewRuleReevaluation(blobStore, engine)); err != nil {
		return nil, err
	}

	return orch, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func openLedger(cmd *cobra.Command) (*ledger.PostgresLedger, *sql.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := ledger.ConnectPostgres(cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewPostgresLedger(db), db, nil
}
