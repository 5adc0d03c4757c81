package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"trafficsense/adapters/ingest"
	"trafficsense/adapters/inventory"
	"trafficsense/adapters/plot"
	"trafficsense/adapters/postgres"
	"trafficsense/adapters/upload"
	"trafficsense/internal/anomaly"
	"trafficsense/internal/config"
	"trafficsense/internal/logging"
	"trafficsense/internal/pipeline"
	"trafficsense/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trafficsense",
		Short: "Traffic sensor analysis pipeline: imputation and anomaly detection",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSensorsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every configured sensor over the configured date range",
		Long: `Load raw sensor exports, discretize them onto the analysis grid,
impute small and big gaps, detect anomalous days and write the enriched
series to the configured outputs (plot, upload, database).

Configuration is read from environment variables, optionally loaded
from an env file first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnv(envFile)
			return runPipeline(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	return cmd
}

func newSensorsCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "Resolve and print the configured sensor pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnv(envFile)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := inventory.NewClient(cfg.SourceAuth, cfg.TargetAuth)
			sensors, err := client.Resolve(cmd.Context(), cfg.Data.Devices)
			if err != nil {
				return err
			}
			for _, s := range sensors {
				fmt.Printf("%s\tsource=%s\ttarget=%s\n", s.Name, s.SourceID, s.TargetID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	return cmd
}

func loadEnv(path string) {
	// Missing env file is fine, the environment may already be populated.
	_ = godotenv.Load(path)
}

func runPipeline(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.DefaultLogger

	store, err := anomaly.NewModelStore(cfg.Anomaly.ModelDir)
	if err != nil {
		return err
	}

	reader := ingest.NewReader(cfg.Data.Directory, log)
	detector := anomaly.NewDetector(store, cfg.Anomaly, log)
	runner := pipeline.NewRunner(cfg, reader, detector, log)

	var plotter ports.PlotPort
	if cfg.Plot.Enabled {
		plotter = plot.NewRenderer(cfg.Plot.Directory)
	}

	var uploader ports.UploadPort
	if cfg.Upload.Enabled() {
		uploader = upload.NewClient(cfg.TargetAuth, cfg.Upload, log)
	}

	var repo ports.RunRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		repo = postgres.NewRunRepository(db)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := pipeline.NewService(cfg, runner, inventory.NewClient(cfg.SourceAuth, cfg.TargetAuth),
		plotter, uploader, repo, log)

	outcomes, err := service.Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			log.Error("sensor %s failed: %v", o.Sensor.Name, o.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sensors failed", failed, len(outcomes))
	}
	return nil
}
