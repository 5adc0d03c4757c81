package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"trafficsense/domain/core"
	"trafficsense/internal/config"
	"trafficsense/internal/logging"
	"trafficsense/ports"
)

// Outcome reports one sensor's fate within a service run. A failed sensor
// carries its error; sibling sensors in the same batch still complete.
type Outcome struct {
	Sensor   core.Sensor
	Result   *Result
	Err      error
	Duration time.Duration
}

// Service resolves the sensor list and drives every sensor through the
// pipeline in fixed-size parallel batches, then hands results to the
// configured sinks.
type Service struct {
	cfg       *config.Config
	runner    *Runner
	inventory ports.InventoryPort
	plotter   ports.PlotPort
	uploader  ports.UploadPort
	repo      ports.RunRepository
	log       *logging.Logger
}

// NewService wires the orchestrator. Plotter, uploader and repo may be nil
// when the corresponding output is disabled.
func NewService(cfg *config.Config, runner *Runner, inventory ports.InventoryPort,
	plotter ports.PlotPort, uploader ports.UploadPort, repo ports.RunRepository,
	log *logging.Logger) *Service {
	if log == nil {
		log = logging.DefaultLogger
	}
	return &Service{
		cfg:       cfg,
		runner:    runner,
		inventory: inventory,
		plotter:   plotter,
		uploader:  uploader,
		repo:      repo,
		log:       log,
	}
}

// Run processes every configured sensor. Sensors inside one batch run as
// independent parallel workers; the next batch starts only after every
// worker in the current batch finished. The same sensor is never
// scheduled twice concurrently, which keeps the per-(sensor, day-type)
// model files free of concurrent writers.
func (sv *Service) Run(ctx context.Context) ([]Outcome, error) {
	begin := time.Now()

	sensors, err := sv.inventory.Resolve(ctx, sv.cfg.Data.Devices)
	if err != nil {
		return nil, err
	}
	for _, sensor := range sensors {
		sv.log.Info("resolved sensor %s (source %s, target %s)", sensor.Name, sensor.SourceID, sensor.TargetID)
	}

	outcomes := make([]Outcome, len(sensors))
	batchSize := sv.cfg.DevicesInParallel

	for from := 0; from < len(sensors); from += batchSize {
		to := from + batchSize
		if to > len(sensors) {
			to = len(sensors)
		}

		var g errgroup.Group
		for i := from; i < to; i++ {
			g.Go(func() error {
				started := time.Now()
				result, err := sv.processAndPersist(ctx, sensors[i])
				outcomes[i] = Outcome{
					Sensor:   sensors[i],
					Result:   result,
					Err:      err,
					Duration: time.Since(started),
				}
				// Per-sensor failures never abort batch siblings.
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return outcomes, err
		}

		for i := from; i < to; i++ {
			if outcomes[i].Err != nil {
				sv.log.Error("%s: sensor failed: %v", outcomes[i].Sensor.Name, outcomes[i].Err)
			} else {
				sv.log.Info("finished imputing %s", outcomes[i].Sensor.Name)
			}
		}
	}

	sv.log.Info("total runtime of the anomaly detection service is %s", time.Since(begin))
	return outcomes, nil
}

func (sv *Service) processAndPersist(ctx context.Context, sensor core.Sensor) (*Result, error) {
	result, err := sv.runner.Process(ctx, sensor)
	if err != nil {
		return nil, err
	}

	if sv.cfg.Plot.Enabled && sv.plotter != nil {
		if err := sv.plotter.Render(sensor, result.Series); err != nil {
			return result, err
		}
	}
	if sv.cfg.Upload.Enabled() && sv.uploader != nil {
		if err := sv.uploader.Upload(ctx, sensor, result.Series); err != nil {
			return result, err
		}
	}
	if sv.repo != nil {
		if err := sv.repo.SaveRun(ctx, result.RunID, sensor, result.Series); err != nil {
			return result, err
		}
	}
	return result, nil
}
