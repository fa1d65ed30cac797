package runner

import (
	"time"

	"speedgauge/internal/models"
)

// processResults persists finished runs. Results still queued at shutdown
// are saved before it returns.
func (r *Runner) processResults() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			for {
				select {
				case result := <-r.results:
					r.save(result)
				default:
					return
				}
			}
		case result := <-r.results:
			r.save(result)
		}
	}
}

func (r *Runner) save(result models.Result) {
	if r.store == nil {
		return
	}
	if result.TestID == "" {
		r.logger.Debug().Msg("Result has no test id, not storing")
		return
	}
	if err := r.store.SaveResult(result); err != nil {
		r.logger.Error().Err(err).Str("test_id", result.TestID).Msg("Failed to save result")
		return
	}
	r.logger.Info().Str("test_id", result.TestID).Msg("Result saved")
}

// maintenanceWorker prunes old results periodically
func (r *Runner) maintenanceWorker() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	// Run immediately on start
	r.performMaintenance()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.performMaintenance()
		}
	}
}

func (r *Runner) performMaintenance() {
	n, err := r.store.PruneOlderThan(r.config.RetentionDays)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prune old results")
		return
	}
	r.logger.Debug().Int64("pruned", n).Msg("Maintenance complete")
}
