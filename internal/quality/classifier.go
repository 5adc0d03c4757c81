// Package quality classifies per-day data quality: a "small" sensor error
// is any gap before small-gap imputation, a "big" sensor error is a gap
// that survived it.
package quality

import (
	"fmt"

	"trafficsense/domain/core"
	"trafficsense/domain/series"
	"trafficsense/internal/window"
)

// MarkMissingData derives the day-level error flags from the tumbled
// matrices before and after small-gap imputation, and expands them onto
// the full-resolution axis through the shared day-length resolver.
func MarkMissingData(s *series.Series, meta series.PeriodMeta, pre, post *series.TumbledMatrix) error {
	if pre.Len() != post.Len() {
		return fmt.Errorf("%w: %d pre-imputation days vs %d post-imputation days",
			core.ErrRowMismatch, pre.Len(), post.Len())
	}

	smallErr := make([]int, pre.Len())
	bigErr := make([]int, pre.Len())
	for i := 0; i < pre.Len(); i++ {
		if pre.RowHasGap(i) {
			smallErr[i] = 1
		}
		if post.RowHasGap(i) {
			bigErr[i] = 1
		}
	}

	s.SensorError = window.ExpandByDay(pre.Dates, smallErr, meta)
	s.BigSensorError = window.ExpandByDay(post.Dates, bigErr, meta)

	if len(s.SensorError) != s.Len() || len(s.BigSensorError) != s.Len() {
		return fmt.Errorf("%w: expanded %d error flags for %d samples",
			core.ErrRowMismatch, len(s.SensorError), s.Len())
	}
	return nil
}
