// Package impute fills gaps in the uniform series: short runs with a
// seasonality-aware interpolation, long runs with a blend of weekly and
// daily profiles.
package impute

import "trafficsense/domain/series"

// interpolate returns a copy of vals with invalid entries filled linearly
// between the nearest valid neighbors, by position. A trailing gap always
// takes the last valid value; a leading gap stays invalid unless both=true,
// in which case it takes the first valid value.
func interpolate(vals []series.Sample, both bool) []series.Sample {
	out := make([]series.Sample, len(vals))
	copy(out, vals)

	prev := -1 // last valid index seen
	for i := 0; i < len(out); i++ {
		if !out[i].Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (out[i].Value - out[prev].Value) / float64(i-prev)
			for k := prev + 1; k < i; k++ {
				out[k] = series.New(out[prev].Value + step*float64(k-prev))
			}
		} else if prev < 0 && both {
			for k := 0; k < i; k++ {
				out[k] = series.New(out[i].Value)
			}
		}
		prev = i
	}
	if prev >= 0 {
		for k := prev + 1; k < len(out); k++ {
			out[k] = series.New(out[prev].Value)
		}
	}
	return out
}

// smallGapMask groups the series into maximal contiguous runs of missing
// and present samples and marks a run imputable only if its length does
// not exceed maxGap. Present samples are always marked.
func smallGapMask(vals []series.Sample, maxGap int) []bool {
	mask := make([]bool, len(vals))
	for i := 0; i < len(vals); {
		j := i
		for j < len(vals) && vals[j].Valid == vals[i].Valid {
			j++
		}
		ok := vals[i].Valid || (j-i) <= maxGap
		for k := i; k < j; k++ {
			mask[k] = ok
		}
		i = j
	}
	return mask
}
