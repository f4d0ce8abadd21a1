// Package rostime handles ROS timestamp normalization, ordering repair, and
// sampling rate estimation for recorded topic streams.
package rostime

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// NanosPerSec is the number of nanoseconds in one second.
const NanosPerSec = int64(1_000_000_000)

// DefaultMaxFPS is the highest frame rate the downstream video encoder
// (SVT-AV1) accepts.
const DefaultMaxFPS = 240

// Timestamp is a signed count of nanoseconds since the Unix epoch.
type Timestamp int64

// FromSecNsec converts a ROS (secs, nsecs) stamp into a Timestamp.
func FromSecNsec(sec, nsec int64) Timestamp {
	return Timestamp(sec*NanosPerSec + nsec)
}

// RepairMonotonic returns the subsequence of rows whose timestamps are
// non-decreasing, favoring recency: a row dated earlier than previously kept
// rows evicts the stale tail rather than being dropped itself. Already-sorted
// input comes back unchanged. The second return is the number of evicted rows.
func RepairMonotonic[T any](rows []T, ts func(T) Timestamp) ([]T, int) {
	kept := make([]T, 0, len(rows))
	evicted := 0
	for _, row := range rows {
		for len(kept) > 0 && ts(kept[len(kept)-1]) > ts(row) {
			kept = kept[:len(kept)-1]
			evicted++
		}
		kept = append(kept, row)
	}
	return kept, evicted
}

// EstimateFPS computes the effective sampling rate of a timestamp series from
// the median gap between successive samples.
func EstimateFPS(timestamps []Timestamp) (int, error) {
	if len(timestamps) < 2 {
		return 0, errors.New("need at least 2 timestamps to estimate sampling rate")
	}
	diffs := make([]float64, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		diffs[i-1] = float64(timestamps[i] - timestamps[i-1])
	}
	median, err := stats.Median(diffs)
	if err != nil {
		return 0, errors.Wrap(err, "median of timestamp gaps")
	}
	if median <= 0 {
		return 0, errors.Errorf(
			"invalid median time difference %vns; timestamps are identical or not monotonically increasing", median)
	}
	return int(math.Round(float64(NanosPerSec) / median)), nil
}

// ClampFPS caps an estimated rate at the encoder maximum, logging when the
// cap takes effect. A non-positive max means DefaultMaxFPS.
func ClampFPS(fps, maxFPS int, logger golog.Logger) int {
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	if fps > maxFPS {
		logger.Warnf("estimated rate %d fps exceeds encoder maximum %d fps; capping", fps, maxFPS)
		return maxFPS
	}
	return fps
}
