package episode

import (
	"time"

	"go.viam.com/robocap/rostime"
)

// ActionAt resolves the commanded joint positions active at the observation
// time under a zero-order hold: the most recently reached waypoint's
// positions, clamped to the first waypoint before the trajectory begins and
// held at the last waypoint after it ends. No interpolation between
// waypoints. Points must be non-empty; the caller guarantees this.
func ActionAt(observed, start rostime.Timestamp, points []Waypoint) []float32 {
	elapsed := time.Duration(observed - start)

	if elapsed < points[0].TimeFromStart {
		return points[0].Positions
	}
	if elapsed >= points[len(points)-1].TimeFromStart {
		return points[len(points)-1].Positions
	}

	for i := len(points) - 1; i >= 0; i-- {
		if points[i].TimeFromStart <= elapsed {
			return points[i].Positions
		}
	}
	return points[0].Positions
}

// ActionAt resolves the active commanded positions of this trajectory at the
// observation time. See the package-level ActionAt.
func (t *Trajectory) ActionAt(observed rostime.Timestamp) []float32 {
	return ActionAt(observed, t.Start, t.Points)
}
