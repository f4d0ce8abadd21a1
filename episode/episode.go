// Package episode models one recorded task execution: per-stream tables of
// joint states, commanded trajectories, and camera frames, normalized onto a
// shared nanosecond timeline.
package episode

import (
	"time"

	"go.viam.com/robocap/rostime"
)

// StateSample is one observed joint-position vector. Positions are indexed by
// the episode's JointNames.
type StateSample struct {
	Timestamp rostime.Timestamp
	Positions []float32
}

// Waypoint is one timed target within a trajectory command. TimeFromStart is
// the offset from the owning trajectory's start.
type Waypoint struct {
	TimeFromStart time.Duration
	Positions     []float32
}

// Trajectory is one commanded trajectory message: a start time plus its
// waypoints in command order.
type Trajectory struct {
	Start  rostime.Timestamp
	Points []Waypoint
}

// ActionSample is one flattened trajectory waypoint anchored to an absolute
// timestamp.
type ActionSample struct {
	Timestamp rostime.Timestamp
	Positions []float32
}

// ImageSample is one compressed camera frame.
type ImageSample struct {
	Timestamp rostime.Timestamp
	Format    string
	Data      []byte
}

// ImageMeta is the authoritative decoded shape of a camera's frames,
// established from the first sample of the episode.
type ImageMeta struct {
	Width    int
	Height   int
	Channels int
}

// CameraTable is one camera's frames sorted by timestamp.
type CameraTable struct {
	Topic   string
	Meta    ImageMeta
	Samples []ImageSample
}

// Timestamps returns the sample timeline of the table.
func (ct *CameraTable) Timestamps() []rostime.Timestamp {
	out := make([]rostime.Timestamp, len(ct.Samples))
	for i, s := range ct.Samples {
		out[i] = s.Timestamp
	}
	return out
}

// An Episode aggregates all per-stream tables of one recording, each sorted
// by timestamp, plus the joint-name ordering every position vector follows.
type Episode struct {
	JointNames   []string
	States       []StateSample
	Actions      []ActionSample
	Trajectories []Trajectory
	CameraDown   CameraTable
	CameraUp     CameraTable
}

// StateTimestamps returns the joint-state timeline.
func (e *Episode) StateTimestamps() []rostime.Timestamp {
	out := make([]rostime.Timestamp, len(e.States))
	for i, s := range e.States {
		out[i] = s.Timestamp
	}
	return out
}

// ActionTimestamps returns the flattened waypoint timeline.
func (e *Episode) ActionTimestamps() []rostime.Timestamp {
	out := make([]rostime.Timestamp, len(e.Actions))
	for i, s := range e.Actions {
		out[i] = s.Timestamp
	}
	return out
}

// TrajectoryTimestamps returns the trajectory message start timeline.
func (e *Episode) TrajectoryTimestamps() []rostime.Timestamp {
	out := make([]rostime.Timestamp, len(e.Trajectories))
	for i, tr := range e.Trajectories {
		out[i] = tr.Start
	}
	return out
}
