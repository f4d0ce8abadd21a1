package framesync

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/robocap/episode"
	"go.viam.com/robocap/rostime"
)

// Config controls how an episode is aligned.
type Config struct {
	// Role forces the backbone stream; nil selects the lowest-rate stream
	// automatically.
	Role *Role
	// ActionMode selects column or sampled action resolution.
	ActionMode ActionMode
	// MaxFPS caps the backbone rate at the encoder limit; 0 means
	// rostime.DefaultMaxFPS.
	MaxFPS int
}

// Row is one merged sample on the backbone timeline. Dependent columns are
// nil when the owning stream had no sample at or before the row's timestamp.
type Row struct {
	Timestamp  rostime.Timestamp
	State      []float32
	Action     []float32
	Trajectory *episode.Trajectory
	CameraDown *episode.ImageSample
	CameraUp   *episode.ImageSample
}

// Aligned is the merged, null-free join result for one episode.
type Aligned struct {
	Backbone    Role
	FPS         int
	ActionMode  ActionMode
	Rows        []Row
	RowsDropped int
}

// asofBackward returns, for each target timestamp, the index of the greatest
// source timestamp at or before it, or -1 when the target precedes every
// source sample. Both inputs must be sorted non-decreasing.
func asofBackward(targets, source []rostime.Timestamp) []int {
	out := make([]int, len(targets))
	j := -1
	for i, target := range targets {
		for j+1 < len(source) && source[j+1] <= target {
			j++
		}
		out[i] = j
	}
	return out
}

// Align joins every stream of the episode onto the backbone timeline and
// drops rows that are missing any dependent column.
func Align(ep *episode.Episode, cfg Config, logger golog.Logger) (*Aligned, error) {
	actionTimeline := ep.ActionTimestamps()
	if cfg.ActionMode == ActionModeSampled {
		actionTimeline = ep.TrajectoryTimestamps()
	}
	timelines := map[Role][]rostime.Timestamp{
		RoleState:      ep.StateTimestamps(),
		RoleAction:     actionTimeline,
		RoleCameraDown: ep.CameraDown.Timestamps(),
		RoleCameraUp:   ep.CameraUp.Timestamps(),
	}

	var backbone Role
	var fps int
	if cfg.Role != nil {
		backbone = *cfg.Role
		if _, ok := timelines[backbone]; !ok {
			return nil, errors.Errorf("unsupported alignment role %d", backbone)
		}
		estimated, err := rostime.EstimateFPS(timelines[backbone])
		if err != nil {
			return nil, errors.Wrapf(err, "estimating rate of alignment stream %s", backbone)
		}
		fps = estimated
	} else {
		lowest := -1
		for _, role := range Roles() {
			estimated, err := rostime.EstimateFPS(timelines[role])
			if err != nil {
				return nil, errors.Wrapf(err, "estimating rate of stream %s", role)
			}
			logger.Debugf("stream %s runs at ~%d fps", role, estimated)
			if lowest < 0 || estimated < lowest {
				lowest = estimated
				backbone = role
			}
		}
		fps = lowest
	}
	fps = rostime.ClampFPS(fps, cfg.MaxFPS, logger)
	logger.Infof("aligning onto %s backbone at %d fps", backbone, fps)

	targets := timelines[backbone]
	joins := make(map[Role][]int, len(timelines))
	for role, timeline := range timelines {
		if role == backbone {
			continue
		}
		joins[role] = asofBackward(targets, timeline)
	}

	index := func(role Role, i int) int {
		if role == backbone {
			return i
		}
		return joins[role][i]
	}

	rows := make([]Row, 0, len(targets))
	dropped := 0
	for i, ts := range targets {
		row := Row{Timestamp: ts}
		complete := true

		if idx := index(RoleState, i); idx >= 0 {
			row.State = ep.States[idx].Positions
		} else {
			complete = false
		}
		if idx := index(RoleAction, i); idx >= 0 {
			if cfg.ActionMode == ActionModeSampled {
				row.Trajectory = &ep.Trajectories[idx]
			} else {
				row.Action = ep.Actions[idx].Positions
			}
		} else {
			complete = false
		}
		if idx := index(RoleCameraDown, i); idx >= 0 {
			row.CameraDown = &ep.CameraDown.Samples[idx]
		} else {
			complete = false
		}
		if idx := index(RoleCameraUp, i); idx >= 0 {
			row.CameraUp = &ep.CameraUp.Samples[idx]
		} else {
			complete = false
		}

		if !complete {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	logger.Infof("dropped %d rows with missing joined data, retained %d rows", dropped, len(rows))

	return &Aligned{
		Backbone:    backbone,
		FPS:         fps,
		ActionMode:  cfg.ActionMode,
		Rows:        rows,
		RowsDropped: dropped,
	}, nil
}
