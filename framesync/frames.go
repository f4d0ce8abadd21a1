package framesync

import (
	"context"
	"io"

	"github.com/edaniels/golog"

	"go.viam.com/robocap/episode"
	"go.viam.com/robocap/rimage"
)

// Frame is one fully-resolved observation/action tuple ready for storage.
type Frame struct {
	ObservationState []float32
	Action           []float32
	ImageDown        *rimage.Image
	ImageUp          *rimage.Image
	Task             string
}

// Stats counts what happened to merged rows on the way to frames.
type Stats struct {
	RowsMerged    int
	RowsDropped   int
	SkippedShape  int
	SkippedDecode int
	FramesEmitted int
}

// FrameSource lazily assembles frames from an aligned episode. It is a
// finite, single-pass source: Next returns io.EOF once drained and the
// source cannot be rewound.
type FrameSource struct {
	ep      *episode.Episode
	aligned *Aligned
	task    string
	logger  golog.Logger
	idx     int
	stats   Stats
}

// NewFrameSource returns a source over the aligned rows. The task label is
// stamped onto every frame.
func NewFrameSource(ep *episode.Episode, aligned *Aligned, task string, logger golog.Logger) *FrameSource {
	return &FrameSource{
		ep:      ep,
		aligned: aligned,
		task:    task,
		logger:  logger,
		stats: Stats{
			RowsMerged:  len(aligned.Rows),
			RowsDropped: aligned.RowsDropped,
		},
	}
}

// Next returns the next frame in row order, skipping rows that violate the
// shape contract or whose camera payloads fail to decode. Returns io.EOF
// when the episode is drained.
func (fs *FrameSource) Next(ctx context.Context) (*Frame, error) {
	for fs.idx < len(fs.aligned.Rows) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := &fs.aligned.Rows[fs.idx]
		fs.idx++

		action := row.Action
		if fs.aligned.ActionMode == ActionModeSampled {
			if len(row.Trajectory.Points) == 0 {
				fs.logger.Warnf("trajectory at %d has no waypoints; skipping frame", row.Trajectory.Start)
				fs.stats.SkippedShape++
				continue
			}
			action = row.Trajectory.ActionAt(row.Timestamp)
		}

		if len(action) != len(row.State) {
			fs.logger.Warnf(
				"action length %d does not match observation length %d; skipping frame",
				len(action), len(row.State))
			fs.stats.SkippedShape++
			continue
		}

		imageDown, ok := fs.decodeCamera(row.CameraDown, &fs.ep.CameraDown)
		if !ok {
			continue
		}
		imageUp, ok := fs.decodeCamera(row.CameraUp, &fs.ep.CameraUp)
		if !ok {
			continue
		}

		fs.stats.FramesEmitted++
		return &Frame{
			ObservationState: row.State,
			Action:           action,
			ImageDown:        imageDown,
			ImageUp:          imageUp,
			Task:             fs.task,
		}, nil
	}
	return nil, io.EOF
}

func (fs *FrameSource) decodeCamera(sample *episode.ImageSample, table *episode.CameraTable) (*rimage.Image, bool) {
	img, err := rimage.DecodeImage(sample.Data, sample.Format)
	if err != nil {
		fs.logger.Warnw("failed to decode camera frame; skipping",
			"topic", table.Topic, "timestamp", sample.Timestamp, "error", err)
		fs.stats.SkippedDecode++
		return nil, false
	}
	meta := table.Meta
	if img.Width != meta.Width || img.Height != meta.Height {
		fs.logger.Debugf("resizing %s frame from %dx%d to %dx%d",
			table.Topic, img.Width, img.Height, meta.Width, meta.Height)
		img = img.Resize(meta.Width, meta.Height)
	}
	return img, true
}

// Stats reports the drop/emit counters accumulated so far.
func (fs *FrameSource) Stats() Stats {
	return fs.stats
}
