// Package convert orchestrates the whole pipeline: it parses each recorded
// episode, aligns its streams, and drains the resulting frames into an
// episodic dataset writer.
package convert

import (
	"context"
	"io"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/robocap/dataset"
	"go.viam.com/robocap/episode"
	"go.viam.com/robocap/framesync"
	"go.viam.com/robocap/ros"
)

// DefaultTask is the task label stamped onto frames when none is configured.
const DefaultTask = "dual_arm_manipulation"

// DefaultRobotType is recorded in dataset metadata when none is configured.
const DefaultRobotType = "dual_arm_robot"

// Options configures a conversion run.
type Options struct {
	// BagPaths are the input recordings, one episode each, in episode order.
	BagPaths []string
	// OutputDir is the dataset root to create.
	OutputDir string
	// AlignmentStream optionally forces the backbone stream; one of
	// "state", "action", "camera-down", "camera-up". Empty selects the
	// lowest-rate stream of the first episode.
	AlignmentStream string
	// JointFilter optionally restricts and orders the observed joints.
	// Empty means "the trajectory's joints", per episode.
	JointFilter []string
	// MaxFPS caps the dataset rate at the video encoder limit; 0 means the
	// default cap.
	MaxFPS int
	// Task is the per-frame task label.
	Task string
	// RobotType is recorded in dataset metadata.
	RobotType string
	// SampledActions resolves actions by zero-order-hold sampling of whole
	// trajectory messages instead of joining flattened waypoints.
	SampledActions bool
	// IncludeActionDiff stores action minus observation as an extra feature.
	IncludeActionDiff bool
	// EpisodeLimit stops after this many recordings; 0 means all.
	EpisodeLimit int
	// ImageWriters bounds the writer's parallel image encoders.
	ImageWriters int
	// Topics overrides the recorded topic names; zero value means
	// ros.DefaultTopics.
	Topics ros.Topics
}

// RunStats reports what a conversion run did.
type RunStats struct {
	EpisodesSaved   int
	EpisodesSkipped int
	FramesWritten   int
	RowsDropped     int
}

// Run converts the recordings in opts.BagPaths into one dataset.
func Run(ctx context.Context, opts Options, logger golog.Logger) (RunStats, error) {
	openers := make([]func() (ros.TopicSource, error), 0, len(opts.BagPaths))
	for _, path := range opts.BagPaths {
		path := path
		openers = append(openers, func() (ros.TopicSource, error) {
			bag, err := ros.ReadBag(path)
			if err != nil {
				return nil, err
			}
			return ros.NewBagSource(bag), nil
		})
	}
	return run(ctx, opts, openers, logger)
}

// RunSources converts pre-opened recordings. Tests and embedders use this to
// bypass bag files.
func RunSources(ctx context.Context, sources []ros.TopicSource, opts Options, logger golog.Logger) (RunStats, error) {
	openers := make([]func() (ros.TopicSource, error), 0, len(sources))
	for _, src := range sources {
		src := src
		openers = append(openers, func() (ros.TopicSource, error) { return src, nil })
	}
	return run(ctx, opts, openers, logger)
}

func run(
	ctx context.Context,
	opts Options,
	openers []func() (ros.TopicSource, error),
	logger golog.Logger,
) (RunStats, error) {
	var stats RunStats
	if len(openers) == 0 {
		return stats, errors.New("no input recordings")
	}
	if opts.OutputDir == "" {
		return stats, errors.New("output directory is required")
	}
	if opts.Task == "" {
		opts.Task = DefaultTask
	}
	if opts.RobotType == "" {
		opts.RobotType = DefaultRobotType
	}
	if (opts.Topics == ros.Topics{}) {
		opts.Topics = ros.DefaultTopics()
	}

	alignCfg := framesync.Config{MaxFPS: opts.MaxFPS}
	if opts.SampledActions {
		alignCfg.ActionMode = framesync.ActionModeSampled
	}
	if opts.AlignmentStream != "" {
		role, err := framesync.RoleFromString(opts.AlignmentStream)
		if err != nil {
			return stats, err
		}
		alignCfg.Role = &role
	}

	total := len(openers)
	if opts.EpisodeLimit > 0 && opts.EpisodeLimit < total {
		logger.Infof("limiting run to the first %d of %d recordings", opts.EpisodeLimit, total)
		total = opts.EpisodeLimit
	}

	// The first episode establishes the dataset schema, the alignment
	// backbone, and the frame rate; it is processed outside the loop and
	// any failure in it aborts the run.
	logger.Infof("processing episode 1/%d", total)
	src, err := openers[0]()
	if err != nil {
		return stats, errors.Wrap(err, "opening first recording")
	}
	first, err := episode.Load(src, opts.Topics, opts.JointFilter, logger)
	if err != nil {
		return stats, errors.Wrap(err, "parsing first episode")
	}
	aligned, err := framesync.Align(first, alignCfg, logger)
	if err != nil {
		return stats, errors.Wrap(err, "aligning first episode")
	}

	writer, err := dataset.Create(dataset.Config{
		Root:      opts.OutputDir,
		FPS:       aligned.FPS,
		RobotType: opts.RobotType,
		Schema: dataset.Schema{
			JointNames:        first.JointNames,
			CameraDown:        first.CameraDown.Meta,
			CameraUp:          first.CameraUp.Meta,
			IncludeActionDiff: opts.IncludeActionDiff,
		},
		ImageWriters: opts.ImageWriters,
	}, logger)
	if err != nil {
		return stats, err
	}

	if err := drainEpisode(ctx, first, aligned, writer, opts.Task, &stats, logger); err != nil {
		return stats, err
	}

	// later episodes reuse the backbone chosen for the first one
	backbone := aligned.Backbone
	alignCfg.Role = &backbone
	expectedJoints := first.JointNames

	for idx := 1; idx < total; idx++ {
		logger.Infof("processing episode %d/%d", idx+1, total)
		src, err := openers[idx]()
		if err != nil {
			logger.Warnw("skipping unreadable recording", "episode", idx+1, "error", err)
			stats.EpisodesSkipped++
			continue
		}
		ep, err := episode.Load(src, opts.Topics, opts.JointFilter, logger)
		if err != nil {
			logger.Warnw("skipping unparseable episode", "episode", idx+1, "error", err)
			stats.EpisodesSkipped++
			continue
		}

		missing, extra := lo.Difference(expectedJoints, ep.JointNames)
		if len(missing) > 0 || len(extra) > 0 {
			logger.Errorw("episode joint set diverges from the first episode; skipping",
				"episode", idx+1, "missing", missing, "extra", extra)
			stats.EpisodesSkipped++
			continue
		}

		epAligned, err := framesync.Align(ep, alignCfg, logger)
		if err != nil {
			logger.Warnw("skipping unalignable episode", "episode", idx+1, "error", err)
			stats.EpisodesSkipped++
			continue
		}
		if err := drainEpisode(ctx, ep, epAligned, writer, opts.Task, &stats, logger); err != nil {
			return stats, err
		}
	}

	if err := writer.Finalize(); err != nil {
		return stats, errors.Wrap(err, "finalizing dataset")
	}
	logger.Infof("conversion complete: %d episodes saved, %d skipped, %d frames",
		stats.EpisodesSaved, stats.EpisodesSkipped, stats.FramesWritten)
	return stats, nil
}

func drainEpisode(
	ctx context.Context,
	ep *episode.Episode,
	aligned *framesync.Aligned,
	writer dataset.Writer,
	task string,
	stats *RunStats,
	logger golog.Logger,
) error {
	fs := framesync.NewFrameSource(ep, aligned, task, logger)
	for {
		frame, err := fs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := writer.AddFrame(frame); err != nil {
			return errors.Wrap(err, "storing frame")
		}
	}
	if err := writer.SaveEpisode(); err != nil {
		return errors.Wrap(err, "saving episode")
	}

	fsStats := fs.Stats()
	stats.EpisodesSaved++
	stats.FramesWritten += fsStats.FramesEmitted
	stats.RowsDropped += fsStats.RowsDropped + fsStats.SkippedShape + fsStats.SkippedDecode
	return nil
}
