// Package main is the robocap command itself.
package main

import (
	"log"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/robocap/convert"
	"go.viam.com/robocap/rostime"
)

const (
	flagOutput          = "output"
	flagAlignmentStream = "alignment-stream"
	flagJoints          = "joints"
	flagMaxFPS          = "max-fps"
	flagTask            = "task"
	flagRobotType       = "robot-type"
	flagEpisodeLimit    = "episode-limit"
	flagSampledActions  = "sampled-actions"
	flagActionDiff      = "action-diff"
	flagImageWriters    = "image-writers"
	flagDebug           = "debug"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:            "robocap",
		Usage:           "convert recorded robot episodes into a training dataset",
		ArgsUsage:       "<recording.bag> [recording.bag ...]",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagOutput,
				Aliases:  []string{"o"},
				Usage:    "directory to create the dataset in",
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagAlignmentStream,
				Usage: "stream to align frames against (state, action, camera-down, camera-up); defaults to the lowest-rate stream",
			},
			&cli.StringSliceFlag{
				Name:  flagJoints,
				Usage: "restrict and order the observed joints; defaults to the commanded trajectory's joints",
			},
			&cli.IntFlag{
				Name:  flagMaxFPS,
				Value: rostime.DefaultMaxFPS,
				Usage: "cap the dataset frame rate",
			},
			&cli.StringFlag{
				Name:  flagTask,
				Value: convert.DefaultTask,
				Usage: "task label stamped onto every frame",
			},
			&cli.StringFlag{
				Name:  flagRobotType,
				Value: convert.DefaultRobotType,
				Usage: "robot type recorded in dataset metadata",
			},
			&cli.IntFlag{
				Name:  flagEpisodeLimit,
				Usage: "convert at most this many recordings (0 converts all)",
			},
			&cli.BoolFlag{
				Name:  flagSampledActions,
				Usage: "sample actions from whole trajectories instead of joining flattened waypoints",
			},
			&cli.BoolFlag{
				Name:  flagActionDiff,
				Usage: "store action minus observation as an extra feature",
			},
			&cli.IntFlag{
				Name:  flagImageWriters,
				Usage: "number of parallel image encoders per episode",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = golog.NewDebugLogger("robocap")
			} else {
				logger = golog.NewDevelopmentLogger("robocap")
			}

			return nil
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one recording is required")
			}

			_, err := convert.Run(c.Context, convert.Options{
				BagPaths:          c.Args().Slice(),
				OutputDir:         c.String(flagOutput),
				AlignmentStream:   c.String(flagAlignmentStream),
				JointFilter:       c.StringSlice(flagJoints),
				MaxFPS:            c.Int(flagMaxFPS),
				Task:              c.String(flagTask),
				RobotType:         c.String(flagRobotType),
				EpisodeLimit:      c.Int(flagEpisodeLimit),
				SampledActions:    c.Bool(flagSampledActions),
				IncludeActionDiff: c.Bool(flagActionDiff),
				ImageWriters:      c.Int(flagImageWriters),
			}, logger)
			return err
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
