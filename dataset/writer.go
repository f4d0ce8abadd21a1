// Package dataset writes synchronized frames out as a LeRobot-layout
// episodic dataset: parquet data chunks, per-frame image trees, and JSON
// metadata.
package dataset

import (
	"go.viam.com/robocap/episode"
	"go.viam.com/robocap/framesync"
)

// Feature keys of the stored dataset.
const (
	FeatureState      = "observation.state"
	FeatureAction     = "action"
	FeatureImageDown  = "observation.images.downward"
	FeatureImageUp    = "observation.images.upward"
	FeatureActionDiff = "action_observation_difference"
)

// Schema fixes the per-frame feature shapes for a whole dataset. It is
// established from the first episode and every later episode must match it.
type Schema struct {
	JointNames []string
	CameraDown episode.ImageMeta
	CameraUp   episode.ImageMeta
	// IncludeActionDiff adds the derived action-observation difference
	// vector as an extra feature.
	IncludeActionDiff bool
}

// A Writer consumes frames episode by episode. The call sequence is strict:
// any number of AddFrame calls, a SaveEpisode sealing them, repeated per
// episode, then exactly one Finalize.
type Writer interface {
	AddFrame(frame *framesync.Frame) error
	SaveEpisode() error
	Finalize() error
}
