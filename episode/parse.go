package episode

import (
	"slices"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/robocap/rimage"
	"go.viam.com/robocap/ros"
	"go.viam.com/robocap/rostime"
)

// ParseJointStates turns joint-state messages into a state table sorted by
// timestamp and resolves the joint-name ordering.
//
// When filter is non-nil, every row's positions are remapped into filter
// order; a joint missing from any row fails the whole parse. Otherwise the
// first row's name list is authoritative and later drift is only warned
// about.
func ParseJointStates(
	msgs []ros.JointStateMessage,
	filter []string,
	logger golog.Logger,
) ([]StateSample, []string, error) {
	if len(msgs) == 0 {
		return nil, nil, errors.New("no joint state messages found in topic")
	}

	samples := make([]StateSample, 0, len(msgs))
	firstNames := msgs[0].Data.Name
	for idx, msg := range msgs {
		ts := msg.Data.Header.Stamp.Timestamp()
		positions := lo.Map(msg.Data.Position, func(p float64, _ int) float32 { return float32(p) })

		if filter != nil {
			byName := make(map[string]float32, len(msg.Data.Name))
			for i, name := range msg.Data.Name {
				if i < len(positions) {
					byName[name] = positions[i]
				}
			}
			remapped := make([]float32, 0, len(filter))
			for _, name := range filter {
				value, ok := byName[name]
				if !ok {
					return nil, nil, errors.Errorf(
						"joint %q not found in joint states; available joints: %v", name, msg.Data.Name)
				}
				remapped = append(remapped, value)
			}
			positions = remapped
		} else if idx > 0 && !slices.Equal(msg.Data.Name, firstNames) {
			logger.Warnf("joint names mismatch at message %d", idx)
		}

		samples = append(samples, StateSample{Timestamp: ts, Positions: positions})
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp < samples[j].Timestamp })

	names := filter
	if names == nil {
		names = slices.Clone(firstNames)
	}
	return samples, names, nil
}

// ParseTrajectories turns trajectory messages into the per-message trajectory
// table and the flattened waypoint table. Waypoints are anchored to absolute
// time (message start + offset); since waypoints of successive messages can
// interleave or overlap, the flattened table goes through monotonicity repair.
func ParseTrajectories(
	msgs []ros.JointTrajectoryMessage,
	logger golog.Logger,
) ([]ActionSample, []Trajectory, []string, error) {
	var jointNames []string
	trajectories := make([]Trajectory, 0, len(msgs))

	for _, msg := range msgs {
		start := msg.Data.Header.Stamp.Timestamp()
		if jointNames == nil && len(msg.Data.JointNames) > 0 {
			jointNames = slices.Clone(msg.Data.JointNames)
		}

		points := make([]Waypoint, 0, len(msg.Data.Points))
		for _, pt := range msg.Data.Points {
			points = append(points, Waypoint{
				TimeFromStart: pt.TimeFromStart.Duration(),
				Positions:     lo.Map(pt.Positions, func(p float64, _ int) float32 { return float32(p) }),
			})
		}
		if len(points) == 0 {
			logger.Warnf("trajectory message at timestamp %d has no points", start)
		}
		trajectories = append(trajectories, Trajectory{Start: start, Points: points})
	}

	if jointNames == nil {
		return nil, nil, nil, errors.New("no joint names found in trajectory messages")
	}

	sort.SliceStable(trajectories, func(i, j int) bool { return trajectories[i].Start < trajectories[j].Start })

	var actions []ActionSample
	for i := range trajectories {
		tr := &trajectories[i]
		for _, pt := range tr.Points {
			actions = append(actions, ActionSample{
				Timestamp: tr.Start + rostime.Timestamp(pt.TimeFromStart),
				Positions: pt.Positions,
			})
		}
	}

	actions, evicted := rostime.RepairMonotonic(actions, func(a ActionSample) rostime.Timestamp { return a.Timestamp })
	if evicted > 0 {
		logger.Warnf("evicted %d out-of-order waypoints while repairing trajectory timeline", evicted)
	}
	logger.Debugf("parsed %d trajectory messages into %d waypoints", len(trajectories), len(actions))

	return actions, trajectories, jointNames, nil
}

// ParseCamera turns compressed-image messages into one camera's sample table.
// The decoded shape is probed from the first sample only and trusted for the
// rest of the episode.
func ParseCamera(
	topic string,
	msgs []ros.CompressedImageMessage,
	logger golog.Logger,
) (CameraTable, error) {
	if len(msgs) == 0 {
		return CameraTable{}, errors.Errorf("camera topic %s has no image messages", topic)
	}

	samples := make([]ImageSample, 0, len(msgs))
	for _, msg := range msgs {
		samples = append(samples, ImageSample{
			Timestamp: msg.Data.Header.Stamp.Timestamp(),
			Format:    msg.Data.Format,
			Data:      msg.Data.Data,
		})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestamp < samples[j].Timestamp })

	first := samples[0]
	w, h, c, err := rimage.ImageDimensions(first.Data, first.Format)
	if err != nil {
		return CameraTable{}, errors.Wrapf(err, "probing dimensions of first frame on camera topic %s", topic)
	}
	logger.Debugf("camera %s: %d frames, %dx%dx%d", topic, len(samples), h, w, c)

	return CameraTable{
		Topic:   topic,
		Meta:    ImageMeta{Width: w, Height: h, Channels: c},
		Samples: samples,
	}, nil
}
