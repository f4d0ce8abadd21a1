package episode

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/robocap/ros"
)

func stateRow(sec int64, names, positions string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"meta": {"secs": %d, "nsecs": 0},
		"data": {
			"header": {"stamp": {"secs": %d, "nsecs": 0}},
			"name": %s,
			"position": %s
		}
	}`, sec, sec, names, positions))
}

func trajectoryRow(sec int64, names, points string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"meta": {"secs": %d, "nsecs": 0},
		"data": {
			"header": {"stamp": {"secs": %d, "nsecs": 0}},
			"joint_names": %s,
			"points": %s
		}
	}`, sec, sec, names, points))
}

func imageRow(sec int64, format string, data []byte) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"meta": {"secs": %d, "nsecs": 0},
		"data": {
			"header": {"stamp": {"secs": %d, "nsecs": 0}},
			"format": %q,
			"data": %q
		}
	}`, sec, sec, format, base64.StdEncoding.EncodeToString(data)))
}

func testSource(t *testing.T, topics ros.Topics) ros.StaticSource {
	t.Helper()
	img := pngBytes(t, 8, 4)
	return ros.StaticSource{
		topics.JointStates: {
			stateRow(10, `["elbow", "shoulder"]`, `[0.5, -0.5]`),
			stateRow(11, `["elbow", "shoulder"]`, `[0.6, -0.6]`),
		},
		topics.Trajectory: {
			trajectoryRow(10, `["shoulder", "elbow"]`,
				`[{"positions": [1.0, 2.0], "time_from_start": {"secs": 0, "nsecs": 0}},
				  {"positions": [1.5, 2.5], "time_from_start": {"secs": 1, "nsecs": 0}}]`),
		},
		topics.CameraDown: {imageRow(10, "png", img), imageRow(11, "png", img)},
		topics.CameraUp:   {imageRow(10, "png", img), imageRow(11, "png", img)},
	}
}

func TestLoad(t *testing.T) {
	topics := ros.DefaultTopics()
	ep, err := Load(testSource(t, topics), topics, nil, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// states were remapped to the trajectory's joint ordering
	test.That(t, ep.JointNames, test.ShouldResemble, []string{"shoulder", "elbow"})
	test.That(t, ep.States, test.ShouldHaveLength, 2)
	test.That(t, ep.States[0].Positions, test.ShouldResemble, []float32{-0.5, 0.5})

	test.That(t, ep.Actions, test.ShouldHaveLength, 2)
	test.That(t, ep.Trajectories, test.ShouldHaveLength, 1)
	test.That(t, ep.CameraDown.Meta, test.ShouldResemble, ImageMeta{Width: 8, Height: 4, Channels: 3})
	test.That(t, ep.CameraUp.Samples, test.ShouldHaveLength, 2)
}

func TestLoadExplicitFilter(t *testing.T) {
	topics := ros.DefaultTopics()
	ep, err := Load(testSource(t, topics), topics, []string{"elbow"}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ep.JointNames, test.ShouldResemble, []string{"elbow"})
	test.That(t, ep.States[0].Positions, test.ShouldResemble, []float32{0.5})
}

func TestLoadMissingTopic(t *testing.T) {
	topics := ros.DefaultTopics()
	src := testSource(t, topics)
	delete(src, topics.CameraUp)

	_, err := Load(src, topics, nil, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ros.ErrTopicNotFound), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "upward camera")
}

func TestLoadEmptyStates(t *testing.T) {
	topics := ros.DefaultTopics()
	src := testSource(t, topics)
	src[topics.JointStates] = nil

	_, err := Load(src, topics, nil, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no joint state messages")
}
