// Package ros reads recorded robot topic streams out of rosbag files and
// decodes them into typed messages.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrTopicNotFound is returned by a TopicSource when the recording carries no
// messages for the requested topic.
var ErrTopicNotFound = errors.New("topic not found in recording")

// A TopicSource yields the raw JSON rows recorded for a topic, in arrival
// order. Implementations return ErrTopicNotFound (possibly wrapped) for
// topics absent from the recording.
type TopicSource interface {
	Messages(topic string) ([]json.RawMessage, error)
}

// Topics names the four recorded streams an episode is assembled from.
type Topics struct {
	JointStates string
	Trajectory  string
	CameraDown  string
	CameraUp    string
}

// DefaultTopics returns the topic layout of the dual-arm recording rig.
func DefaultTopics() Topics {
	return Topics{
		JointStates: "/joint_states",
		Trajectory:  "/arm_controller/joint_trajectory",
		CameraDown:  "/face_downward/zed/left/image_rect_color/compressed",
		CameraUp:    "/face_upward/zed/left/image_rect_color/compressed",
	}
}

// ReadBag reads the contents of a rosbag file into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open bag %q", filename)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to parse bag %q", filename)
	}
	return rb, nil
}

// BagSource adapts a parsed rosbag to the TopicSource interface.
type BagSource struct {
	bag *rosbag.RosBag
}

// NewBagSource wraps a parsed rosbag.
func NewBagSource(bag *rosbag.RosBag) *BagSource {
	return &BagSource{bag: bag}
}

// Messages returns all JSON rows for one topic. Each topic can be drained
// once per bag; the underlying buffer is consumed by reading.
func (bs *BagSource) Messages(topic string) ([]json.RawMessage, error) {
	if err := bs.bag.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrap(err, "error while parsing bag to JSON")
	}

	buf := bs.bag.TopicsAsJSON[topic]
	if buf == nil {
		return nil, errors.Wrap(ErrTopicNotFound, topic)
	}

	var rows []json.RawMessage
	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			continue
		}
		row := make(json.RawMessage, len(line))
		copy(row, line)
		rows = append(rows, row)
	}
	return rows, nil
}

// StaticSource is an in-memory TopicSource, used by tests and replay tooling.
type StaticSource map[string][]json.RawMessage

// Messages implements TopicSource.
func (ss StaticSource) Messages(topic string) ([]json.RawMessage, error) {
	rows, ok := ss[topic]
	if !ok {
		return nil, errors.Wrap(ErrTopicNotFound, topic)
	}
	return rows, nil
}

// MessagesAs drains a topic and decodes every row into T.
func MessagesAs[T any](src TopicSource, topic string) ([]T, error) {
	rows, err := src.Messages(topic)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var msg T
		if err := json.Unmarshal(row, &msg); err != nil {
			return nil, errors.Wrapf(err, "decoding message %d of topic %s", i, topic)
		}
		out = append(out, msg)
	}
	return out, nil
}
