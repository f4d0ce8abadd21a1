package episode

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/robocap/ros"
)

// Load assembles an Episode from the four recorded topic streams of one
// recording. When jointFilter is nil, joint states are filtered and ordered
// to the trajectory's joint names so the state and action axes agree by
// construction.
func Load(src ros.TopicSource, topics ros.Topics, jointFilter []string, logger golog.Logger) (*Episode, error) {
	trajMsgs, err := ros.MessagesAs[ros.JointTrajectoryMessage](src, topics.Trajectory)
	if err != nil {
		return nil, errors.Wrap(err, "loading trajectory topic")
	}
	logger.Infof("loaded %d trajectory messages", len(trajMsgs))

	actions, trajectories, trajNames, err := ParseTrajectories(trajMsgs, logger)
	if err != nil {
		return nil, err
	}

	filter := jointFilter
	if filter == nil {
		filter = trajNames
	}

	stateMsgs, err := ros.MessagesAs[ros.JointStateMessage](src, topics.JointStates)
	if err != nil {
		return nil, errors.Wrap(err, "loading joint states topic")
	}
	logger.Infof("loaded %d joint state messages", len(stateMsgs))

	states, jointNames, err := ParseJointStates(stateMsgs, filter, logger)
	if err != nil {
		return nil, err
	}

	downMsgs, err := ros.MessagesAs[ros.CompressedImageMessage](src, topics.CameraDown)
	if err != nil {
		return nil, errors.Wrap(err, "loading downward camera topic")
	}
	upMsgs, err := ros.MessagesAs[ros.CompressedImageMessage](src, topics.CameraUp)
	if err != nil {
		return nil, errors.Wrap(err, "loading upward camera topic")
	}
	logger.Infof("loaded %d downward and %d upward camera images", len(downMsgs), len(upMsgs))

	cameraDown, err := ParseCamera(topics.CameraDown, downMsgs, logger)
	if err != nil {
		return nil, err
	}
	cameraUp, err := ParseCamera(topics.CameraUp, upMsgs, logger)
	if err != nil {
		return nil, err
	}

	return &Episode{
		JointNames:   jointNames,
		States:       states,
		Actions:      actions,
		Trajectories: trajectories,
		CameraDown:   cameraDown,
		CameraUp:     cameraUp,
	}, nil
}
