package ros

import (
	"time"

	"go.viam.com/robocap/rostime"
)

// TimeSpec is a ROS time or duration as recorded in a bag.
type TimeSpec struct {
	Secs  int64
	Nsecs int64
}

// Timestamp converts the stamp to nanoseconds since epoch.
func (ts TimeSpec) Timestamp() rostime.Timestamp {
	return rostime.FromSecNsec(ts.Secs, ts.Nsecs)
}

// Duration interprets the stamp as a time offset rather than an absolute
// point in time.
func (ts TimeSpec) Duration() time.Duration {
	return time.Duration(ts.Secs*rostime.NanosPerSec + ts.Nsecs)
}

// Header is the standard ROS message header.
type Header struct {
	Seq     int
	Stamp   TimeSpec
	FrameID string `json:"frame_id"`
}

// JointStateMessage is a sensor_msgs/JointState row as emitted by the bag
// JSON parser.
type JointStateMessage struct {
	Meta TimeSpec
	Data struct {
		Header   Header
		Name     []string
		Position []float64
		Velocity []float64
		Effort   []float64
	}
}

// TrajectoryPointMessage is one timed waypoint within a JointTrajectory.
type TrajectoryPointMessage struct {
	Positions     []float64
	Velocities    []float64
	Accelerations []float64
	TimeFromStart TimeSpec `json:"time_from_start"`
}

// JointTrajectoryMessage is a trajectory_msgs/JointTrajectory row.
type JointTrajectoryMessage struct {
	Meta TimeSpec
	Data struct {
		Header     Header
		JointNames []string `json:"joint_names"`
		Points     []TrajectoryPointMessage
	}
}

// CompressedImageMessage is a sensor_msgs/CompressedImage row. The payload
// arrives base64-encoded in the bag JSON and decodes straight into bytes.
type CompressedImageMessage struct {
	Meta TimeSpec
	Data struct {
		Header Header
		Format string
		Data   []byte
	}
}
