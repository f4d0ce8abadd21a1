package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const codebaseVersion = "v2.1"

type featureInfo struct {
	Dtype string   `json:"dtype"`
	Shape []int    `json:"shape"`
	Names []string `json:"names"`
}

type datasetInfo struct {
	CodebaseVersion string                 `json:"codebase_version"`
	RobotType       string                 `json:"robot_type"`
	FPS             int                    `json:"fps"`
	TotalEpisodes   int                    `json:"total_episodes"`
	TotalFrames     int64                  `json:"total_frames"`
	TotalTasks      int                    `json:"total_tasks"`
	DataPath        string                 `json:"data_path"`
	ImagePath       string                 `json:"image_path"`
	Features        map[string]featureInfo `json:"features"`
}

type taskRecord struct {
	TaskIndex int64  `json:"task_index"`
	Task      string `json:"task"`
}

func (w *LeRobotWriter) features() map[string]featureInfo {
	schema := w.cfg.Schema
	vector := featureInfo{
		Dtype: "float32",
		Shape: []int{len(schema.JointNames)},
		Names: schema.JointNames,
	}
	imageNames := []string{"height", "width", "channel"}
	features := map[string]featureInfo{
		FeatureState:  vector,
		FeatureAction: vector,
		FeatureImageDown: {
			Dtype: "image",
			Shape: []int{schema.CameraDown.Height, schema.CameraDown.Width, schema.CameraDown.Channels},
			Names: imageNames,
		},
		FeatureImageUp: {
			Dtype: "image",
			Shape: []int{schema.CameraUp.Height, schema.CameraUp.Width, schema.CameraUp.Channels},
			Names: imageNames,
		},
	}
	if schema.IncludeActionDiff {
		features[FeatureActionDiff] = vector
	}
	return features
}

func (w *LeRobotWriter) writeMeta() error {
	info := datasetInfo{
		CodebaseVersion: codebaseVersion,
		RobotType:       w.cfg.RobotType,
		FPS:             w.cfg.FPS,
		TotalEpisodes:   len(w.episodes),
		TotalFrames:     w.totalSaved,
		TotalTasks:      len(w.tasks),
		DataPath:        "data/chunk-000/episode_{episode_index:06d}.parquet",
		ImagePath:       "images/{image_key}/episode_{episode_index:06d}/frame_{frame_index:06d}.png",
		Features:        w.features(),
	}
	if err := writeJSON(filepath.Join(w.cfg.Root, "meta", "info.json"), info); err != nil {
		return err
	}

	episodeRows := make([]any, 0, len(w.episodes))
	for _, ep := range w.episodes {
		episodeRows = append(episodeRows, ep)
	}
	if err := writeJSONL(filepath.Join(w.cfg.Root, "meta", "episodes.jsonl"), episodeRows); err != nil {
		return err
	}

	taskRows := make([]any, 0, len(w.tasks))
	for i, task := range w.tasks {
		taskRows = append(taskRows, taskRecord{TaskIndex: int64(i), Task: task})
	}
	return writeJSONL(filepath.Join(w.cfg.Root, "meta", "tasks.jsonl"), taskRows)
}

func writeJSON(path string, v any) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	return errors.Wrapf(enc.Encode(v), "writing %s", path)
}

func writeJSONL(path string, rows []any) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return nil
}
