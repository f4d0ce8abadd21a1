package dataset

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/robocap/framesync"
	"go.viam.com/robocap/rimage"
)

// DefaultImageWriters is the number of parallel PNG encoders per episode.
const DefaultImageWriters = 8

// Config configures a LeRobotWriter.
type Config struct {
	// Root is the dataset directory; created if absent.
	Root string
	// FPS is the backbone rate frames were aligned at.
	FPS int
	// RobotType is recorded in the dataset metadata.
	RobotType string
	// Schema fixes the feature shapes.
	Schema Schema
	// ImageWriters bounds parallel image encoding; 0 means
	// DefaultImageWriters.
	ImageWriters int
}

type frameRow struct {
	Timestamp    float64   `parquet:"name=timestamp, type=DOUBLE"`
	FrameIndex   int64     `parquet:"name=frame_index, type=INT64"`
	EpisodeIndex int64     `parquet:"name=episode_index, type=INT64"`
	Index        int64     `parquet:"name=index, type=INT64"`
	TaskIndex    int64     `parquet:"name=task_index, type=INT64"`
	State        []float32 `parquet:"name=observation_state, type=FLOAT, repetitiontype=REPEATED"`
	Action       []float32 `parquet:"name=action, type=FLOAT, repetitiontype=REPEATED"`
	ActionDiff   []float32 `parquet:"name=action_observation_difference, type=FLOAT, repetitiontype=REPEATED"`
}

type episodeRecord struct {
	EpisodeIndex int      `json:"episode_index"`
	Tasks        []string `json:"tasks"`
	Length       int      `json:"length"`
}

// LeRobotWriter writes a LeRobot-layout dataset:
//
//	data/chunk-000/episode_000000.parquet
//	images/<feature>/episode_000000/frame_000000.png
//	meta/info.json, meta/episodes.jsonl, meta/tasks.jsonl
//
// Not safe for concurrent use; frames are appended in emission order.
type LeRobotWriter struct {
	cfg    Config
	logger golog.Logger

	episodeIndex  int
	episodeFrames int
	globalIndex   int64

	tasks      []string
	taskIndex  map[string]int64
	episodes   []episodeRecord
	totalSaved int64

	pw        *writer.ParquetWriter
	fw        source.ParquetFile
	imgGroup  *errgroup.Group
	finalized bool
}

// Create initializes the dataset directory tree and returns an open writer.
func Create(cfg Config, logger golog.Logger) (*LeRobotWriter, error) {
	if cfg.Root == "" {
		return nil, errors.New("dataset root is required")
	}
	if cfg.FPS <= 0 {
		return nil, errors.Errorf("invalid dataset fps %d", cfg.FPS)
	}
	if len(cfg.Schema.JointNames) == 0 {
		return nil, errors.New("dataset schema has no joint names")
	}
	if cfg.ImageWriters <= 0 {
		cfg.ImageWriters = DefaultImageWriters
	}

	for _, dir := range []string{
		filepath.Join(cfg.Root, "data", "chunk-000"),
		filepath.Join(cfg.Root, "meta"),
		filepath.Join(cfg.Root, "images", FeatureImageDown),
		filepath.Join(cfg.Root, "images", FeatureImageUp),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating dataset directory %s", dir)
		}
	}

	logger.Infof("created dataset at %s (%d fps, robot type %q)", cfg.Root, cfg.FPS, cfg.RobotType)
	return &LeRobotWriter{
		cfg:       cfg,
		logger:    logger,
		taskIndex: map[string]int64{},
	}, nil
}

func (w *LeRobotWriter) episodeDataPath() string {
	return filepath.Join(w.cfg.Root, "data", "chunk-000", fmt.Sprintf("episode_%06d.parquet", w.episodeIndex))
}

func (w *LeRobotWriter) imagePath(feature string, frame int) string {
	return filepath.Join(
		w.cfg.Root, "images", feature,
		fmt.Sprintf("episode_%06d", w.episodeIndex),
		fmt.Sprintf("frame_%06d.png", frame),
	)
}

func (w *LeRobotWriter) openEpisode() error {
	fw, err := local.NewLocalFileWriter(w.episodeDataPath())
	if err != nil {
		return errors.Wrap(err, "opening episode parquet file")
	}
	pw, err := writer.NewParquetWriter(fw, new(frameRow), 2)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "creating parquet writer"), fw.Close())
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, feature := range []string{FeatureImageDown, FeatureImageUp} {
		dir := filepath.Dir(w.imagePath(feature, 0))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return multierr.Combine(errors.Wrapf(err, "creating image directory %s", dir), fw.Close())
		}
	}

	w.fw = fw
	w.pw = pw
	group := &errgroup.Group{}
	group.SetLimit(w.cfg.ImageWriters)
	w.imgGroup = group
	return nil
}

func (w *LeRobotWriter) resolveTask(task string) int64 {
	if idx, ok := w.taskIndex[task]; ok {
		return idx
	}
	idx := int64(len(w.tasks))
	w.taskIndex[task] = idx
	w.tasks = append(w.tasks, task)
	return idx
}

func writeImage(path string, img *rimage.Image) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating image file %s", path)
	}
	if err := png.Encode(f, img.ToGoImage()); err != nil {
		utils.UncheckedError(f.Close())
		return errors.Wrapf(err, "encoding image %s", path)
	}
	return f.Close()
}

// AddFrame appends one frame to the open episode. The frame's image buffers
// are handed off to the writer and must not be reused by the caller.
func (w *LeRobotWriter) AddFrame(frame *framesync.Frame) error {
	if w.finalized {
		return errors.New("cannot add frame to a finalized dataset")
	}
	if len(frame.ObservationState) != len(w.cfg.Schema.JointNames) {
		return errors.Errorf("frame state has %d values but dataset schema has %d joints",
			len(frame.ObservationState), len(w.cfg.Schema.JointNames))
	}
	if w.pw == nil {
		if err := w.openEpisode(); err != nil {
			return err
		}
	}

	row := frameRow{
		Timestamp:    float64(w.episodeFrames) / float64(w.cfg.FPS),
		FrameIndex:   int64(w.episodeFrames),
		EpisodeIndex: int64(w.episodeIndex),
		Index:        w.globalIndex,
		TaskIndex:    w.resolveTask(frame.Task),
		State:        frame.ObservationState,
		Action:       frame.Action,
	}
	if w.cfg.Schema.IncludeActionDiff {
		diff := make([]float32, len(frame.Action))
		for i := range frame.Action {
			diff[i] = frame.Action[i] - frame.ObservationState[i]
		}
		row.ActionDiff = diff
	}
	if err := w.pw.Write(row); err != nil {
		return errors.Wrap(err, "writing frame row")
	}

	downPath := w.imagePath(FeatureImageDown, w.episodeFrames)
	upPath := w.imagePath(FeatureImageUp, w.episodeFrames)
	imgDown, imgUp := frame.ImageDown, frame.ImageUp
	w.imgGroup.Go(func() error { return writeImage(downPath, imgDown) })
	w.imgGroup.Go(func() error { return writeImage(upPath, imgUp) })

	w.episodeFrames++
	w.globalIndex++
	return nil
}

// SaveEpisode seals the open episode: flushes its parquet chunk, waits for
// outstanding image writes, and records the episode in the metadata.
func (w *LeRobotWriter) SaveEpisode() error {
	if w.finalized {
		return errors.New("cannot save episode on a finalized dataset")
	}

	var err error
	if w.pw != nil {
		err = multierr.Combine(
			errors.Wrap(w.pw.WriteStop(), "flushing episode parquet"),
			w.fw.Close(),
			errors.Wrap(w.imgGroup.Wait(), "writing episode images"),
		)
		w.pw = nil
		w.fw = nil
		w.imgGroup = nil
	} else {
		w.logger.Warnf("episode %d has no frames", w.episodeIndex)
	}

	w.episodes = append(w.episodes, episodeRecord{
		EpisodeIndex: w.episodeIndex,
		Tasks:        w.episodeTasks(),
		Length:       w.episodeFrames,
	})
	w.totalSaved += int64(w.episodeFrames)
	w.logger.Infof("episode %d saved with %d frames", w.episodeIndex, w.episodeFrames)

	w.episodeIndex++
	w.episodeFrames = 0
	return err
}

func (w *LeRobotWriter) episodeTasks() []string {
	// one task label per run today; recorded per episode for forward
	// compatibility with multi-task recordings
	return append([]string{}, w.tasks...)
}

// Finalize writes the dataset metadata. No frames or episodes may be added
// afterwards.
func (w *LeRobotWriter) Finalize() error {
	if w.finalized {
		return errors.New("dataset already finalized")
	}
	if w.pw != nil {
		return errors.New("cannot finalize with an unsaved episode open")
	}
	w.finalized = true

	if err := w.writeMeta(); err != nil {
		return err
	}
	w.logger.Infof("finalized dataset: %d episodes, %d frames", len(w.episodes), w.totalSaved)
	return nil
}

// Close releases resources of a writer abandoned mid-episode.
func (w *LeRobotWriter) Close() error {
	if w.pw == nil {
		return nil
	}
	err := multierr.Combine(w.fw.Close(), w.imgGroup.Wait())
	w.pw = nil
	w.fw = nil
	w.imgGroup = nil
	return err
}

var _ Writer = (*LeRobotWriter)(nil)
