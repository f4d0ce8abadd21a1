package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.viam.com/test"
	"go.viam.com/utils"

	"go.viam.com/robocap/episode"
	"go.viam.com/robocap/framesync"
	"go.viam.com/robocap/rimage"
)

func testSchema() Schema {
	return Schema{
		JointNames: []string{"shoulder", "elbow"},
		CameraDown: episode.ImageMeta{Width: 4, Height: 2, Channels: 3},
		CameraUp:   episode.ImageMeta{Width: 4, Height: 2, Channels: 3},
	}
}

func testImage(w, h int) *rimage.Image {
	return &rimage.Image{Width: w, Height: h, Channels: 3, Pix: make([]uint8, w*h*3)}
}

func testFrame(task string) *framesync.Frame {
	return &framesync.Frame{
		ObservationState: []float32{0.5, -0.5},
		Action:           []float32{1.0, 1.0},
		ImageDown:        testImage(4, 2),
		ImageUp:          testImage(4, 2),
		Task:             task,
	}
}

func parquetRows(t *testing.T, path string) int64 {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	test.That(t, err, test.ShouldBeNil)
	defer utils.UncheckedErrorFunc(fr.Close)
	pr, err := reader.NewParquetReader(fr, new(frameRow), 1)
	test.That(t, err, test.ShouldBeNil)
	defer pr.ReadStop()
	return pr.GetNumRows()
}

func TestLeRobotWriterRoundTrip(t *testing.T) {
	root := t.TempDir()
	w, err := Create(Config{Root: root, FPS: 10, RobotType: "dual_arm_robot", Schema: testSchema()}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		test.That(t, w.AddFrame(testFrame("pick")), test.ShouldBeNil)
	}
	test.That(t, w.SaveEpisode(), test.ShouldBeNil)

	for i := 0; i < 2; i++ {
		test.That(t, w.AddFrame(testFrame("pick")), test.ShouldBeNil)
	}
	test.That(t, w.SaveEpisode(), test.ShouldBeNil)
	test.That(t, w.Finalize(), test.ShouldBeNil)

	test.That(t, parquetRows(t, filepath.Join(root, "data", "chunk-000", "episode_000000.parquet")), test.ShouldEqual, 3)
	test.That(t, parquetRows(t, filepath.Join(root, "data", "chunk-000", "episode_000001.parquet")), test.ShouldEqual, 2)

	for _, path := range []string{
		filepath.Join(root, "images", FeatureImageDown, "episode_000000", "frame_000002.png"),
		filepath.Join(root, "images", FeatureImageUp, "episode_000001", "frame_000001.png"),
		filepath.Join(root, "meta", "episodes.jsonl"),
		filepath.Join(root, "meta", "tasks.jsonl"),
	} {
		_, err := os.Stat(path)
		test.That(t, err, test.ShouldBeNil)
	}

	data, err := os.ReadFile(filepath.Join(root, "meta", "info.json"))
	test.That(t, err, test.ShouldBeNil)
	var info datasetInfo
	test.That(t, json.Unmarshal(data, &info), test.ShouldBeNil)
	test.That(t, info.TotalEpisodes, test.ShouldEqual, 2)
	test.That(t, info.TotalFrames, test.ShouldEqual, 5)
	test.That(t, info.TotalTasks, test.ShouldEqual, 1)
	test.That(t, info.FPS, test.ShouldEqual, 10)
	test.That(t, info.RobotType, test.ShouldEqual, "dual_arm_robot")
	test.That(t, info.Features[FeatureState].Shape, test.ShouldResemble, []int{2})
	test.That(t, info.Features[FeatureImageDown].Shape, test.ShouldResemble, []int{2, 4, 3})
	_, hasDiff := info.Features[FeatureActionDiff]
	test.That(t, hasDiff, test.ShouldBeFalse)
}

func TestLeRobotWriterActionDiff(t *testing.T) {
	root := t.TempDir()
	schema := testSchema()
	schema.IncludeActionDiff = true
	w, err := Create(Config{Root: root, FPS: 10, Schema: schema}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, w.AddFrame(testFrame("pick")), test.ShouldBeNil)
	test.That(t, w.SaveEpisode(), test.ShouldBeNil)
	test.That(t, w.Finalize(), test.ShouldBeNil)

	data, err := os.ReadFile(filepath.Join(root, "meta", "info.json"))
	test.That(t, err, test.ShouldBeNil)
	var info datasetInfo
	test.That(t, json.Unmarshal(data, &info), test.ShouldBeNil)
	test.That(t, info.Features[FeatureActionDiff].Shape, test.ShouldResemble, []int{2})
}

func TestLeRobotWriterEmptyEpisode(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	w, err := Create(Config{Root: t.TempDir(), FPS: 10, Schema: testSchema()}, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, w.SaveEpisode(), test.ShouldBeNil)
	test.That(t, w.Finalize(), test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("has no frames").Len(), test.ShouldEqual, 1)
}

func TestLeRobotWriterGuards(t *testing.T) {
	w, err := Create(Config{Root: t.TempDir(), FPS: 10, Schema: testSchema()}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// schema disagreement is caught at the writer boundary
	bad := testFrame("pick")
	bad.ObservationState = []float32{1}
	err = w.AddFrame(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "schema")

	test.That(t, w.AddFrame(testFrame("pick")), test.ShouldBeNil)
	err = w.Finalize()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsaved episode")

	test.That(t, w.SaveEpisode(), test.ShouldBeNil)
	test.That(t, w.Finalize(), test.ShouldBeNil)

	err = w.AddFrame(testFrame("pick"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "finalized")
	test.That(t, w.SaveEpisode(), test.ShouldNotBeNil)
	test.That(t, w.Finalize(), test.ShouldNotBeNil)
}

func TestCreateValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := Create(Config{FPS: 10, Schema: testSchema()}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Create(Config{Root: t.TempDir(), Schema: testSchema()}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Create(Config{Root: t.TempDir(), FPS: 10}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
