package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/events"
	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/platform/httpfetch"
	"github.com/phrazzld/imagetask-api/internal/store/memory"
	"github.com/phrazzld/imagetask-api/internal/task"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelResizer stands in for the image codec: every variant is the width
// followed by the source bytes.
type labelResizer struct{}

func (labelResizer) Resize(src []byte, width int, _ string) ([]byte, error) {
	return append([]byte(fmt.Sprintf("%d:", width)), src...), nil
}

type pipeline struct {
	svc    TaskService
	fs     afero.Fs
	images *memory.ImageStore
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := testLogger()

	fs := afero.NewMemMapFs()
	tasks := memory.NewTaskStore(log)
	images := memory.NewImageStore(log)

	engine, err := generation.NewEngine(
		generation.Config{OutputDir: "out"},
		fs,
		httpfetch.New(5*time.Second, 0, log),
		labelResizer{},
		log,
	)
	require.NoError(t, err)

	emitter := events.NewInMemoryEventEmitter(log)
	runner := task.NewTaskRunner(task.DefaultTaskRunnerConfig(), log)
	factory := task.NewImageProcessingTaskFactory(tasks, images, engine, emitter, log)
	emitter.Subscribe(task.NewTaskFactoryEventHandler(factory, runner, log), events.TypeImageProcessingRequested)

	require.NoError(t, runner.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	})

	svc, err := NewTaskService(tasks, fixedEstimator(10), emitter, fs, Config{}, log)
	require.NoError(t, err)

	return &pipeline{svc: svc, fs: fs, images: images}
}

func (p *pipeline) awaitTerminal(t *testing.T, taskID string) domain.TaskView {
	t.Helper()

	var view domain.TaskView
	require.Eventually(t, func() bool {
		v, err := p.svc.GetTask(context.Background(), taskID)
		if err != nil {
			return false
		}
		view = v
		return v.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestPipeline_LocalSourceCompletes(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)
	require.NoError(t, afero.WriteFile(p.fs, "images/photo.jpg", []byte("pixels"), 0o644))

	created, err := p.svc.CreateTask(context.Background(), "images/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, created.Status)

	view := p.awaitTerminal(t, created.ID)
	require.Equal(t, domain.TaskStatusCompleted, view.Status)
	assert.Equal(t, 10.0, view.Price)
	require.Len(t, view.Images, 2)
	assert.Equal(t, "1024", view.Images[0].Resolution)
	assert.Equal(t, "800", view.Images[1].Resolution)

	for _, img := range view.Images {
		assert.Equal(t, filepath.Join("out", "photo", img.Resolution), filepath.Dir(img.Path))
		data, err := afero.ReadFile(p.fs, img.Path)
		require.NoError(t, err)
		assert.Equal(t, img.Resolution+":pixels", string(data))
	}

	stored, err := p.images.FindByTaskID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, stored[0].ContentHash, stored[1].ContentHash)
}

func TestPipeline_MissingLocalSourceFails(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	created, err := p.svc.CreateTask(context.Background(), "images/nonexistent.jpg")
	require.NoError(t, err)

	view := p.awaitTerminal(t, created.ID)
	assert.Equal(t, domain.TaskStatusFailed, view.Status)
	assert.Empty(t, view.Images)
}

func TestPipeline_RemoteNotFoundFails(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	p := newPipeline(t)

	created, err := p.svc.CreateTask(context.Background(), server.URL+"/missing.jpg")
	require.NoError(t, err)

	view := p.awaitTerminal(t, created.ID)
	assert.Equal(t, domain.TaskStatusFailed, view.Status)
	assert.Empty(t, view.Images)
}

func TestPipeline_RemoteSourceCompletes(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("remote"))
	}))
	t.Cleanup(server.Close)
	p := newPipeline(t)

	created, err := p.svc.CreateTask(context.Background(), server.URL+"/cat.png?sig=abc")
	require.NoError(t, err)

	view := p.awaitTerminal(t, created.ID)
	require.Equal(t, domain.TaskStatusCompleted, view.Status)
	require.Len(t, view.Images, 2)
	assert.Equal(t, ".png", filepath.Ext(view.Images[0].Path))
}

func TestPipeline_UnknownTask(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	_, err := p.svc.GetTask(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
