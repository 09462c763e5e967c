package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/rulebook"
	"rulebook-classifier/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Get(ctx context.Context, organization string) (*rulebook.Rulebook, error) {
	args := m.Called(ctx, organization)
	rb, _ := args.Get(0).(*rulebook.Rulebook)
	return rb, args.Error(1)
}

func (m *mockSource) Organizations(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	orgs, _ := args.Get(0).([]string)
	return orgs, args.Error(1)
}

func createRulebook(t testing.TB, org string, classes ...string) *rulebook.Rulebook {
	t.Helper()
	b := rulebook.NewBuilder(org)
	for _, name := range classes {
		b.Class(name).Subclass(name[:1], name)
	}
	rb, err := b.Build()
	require.NoError(t, err)
	return rb
}

// ==========================
// Registry Tests
// ==========================

func TestRegistry_PublishGetRemove(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("SCCA")
	assert.False(t, ok)

	first := createRulebook(t, "SCCA", "Street")
	assert.Nil(t, r.Publish(first))
	r.Publish(createRulebook(t, "NASA", "Time Trial"))

	got, ok := r.Get("SCCA")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, []string{"NASA", "SCCA"}, r.Organizations())

	second := createRulebook(t, "SCCA", "Street", "Prepared")
	assert.Same(t, first, r.Publish(second))
	got, _ = r.Get("SCCA")
	assert.Same(t, second, got)

	assert.True(t, r.Remove("NASA"))
	assert.False(t, r.Remove("NASA"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ReadersSeeWholeSnapshots(t *testing.T) {
	r := NewRegistry()
	old := createRulebook(t, "SCCA", "Street")
	next := createRulebook(t, "SCCA", "Street", "Prepared", "Modified")
	r.Publish(old)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rb, ok := r.Get("SCCA")
				if !ok || (rb != old && rb != next) {
					t.Error("reader observed a rulebook that was never published")
					return
				}
				if n := rb.Len(); n != 1 && n != 3 {
					t.Errorf("reader observed %d classes", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			r.Publish(next)
		} else {
			r.Publish(old)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRegistry_ConcurrentPublishersDoNotLoseUpdates(t *testing.T) {
	r := NewRegistry()
	orgs := []string{"SCCA", "NASA", "ChampCar", "Lemons", "WRL", "AER"}

	rulebooks := make([]*rulebook.Rulebook, 0, len(orgs))
	for _, org := range orgs {
		rulebooks = append(rulebooks, createRulebook(t, org, "Open"))
	}

	var wg sync.WaitGroup
	for _, rb := range rulebooks {
		wg.Add(1)
		go func(rb *rulebook.Rulebook) {
			defer wg.Done()
			r.Publish(rb)
		}(rb)
	}
	wg.Wait()

	assert.Equal(t, len(orgs), r.Len())
}

// ==========================
// Reloader Tests
// ==========================

func TestReloader_FailedReloadKeepsPublishedRulebook(t *testing.T) {
	registry := NewRegistry()
	good := createRulebook(t, "SCCA", "Street")

	source := &mockSource{}
	source.On("Get", mock.Anything, "SCCA").Return(good, nil).Once()
	source.On("Get", mock.Anything, "SCCA").Return(nil, errors.New("disk on fire")).Once()

	reloader := NewReloader(source, registry, []string{"SCCA"}, 0, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, reloader.Reload(ctx, "SCCA"))
	err := reloader.Reload(ctx, "SCCA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	got, ok := registry.Get("SCCA")
	require.True(t, ok)
	assert.Same(t, good, got)
	source.AssertExpectations(t)
}

func TestReloader_ReloadAll(t *testing.T) {
	t.Run("configured organizations", func(t *testing.T) {
		registry := NewRegistry()
		source := &mockSource{}
		source.On("Get", mock.Anything, "SCCA").Return(createRulebook(t, "SCCA", "Street"), nil)
		source.On("Get", mock.Anything, "NASA").Return(nil, store.ErrNotFound)

		err := NewReloader(source, registry, []string{"SCCA", "NASA"}, 0, logger.NewTestLogger(t)).
			ReloadAll(context.Background())

		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, []string{"SCCA"}, registry.Organizations())
		source.AssertNotCalled(t, "Organizations", mock.Anything)
	})

	t.Run("organizations listed by the source", func(t *testing.T) {
		registry := NewRegistry()
		source := &mockSource{}
		source.On("Organizations", mock.Anything).Return([]string{"SCCA", "NASA"}, nil)
		source.On("Get", mock.Anything, "SCCA").Return(createRulebook(t, "SCCA", "Street"), nil)
		source.On("Get", mock.Anything, "NASA").Return(createRulebook(t, "NASA", "Time Trial"), nil)

		err := NewReloader(source, registry, nil, 0, logger.NewTestLogger(t)).ReloadAll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"NASA", "SCCA"}, registry.Organizations())
	})

	t.Run("listing failure", func(t *testing.T) {
		source := &mockSource{}
		source.On("Organizations", mock.Anything).Return(nil, errors.New("timeout"))

		err := NewReloader(source, NewRegistry(), nil, 0, logger.NewTestLogger(t)).ReloadAll(context.Background())
		assert.ErrorContains(t, err, "list organizations")
	})
}

func TestReloader_RunPollsUntilCancelled(t *testing.T) {
	registry := NewRegistry()
	v1 := createRulebook(t, "SCCA", "Street")
	v2 := createRulebook(t, "SCCA", "Street", "Prepared")

	source := &mockSource{}
	source.On("Get", mock.Anything, "SCCA").Return(v1, nil).Once()
	source.On("Get", mock.Anything, "SCCA").Return(v2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReloader(source, registry, []string{"SCCA"}, 10*time.Millisecond, logger.NewNoOpLogger()).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		rb, ok := registry.Get("SCCA")
		return ok && rb == v2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// ==========================
// Watcher Tests
// ==========================

const watchedRulebook = `organization: SCCA
classes:
  - name: Street
    subclasses:
      - code: AS
        display_name: A Street
`

const updatedRulebook = `organization: SCCA
classes:
  - name: Street
    subclasses:
      - code: AS
        display_name: A Street
  - name: Prepared
    subclasses:
      - code: EP
        display_name: E Prepared
`

func TestWatcher_ReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SCCA.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedRulebook), 0o600))

	files := store.NewFileStore(dir)
	registry := NewRegistry()
	reloader := NewReloader(files, registry, nil, 0, logger.NewTestLogger(t))
	require.NoError(t, reloader.ReloadAll(context.Background()))

	rb, ok := registry.Get("SCCA")
	require.True(t, ok)
	require.Equal(t, 1, rb.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := NewWatcher(files, reloader, logger.NewTestLogger(t))
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte(updatedRulebook), 0o600))

	assert.Eventually(t, func() bool {
		rb, ok := registry.Get("SCCA")
		return ok && rb.Len() == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	time.Sleep(50 * time.Millisecond)

	rb, ok = registry.Get("SCCA")
	require.True(t, ok)
	assert.Equal(t, 2, rb.Len())
}

func TestWatcher_InvalidEditKeepsPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SCCA.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedRulebook), 0o600))

	files := store.NewFileStore(dir)
	registry := NewRegistry()
	reloader := NewReloader(files, registry, []string{"SCCA"}, 0, logger.NewNoOpLogger())
	require.NoError(t, reloader.ReloadAll(context.Background()))
	published, _ := registry.Get("SCCA")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failures := make(chan error, 16)
	watcher := NewWatcher(files, reloader, logger.NewNoOpLogger())
	watcher.OnChange(func(org string, err error) {
		if err != nil {
			failures <- err
		}
	})
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("organization: SCCA\nclasses: [\n"), 0o600))

	select {
	case err := <-failures:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the broken file")
	}

	got, ok := registry.Get("SCCA")
	require.True(t, ok)
	assert.Same(t, published, got)
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	files := store.NewFileStore(filepath.Join(t.TempDir(), "missing"))
	reloader := NewReloader(files, NewRegistry(), nil, 0, logger.NewNoOpLogger())

	err := NewWatcher(files, reloader, logger.NewNoOpLogger()).Start(context.Background())
	assert.Error(t, err)
}
