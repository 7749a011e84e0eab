package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/index"
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeUpdater) Update(context.Context) (*index.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &index.Summary{Mode: index.ModeUpdate, Added: 1}, nil
}

func (f *fakeUpdater) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewRunner_Validation(t *testing.T) {
	batches := make(chan []Event)

	_, err := NewRunner(nil, batches, testLogger())
	require.Error(t, err)

	_, err = NewRunner(&fakeUpdater{}, nil, testLogger())
	require.Error(t, err)

	r, err := NewRunner(&fakeUpdater{}, batches, nil)
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestRunner_OneUpdatePerBatch(t *testing.T) {
	upd := &fakeUpdater{}
	batches := make(chan []Event, 4)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	batches <- []Event{{Path: "a.md", Op: OpCreate}}
	batches <- []Event{
		{Path: "b.md", Op: OpModify},
		{Path: "c.md", Op: OpDelete},
	}
	close(batches)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, upd.count())
}

func TestRunner_SkipsEmptyBatches(t *testing.T) {
	upd := &fakeUpdater{}
	batches := make(chan []Event, 2)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	batches <- []Event{}
	close(batches)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 0, upd.count())
}

func TestRunner_ToleratesBusyIndex(t *testing.T) {
	upd := &fakeUpdater{err: index.ErrIndexBusy}
	batches := make(chan []Event, 2)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	batches <- []Event{{Path: "a.md", Op: OpModify}}
	batches <- []Event{{Path: "b.md", Op: OpModify}}
	close(batches)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, upd.count())
}

func TestRunner_UpdateFailureIsNonFatal(t *testing.T) {
	upd := &fakeUpdater{err: errors.New("backend hiccup")}
	batches := make(chan []Event, 2)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	batches <- []Event{{Path: "a.md", Op: OpModify}}
	batches <- []Event{{Path: "b.md", Op: OpModify}}
	close(batches)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, upd.count())
}

func TestRunner_Callbacks(t *testing.T) {
	upd := &fakeUpdater{}
	batches := make(chan []Event, 1)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	var summaries []*index.Summary
	r.OnSummary = func(s *index.Summary) { summaries = append(summaries, s) }
	r.OnError = func(error) { t.Fatal("OnError fired for a successful update") }

	batches <- []Event{{Path: "a.md", Op: OpModify}}
	close(batches)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Added)
}

func TestRunner_OnErrorSkipsBusyIndex(t *testing.T) {
	upd := &fakeUpdater{err: index.ErrIndexBusy}
	batches := make(chan []Event, 1)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	r.OnError = func(error) { t.Fatal("OnError fired for a busy index") }

	batches <- []Event{{Path: "a.md", Op: OpModify}}
	close(batches)
	require.NoError(t, r.Run(context.Background()))
}

func TestRunner_OnErrorReceivesFailures(t *testing.T) {
	upd := &fakeUpdater{err: errors.New("backend hiccup")}
	batches := make(chan []Event, 1)
	r, err := NewRunner(upd, batches, testLogger())
	require.NoError(t, err)

	var got []error
	r.OnError = func(err error) { got = append(got, err) }

	batches <- []Event{{Path: "a.md", Op: OpModify}}
	close(batches)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "backend hiccup")
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	r, err := NewRunner(&fakeUpdater{}, make(chan []Event), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case runErr := <-done:
		assert.NoError(t, runErr)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestSamplePaths(t *testing.T) {
	batch := []Event{
		{Path: "c.md"}, {Path: "a.md"}, {Path: "d.md"}, {Path: "b.md"},
	}
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, samplePaths(batch, 3))
	assert.Equal(t, []string{"a.md", "b.md", "c.md", "d.md"}, samplePaths(batch, 10))
}
