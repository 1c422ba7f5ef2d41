package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/codegraph/internal/config"
)

// recorder is a FileIndexer and Regenerator that remembers every call.
type recorder struct {
	mu        sync.Mutex
	reindexed []string
	removed   []string
	dirs      []string
	triggers  []Trigger
	failOn    string
}

func (r *recorder) ReindexFile(_ context.Context, rel string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rel == r.failOn {
		return 0, 0, errors.New("parse exploded")
	}
	r.reindexed = append(r.reindexed, rel)
	return 1, 0, nil
}

func (r *recorder) RemoveFile(_ context.Context, rel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, rel)
	return nil
}

func (r *recorder) RemoveDir(_ context.Context, rel string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, rel)
	return 1, nil
}

func (r *recorder) dirRemoved(rel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.dirs, rel)
}

func (r *recorder) Regenerate(_ context.Context, t Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, t)
	return nil
}

func (r *recorder) reindexedContains(rel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.reindexed, rel)
}

func (r *recorder) removedContains(rel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.removed, rel)
}

func (r *recorder) snapshot() (reindexed, removed []string, triggers []Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.reindexed), slices.Clone(r.removed), slices.Clone(r.triggers)
}

func startWatcher(t *testing.T, root string, rec *recorder, threshold int, idle time.Duration) *Watcher {
	t.Helper()
	ig, err := config.NewIgnorer(root, config.DefaultIgnore, false)
	require.NoError(t, err)
	w := New(rec, rec, Options{Root: root, Ignore: ig, Threshold: threshold, IdleDelay: idle})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Stop() })
	return w
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

// =============================================================================
// Watcher
// =============================================================================

func TestWatcher_AddChangeDelete(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	file := filepath.Join(root, "a.ts")
	write(t, file, "export class A {}\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("a.ts") }, waitFor, tick)

	require.NoError(t, os.Remove(file))
	assert.Eventually(t, func() bool { return rec.removedContains("a.ts") }, waitFor, tick)
}

func TestWatcher_ExistingSubdirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "deep"), 0o755))
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	write(t, filepath.Join(root, "src", "deep", "m.py"), "def f():\n    pass\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("src/deep/m.py") }, waitFor, tick)
}

func TestWatcher_NewDirectoryIsSubscribed(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	write(t, filepath.Join(root, "pkg", "first.ts"), "export const f = () => 1;\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("pkg/first.ts") }, waitFor, tick)

	write(t, filepath.Join(root, "pkg", "second.ts"), "export const g = () => 2;\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("pkg/second.ts") }, waitFor, tick)
}

func TestWatcher_DirectoryMovedOut(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "sub", "a.ts"), "export class A {}\n")
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	require.NoError(t, os.Rename(filepath.Join(root, "sub"), filepath.Join(t.TempDir(), "sub")))
	assert.Eventually(t, func() bool { return rec.dirRemoved("sub") }, waitFor, tick)
}

func TestWatcher_DirectoryRenamedWithinRoot(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "old", "a.ts"), "export class A {}\n")
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	require.NoError(t, os.Rename(filepath.Join(root, "old"), filepath.Join(root, "new")))
	assert.Eventually(t, func() bool {
		return rec.dirRemoved("old") && rec.reindexedContains("new/a.ts")
	}, waitFor, tick)
}

func TestWatcher_IgnoredDirectoryRemoval(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "node_modules", "x.ts"), "export class X {}\n")
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "node_modules")))
	write(t, filepath.Join(root, "z.ts"), "export class Z {}\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("z.ts") }, waitFor, tick)
	assert.False(t, rec.dirRemoved("node_modules"))
}

func TestWatcher_IgnoresUnsupportedAndIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "lib"), 0o755))
	rec := &recorder{}
	startWatcher(t, root, rec, 100, time.Hour)

	write(t, filepath.Join(root, "node_modules", "lib", "index.ts"), "export class X {}\n")
	write(t, filepath.Join(root, "README.md"), "# hi\n")
	write(t, filepath.Join(root, "main.go"), "package main\n")
	write(t, filepath.Join(root, "dist", "out.js"), "export function f() {}\n")
	// A supported file written last acts as a barrier for the serial loop.
	write(t, filepath.Join(root, "z.ts"), "export class Z {}\n")

	assert.Eventually(t, func() bool { return rec.reindexedContains("z.ts") }, waitFor, tick)
	reindexed, removed, _ := rec.snapshot()
	assert.NotContains(t, reindexed, "node_modules/lib/index.ts")
	assert.NotContains(t, reindexed, "README.md")
	assert.NotContains(t, reindexed, "main.go")
	assert.NotContains(t, reindexed, "dist/out.js")
	assert.Empty(t, removed)
}

func TestWatcher_ReindexErrorDoesNotStopLoop(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{failOn: "bad.ts"}
	startWatcher(t, root, rec, 100, time.Hour)

	write(t, filepath.Join(root, "bad.ts"), "class {")
	write(t, filepath.Join(root, "good.ts"), "export class G {}\n")
	assert.Eventually(t, func() bool { return rec.reindexedContains("good.ts") }, waitFor, tick)
}

func TestWatcher_ThresholdTriggersRegeneration(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec, 2, time.Hour)

	write(t, filepath.Join(root, "a.ts"), "export class A {}\n")
	write(t, filepath.Join(root, "b.ts"), "export class B {}\n")

	assert.Eventually(t, func() bool {
		_, _, triggers := rec.snapshot()
		return len(triggers) > 0
	}, waitFor, tick)
	_, _, triggers := rec.snapshot()
	assert.Equal(t, ReasonThreshold, triggers[0].Reason)
	assert.Equal(t, 2, triggers[0].Changes)
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := New(rec, nil, Options{Root: root})
	ctx := context.Background()

	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.Running())
	assert.Equal(t, root, w.Root())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.False(t, w.Running())

	require.NoError(t, w.Start(ctx), "a stopped watcher can be restarted")
	require.NoError(t, w.Stop())
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	t.Parallel()
	w := New(&recorder{}, nil, Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, w.Start(context.Background()))
	assert.False(t, w.Running())
}

func TestWatcher_Rel(t *testing.T) {
	t.Parallel()
	w := New(&recorder{}, nil, Options{Root: "/proj"})

	rel, ok := w.rel("/proj/src/a.ts")
	assert.True(t, ok)
	assert.Equal(t, "src/a.ts", rel)

	_, ok = w.rel("/proj")
	assert.False(t, ok)
	_, ok = w.rel("/elsewhere/a.ts")
	assert.False(t, ok)
}

// =============================================================================
// Debouncer
// =============================================================================

func runDebouncer(t *testing.T, threshold int, idle time.Duration, regen Regenerator) (*Debouncer, context.CancelFunc, chan struct{}) {
	t.Helper()
	d := NewDebouncer(threshold, idle, regen, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, cancel, done
}

func TestDebouncer_Threshold(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d, _, _ := runDebouncer(t, 5, time.Hour, rec)
	ctx := context.Background()

	for range 5 {
		d.Notify(ctx)
	}
	assert.Eventually(t, func() bool {
		_, _, tr := rec.snapshot()
		return len(tr) == 1
	}, waitFor, tick)
	_, _, tr := rec.snapshot()
	assert.Equal(t, Trigger{Changes: 5, Reason: ReasonThreshold}, tr[0])

	// The counter resets: four more changes stay below the threshold.
	for range 4 {
		d.Notify(ctx)
	}
	time.Sleep(100 * time.Millisecond)
	_, _, tr = rec.snapshot()
	assert.Len(t, tr, 1)
}

func TestDebouncer_Idle(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d, _, _ := runDebouncer(t, 5, 50*time.Millisecond, rec)

	d.Notify(context.Background())
	d.Notify(context.Background())

	assert.Eventually(t, func() bool {
		_, _, tr := rec.snapshot()
		return len(tr) == 1
	}, waitFor, tick)
	_, _, tr := rec.snapshot()
	assert.Equal(t, Trigger{Changes: 2, Reason: ReasonIdle}, tr[0])

	// No further notices, no further triggers.
	time.Sleep(150 * time.Millisecond)
	_, _, tr = rec.snapshot()
	assert.Len(t, tr, 1)
}

func TestDebouncer_TimerRestartsOnEachChange(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d, _, _ := runDebouncer(t, 100, 200*time.Millisecond, rec)

	for range 4 {
		d.Notify(context.Background())
		time.Sleep(80 * time.Millisecond)
	}
	_, _, tr := rec.snapshot()
	assert.Empty(t, tr, "each change pushes the idle deadline back")

	assert.Eventually(t, func() bool {
		_, _, tr := rec.snapshot()
		return len(tr) == 1
	}, waitFor, tick)
	_, _, tr = rec.snapshot()
	assert.Equal(t, 4, tr[0].Changes)
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d, cancel, done := runDebouncer(t, 5, 100*time.Millisecond, rec)

	d.Notify(context.Background())
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	time.Sleep(200 * time.Millisecond)
	_, _, tr := rec.snapshot()
	assert.Empty(t, tr)
}

func TestDebouncer_RegenerateErrorKeepsRunning(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	regen := RegeneratorFunc(func(context.Context, Trigger) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("hook failed")
	})
	d, _, _ := runDebouncer(t, 1, time.Hour, regen)

	d.Notify(context.Background())
	d.Notify(context.Background())
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, waitFor, tick)
}

func TestDebouncer_Defaults(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(0, 0, nil, nil)
	assert.Equal(t, DefaultThreshold, d.threshold)
	assert.Equal(t, DefaultIdleDelay, d.idle)
}
