package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// tracker counts widgets that exist (built and not yet destroyed).
type tracker struct {
	mu      sync.Mutex
	alive   int
	max     int
	built   int
	delay   time.Duration
	failing bool
}

type trackedWidget struct {
	*Buffer
	t    *tracker
	once sync.Once
}

func (tw *trackedWidget) Create(ctx context.Context) error {
	tw.t.mu.Lock()
	failing := tw.t.failing
	tw.t.mu.Unlock()
	if failing {
		return errors.New("construction failed")
	}
	return tw.Buffer.Create(ctx)
}

func (tw *trackedWidget) Destroy() {
	tw.once.Do(func() {
		tw.t.mu.Lock()
		tw.t.alive--
		tw.t.mu.Unlock()
	})
	tw.Buffer.Destroy()
}

func (t *tracker) factory(container, initial string) Widget {
	t.mu.Lock()
	t.alive++
	t.built++
	if t.alive > t.max {
		t.max = t.alive
	}
	t.mu.Unlock()
	return &trackedWidget{Buffer: NewBuffer(container, initial, t.delay), t: t}
}

func (t *tracker) counts() (alive, max, built int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive, t.max, t.built
}

// fakeAssets records load/release order and how many assets are held.
type fakeAssets struct {
	mu      sync.Mutex
	held    map[string]int
	maxHeld int
	log     []string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{held: map[string]int{}}
}

func (f *fakeAssets) Load(_ context.Context, theme string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[theme]++
	n := 0
	for _, c := range f.held {
		n += c
	}
	if n > f.maxHeld {
		f.maxHeld = n
	}
	f.log = append(f.log, "load:"+theme)
	return nil
}

func (f *fakeAssets) Release(theme string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[theme]--
	if f.held[theme] == 0 {
		delete(f.held, theme)
	}
	f.log = append(f.log, "release:"+theme)
}

func (f *fakeAssets) snapshot() ([]string, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.held {
		n += c
	}
	return append([]string(nil), f.log...), n, f.maxHeld
}

func waitReady(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v (state %s)", err, m.State())
	}
}

func TestManager_MountAndContent(t *testing.T) {
	tr := &tracker{}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	defer m.Destroy()

	if m.State() != StateUninitialized {
		t.Fatalf("state = %s", m.State())
	}
	if _, ok := m.Content(context.Background()); ok {
		t.Fatal("content must be absent before mount")
	}
	_ = m.SetSource("# Hello")
	if _, _, built := tr.counts(); built != 0 {
		t.Fatal("SetSource before Mount must not construct")
	}

	if err := m.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	waitReady(t, m)
	got, ok := m.Content(context.Background())
	if !ok || got != "# Hello" {
		t.Errorf("Content = %q, %v", got, ok)
	}
	if m.Instance() == nil {
		t.Error("Instance should be available when ready")
	}
}

func TestManager_NotReadyDuringReinit(t *testing.T) {
	tr := &tracker{delay: 50 * time.Millisecond}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	defer m.Destroy()
	_ = m.Mount()
	waitReady(t, m)

	_ = m.SetSource("second")
	if m.Ready() || m.State() != StateReinitializing {
		t.Fatalf("state during reinit = %s", m.State())
	}
	if _, ok := m.Content(context.Background()); ok {
		t.Error("content must be absent while reinitializing")
	}
	if m.Instance() != nil {
		t.Error("no instance may be exposed while reinitializing")
	}
	waitReady(t, m)
	if got, _ := m.Content(context.Background()); got != "second" {
		t.Errorf("Content = %q", got)
	}
}

func TestManager_UnchangedSourceIsNoop(t *testing.T) {
	tr := &tracker{}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	defer m.Destroy()
	_ = m.SetSource("same")
	_ = m.Mount()
	waitReady(t, m)
	_ = m.SetSource("same")
	_ = m.SetTheme("forest")
	if _, _, built := tr.counts(); built != 1 {
		t.Errorf("built = %d, want 1", built)
	}
	_ = m.Reload()
	waitReady(t, m)
	if _, _, built := tr.counts(); built != 2 {
		t.Errorf("built after Reload = %d, want 2", built)
	}
}

func TestManager_LatestRequestWins(t *testing.T) {
	tr := &tracker{delay: 10 * time.Millisecond}
	assets := newFakeAssets()
	m := NewManager("editor", tr.factory, assets, "forest", quietLogger())
	defer m.Destroy()
	_ = m.Mount()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if j%3 == 0 {
					_ = m.SetTheme(fmt.Sprintf("theme-%d-%d", i, j))
				} else {
					_ = m.SetSource(fmt.Sprintf("doc-%d-%d", i, j))
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	_ = m.SetTheme("nord")
	_ = m.SetSource("final")
	waitReady(t, m)

	got, ok := m.Content(context.Background())
	if !ok || got != "final" {
		t.Errorf("Content = %q, %v; want the latest source", got, ok)
	}
	alive, max, _ := tr.counts()
	if alive != 1 || max != 1 {
		t.Errorf("alive = %d max = %d, want exactly one instance at any time", alive, max)
	}
	_, held, maxHeld := assets.snapshot()
	if held != 1 || maxHeld != 1 {
		t.Errorf("assets held = %d max = %d, want one", held, maxHeld)
	}
}

func TestManager_ThemeAssetReleasedBeforeReplacement(t *testing.T) {
	tr := &tracker{}
	assets := newFakeAssets()
	m := NewManager("editor", tr.factory, assets, "forest", quietLogger())
	defer m.Destroy()
	_ = m.Mount()
	waitReady(t, m)

	_ = m.SetTheme("nord")
	waitReady(t, m)
	m.Destroy()

	log, held, _ := assets.snapshot()
	want := []string{"load:forest", "release:forest", "load:nord", "release:nord"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("asset log = %v, want %v", log, want)
	}
	if held != 0 {
		t.Errorf("held after destroy = %d", held)
	}
}

func TestManager_DestroyIdempotent(t *testing.T) {
	tr := &tracker{}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	m.Destroy() // no instance yet
	m.Destroy()
	if m.State() != StateDestroyed {
		t.Fatalf("state = %s", m.State())
	}
	if err := m.Mount(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Mount after Destroy = %v", err)
	}
	if err := m.SetSource("x"); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SetSource after Destroy = %v", err)
	}
	if err := m.WaitReady(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("WaitReady after Destroy = %v", err)
	}
	if _, ok := m.Content(context.Background()); ok {
		t.Error("content must be absent after Destroy")
	}
}

func TestManager_DestroyDuringConstruction(t *testing.T) {
	tr := &tracker{delay: time.Second}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	_ = m.Mount()
	time.Sleep(10 * time.Millisecond)
	m.Destroy()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if alive, _, _ := tr.counts(); alive == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("instance under construction was not torn down")
}

func TestManager_OnReadyAndFailure(t *testing.T) {
	tr := &tracker{}
	m := NewManager("editor", tr.factory, nil, "forest", quietLogger())
	defer m.Destroy()

	var readies atomic.Int32
	m.OnReady(func() { readies.Add(1) })
	_ = m.Mount()
	waitReady(t, m)
	if readies.Load() != 1 {
		t.Errorf("OnReady calls = %d", readies.Load())
	}

	tr.mu.Lock()
	tr.failing = true
	tr.mu.Unlock()
	_ = m.SetSource("broken")

	deadline := time.Now().Add(time.Second)
	for m.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Err() == nil {
		t.Fatal("construction error not recorded")
	}
	if m.Ready() {
		t.Error("failed construction must not report ready")
	}
	if alive, _, _ := tr.counts(); alive != 0 {
		t.Errorf("alive = %d after failed construction", alive)
	}

	tr.mu.Lock()
	tr.failing = false
	tr.mu.Unlock()
	_ = m.SetSource("fixed")
	waitReady(t, m)
	if m.Err() != nil || readies.Load() != 2 {
		t.Errorf("err = %v readies = %d", m.Err(), readies.Load())
	}
}

func TestBuffer(t *testing.T) {
	b := NewBuffer("c", "text", 0)
	if _, err := b.Content(context.Background()); err == nil {
		t.Error("content before Create should fail")
	}
	if err := b.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = b.SetText("edited")
	if got, _ := b.Content(context.Background()); got != "edited" {
		t.Errorf("Content = %q", got)
	}
	b.Destroy()
	if _, err := b.Content(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Content after Destroy = %v", err)
	}
	if err := b.SetText("x"); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SetText after Destroy = %v", err)
	}
}
