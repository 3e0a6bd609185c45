package sim

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/config"
	"github.com/san-kum/physloop/internal/dynamo"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// trace is a shared, ordered event log for fakes in one test.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (t *trace) add(format string, args ...any) {
	t.mu.Lock()
	t.events = append(t.events, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.events))
	copy(out, t.events)
	return out
}

func (t *trace) reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}

func (t *trace) count(ev string) int {
	n := 0
	for _, e := range t.all() {
		if e == ev {
			n++
		}
	}
	return n
}

// fakeSim moves every body along +x by dt per step and records calls.
type fakeSim struct {
	name  string
	tr    *trace
	mu    sync.Mutex
	pos   map[dynamo.BodyID]float64
	dts   []float32
	fail  error
	block chan struct{}

	insertErr map[dynamo.BodyID]error
	closed    bool
	cleared   []bool
}

func newFakeSim(name string, tr *trace) *fakeSim {
	return &fakeSim{name: name, tr: tr, pos: make(map[dynamo.BodyID]float64)}
}

func (f *fakeSim) Simulate(dt float32) error {
	if f.block != nil {
		<-f.block
	}
	f.tr.add("%s:step", f.name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.dts = append(f.dts, dt)
	for id := range f.pos {
		f.pos[id] += float64(dt)
	}
	return nil
}

func (f *fakeSim) BeginContactTesting() { f.tr.add("%s:begin-contacts", f.name) }
func (f *fakeSim) EndContactTesting()   { f.tr.add("%s:end-contacts", f.name) }
func (f *fakeSim) SendEvents()          { f.tr.add("%s:events", f.name) }

func (f *fakeSim) Insert(b *dynamo.Body) error {
	f.tr.add("%s:insert:%d", f.name, b.ID)
	if err := f.insertErr[b.ID]; err != nil {
		return err
	}
	f.mu.Lock()
	f.pos[b.ID] = b.Desc.Motion.Position.X()
	f.mu.Unlock()
	b.SetHandle(f.name)
	return nil
}

func (f *fakeSim) Remove(b *dynamo.Body) {
	f.tr.add("%s:remove:%d", f.name, b.ID)
	f.mu.Lock()
	delete(f.pos, b.ID)
	f.mu.Unlock()
}

func (f *fakeSim) Clear(dispose bool) {
	f.tr.add("%s:clear:%v", f.name, dispose)
	f.mu.Lock()
	f.pos = make(map[dynamo.BodyID]float64)
	f.cleared = append(f.cleared, dispose)
	f.mu.Unlock()
}

func (f *fakeSim) Motion(b *dynamo.Body) (dynamo.Motion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	x, ok := f.pos[b.ID]
	if !ok {
		return dynamo.Motion{}, false
	}
	return dynamo.RestMotion(mgl64.Vec3{x, 0, 0}), true
}

func (f *fakeSim) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.tr.add("%s:close", f.name)
	return nil
}

func (f *fakeSim) stepDts() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float32, len(f.dts))
	copy(out, f.dts)
	return out
}

func (f *fakeSim) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeProcessor struct {
	name string
	tr   *trace

	mu      sync.Mutex
	synced  []dynamo.BodyID
	threads map[string]int
}

func newFakeProcessor(name string, tr *trace) *fakeProcessor {
	return &fakeProcessor{name: name, tr: tr}
}

func (p *fakeProcessor) UpdateRemovals()   { p.tr.add("%s:removals", p.name) }
func (p *fakeProcessor) UpdateBones()      { p.tr.add("%s:bones", p.name) }
func (p *fakeProcessor) UpdateCharacters() { p.tr.add("%s:characters", p.name) }
func (p *fakeProcessor) UpdateContacts()   { p.tr.add("%s:contacts", p.name) }

type syncingProcessor struct {
	*fakeProcessor
}

func (p syncingProcessor) SyncTransform(b *dynamo.Body) {
	p.mu.Lock()
	p.synced = append(p.synced, b.ID)
	p.mu.Unlock()
}

func (p *fakeProcessor) syncedIDs() []dynamo.BodyID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dynamo.BodyID, len(p.synced))
	copy(out, p.synced)
	return out
}

// fakeFactory hands out fakeSims named s1, s2, ... and remembers them.
type fakeFactory struct {
	tr   *trace
	mu   sync.Mutex
	sims []*fakeSim
	err  error
}

func (f *fakeFactory) build(dynamo.Flags) (dynamo.Simulation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeSim(fmt.Sprintf("s%d", len(f.sims)+1), f.tr)
	f.sims = append(f.sims, s)
	return s, nil
}

func (f *fakeFactory) sim(i int) *fakeSim {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sims[i]
}

func testPhysics(fixed float32, maxSub int) config.Physics {
	p := config.DefaultPhysics()
	p.FixedStep = fixed
	p.MaxSubSteps = maxSub
	p.WaitTimeout = 10 * time.Millisecond
	p.JoinTimeout = time.Second
	return p
}

func newBody(ids *dynamo.IDSource) *dynamo.Body {
	return dynamo.NewBody(ids.Next(), dynamo.BodyDesc{Mass: 1, Radius: 0.5})
}

var errBoom = errors.New("boom")

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
