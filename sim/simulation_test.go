package sim

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/geocoop/config"
	"github.com/pthm-cable/geocoop/lattice"
	"github.com/pthm-cable/geocoop/telemetry"
)

func twoByTwo(t *testing.T) *lattice.Lattice {
	t.Helper()
	l, err := lattice.FromRows([][]float64{{1, 0}, {1, 0}}, 0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func randomLattice(t *testing.T, h, w int, seed int64) *lattice.Lattice {
	t.Helper()
	cfg := config.Default()
	cfg.Lattice.Height = h
	cfg.Lattice.Width = w
	cfg.Initial.Mode = config.InitUniform
	l, err := NewLattice(cfg, seed)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestTwoByTwoSingleGeneration(t *testing.T) {
	l := twoByTwo(t)
	s, err := New(l, Options{Seed: 7, Generations: 1, MutationRate: 0, MutationSigma: 0.05})
	if err != nil {
		t.Fatal(err)
	}

	var report GenerationReport
	s.OnGeneration(func(r GenerationReport) { report = r })
	if err := s.RunConfigured(context.Background()); err != nil {
		t.Fatal(err)
	}

	in := report.Interaction
	if in.Donations != 4 {
		t.Errorf("donations = %d, want 4", in.Donations)
	}
	// Two full cooperators each donate once: cost 2*0.1*1, benefit 2*1.
	if math.Abs(in.Cost-0.2) > 1e-12 {
		t.Errorf("cost = %v, want 0.2", in.Cost)
	}
	if math.Abs(in.Benefit-2) > 1e-12 {
		t.Errorf("benefit = %v, want 2", in.Benefit)
	}

	for i, c := range l.Cooperation() {
		if c != 0 && c != 1 {
			t.Errorf("cell %d = %v, want exactly 0 or 1", i, c)
		}
	}
	for i, p := range l.Payoffs() {
		if p != 0 {
			t.Errorf("payoff %d = %v after generation, want 0", i, p)
		}
	}
	if s.Generation() != 1 {
		t.Errorf("generation = %d, want 1", s.Generation())
	}
}

func TestCooperationStaysBounded(t *testing.T) {
	l := randomLattice(t, 12, 9, 3)
	s, err := New(l, Options{Seed: 3, MutationRate: 0.5, MutationSigma: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	s.OnGeneration(func(r GenerationReport) {
		for i, c := range r.Lattice.Cooperation() {
			if c < 0 || c > 1 || math.IsNaN(c) {
				t.Fatalf("generation %d cell %d = %v", r.Generation, i, c)
			}
		}
	})
	if err := s.Run(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
}

func TestFramesSeePreInteractionState(t *testing.T) {
	l := randomLattice(t, 6, 5, 11)
	initial := append([]float64(nil), l.Cooperation()...)

	s, err := New(l, Options{Seed: 11, MutationRate: 0.1, MutationSigma: 0.05})
	if err != nil {
		t.Fatal(err)
	}

	var gens []int
	var afterPrev []float64
	s.OnGeneration(func(r GenerationReport) {
		afterPrev = append(afterPrev[:0], r.Lattice.Cooperation()...)
	})
	s.OnFrame(func(g int, v lattice.View) error {
		gens = append(gens, g)
		want := initial
		if g > 0 {
			want = afterPrev
		}
		for i, c := range v.Values() {
			if c != want[i] {
				t.Fatalf("frame %d cell %d = %v, want %v", g, i, c, want[i])
			}
		}
		return nil
	})

	const n = 5
	if err := s.Run(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if len(gens) != n {
		t.Fatalf("frames = %d, want %d", len(gens), n)
	}
	for i, g := range gens {
		if g != i {
			t.Errorf("frame %d has generation %d", i, g)
		}
	}
}

func TestFrameErrorAbortsRun(t *testing.T) {
	s, err := New(twoByTwo(t), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	perf := telemetry.NewPerfCollector(4)
	s.SetPerfCollector(perf)
	boom := errors.New("disk full")
	s.OnFrame(func(g int, _ lattice.View) error {
		if g == 2 {
			return boom
		}
		return nil
	})

	err = s.Run(context.Background(), 10)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want wrapped %v", err, boom)
	}
	if s.Generation() != 2 {
		t.Errorf("generation = %d, want 2 (failing generation not run)", s.Generation())
	}
	if perf.Timing() {
		t.Error("perf collector left mid-generation after a frame error")
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	s, err := New(twoByTwo(t), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if s.Generation() != 0 {
		t.Errorf("generation = %d, want 0", s.Generation())
	}
}

func TestSameSeedSameTrajectory(t *testing.T) {
	run := func(workers int) []float64 {
		l := randomLattice(t, 10, 10, 5)
		s, err := New(l, Options{Seed: 5, MutationRate: 0.2, MutationSigma: 0.1, Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(context.Background(), 20); err != nil {
			t.Fatal(err)
		}
		return append([]float64(nil), l.Cooperation()...)
	}

	a, b, c := run(1), run(1), run(4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs between identical runs: %v vs %v", i, a[i], b[i])
		}
		if a[i] != c[i] {
			t.Fatalf("cell %d differs with 4 workers: %v vs %v", i, a[i], c[i])
		}
	}
}

func TestSnapshotResumeMatchesUninterruptedRun(t *testing.T) {
	opts := Options{Seed: 21, Generations: 12, MutationRate: 0.3, MutationSigma: 0.1}

	full, err := New(randomLattice(t, 8, 7, 21), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := full.RunConfigured(context.Background()); err != nil {
		t.Fatal(err)
	}

	first, err := New(randomLattice(t, 8, 7, 21), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Run(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	snap, err := first.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	path, err := telemetry.SaveSnapshot(snap, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "snapshot_000005.json" {
		t.Errorf("snapshot name = %s", filepath.Base(path))
	}
	loaded, err := telemetry.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}

	resumed, err := Restore(loaded, Options{Generations: opts.Generations, Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Generation() != 5 {
		t.Fatalf("resumed at generation %d, want 5", resumed.Generation())
	}
	if err := resumed.RunConfigured(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := full.Lattice().Cooperation()
	got := resumed.Lattice().Cooperation()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("cell %d: resumed %v, uninterrupted %v", i, got[i], want[i])
		}
	}
}

func TestRestoreRejectsMismatchedShape(t *testing.T) {
	s, err := New(twoByTwo(t), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap.Height = 3
	if _, err := Restore(snap, Options{}); !errors.Is(err, lattice.ErrInvalidConfig) {
		t.Errorf("Restore() = %v, want ErrInvalidConfig", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"mutation rate negative", Options{MutationRate: -0.1}},
		{"mutation rate above one", Options{MutationRate: 1.1}},
		{"mutation rate NaN", Options{MutationRate: math.NaN()}},
		{"sigma negative", Options{MutationSigma: -1}},
		{"sigma infinite", Options{MutationSigma: math.Inf(1)}},
		{"generations negative", Options{Generations: -1}},
		{"workers negative", Options{Workers: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(twoByTwo(t), tt.opts)
			if !errors.Is(err, lattice.ErrInvalidConfig) {
				t.Errorf("New() = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if _, err := New(nil, Options{}); !errors.Is(err, lattice.ErrInvalidConfig) {
		t.Errorf("New(nil) = %v, want ErrInvalidConfig", err)
	}
}

func TestZeroGenerationsIsNoop(t *testing.T) {
	l := twoByTwo(t)
	s, err := New(l, Options{})
	if err != nil {
		t.Fatal(err)
	}
	frames := 0
	s.OnFrame(func(int, lattice.View) error { frames++; return nil })
	if err := s.RunConfigured(context.Background()); err != nil {
		t.Fatal(err)
	}
	if frames != 0 || s.Generation() != 0 {
		t.Errorf("frames=%d generation=%d, want 0 and 0", frames, s.Generation())
	}
}

func TestRecorderWritesGenerationsAndMilestones(t *testing.T) {
	dir := t.TempDir()
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	l, err := lattice.FromRows([][]float64{{1, 1}, {1, 1}}, 0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(l, Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	detector := telemetry.NewMilestoneDetector(telemetry.MilestoneThresholds{
		History: 2, EquilibriumWindows: 1, EquilibriumCV: 0.01,
		CollapseThreshold: 0.05, TakeoverThreshold: 0.95,
	})
	rec := NewRecorder(telemetry.NewCollector(1), detector, om, telemetry.NewPerfCollector(4), false)
	rec.Attach(s)

	if err := s.Run(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	gens, means := rec.Trajectory()
	if len(gens) != 3 || len(means) != 3 {
		t.Fatalf("trajectory length = %d/%d, want 3", len(gens), len(means))
	}
	if rec.Last().Generation != 2 || rec.Last().CoopMean != 1 {
		t.Errorf("last = %+v", rec.Last())
	}

	seen := map[telemetry.MilestoneType]int{}
	for _, m := range rec.Milestones() {
		seen[m.Type]++
	}
	if seen[telemetry.MilestoneCooperationTakeover] != 1 {
		t.Errorf("takeover fired %d times, want 1", seen[telemetry.MilestoneCooperationTakeover])
	}
	if seen[telemetry.MilestoneFixation] != 1 {
		t.Errorf("fixation fired %d times, want 1", seen[telemetry.MilestoneFixation])
	}
}

func TestRecorderResumeSeedsTrajectory(t *testing.T) {
	detector := telemetry.NewMilestoneDetector(telemetry.MilestoneThresholds{
		History: 2, EquilibriumWindows: 1, EquilibriumCV: 0.01,
		CollapseThreshold: 0.05, TakeoverThreshold: 0.95,
	})
	rec := NewRecorder(telemetry.NewCollector(0), detector, nil, nil, false)
	rec.Resume([]telemetry.GenerationStats{
		{Generation: 0, CoopMean: 0.5, CoopStd: 0.2},
		{Generation: 1, CoopMean: 0.99, CoopStd: 0.01},
	})

	if rec.Last().Generation != 1 {
		t.Errorf("last generation = %d, want 1", rec.Last().Generation)
	}
	if len(rec.Milestones()) != 1 || rec.Milestones()[0].Type != telemetry.MilestoneCooperationTakeover {
		t.Fatalf("milestones = %+v", rec.Milestones())
	}

	l, err := lattice.FromRows([][]float64{{1, 1}, {1, 1}}, 0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(l, Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	rec.Attach(s)
	if err := s.Run(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	gens, means := rec.Trajectory()
	if len(gens) != 3 || gens[0] != 0 || means[1] != 0.99 {
		t.Errorf("trajectory = %v %v", gens, means)
	}
	for _, m := range rec.Milestones() {
		if m.Type == telemetry.MilestoneCooperationTakeover && m.Generation != 1 {
			t.Errorf("takeover fired again at generation %d", m.Generation)
		}
	}
}
