package sim

import (
	"log/slog"

	"github.com/pthm-cable/geocoop/telemetry"
)

// Recorder turns generation reports into stats, milestones and CSV rows.
// Any of its collaborators may be nil.
type Recorder struct {
	collector *telemetry.Collector
	detector  *telemetry.MilestoneDetector
	output    *telemetry.OutputManager
	perf      *telemetry.PerfCollector
	logStats  bool

	last       telemetry.GenerationStats
	milestones []telemetry.Milestone
}

// NewRecorder wires the telemetry collaborators together.
func NewRecorder(collector *telemetry.Collector, detector *telemetry.MilestoneDetector,
	output *telemetry.OutputManager, perf *telemetry.PerfCollector, logStats bool) *Recorder {
	if collector == nil {
		collector = telemetry.NewCollector(0)
	}
	return &Recorder{
		collector: collector,
		detector:  detector,
		output:    output,
		perf:      perf,
		logStats:  logStats,
	}
}

// Attach registers the recorder as an observer of s.
func (r *Recorder) Attach(s *Simulation) {
	s.OnGeneration(r.Observe)
	if r.perf != nil {
		s.SetPerfCollector(r.perf)
	}
}

// Observe records one completed generation.
func (r *Recorder) Observe(report GenerationReport) {
	stats := r.collector.Collect(report.Generation, report.Lattice.Cooperation(), report.Interaction, report.Evolution)
	r.last = stats

	if err := r.output.WriteGeneration(stats); err != nil {
		slog.Error("failed to write generation stats", "error", err)
	}

	if r.collector.ShouldLog(report.Generation) {
		if r.logStats {
			stats.LogStats()
		}
		if r.perf != nil {
			perfStats := r.perf.Stats()
			if r.logStats {
				perfStats.LogStats()
			}
			if err := r.output.WritePerf(perfStats, report.Generation); err != nil {
				slog.Error("failed to write perf", "error", err)
			}
		}
	}

	if r.detector == nil {
		return
	}
	for _, m := range r.detector.Check(stats) {
		r.milestones = append(r.milestones, m)
		if r.logStats {
			m.LogMilestone()
		}
		if err := r.output.WriteMilestone(m); err != nil {
			slog.Error("failed to write milestone", "error", err)
		}
	}
}

// Resume seeds the recorder with the stats of generations run before a
// snapshot, so trajectories and milestones cover the whole run.
func (r *Recorder) Resume(history []telemetry.GenerationStats) {
	if len(history) == 0 {
		return
	}
	r.collector.Restore(history)
	r.last = history[len(history)-1]
	if r.detector != nil {
		r.milestones = append(r.detector.Replay(history), r.milestones...)
	}
}

// Last returns the stats of the most recent generation.
func (r *Recorder) Last() telemetry.GenerationStats { return r.last }

// Milestones returns every milestone detected so far.
func (r *Recorder) Milestones() []telemetry.Milestone { return r.milestones }

// Trajectory returns the mean cooperation per recorded generation.
func (r *Recorder) Trajectory() (generations, means []float64) {
	return r.collector.Trajectory()
}
