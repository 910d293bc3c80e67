package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// MilestoneType identifies the type of milestone.
type MilestoneType string

const (
	MilestoneDefectionCollapse   MilestoneType = "defection_collapse"
	MilestoneCooperationTakeover MilestoneType = "cooperation_takeover"
	MilestoneFixation            MilestoneType = "fixation"
	MilestoneEquilibrium         MilestoneType = "equilibrium"
)

// Milestone represents an automatically detected moment in a run.
type Milestone struct {
	Type        MilestoneType `csv:"type"`
	Generation  int           `csv:"generation"`
	CoopMean    float64       `csv:"coop_mean"`
	Description string        `csv:"description"`
}

// LogMilestone logs the milestone using slog.
func (m Milestone) LogMilestone() {
	slog.Info("milestone",
		"type", string(m.Type),
		"generation", m.Generation,
		"coop_mean", m.CoopMean,
		"description", m.Description,
	)
}

// MilestoneThresholds configures the detector.
type MilestoneThresholds struct {
	History            int     // generations kept for rolling checks
	EquilibriumWindows int     // consecutive stable generations before equilibrium fires
	EquilibriumCV      float64 // max coefficient of variation of the mean over History
	CollapseThreshold  float64 // mean cooperation below this is a collapse
	TakeoverThreshold  float64 // mean cooperation above this is a takeover
}

// MilestoneDetector detects interesting moments in the simulation. Each
// milestone fires once and re-arms only after its condition has cleared.
type MilestoneDetector struct {
	th MilestoneThresholds

	// Rolling history (circular buffer)
	history     []float64
	historyIdx  int
	historyFull bool

	stableCount int
	fired       map[MilestoneType]bool
}

// NewMilestoneDetector creates a detector with the given thresholds.
func NewMilestoneDetector(th MilestoneThresholds) *MilestoneDetector {
	if th.History < 2 {
		th.History = 2
	}
	if th.EquilibriumWindows < 1 {
		th.EquilibriumWindows = 1
	}
	return &MilestoneDetector{
		th:      th,
		history: make([]float64, th.History),
		fired:   make(map[MilestoneType]bool),
	}
}

// Check analyzes the latest stats and returns any triggered milestones.
func (md *MilestoneDetector) Check(stats GenerationStats) []Milestone {
	md.addToHistory(stats.CoopMean)

	var out []Milestone
	emit := func(t MilestoneType, active bool, desc string) {
		if !active {
			md.fired[t] = false
			return
		}
		if md.fired[t] {
			return
		}
		md.fired[t] = true
		out = append(out, Milestone{
			Type:        t,
			Generation:  stats.Generation,
			CoopMean:    stats.CoopMean,
			Description: desc,
		})
	}

	emit(MilestoneDefectionCollapse, stats.CoopMean < md.th.CollapseThreshold,
		fmt.Sprintf("Mean cooperation %.3f fell below %.3f", stats.CoopMean, md.th.CollapseThreshold))
	emit(MilestoneCooperationTakeover, stats.CoopMean > md.th.TakeoverThreshold,
		fmt.Sprintf("Mean cooperation %.3f rose above %.3f", stats.CoopMean, md.th.TakeoverThreshold))
	emit(MilestoneFixation, stats.CoopStd == 0,
		fmt.Sprintf("Every cell fixed at cooperation %.3f", stats.CoopMean))
	emit(MilestoneEquilibrium, md.checkEquilibrium(),
		fmt.Sprintf("Mean cooperation stable near %.3f for %d generations", stats.CoopMean, md.stableCount))

	return out
}

func (md *MilestoneDetector) addToHistory(mean float64) {
	md.history[md.historyIdx] = mean
	md.historyIdx = (md.historyIdx + 1) % len(md.history)
	if md.historyIdx == 0 {
		md.historyFull = true
	}
}

// checkEquilibrium reports whether the rolling coefficient of variation of
// the mean has stayed below the threshold for EquilibriumWindows checks.
func (md *MilestoneDetector) checkEquilibrium() bool {
	if !md.historyFull {
		return false
	}

	var sum float64
	for _, v := range md.history {
		sum += v
	}
	mean := sum / float64(len(md.history))

	var sq float64
	for _, v := range md.history {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(md.history)))

	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}
	if cv <= md.th.EquilibriumCV {
		md.stableCount++
	} else {
		md.stableCount = 0
	}
	return md.stableCount >= md.th.EquilibriumWindows
}

// Replay feeds earlier stats through the detector so its rolling history and
// fired set match those of the run that produced them. Returns the milestones
// the replay triggered.
func (md *MilestoneDetector) Replay(history []GenerationStats) []Milestone {
	var out []Milestone
	for _, st := range history {
		out = append(out, md.Check(st)...)
	}
	return out
}
