package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/geocoop/config"
)

// csvTable is an append-only CSV file whose header is written with the first record.
type csvTable struct {
	name          string
	file          *os.File
	headerWritten bool
}

func openTable(dir, name string) (*csvTable, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvTable{name: name, file: f}, nil
}

// resumeTable reopens name keeping only the rows that pass keep. A missing
// or empty file starts a fresh table.
func resumeTable[T any](dir, name string, keep func(T) bool) (*csvTable, []T, error) {
	var rows []T
	f, err := os.Open(filepath.Join(dir, name))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, nil, fmt.Errorf("opening %s: %w", name, err)
	default:
		err = gocsv.UnmarshalFile(f, &rows)
		f.Close()
		if err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}

	kept := rows[:0]
	for _, r := range rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}

	t, err := openTable(dir, name)
	if err != nil {
		return nil, nil, err
	}
	if len(kept) > 0 {
		if err := t.append(kept); err != nil {
			t.close()
			return nil, nil, err
		}
	}
	return t, kept, nil
}

// append writes records, a slice of csv-tagged structs.
func (t *csvTable) append(records any) error {
	if !t.headerWritten {
		if err := gocsv.Marshal(records, t.file); err != nil {
			return fmt.Errorf("writing %s: %w", t.name, err)
		}
		t.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, t.file); err != nil {
		return fmt.Errorf("writing %s: %w", t.name, err)
	}
	return nil
}

func (t *csvTable) close() error {
	if t == nil || t.file == nil {
		return nil
	}
	return t.file.Close()
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir         string
	generations *csvTable
	perf        *csvTable
	milestones  *csvTable
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.generations, err = openTable(dir, "generations.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = openTable(dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.milestones, err = openTable(dir, "milestones.csv"); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// History is the telemetry a resumed run inherits from its output directory.
type History struct {
	Generations []GenerationStats
	Milestones  []Milestone
}

// ResumeOutputManager opens dir for a run continuing at generation. Rows
// already written for earlier generations are kept and later ones dropped,
// so the tables read as one uninterrupted run. Returns a nil manager if dir
// is empty.
func ResumeOutputManager(dir string, generation int) (*OutputManager, History, error) {
	var hist History
	if dir == "" {
		return nil, hist, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, hist, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	om.generations, hist.Generations, err = resumeTable(dir, "generations.csv",
		func(r GenerationStats) bool { return r.Generation < generation })
	if err != nil {
		return nil, hist, err
	}
	om.perf, _, err = resumeTable(dir, "perf.csv",
		func(r PerfStatsCSV) bool { return r.Generation < generation })
	if err != nil {
		om.Close()
		return nil, hist, err
	}
	om.milestones, hist.Milestones, err = resumeTable(dir, "milestones.csv",
		func(r Milestone) bool { return r.Generation < generation })
	if err != nil {
		om.Close()
		return nil, hist, err
	}
	return om, hist, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration writes a generation stats record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	return om.generations.append([]GenerationStats{stats})
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, generation int) error {
	if om == nil {
		return nil
	}
	return om.perf.append([]PerfStatsCSV{stats.ToCSV(generation)})
}

// WriteMilestone writes a milestone record to milestones.csv.
func (om *OutputManager) WriteMilestone(m Milestone) error {
	if om == nil {
		return nil
	}
	return om.milestones.append([]Milestone{m})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Path joins name onto the output directory.
func (om *OutputManager) Path(name string) string {
	if om == nil {
		return ""
	}
	return filepath.Join(om.dir, name)
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, t := range []*csvTable{om.generations, om.perf, om.milestones} {
		if err := t.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
