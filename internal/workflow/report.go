package workflow

import (
	"time"

	"isoconvert/internal/disc"
	"isoconvert/internal/services"
)

// StageOutcome is one item's result for one stage.
type StageOutcome struct {
	Status   string
	Err      error
	Duration time.Duration
	Detail   string
}

// Message returns the error text, or Detail when the stage did not fail.
func (o StageOutcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Detail
}

func outcomeOf(err error, elapsed time.Duration) StageOutcome {
	return StageOutcome{Status: services.Classify(err), Err: err, Duration: elapsed}
}

// TitleReport records the conversion of a single title.
type TitleReport struct {
	Ordinal int
	Length  string
	Output  string
	Status  string
	Err     error
	Elapsed time.Duration
}

// ItemReport collects every stage outcome for one image.
type ItemReport struct {
	Path    string
	Label   string
	Preload StageOutcome
	Scan    StageOutcome
	Convert StageOutcome
	Titles  []TitleReport
}

// Failed reports whether the item needs attention. A preload that ran into
// its timeout is the normal way the player stops, so only a hard preload
// failure counts.
func (r *ItemReport) Failed() bool {
	if r.Preload.Status == services.StatusFailed {
		return true
	}
	for _, o := range []StageOutcome{r.Scan, r.Convert} {
		if o.Status == services.StatusFailed || o.Status == services.StatusTimeout {
			return true
		}
	}
	return false
}

// Stage returns the outcome for the named stage.
func (r *ItemReport) Stage(name string) StageOutcome {
	switch name {
	case StagePreload:
		return r.Preload
	case StageScan:
		return r.Scan
	default:
		return r.Convert
	}
}

// EncodedTitles counts titles that converted successfully.
func (r *ItemReport) EncodedTitles() int {
	n := 0
	for _, t := range r.Titles {
		if t.Status == services.StatusSucceeded {
			n++
		}
	}
	return n
}

// Report is the result of one pipeline run. Items keep worklist order.
type Report struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Items       []*ItemReport
	Interrupted bool

	index map[string]*ItemReport
}

func newReport(runID string, items []string) *Report {
	r := &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		Items:     make([]*ItemReport, 0, len(items)),
		index:     make(map[string]*ItemReport, len(items)),
	}
	for _, path := range items {
		if _, ok := r.index[path]; ok {
			continue
		}
		entry := &ItemReport{Path: path, Label: disc.Label(path)}
		r.Items = append(r.Items, entry)
		r.index[path] = entry
	}
	return r
}

func (r *Report) item(path string) *ItemReport {
	return r.index[path]
}

// Tally returns how many items finished cleanly and how many failed.
func (r *Report) Tally() (succeeded, failed int) {
	for _, it := range r.Items {
		if it.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// Failed reports whether any item failed.
func (r *Report) Failed() bool {
	_, failed := r.Tally()
	return failed > 0
}

// Elapsed is the wall time of the run.
func (r *Report) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
