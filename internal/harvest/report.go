package harvest

import (
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
)

// Phase names.
const (
	PhaseRules        = "rules"
	PhaseProjects     = "projects"
	PhaseLinks        = "links"
	PhaseFilesMetrics = "files-metrics"
)

// PhaseResult summarizes one phase.
type PhaseResult struct {
	Name string

	// Retrieved counts records (rules, projects) or projects (per-project
	// phases) that were retrieved.
	Retrieved int

	// Files lists the files written, in completion order.
	Files []string

	Failures []sonar.Failure
	Duration time.Duration
}

// Failed reports whether any resource of the phase failed.
func (r PhaseResult) Failed() bool {
	return len(r.Failures) > 0
}

// Report collects the results of every phase of a run.
type Report struct {
	Phases []PhaseResult
}

// Add appends a phase result.
func (r *Report) Add(p PhaseResult) {
	r.Phases = append(r.Phases, p)
}

// Failed reports whether any phase reported failures.
func (r *Report) Failed() bool {
	for _, p := range r.Phases {
		if p.Failed() {
			return true
		}
	}
	return false
}

// Failures returns every failure, prefixed by phase name.
func (r *Report) Failures() []PhaseFailure {
	var out []PhaseFailure
	for _, p := range r.Phases {
		for _, f := range p.Failures {
			out = append(out, PhaseFailure{Phase: p.Name, Failure: f})
		}
	}
	return out
}

// PhaseFailure is a Failure tagged with the phase it happened in.
type PhaseFailure struct {
	Phase string
	sonar.Failure
}
