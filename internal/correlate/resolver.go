// Package correlate matches project structures to SDD spec projects.
//
// The two datasets are independently keyed, so the match is a three-key
// equality query (application id, project name, generator flag) returning a
// tagged result. Ambiguity is a distinct, reportable outcome: silently
// choosing one of several candidate projects risks writing work items into
// the wrong remote project, so there is no "first match wins" anywhere in
// this package.
package correlate

import (
	"context"
	"errors"
	"fmt"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
)

// Errors classifying failed correlations. Neither is auto-retried: not-found
// requires backfilling the structure's base application id (an out-of-band
// repair), ambiguous requires an operator to disambiguate the duplicate
// generator projects.
var (
	// ErrCorrelationNotFound is returned when no generator spec project
	// matches the structure.
	ErrCorrelationNotFound = errors.New("no matching spec project for structure")

	// ErrCorrelationAmbiguous is returned when more than one generator
	// spec project matches the structure.
	ErrCorrelationAmbiguous = errors.New("multiple spec projects match structure")
)

// Outcome tags the result of a correlation attempt.
type Outcome int

const (
	// Resolved means exactly one spec project matched.
	Resolved Outcome = iota
	// NotFound means no spec project matched.
	NotFound
	// Ambiguous means more than one spec project matched.
	Ambiguous
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not-found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of resolving one structure. Project is set
// only when Outcome is Resolved; Candidates lists every match when Outcome
// is Ambiguous so the operator can disambiguate.
type Result struct {
	Outcome    Outcome
	Structure  *model.ProjectStructure
	Project    *model.SpecProject
	Candidates []*model.SpecProject
}

// Err maps the outcome to its classification error, or nil when resolved.
// The error message names the structure and, for ambiguous results, the
// candidate ids, so it is actionable without further digging.
func (r *Result) Err() error {
	switch r.Outcome {
	case NotFound:
		return fmt.Errorf("%w: structure %s (project %q, application %q)",
			ErrCorrelationNotFound, r.Structure.ID, r.Structure.Project, r.Structure.BaseApplicationID)
	case Ambiguous:
		ids := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			ids[i] = c.ID
		}
		return fmt.Errorf("%w: structure %s matches spec projects %v",
			ErrCorrelationAmbiguous, r.Structure.ID, ids)
	default:
		return nil
	}
}

// Resolver correlates project structures against the spec project store.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve matches a structure to its spec project. The returned Result
// always carries exactly one of the three outcomes; the error return is
// reserved for infrastructure failures (store unavailable), never for the
// not-found and ambiguous outcomes, which are data conditions the caller
// reports rather than retries.
func (r *Resolver) Resolve(ctx context.Context, ps *model.ProjectStructure) (*Result, error) {
	if ps.BaseApplicationID == "" {
		// Without a base application id the correlation key is incomplete.
		// The repair (linking the structure to an application) happens
		// upstream; nothing to query here.
		return &Result{Outcome: NotFound, Structure: ps}, nil
	}

	matches, err := r.store.FindGeneratorProjects(ctx, ps.BaseApplicationID, ps.Project)
	if err != nil {
		return nil, fmt.Errorf("correlation query failed for structure %s: %w", ps.ID, err)
	}

	switch len(matches) {
	case 0:
		return &Result{Outcome: NotFound, Structure: ps}, nil
	case 1:
		return &Result{Outcome: Resolved, Structure: ps, Project: matches[0]}, nil
	default:
		return &Result{Outcome: Ambiguous, Structure: ps, Candidates: matches}, nil
	}
}
