// Package syncer pushes eligible requirements and tasks into Azure DevOps
// as backlog items, creating each remote item at most once no matter how
// many passes run.
//
// The duplicate check is layered: the persisted remote id linkage is
// consulted first, then the remote project is queried by the requirement's
// sequence code. Only when both come up empty is a work item created, and
// the returned id is persisted under a first-writer-wins guard so a
// concurrent pass can never record a second linkage.
package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/auditoria-ti/specsync/internal/azure"
	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/store"
)

// Work item types created in the remote project.
const (
	backlogItemType = "Product Backlog Item"
	taskItemType    = "Task"
)

// Remote is the subset of the Azure DevOps client the synchronizer needs.
// Satisfied by *azure.Client; tests substitute a fake.
type Remote interface {
	FindWorkItemByTitle(ctx context.Context, project, itemType, titleKey string) (int, error)
	CreateWorkItem(ctx context.Context, project, itemType string, fields *azure.WorkItemFields, parentURL string) (*azure.WorkItem, error)
	WorkItemURL(id int) string
}

// Action classifies what a sync pass did with one record.
type Action string

const (
	// ActionCreated means a new remote work item was created.
	ActionCreated Action = "created"
	// ActionLinked means an existing remote item was found by its title
	// key and the local linkage was repaired.
	ActionLinked Action = "linked"
	// ActionSkipped means the record was already linked; nothing to do.
	ActionSkipped Action = "skipped"
	// ActionFailed means the record could not be synchronized this pass.
	ActionFailed Action = "failed"
)

// Outcome is the per-record result of a sync pass.
type Outcome struct {
	Kind     string `json:"kind"` // "requirement" or "task"
	RecordID string `json:"record_id"`
	Title    string `json:"title"`
	Action   Action `json:"action"`
	RemoteID int    `json:"remote_id,omitempty"`
	Err      error  `json:"-"`
}

// Result aggregates the outcomes of one pass over one spec project.
type Result struct {
	ProjectID string
	Outcomes  []Outcome
	Created   int
	Linked    int
	Skipped   int
	Failed    int
}

// Summary returns a one-line account of the pass.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d created, %d linked, %d skipped, %d failed",
		r.Created, r.Linked, r.Skipped, r.Failed)
}

// Syncer runs synchronization passes against one remote project.
type Syncer struct {
	store       *store.Store
	remote      Remote
	logger      *log.Logger
	parallelism int
	notify      func(Outcome)
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithParallelism bounds the number of requirements synchronized
// concurrently. A requirement and its tasks are always handled by the
// same worker.
func WithParallelism(n int) Option {
	return func(s *Syncer) { s.parallelism = n }
}

// WithLogger overrides the pass logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithNotify registers a callback invoked for every outcome as it is
// produced. Callbacks may run concurrently when parallelism is enabled.
func WithNotify(fn func(Outcome)) Option {
	return func(s *Syncer) { s.notify = fn }
}

// New creates a Syncer over the given store and remote.
func New(st *store.Store, remote Remote, opts ...Option) *Syncer {
	s := &Syncer{
		store:       st,
		remote:      remote,
		logger:      log.New(os.Stderr, "[sync] ", log.LstdFlags),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one pass: every eligible requirement of the spec project, and
// every eligible task under each, is pushed to remoteProject. A failing
// record is reported in the result and never aborts the rest of the pass.
func (s *Syncer) Sync(ctx context.Context, remoteProject string, sp *model.SpecProject) (*Result, error) {
	reqs, err := s.store.ListRequirements(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load requirements for %s: %w", sp.ProjectName, err)
	}

	res := &Result{ProjectID: sp.ID}
	eligible := model.EligibleRequirements(reqs)
	if len(eligible) == 0 {
		s.logger.Printf("%s: no eligible requirements", sp.ProjectName)
		return res, nil
	}

	workers := s.parallelism
	if workers < 1 {
		workers = 1
	}
	if workers > len(eligible) {
		workers = len(eligible)
	}

	var mu sync.Mutex
	record := func(outs []Outcome) {
		mu.Lock()
		res.Outcomes = append(res.Outcomes, outs...)
		mu.Unlock()
	}

	jobs := make(chan *model.Requirement)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				record(s.syncRequirement(ctx, remoteProject, r))
			}
		}()
	}

feed:
	for _, r := range eligible {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- r:
		}
	}
	close(jobs)
	wg.Wait()

	for _, o := range res.Outcomes {
		switch o.Action {
		case ActionCreated:
			res.Created++
		case ActionLinked:
			res.Linked++
		case ActionSkipped:
			res.Skipped++
		case ActionFailed:
			res.Failed++
		}
	}
	s.logger.Printf("%s: %s", sp.ProjectName, res.Summary())
	return res, ctx.Err()
}

// syncRequirement pushes one requirement and its eligible tasks. Tasks are
// only attempted once the requirement has a remote item to parent them to.
func (s *Syncer) syncRequirement(ctx context.Context, remoteProject string, r *model.Requirement) []Outcome {
	var outs []Outcome
	emit := func(o Outcome) {
		outs = append(outs, o)
		if s.notify != nil {
			s.notify(o)
		}
	}

	title := requirementTitle(r)
	remoteID := r.RemoteItemID

	switch {
	case remoteID != 0:
		emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionSkipped, RemoteID: remoteID})
	default:
		// The delimited key cannot be a prefix of another sequence
		// code ("RF-100 - " never matches an "RF-1000 - ..." title).
		id, err := s.remote.FindWorkItemByTitle(ctx, remoteProject, backlogItemType, r.Sequence+" - ")
		if err != nil {
			emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionFailed,
				Err: fmt.Errorf("duplicate check for %s failed: %w", r.Sequence, err)})
			return outs
		}
		if id != 0 {
			// An earlier pass created the item but the linkage was
			// lost locally. Repair it.
			if _, err := s.store.SetRequirementRemoteID(ctx, r.ID, id); err != nil {
				emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionFailed, Err: err})
				return outs
			}
			remoteID = id
			emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionLinked, RemoteID: id})
			break
		}

		wi, err := s.remote.CreateWorkItem(ctx, remoteProject, backlogItemType, &azure.WorkItemFields{
			Title:       title,
			Description: r.Description,
		}, "")
		if err != nil {
			emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionFailed,
				Err: fmt.Errorf("failed to create backlog item for %s: %w", r.Sequence, err)})
			return outs
		}
		if _, err := s.store.SetRequirementRemoteID(ctx, r.ID, wi.ID); err != nil {
			// The remote item exists; the next pass will relink it
			// through the title query.
			emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionFailed,
				Err: fmt.Errorf("created item %d but failed to persist linkage: %w", wi.ID, err)})
			return outs
		}
		remoteID = wi.ID
		emit(Outcome{Kind: "requirement", RecordID: r.ID, Title: title, Action: ActionCreated, RemoteID: wi.ID})
	}

	tasks, err := s.store.ListTasks(ctx, r.ID)
	if err != nil {
		emit(Outcome{Kind: "task", RecordID: r.ID, Title: title, Action: ActionFailed,
			Err: fmt.Errorf("failed to load tasks for %s: %w", r.Sequence, err)})
		return outs
	}

	parentURL := s.remote.WorkItemURL(remoteID)
	for _, t := range model.EligibleTasks(tasks, r) {
		emit(s.syncTask(ctx, remoteProject, r, t, parentURL))
	}
	return outs
}

func (s *Syncer) syncTask(ctx context.Context, remoteProject string, r *model.Requirement, t *model.Task, parentURL string) Outcome {
	title := taskTitle(r, t)
	if t.RemoteTaskID != 0 {
		return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionSkipped, RemoteID: t.RemoteTaskID}
	}

	id, err := s.remote.FindWorkItemByTitle(ctx, remoteProject, taskItemType, title)
	if err != nil {
		return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionFailed,
			Err: fmt.Errorf("duplicate check for task under %s failed: %w", r.Sequence, err)}
	}
	if id != 0 {
		if _, err := s.store.SetTaskRemoteID(ctx, t.ID, id); err != nil {
			return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionFailed, Err: err}
		}
		return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionLinked, RemoteID: id}
	}

	wi, err := s.remote.CreateWorkItem(ctx, remoteProject, taskItemType, &azure.WorkItemFields{
		Title: title,
	}, parentURL)
	if err != nil {
		return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionFailed,
			Err: fmt.Errorf("failed to create task under %s: %w", r.Sequence, err)}
	}
	if _, err := s.store.SetTaskRemoteID(ctx, t.ID, wi.ID); err != nil {
		return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionFailed,
			Err: fmt.Errorf("created task %d but failed to persist linkage: %w", wi.ID, err)}
	}
	return Outcome{Kind: "task", RecordID: t.ID, Title: title, Action: ActionCreated, RemoteID: wi.ID}
}

// requirementTitle is the remote title of a requirement's backlog item.
// The sequence code prefix doubles as the stable key the duplicate query
// matches on.
func requirementTitle(r *model.Requirement) string {
	return fmt.Sprintf("%s - %s", r.Sequence, r.Name)
}

// taskTitle carries the parent sequence code so the task shares the same
// stable key discipline.
func taskTitle(r *model.Requirement, t *model.Task) string {
	return fmt.Sprintf("%s - %s", r.Sequence, t.Description)
}
