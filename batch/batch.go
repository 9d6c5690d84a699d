// Package batch fans a per-resource operation out over many resources
// concurrently, isolating every item's failure and aggregating the
// outcomes into a single report.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/szylko/treeport/faults"
)

// Task pairs one resource id with the payload its operation consumes.
type Task[P any] struct {
	ID      string
	Payload P
}

// Outcome is the per-item record of a batch run.
type Outcome struct {
	ID       string
	OK       bool
	Category faults.ErrorCategory
	Detail   string
}

// Report aggregates one batch run. Succeeded holds the tasks whose
// operation completed, Failed the human-readable cause per failed id; both
// keep stable input order. Items that failed with a capability-gap error
// appear in neither list: the backend variant simply does not offer the
// operation.
type Report[P any] struct {
	RunID     string
	Succeeded []Task[P]
	Failed    []Outcome

	// Details carries per-id annotations for succeeded items (rename
	// notices, child-level warnings).
	Details map[string]string
}

// AllOK reports whether no item failed.
func (r Report[P]) AllOK() bool {
	return len(r.Failed) == 0
}

// Operation runs one task. The returned detail annotates a successful
// outcome; a returned error fails the item without affecting its siblings.
type Operation[P any] func(ctx context.Context, task Task[P]) (string, error)

// Run executes op for every task concurrently and joins every item before
// reporting, so no outcome is ever lost to an unawaited task. There is no
// artificial concurrency cap; the transport layer is expected to throttle.
// A cancelled context fails the items that have not run yet and is the
// only way the batch stops early; item errors never abort the run.
func Run[P any](ctx context.Context, tasks []Task[P], op Operation[P]) Report[P] {
	report := Report[P]{
		RunID:   uuid.NewString(),
		Details: make(map[string]string),
	}

	outcomes := make([]Outcome, len(tasks))
	skipped := make([]bool, len(tasks))

	var group errgroup.Group
	for idx, task := range tasks {
		group.Go(func() error {
			outcomes[idx], skipped[idx] = runOne(ctx, task, op)
			return nil
		})
	}
	_ = group.Wait()

	for idx, task := range tasks {
		if skipped[idx] {
			continue
		}
		outcome := outcomes[idx]
		if outcome.OK {
			report.Succeeded = append(report.Succeeded, task)
			if outcome.Detail != "" {
				report.Details[outcome.ID] = outcome.Detail
			}
			continue
		}
		report.Failed = append(report.Failed, outcome)
	}
	return report
}

func runOne[P any](ctx context.Context, task Task[P], op Operation[P]) (outcome Outcome, skip bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = Outcome{
				ID:       task.ID,
				Category: faults.InternalError,
				Detail:   fmt.Sprintf("operation panicked: %v", recovered),
			}
			skip = false
		}
	}()

	if err := ctx.Err(); err != nil {
		return Outcome{
			ID:       task.ID,
			Category: faults.TransportError,
			Detail:   "batch cancelled before this item ran",
		}, false
	}

	detail, err := op(ctx, task)
	if err != nil {
		if faults.IsCapabilityGap(err) {
			return Outcome{}, true
		}
		return Outcome{
			ID:       task.ID,
			Category: faults.Category(err),
			Detail:   err.Error(),
		}, false
	}

	return Outcome{ID: task.ID, OK: true, Detail: detail}, false
}

// IDs converts a plain id list into payload-less tasks.
func IDs(ids []string) []Task[struct{}] {
	tasks := make([]Task[struct{}], len(ids))
	for idx, id := range ids {
		tasks[idx] = Task[struct{}]{ID: id}
	}
	return tasks
}
