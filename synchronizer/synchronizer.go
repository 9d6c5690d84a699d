// Package synchronizer moves one resource tree at a time between the
// remote backend and its portable envelope form.
package synchronizer

import (
	"context"

	"github.com/szylko/treeport/envelope"
)

// ImportPolicy controls how an existing remote resource is handled before
// recreation.
type ImportPolicy struct {
	// Clean deletes the existing resource tree at the target id before the
	// create is attempted. Absence of the tree is not an error.
	Clean bool
}

// ImportResult describes a completed import of one resource tree. Child
// failures and pre-clean warnings do not fail the import; they are carried
// here for the outcome report.
type ImportResult struct {
	ID string

	// Name is the display name the resource ended up with, after any
	// collision rename.
	Name    string
	Renamed bool

	// ChildFailures aggregates every child create that failed. The parent
	// is still considered imported.
	ChildFailures error

	// Warnings records non-fatal pre-clean problems.
	Warnings []string
}

type Exporter interface {
	ExportOne(ctx context.Context, kind string, id string) (envelope.Entry, error)
}

type Importer interface {
	ImportOne(ctx context.Context, kind string, id string, entry envelope.Entry, policy ImportPolicy) (ImportResult, error)
}

type Deleter interface {
	DeleteTree(ctx context.Context, kind string, id string) error
}

type Synchronizer interface {
	Exporter
	Importer
	Deleter
}
