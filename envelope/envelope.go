// Package envelope implements the portable snapshot representation of
// remote resources: one envelope holds the bodies and child collections of
// any number of resources of a single kind, plus metadata describing the
// snapshot run.
package envelope

import (
	"fmt"
	"sort"
	"time"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// FormatVersion is stamped into every envelope produced by export.
const FormatVersion = "1.0.0"

// Meta describes one snapshot run. IDs is the referenced id set: every
// listed id must have a corresponding entry.
type Meta struct {
	Version    string   `yaml:"version"`
	Kind       string   `yaml:"kind"`
	RunID      string   `yaml:"run-id,omitempty"`
	ExportedAt string   `yaml:"exported-at,omitempty"`
	IDs        []string `yaml:"ids"`
	Digest     string   `yaml:"digest,omitempty"`
}

// Entry is the portable form of one resource tree.
type Entry struct {
	Body     resource.Body
	Children []resource.Child
}

// Envelope is created by export and consumed read-only by import.
type Envelope struct {
	Meta    Meta
	Entries map[string]Entry
}

// New returns an empty envelope for one resource kind.
func New(kind string, runID string) *Envelope {
	return &Envelope{
		Meta: Meta{
			Version:    FormatVersion,
			Kind:       kind,
			RunID:      runID,
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Entries: make(map[string]Entry),
	}
}

// Add records an entry and references its id in the meta set.
func (e *Envelope) Add(id string, entry Entry) {
	if e.Entries == nil {
		e.Entries = make(map[string]Entry)
	}
	if _, exists := e.Entries[id]; !exists {
		e.Meta.IDs = append(e.Meta.IDs, id)
	}
	e.Entries[id] = entry
}

// SortedIDs returns the referenced id set in lexical order.
func (e *Envelope) SortedIDs() []string {
	ids := append([]string(nil), e.Meta.IDs...)
	sort.Strings(ids)
	return ids
}

// Validate enforces the structural invariants: a kind must be named, every
// id referenced by meta must have an entry, and every entry must be
// referenced by meta.
func (e *Envelope) Validate() error {
	if e == nil {
		return faults.NewTypedError(faults.ValidationError, "envelope is nil", nil)
	}
	if e.Meta.Kind == "" {
		return faults.NewTypedError(faults.ValidationError, "envelope meta is missing the resource kind", nil)
	}

	referenced := make(map[string]struct{}, len(e.Meta.IDs))
	for _, id := range e.Meta.IDs {
		if _, ok := e.Entries[id]; !ok {
			return faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("envelope references id %q without a matching entry", id),
				nil,
			)
		}
		referenced[id] = struct{}{}
	}
	for id := range e.Entries {
		if _, ok := referenced[id]; !ok {
			return faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("envelope entry %q is not referenced by meta", id),
				nil,
			)
		}
	}
	return nil
}
