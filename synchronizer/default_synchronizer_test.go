package synchronizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// fakeRemote is an in-memory remote backend. Error hooks run before the
// default behavior; a nil hook result falls through to the stored state.
type fakeRemote struct {
	mu       sync.Mutex
	bodies   map[string]resource.Body
	children map[string][]resource.Child
	calls    []string

	getHook         func(kind, id string) error
	listHook        func(kind, id string) error
	putHook         func(kind, id string, body resource.Body) error
	deleteHook      func(kind, id string) error
	putChildHook    func(kind, id string, child resource.Child) error
	deleteChildHook func(kind, id, childType, childID string) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		bodies:   make(map[string]resource.Body),
		children: make(map[string][]resource.Child),
	}
}

func (f *fakeRemote) key(kind, id string) string { return kind + "/" + id }

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Get(_ context.Context, kind, id string) (resource.Body, error) {
	f.record("get " + f.key(kind, id))
	if f.getHook != nil {
		if err := f.getHook(kind, id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.bodies[f.key(kind, id)]
	if !ok {
		return nil, faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("%s %q not found", kind, id), nil)
	}
	return resource.CloneBody(body), nil
}

func (f *fakeRemote) List(_ context.Context, kind string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for key := range f.bodies {
		if strings.HasPrefix(key, kind+"/") {
			ids = append(ids, strings.TrimPrefix(key, kind+"/"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeRemote) Put(_ context.Context, kind, id string, body resource.Body) error {
	f.record("put " + f.key(kind, id))
	if f.putHook != nil {
		if err := f.putHook(kind, id, body); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[f.key(kind, id)] = resource.CloneBody(body)
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, kind, id string) error {
	f.record("delete " + f.key(kind, id))
	if f.deleteHook != nil {
		if err := f.deleteHook(kind, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bodies[f.key(kind, id)]; !ok {
		return faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("%s %q not found", kind, id), nil)
	}
	delete(f.bodies, f.key(kind, id))
	delete(f.children, f.key(kind, id))
	return nil
}

func (f *fakeRemote) ListChildren(_ context.Context, kind, id string) ([]resource.Child, error) {
	f.record("listChildren " + f.key(kind, id))
	if f.listHook != nil {
		if err := f.listHook(kind, id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bodies[f.key(kind, id)]; !ok {
		return nil, faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("%s %q not found", kind, id), nil)
	}
	return resource.CloneChildren(f.children[f.key(kind, id)]), nil
}

func (f *fakeRemote) PutChild(_ context.Context, kind, id string, child resource.Child) error {
	f.record(fmt.Sprintf("putChild %s %s/%s", f.key(kind, id), child.Type, child.ID))
	if f.putChildHook != nil {
		if err := f.putChildHook(kind, id, child); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(kind, id)
	for idx, existing := range f.children[key] {
		if existing.Type == child.Type && existing.ID == child.ID {
			f.children[key][idx] = child
			return nil
		}
	}
	f.children[key] = append(f.children[key], child)
	return nil
}

func (f *fakeRemote) DeleteChild(_ context.Context, kind, id, childType, childID string) error {
	f.record(fmt.Sprintf("deleteChild %s %s/%s", f.key(kind, id), childType, childID))
	if f.deleteChildHook != nil {
		if err := f.deleteChildHook(kind, id, childType, childID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(kind, id)
	kept := f.children[key][:0]
	for _, existing := range f.children[key] {
		if existing.Type != childType || existing.ID != childID {
			kept = append(kept, existing)
		}
	}
	f.children[key] = kept
	return nil
}

func (f *fakeRemote) childIDs(kind, id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, child := range f.children[f.key(kind, id)] {
		ids = append(ids, child.Type+"/"+child.ID)
	}
	sort.Strings(ids)
	return ids
}

func capabilityGap() error {
	return faults.NewTypedError(faults.CapabilityGapError, "not available in this deployment variant", nil)
}

func transient(message string) error {
	return faults.NewTypedError(faults.TransportError, message, nil)
}

func TestExportOneCollectsFullChildSet(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["service/svc1"] = resource.Body{"name": "edge", "revision": int64(4)}
	remote.children["service/svc1"] = []resource.Child{
		{Type: "a", ID: "c1"},
		{Type: "b", ID: "c2"},
	}

	sync := NewDefaultSynchronizer(remote, nil, nil)
	entry, err := sync.ExportOne(context.Background(), resource.KindService, "svc1")
	if err != nil {
		t.Fatalf("ExportOne returned error: %v", err)
	}

	if len(entry.Children) != 2 {
		t.Fatalf("expected both children, got %#v", entry.Children)
	}
	seen := map[string]bool{}
	for _, child := range entry.Children {
		seen[child.Type+"/"+child.ID] = true
	}
	if !seen["a/c1"] || !seen["b/c2"] {
		t.Fatalf("missing child in %#v", entry.Children)
	}
	if _, ok := entry.Body["revision"]; ok {
		t.Fatalf("backend revision survived export")
	}
}

func TestExportOneTreatsChildCapabilityGapAsEmpty(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["script/s1"] = resource.Body{"name": "myScript", "content": "a\nb"}
	remote.listHook = func(string, string) error { return capabilityGap() }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	entry, err := sync.ExportOne(context.Background(), resource.KindScript, "s1")
	if err != nil {
		t.Fatalf("ExportOne returned error: %v", err)
	}
	if len(entry.Children) != 0 {
		t.Fatalf("expected no children, got %#v", entry.Children)
	}
}

func TestExportOnePropagatesBodyCapabilityGap(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.getHook = func(string, string) error { return capabilityGap() }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	_, err := sync.ExportOne(context.Background(), resource.KindService, "svc1")
	if !faults.IsCapabilityGap(err) {
		t.Fatalf("expected capability-gap error, got %v", err)
	}
}

func TestExportOneBodyErrorOutranksChildListingError(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.getHook = func(string, string) error { return capabilityGap() }
	remote.listHook = func(string, string) error { return transient("children unavailable") }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	_, err := sync.ExportOne(context.Background(), resource.KindService, "svc1")
	if !faults.IsCapabilityGap(err) {
		t.Fatalf("body fetch category must win over child listing failure, got %v", err)
	}
}

func TestExportOneReportsFetchFailure(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["service/svc1"] = resource.Body{"name": "edge"}
	remote.listHook = func(string, string) error { return transient("boom") }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	if _, err := sync.ExportOne(context.Background(), resource.KindService, "svc1"); !faults.IsCategory(err, faults.TransportError) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestImportOneCreatesParentBeforeChildren(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	sync := NewDefaultSynchronizer(remote, nil, nil)

	result, err := sync.ImportOne(context.Background(), resource.KindService, "svc1", envelope.Entry{
		Body: resource.Body{"name": "edge"},
		Children: []resource.Child{
			{Type: "a", ID: "c1"},
			{Type: "b", ID: "c2"},
		},
	}, ImportPolicy{})
	if err != nil {
		t.Fatalf("ImportOne returned error: %v", err)
	}
	if result.ChildFailures != nil {
		t.Fatalf("unexpected child failures: %v", result.ChildFailures)
	}

	remote.mu.Lock()
	calls := append([]string(nil), remote.calls...)
	remote.mu.Unlock()

	putIdx := -1
	for idx, call := range calls {
		if call == "put service/svc1" {
			putIdx = idx
		}
		if strings.HasPrefix(call, "putChild") && putIdx == -1 {
			t.Fatalf("child created before parent: %v", calls)
		}
	}
	if putIdx == -1 {
		t.Fatalf("parent was never created: %v", calls)
	}
	if got := remote.childIDs(resource.KindService, "svc1"); len(got) != 2 {
		t.Fatalf("expected 2 children on remote, got %v", got)
	}
}

func TestImportOneIsolatesChildFailures(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.putChildHook = func(_, _ string, child resource.Child) error {
		if child.ID == "c1" {
			return transient("child write failed")
		}
		return nil
	}

	sync := NewDefaultSynchronizer(remote, nil, nil)
	result, err := sync.ImportOne(context.Background(), resource.KindService, "svc1", envelope.Entry{
		Body: resource.Body{"name": "edge"},
		Children: []resource.Child{
			{Type: "a", ID: "c1"},
			{Type: "b", ID: "c2"},
		},
	}, ImportPolicy{})
	if err != nil {
		t.Fatalf("parent import must succeed despite child failure, got %v", err)
	}
	if result.ChildFailures == nil || !strings.Contains(result.ChildFailures.Error(), "a/c1") {
		t.Fatalf("expected c1 failure in detail, got %v", result.ChildFailures)
	}
	if got := remote.childIDs(resource.KindService, "svc1"); len(got) != 1 || got[0] != "b/c2" {
		t.Fatalf("sibling child must still be created, got %v", got)
	}
}

func TestImportOneResolvesNameConflicts(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	takenNames := map[string]bool{"myScript": true}
	var namesMu sync.Mutex
	remote.putHook = func(_, _ string, body resource.Body) error {
		namesMu.Lock()
		defer namesMu.Unlock()
		if takenNames[body.Name()] {
			return faults.NewTypedError(faults.ConflictError, "name already in use", nil)
		}
		takenNames[body.Name()] = true
		return nil
	}

	sync := NewDefaultSynchronizer(remote, nil, nil)
	entry := envelope.Entry{Body: resource.Body{"name": "myScript", "lines": []any{"x"}}}

	first, err := sync.ImportOne(context.Background(), resource.KindScript, "s1", entry, ImportPolicy{})
	if err != nil {
		t.Fatalf("first import returned error: %v", err)
	}
	if first.Name != "myScript - imported (1)" || !first.Renamed {
		t.Fatalf("unexpected first resolution %#v", first)
	}

	second, err := sync.ImportOne(context.Background(), resource.KindScript, "s2", entry, ImportPolicy{})
	if err != nil {
		t.Fatalf("second import returned error: %v", err)
	}
	if second.Name != "myScript - imported (2)" {
		t.Fatalf("unexpected second resolution %#v", second)
	}
}

func TestImportOneConflictRetryFailureIsHard(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.putHook = func(string, string, resource.Body) error {
		return faults.NewTypedError(faults.ConflictError, "name already in use", nil)
	}

	sync := NewDefaultSynchronizer(remote, nil, nil)
	_, err := sync.ImportOne(context.Background(), resource.KindScript, "s1", envelope.Entry{
		Body: resource.Body{"name": "myScript"},
	}, ImportPolicy{})
	if !faults.IsConflict(err) {
		t.Fatalf("expected hard conflict after single retry, got %v", err)
	}

	puts := 0
	for _, call := range remote.calls {
		if strings.HasPrefix(call, "put ") {
			puts++
		}
	}
	if puts != 2 {
		t.Fatalf("expected exactly one retry (2 puts), got %d", puts)
	}
}

func TestImportOneCleanSwallowsMissingTree(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	sync := NewDefaultSynchronizer(remote, nil, nil)

	result, err := sync.ImportOne(context.Background(), resource.KindService, "svc1", envelope.Entry{
		Body: resource.Body{"name": "edge"},
	}, ImportPolicy{Clean: true})
	if err != nil {
		t.Fatalf("ImportOne returned error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("missing tree must clean silently, got %v", result.Warnings)
	}
}

func TestImportOneCleanWarnsButContinues(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["service/svc1"] = resource.Body{"name": "old"}
	remote.deleteHook = func(string, string) error { return transient("delete refused") }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	result, err := sync.ImportOne(context.Background(), resource.KindService, "svc1", envelope.Entry{
		Body: resource.Body{"name": "edge"},
	}, ImportPolicy{Clean: true})
	if err != nil {
		t.Fatalf("pre-clean failure must not abort import, got %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one pre-clean warning, got %v", result.Warnings)
	}

	remote.mu.Lock()
	body := remote.bodies["service/svc1"]
	remote.mu.Unlock()
	if body.Name() != "edge" {
		t.Fatalf("create was not attempted after failed pre-clean: %#v", body)
	}
}

func TestImportOneIdempotentWithClean(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	sync := NewDefaultSynchronizer(remote, nil, nil)
	entry := envelope.Entry{
		Body: resource.Body{"name": "edge"},
		Children: []resource.Child{
			{Type: "a", ID: "c1"},
			{Type: "b", ID: "c2"},
		},
	}

	for run := 0; run < 2; run++ {
		if _, err := sync.ImportOne(context.Background(), resource.KindService, "svc1", entry, ImportPolicy{Clean: true}); err != nil {
			t.Fatalf("run %d returned error: %v", run, err)
		}
	}

	got := remote.childIDs(resource.KindService, "svc1")
	if len(got) != 2 {
		t.Fatalf("expected no duplicate children after repeated clean import, got %v", got)
	}
}

func TestImportOneRejectsMalformedEntry(t *testing.T) {
	t.Parallel()

	sync := NewDefaultSynchronizer(newFakeRemote(), nil, nil)
	_, err := sync.ImportOne(context.Background(), resource.KindVariable, "v1", envelope.Entry{
		Body: resource.Body{"name": "tier"},
	}, ImportPolicy{})
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteTreeContinuesPastChildFailure(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["service/svc1"] = resource.Body{"name": "edge"}
	remote.children["service/svc1"] = []resource.Child{
		{Type: "a", ID: "c1"},
		{Type: "a", ID: "c2"},
	}
	remote.deleteChildHook = func(_, _, _, childID string) error {
		if childID == "c1" {
			return transient("flaky")
		}
		return nil
	}

	sync := NewDefaultSynchronizer(remote, nil, nil)
	err := sync.DeleteTree(context.Background(), resource.KindService, "svc1")
	if err == nil || !strings.Contains(err.Error(), "a/c1") {
		t.Fatalf("expected c1 failure to be reported, got %v", err)
	}

	var deletedC2, deletedParent bool
	remote.mu.Lock()
	for _, call := range remote.calls {
		if call == "deleteChild service/svc1 a/c2" {
			deletedC2 = true
		}
		if call == "delete service/svc1" {
			deletedParent = true
		}
	}
	remote.mu.Unlock()
	if !deletedC2 {
		t.Fatalf("sibling child delete skipped: %v", remote.calls)
	}
	if !deletedParent {
		t.Fatalf("parent delete not attempted: %v", remote.calls)
	}
}

func TestDeleteTreeReportsResidualStateOnParentFailure(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.bodies["service/svc1"] = resource.Body{"name": "edge"}
	remote.children["service/svc1"] = []resource.Child{{Type: "a", ID: "c1"}}
	remote.deleteHook = func(string, string) error { return transient("parent delete refused") }

	sync := NewDefaultSynchronizer(remote, nil, nil)
	err := sync.DeleteTree(context.Background(), resource.KindService, "svc1")
	if err == nil || !strings.Contains(err.Error(), "partial") {
		t.Fatalf("expected residual-state error, got %v", err)
	}
}

func TestDeleteTreeMissingParentIsNotFound(t *testing.T) {
	t.Parallel()

	sync := NewDefaultSynchronizer(newFakeRemote(), nil, nil)
	err := sync.DeleteTree(context.Background(), resource.KindService, "ghost")
	if !faults.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
