package collision

import (
	"fmt"
	"sync"
	"testing"
)

func TestResolveUncontestedName(t *testing.T) {
	t.Parallel()

	got := Resolve("myScript", func(string) bool { return false })
	if got != "myScript" {
		t.Fatalf("unexpected resolution %q", got)
	}
}

func TestResolveProbesSuffixes(t *testing.T) {
	t.Parallel()

	taken := map[string]bool{
		"myScript":                true,
		"myScript - imported (1)": true,
		"myScript - imported (2)": true,
	}

	probes := 0
	got := Resolve("myScript", func(name string) bool {
		probes++
		return taken[name]
	})
	if got != "myScript - imported (3)" {
		t.Fatalf("unexpected resolution %q", got)
	}
	if probes > len(taken)+1 {
		t.Fatalf("resolution took %d probes for %d taken names", probes, len(taken))
	}
}

func TestResolveDeterminism(t *testing.T) {
	t.Parallel()

	exists := func(name string) bool { return name == "svc" }
	first := Resolve("svc", exists)
	second := Resolve("svc", exists)
	if first != second || first != "svc - imported (1)" {
		t.Fatalf("resolution not deterministic: %q vs %q", first, second)
	}
}

func TestRegistryReserveSequence(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.MarkTaken("myScript")

	if got := registry.Reserve("myScript"); got != "myScript - imported (1)" {
		t.Fatalf("first reservation resolved to %q", got)
	}
	if got := registry.Reserve("myScript"); got != "myScript - imported (2)" {
		t.Fatalf("second reservation resolved to %q", got)
	}
	if !registry.Has("myScript - imported (1)") {
		t.Fatalf("reserved name not recorded as taken")
	}
}

func TestRegistryConcurrentReservationsAreDistinct(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.MarkTaken("job")

	const workers = 16
	results := make([]string, workers)
	var wg sync.WaitGroup
	for idx := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[idx] = registry.Reserve("job")
		}()
	}
	wg.Wait()

	seen := make(map[string]int, workers)
	for _, name := range results {
		seen[name]++
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct names, got %d: %v", workers, len(seen), seen)
	}
	for n := 1; n <= workers; n++ {
		name := fmt.Sprintf("job - imported (%d)", n)
		if seen[name] != 1 {
			t.Fatalf("missing expected reservation %q", name)
		}
	}
}
