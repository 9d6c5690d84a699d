// Package collision resolves display-name collisions during import with a
// deterministic rename scheme.
package collision

import "fmt"

// Resolve returns desired unchanged when exists(desired) is false.
// Otherwise it probes "<desired> - imported (<n>)" for n = 1, 2, ... until
// exists reports the candidate free. Resolution is a pure function of the
// exists predicate: the same predicate sequence always yields the same
// name, and for a finite taken set of size N at most N+1 probes are needed.
func Resolve(desired string, exists func(string) bool) string {
	if !exists(desired) {
		return desired
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s - imported (%d)", desired, n)
		if !exists(candidate) {
			return candidate
		}
	}
}
