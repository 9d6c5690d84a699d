package envelope

import (
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// Select returns a new envelope holding only the entries whose body
// satisfies the jq expression: an entry is kept when the expression yields
// at least one value that is neither null nor false. The input envelope is
// not modified.
func Select(env *Envelope, expression string) (*Envelope, error) {
	if env == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "envelope is nil", nil)
	}
	if expression == "" {
		return env, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("invalid jq selector %q", expression),
			err,
		)
	}

	selected := &Envelope{
		Meta:    env.Meta,
		Entries: make(map[string]Entry),
	}
	selected.Meta.IDs = nil
	selected.Meta.Digest = ""

	for _, id := range env.SortedIDs() {
		entry := env.Entries[id]
		keep, err := matches(query, id, entry.Body)
		if err != nil {
			return nil, err
		}
		if keep {
			selected.Add(id, entry)
		}
	}
	return selected, nil
}

func matches(query *gojq.Query, id string, body resource.Body) (bool, error) {
	normalized, err := resource.Normalize(map[string]any(resource.CloneBody(body)))
	if err != nil {
		return false, err
	}

	iter := query.Run(jqValue(normalized))
	for {
		value, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if runErr, isErr := value.(error); isErr {
			return false, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("jq selector failed for entry %q", id),
				runErr,
			)
		}
		if value == nil || value == false {
			continue
		}
		return true, nil
	}
}

// jqValue rewrites normalized payloads into the value set gojq accepts:
// int64 integers become int.
func jqValue(value any) any {
	switch typed := value.(type) {
	case int64:
		return int(typed)
	case []any:
		converted := make([]any, len(typed))
		for idx, item := range typed {
			converted[idx] = jqValue(item)
		}
		return converted
	case map[string]any:
		converted := make(map[string]any, len(typed))
		for key, item := range typed {
			converted[key] = jqValue(item)
		}
		return converted
	default:
		return typed
	}
}
