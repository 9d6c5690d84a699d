package envelope

import (
	"fmt"
	"strings"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// Body fields assigned by the backend. They are stripped on export and
// never trusted from a caller-supplied envelope on import.
var serverManagedFields = []string{resource.FieldRevision, resource.FieldEnabled}

// Required body keys per resource kind. Everything else is opaque
// pass-through; business validation belongs to the remote backend.
var requiredKeys = map[string][]string{
	resource.KindService:  {resource.FieldName},
	resource.KindScript:   {resource.FieldName},
	resource.KindVariable: {resource.FieldName, "value"},
}

const (
	scriptContentField = "content"
	scriptLinesField   = "lines"
)

// ToEntry converts one fetched resource tree into its portable entry:
// backend-managed fields are stripped from the body and every child body,
// and script content blobs become line sequences.
func ToEntry(res resource.Resource) (Entry, error) {
	body := stripManagedFields(res.Body)
	if err := checkRequiredKeys(res.Kind, res.ID, body); err != nil {
		return Entry{}, err
	}
	if res.Kind == resource.KindScript {
		var err error
		body, err = contentToLines(body)
		if err != nil {
			return Entry{}, err
		}
	}

	children := make([]resource.Child, 0, len(res.Children))
	for _, child := range res.Children {
		if child.Type == "" || child.ID == "" {
			return Entry{}, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("resource %q has a child without type or id", res.ID),
				nil,
			)
		}
		children = append(children, resource.Child{
			Type: child.Type,
			ID:   child.ID,
			Body: childBody(child.Body),
		})
	}
	if len(children) == 0 {
		children = nil
	}

	return Entry{Body: body, Children: children}, nil
}

// FromEntry reconstitutes one resource tree from its portable entry.
// Backend-managed fields present in the entry are discarded.
func FromEntry(kind string, id string, entry Entry) (resource.Resource, error) {
	if id == "" {
		return resource.Resource{}, faults.NewTypedError(faults.ValidationError, "entry id must not be empty", nil)
	}

	body := stripManagedFields(entry.Body)
	if kind == resource.KindScript {
		var err error
		body, err = linesToContent(body)
		if err != nil {
			return resource.Resource{}, err
		}
	}
	if err := checkRequiredKeys(kind, id, body); err != nil {
		return resource.Resource{}, err
	}

	children := make([]resource.Child, 0, len(entry.Children))
	for _, child := range entry.Children {
		if child.Type == "" || child.ID == "" {
			return resource.Resource{}, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("entry %q has a child without type or id", id),
				nil,
			)
		}
		children = append(children, resource.Child{
			Type: child.Type,
			ID:   child.ID,
			Body: childBody(child.Body),
		})
	}
	if len(children) == 0 {
		children = nil
	}

	return resource.Resource{Kind: kind, ID: id, Body: body, Children: children}, nil
}

// childBody strips managed fields and keeps absent bodies absent.
func childBody(body resource.Body) resource.Body {
	stripped := stripManagedFields(body)
	if len(stripped) == 0 {
		return nil
	}
	return stripped
}

func stripManagedFields(body resource.Body) resource.Body {
	cloned := resource.CloneBody(body)
	for _, field := range serverManagedFields {
		delete(cloned, field)
	}
	return cloned
}

func checkRequiredKeys(kind string, id string, body resource.Body) error {
	for _, key := range requiredKeys[kind] {
		if _, ok := body[key]; !ok {
			return faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("%s %q is missing required field %q", kind, id, key),
				nil,
			)
		}
	}
	return nil
}

// contentToLines replaces the script content blob with its line sequence.
// The transform is total and reversible: an empty blob becomes an empty
// sequence, and any other blob splits so that joining restores it byte for
// byte.
func contentToLines(body resource.Body) (resource.Body, error) {
	raw, present := body[scriptContentField]
	if !present {
		return body, nil
	}
	content, ok := raw.(string)
	if !ok {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("script content must be a string, got %T", raw),
			nil,
		)
	}

	cloned := resource.CloneBody(body)
	delete(cloned, scriptContentField)
	if content == "" {
		cloned[scriptLinesField] = []any{}
		return cloned, nil
	}
	parts := strings.Split(content, "\n")
	lines := make([]any, len(parts))
	for idx, part := range parts {
		lines[idx] = part
	}
	cloned[scriptLinesField] = lines
	return cloned, nil
}

func linesToContent(body resource.Body) (resource.Body, error) {
	raw, present := body[scriptLinesField]
	if !present {
		return body, nil
	}

	var parts []string
	switch typed := raw.(type) {
	case []any:
		parts = make([]string, len(typed))
		for idx, item := range typed {
			line, ok := item.(string)
			if !ok {
				return nil, faults.NewTypedError(
					faults.ValidationError,
					fmt.Sprintf("script line %d must be a string, got %T", idx, item),
					nil,
				)
			}
			parts[idx] = line
		}
	case []string:
		parts = typed
	default:
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("script lines must be a sequence, got %T", raw),
			nil,
		)
	}

	cloned := resource.CloneBody(body)
	delete(cloned, scriptLinesField)
	cloned[scriptContentField] = strings.Join(parts, "\n")
	return cloned, nil
}
