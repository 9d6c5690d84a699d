package resource

// CloneBody returns a shallow copy of src. A nil source clones to an empty
// body so callers can mutate the result unconditionally.
func CloneBody(src Body) Body {
	if src == nil {
		return Body{}
	}
	dst := make(Body, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

// CloneChildren copies the child slice along with each child's body. A nil
// child body stays nil: the clone is faithful, not mutation-ready.
func CloneChildren(src []Child) []Child {
	if len(src) == 0 {
		return nil
	}
	dst := make([]Child, len(src))
	for idx, child := range src {
		cloned := Child{Type: child.Type, ID: child.ID}
		if child.Body != nil {
			cloned.Body = CloneBody(child.Body)
		}
		dst[idx] = cloned
	}
	return dst
}

// Name reads the display name field of a body, falling back to empty.
func (b Body) Name() string {
	if b == nil {
		return ""
	}
	name, _ := b[FieldName].(string)
	return name
}

// WithName returns a copy of b with the display name replaced.
func (b Body) WithName(name string) Body {
	cloned := CloneBody(b)
	cloned[FieldName] = name
	return cloned
}
