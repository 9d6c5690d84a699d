package resource

// Value is an arbitrary JSON-like payload value.
type Value = any

// Body is a kind-specific resource payload. Backend-managed fields may be
// present on bodies read from the remote; they are stripped at the codec
// boundary before any write.
type Body map[string]any

// Child describes one nested sub-resource of a tree-shaped resource. It
// belongs to exactly one parent; ordering among siblings is insignificant.
type Child struct {
	Type string
	ID   string
	Body Body
}

// Resource is one remote configuration object plus its (possibly empty)
// child collection.
type Resource struct {
	Kind     string
	ID       string
	Body     Body
	Children []Child
}

// Resource kinds known to the codec. The engine itself treats kinds as
// opaque strings.
const (
	KindService  = "service"
	KindScript   = "script"
	KindVariable = "variable"
)

// Backend-assigned body fields that must never round-trip through an
// envelope write.
const (
	FieldRevision = "revision"
	FieldEnabled  = "enabled"
)

// FieldName is the operator-chosen display name field. It round-trips and
// is the field collision renames rewrite.
const FieldName = "name"
