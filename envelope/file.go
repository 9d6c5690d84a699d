package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// Envelope file versions accepted by import. Major bumps of FormatVersion
// break compatibility; minor and patch revisions do not.
const importVersionConstraint = "^1"

const (
	metaKey     = "meta"
	childrenKey = "children"
	childType   = "type"
	childID     = "id"
)

// Encode renders an envelope as a YAML document shaped
// {meta: {...}, <kind>: {<id>: body-and-children}}. The wire entries are
// normalized first so the file and its digest are canonical no matter how
// the bodies were decoded; the digest is recomputed and stamped into meta.
func Encode(env *Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	rawEntries, err := entriesToWire(env.Entries)
	if err != nil {
		return nil, err
	}
	normalized, err := resource.Normalize(rawEntries)
	if err != nil {
		return nil, err
	}
	entries, ok := normalized.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(faults.InternalError, "normalized envelope content is not a mapping", nil)
	}

	meta := env.Meta
	meta.Digest, err = entriesDigest(entries)
	if err != nil {
		return nil, err
	}
	meta.IDs = env.SortedIDs()

	doc := map[string]any{
		metaKey:       meta,
		env.Meta.Kind: entries,
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		_ = encoder.Close()
		return nil, faults.NewTypedError(faults.InternalError, "encode envelope document", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "encode envelope document", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an envelope file, checks version compatibility, verifies
// the content digest when one is present, and enforces the id-set
// invariant. Any failure is a ValidationError for the whole file.
func Decode(data []byte) (*Envelope, error) {
	var metaDoc struct {
		Meta Meta `yaml:"meta"`
	}
	if err := yaml.Unmarshal(data, &metaDoc); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "parse envelope document", err)
	}
	meta := metaDoc.Meta
	if meta.Kind == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "envelope meta is missing the resource kind", nil)
	}
	if err := checkVersion(meta.Version); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "parse envelope document", err)
	}

	kindSection, present := doc[meta.Kind]
	if !present {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("envelope is missing the %q section", meta.Kind),
			nil,
		)
	}
	rawEntries, ok := kindSection.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("envelope %q section must be a mapping", meta.Kind),
			nil,
		)
	}

	entries := make(map[string]Entry, len(rawEntries))
	for id, rawEntry := range rawEntries {
		entry, err := entryFromWire(id, rawEntry)
		if err != nil {
			return nil, err
		}
		entries[id] = entry
	}

	env := &Envelope{Meta: meta, Entries: entries}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	if meta.Digest != "" {
		wire, err := entriesToWire(entries)
		if err != nil {
			return nil, err
		}
		actual, err := entriesDigest(wire)
		if err != nil {
			return nil, err
		}
		if actual != meta.Digest {
			return nil, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("envelope digest mismatch: meta declares %s, content is %s", meta.Digest, actual),
				nil,
			)
		}
	}

	return env, nil
}

func checkVersion(version string) error {
	if version == "" {
		return faults.NewTypedError(faults.ValidationError, "envelope meta is missing the format version", nil)
	}
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("invalid envelope format version %q", version),
			err,
		)
	}
	constraint, err := semver.NewConstraint(importVersionConstraint)
	if err != nil {
		return faults.NewTypedError(faults.InternalError, "parse version constraint", err)
	}
	if !constraint.Check(parsed) {
		return faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("envelope format version %s is not supported (want %s)", version, importVersionConstraint),
			nil,
		)
	}
	return nil
}

func entriesToWire(entries map[string]Entry) (map[string]any, error) {
	wire := make(map[string]any, len(entries))
	for id, entry := range entries {
		entryWire, err := entryToWire(id, entry)
		if err != nil {
			return nil, err
		}
		wire[id] = entryWire
	}
	return wire, nil
}

func entryToWire(id string, entry Entry) (map[string]any, error) {
	if _, taken := entry.Body[childrenKey]; taken {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("entry %q body uses the reserved field %q", id, childrenKey),
			nil,
		)
	}

	wire := make(map[string]any, len(entry.Body)+1)
	for key, value := range entry.Body {
		wire[key] = value
	}

	if len(entry.Children) > 0 {
		children := make([]any, 0, len(entry.Children))
		for _, child := range entry.Children {
			childWire := make(map[string]any, len(child.Body)+2)
			for key, value := range child.Body {
				if key == childType || key == childID {
					return nil, faults.NewTypedError(
						faults.ValidationError,
						fmt.Sprintf("child %s/%s of entry %q uses the reserved field %q", child.Type, child.ID, id, key),
						nil,
					)
				}
				childWire[key] = value
			}
			childWire[childType] = child.Type
			childWire[childID] = child.ID
			children = append(children, childWire)
		}
		wire[childrenKey] = children
	}
	return wire, nil
}

func entryFromWire(id string, raw any) (Entry, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return Entry{}, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("entry %q must be a mapping", id),
			nil,
		)
	}

	body := make(resource.Body, len(fields))
	var children []resource.Child
	for key, value := range fields {
		if key != childrenKey {
			body[key] = value
			continue
		}

		rawChildren, ok := value.([]any)
		if !ok {
			return Entry{}, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("entry %q children must be a sequence", id),
				nil,
			)
		}
		for idx, rawChild := range rawChildren {
			child, err := childFromWire(id, idx, rawChild)
			if err != nil {
				return Entry{}, err
			}
			children = append(children, child)
		}
	}

	return Entry{Body: body, Children: children}, nil
}

func childFromWire(parentID string, idx int, raw any) (resource.Child, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return resource.Child{}, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("child %d of entry %q must be a mapping", idx, parentID),
			nil,
		)
	}

	childTypeValue, _ := fields[childType].(string)
	childIDValue, _ := fields[childID].(string)
	if childTypeValue == "" || childIDValue == "" {
		return resource.Child{}, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("child %d of entry %q is missing type or id", idx, parentID),
			nil,
		)
	}

	body := make(resource.Body, len(fields))
	for key, value := range fields {
		if key == childType || key == childID {
			continue
		}
		body[key] = value
	}
	if len(body) == 0 {
		body = nil
	}

	return resource.Child{Type: childTypeValue, ID: childIDValue, Body: body}, nil
}

// entriesDigest computes a canonical digest over the wire form: payloads
// are normalized and JSON-encoded (object keys sort deterministically)
// before hashing.
func entriesDigest(wire map[string]any) (string, error) {
	normalized, err := resource.Normalize(wire)
	if err != nil {
		return "", err
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", faults.NewTypedError(faults.InternalError, "canonicalize envelope content", err)
	}
	return digest.FromBytes(canonical).String(), nil
}
