// Package manifest reads and writes the project manifest (conventionally
// package.json): the dependencies/devDependencies declarations plus
// whatever other keys a project has put there. Unknown keys are modeled
// as a structured view over an order-preserving JSON representation
// (decodeOrderedObject/encodeOrderedObject below; the dependency maps
// use orderedStrMap from orderedmap.go) rather than discarded, per the
// design note "model the manifest as a structured view over an
// underlying key-preserving JSON representation".
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jsdeps/jsdeps/internal/depserr"
)

// Manifest is the parsed project manifest. Dependencies and
// DevDependencies preserve the insertion order read from disk so a
// rewrite minimizes diff churn, per spec.
type Manifest struct {
	Name            string
	Version         string
	Dependencies    *orderedStrMap
	DevDependencies *orderedStrMap

	order []string
	raw   map[string]json.RawMessage
}

// Read loads and parses the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", depserr.ErrManifestMissing, path)
		}

		return nil, fmt.Errorf("%w: %s: %v", depserr.ErrManifestInvalid, path, err)
	}

	return Parse(data)
}

// Parse parses manifest bytes already read from disk (or a fixture).
func Parse(data []byte) (*Manifest, error) {
	order, raw, err := decodeOrderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", depserr.ErrManifestInvalid, err)
	}

	m := &Manifest{order: order, raw: raw}

	if b, ok := raw["name"]; ok {
		if err := json.Unmarshal(b, &m.Name); err != nil {
			return nil, fmt.Errorf("%w: name: %v", depserr.ErrManifestInvalid, err)
		}
	}

	if b, ok := raw["version"]; ok {
		if err := json.Unmarshal(b, &m.Version); err != nil {
			return nil, fmt.Errorf("%w: version: %v", depserr.ErrManifestInvalid, err)
		}
	}

	m.Dependencies = newOrderedStrMap()
	if b, ok := raw["dependencies"]; ok {
		if err := m.Dependencies.UnmarshalJSON(b); err != nil {
			return nil, fmt.Errorf("%w: dependencies: %v", depserr.ErrManifestInvalid, err)
		}
	}

	m.DevDependencies = newOrderedStrMap()
	if b, ok := raw["devDependencies"]; ok {
		if err := m.DevDependencies.UnmarshalJSON(b); err != nil {
			return nil, fmt.Errorf("%w: devDependencies: %v", depserr.ErrManifestInvalid, err)
		}
	}

	return m, nil
}

// Write serializes the manifest back to path, preserving unrecognized
// top-level keys and the original key order, two-space indented.
func Write(path string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Marshal renders the manifest to its canonical JSON form.
func (m *Manifest) Marshal() ([]byte, error) {
	if m.raw == nil {
		m.raw = make(map[string]json.RawMessage)
	}

	nameB, err := json.Marshal(m.Name)
	if err != nil {
		return nil, err
	}

	m.setRaw("name", nameB)

	versionB, err := json.Marshal(m.Version)
	if err != nil {
		return nil, err
	}

	m.setRaw("version", versionB)

	depsB, err := m.Dependencies.MarshalJSON()
	if err != nil {
		return nil, err
	}

	m.setRaw("dependencies", depsB)

	devB, err := m.DevDependencies.MarshalJSON()
	if err != nil {
		return nil, err
	}

	m.setRaw("devDependencies", devB)

	compact, err := encodeOrderedObject(m.order, m.raw)
	if err != nil {
		return nil, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return nil, err
	}

	pretty.WriteByte('\n')

	return pretty.Bytes(), nil
}

func (m *Manifest) setRaw(key string, value json.RawMessage) {
	if _, exists := m.raw[key]; !exists {
		m.order = append(m.order, key)
	}

	m.raw[key] = value
}

// decodeOrderedObject decodes a JSON object, recording the order its
// top-level keys appeared in.
func decodeOrderedObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}

	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object at top level, got %v", tok)
	}

	order := make([]string, 0, 8)
	raw := make(map[string]json.RawMessage, 8)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %v", keyTok)
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}

		if _, exists := raw[key]; !exists {
			order = append(order, key)
		}

		raw[key] = val
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, nil, err
	}

	return order, raw, nil
}

// encodeOrderedObject renders a JSON object with keys in the given order.
func encodeOrderedObject(order []string, raw map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	wrote := false

	for _, k := range order {
		v, ok := raw[k]
		if !ok {
			continue
		}

		if wrote {
			buf.WriteByte(',')
		}

		wrote = true

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
