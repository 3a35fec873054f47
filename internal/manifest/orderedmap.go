package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedStrMap is a string->string JSON object that remembers the key
// order it was decoded in, so dependency maps round-trip without
// reshuffling entries the user didn't touch. New keys are appended.
type orderedStrMap struct {
	keys   []string
	values map[string]string
}

func newOrderedStrMap() *orderedStrMap {
	return &orderedStrMap{values: make(map[string]string)}
}

func (m *orderedStrMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedStrMap) Set(key, value string) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

func (m *orderedStrMap) Delete(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}

	delete(m.values, key)

	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *orderedStrMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *orderedStrMap) Len() int { return len(m.keys) }

// ToMap returns a plain map copy, for callers that don't care about order.
func (m *orderedStrMap) ToMap() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}

	return out
}

func (m *orderedStrMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]string)

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}

		var val string
		if err := dec.Decode(&val); err != nil {
			return err
		}

		m.Set(key, val)
	}

	_, err = dec.Token() // closing '}'

	return err
}

func (m *orderedStrMap) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}

		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
