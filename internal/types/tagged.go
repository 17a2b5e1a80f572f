package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalTagged encodes v as a JSON object whose first member is the tag,
// followed by v's own fields in declaration order.
func marshalTagged(tagKey, tag string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, fmt.Errorf("tagged value is not an object: %s", body)
	}

	keyJSON, _ := json.Marshal(tagKey)
	tagJSON, _ := json.Marshal(tag)

	var buf bytes.Buffer
	buf.Grow(len(body) + len(keyJSON) + len(tagJSON) + 2)
	buf.WriteByte('{')
	buf.Write(keyJSON)
	buf.WriteByte(':')
	buf.Write(tagJSON)
	if rest := bytes.TrimSpace(body[1 : len(body)-1]); len(rest) > 0 {
		buf.WriteByte(',')
		buf.Write(rest)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// peekTag reads only the tag member of a JSON object.
func peekTag(data []byte, tagKey string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", err
	}
	raw, ok := fields[tagKey]
	if !ok {
		return "", fmt.Errorf("missing %q field", tagKey)
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", fmt.Errorf("%q must be a string: %w", tagKey, err)
	}
	return tag, nil
}
