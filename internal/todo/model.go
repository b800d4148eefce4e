package todo

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrNotObject is returned by DecodeFields for any body that is not a single
// JSON object.
var ErrNotObject = errors.New("todo must be a JSON object")

// Todo holds whatever fields the client supplied. The owner is recorded in
// user_todos, not on the todo itself.
type Todo struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// reservedKeys are assigned by the server and dropped from client input.
var reservedKeys = []string{"id", "_id", "created_at"}

// New builds a todo from client fields, dropping reserved keys.
func New(fields map[string]any) *Todo {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		clean[k] = v
	}
	for _, k := range reservedKeys {
		delete(clean, k)
	}
	return &Todo{Fields: clean}
}

// DecodeFields reads one JSON object from r. Numbers are kept as
// json.Number so integers beyond 2^53 survive storage unchanged.
func DecodeFields(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrNotObject
	}
	return fields, nil
}

// MarshalJSON flattens the fields next to the id and creation time.
func (t Todo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Fields)+3)
	for k, v := range t.Fields {
		out[k] = v
	}
	out["id"] = t.ID
	out["_id"] = t.ID
	out["created_at"] = t.CreatedAt.UTC()
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; the cache relies on it.
func (t *Todo) UnmarshalJSON(data []byte) error {
	raw, err := DecodeFields(bytes.NewReader(data))
	if err != nil {
		return err
	}

	if id, ok := raw["id"].(string); ok {
		t.ID = id
	}
	if created, ok := raw["created_at"].(string); ok {
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return err
		}
		t.CreatedAt = ts
	}
	for _, k := range reservedKeys {
		delete(raw, k)
	}
	t.Fields = raw
	return nil
}
