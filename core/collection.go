package core

import (
	"bytes"
	"encoding/json"
)

// Collection is an optional list of child records in an update payload.
// A field that is missing or null leaves Present false: "leave as is".
// An empty JSON array is Present with no Items: "remove everything".
type Collection[T any] struct {
	Items   []T
	Present bool
}

// Some returns a present collection holding items.
func Some[T any](items ...T) Collection[T] {
	if items == nil {
		items = []T{}
	}
	return Collection[T]{Items: items, Present: true}
}

func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Collection[T]{}
		return nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*c = Some(items...)
	return nil
}

func (c Collection[T]) MarshalJSON() ([]byte, error) {
	if !c.Present {
		return []byte("null"), nil
	}
	return json.Marshal(c.Items)
}
