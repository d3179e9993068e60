package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store is the persistence collaborator: a document store addressed by
// collection and id, with single-field match queries. Put is an atomic
// whole-record upsert.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Record, error)
	Put(ctx context.Context, collection string, rec Record) error
	Query(ctx context.Context, collection, field, value string) ([]Record, error)
}

type Record struct {
	ID   string
	Data []byte
}

var ErrNotFound = errors.New("record not found")

func Marshal(id string, v interface{}) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal record %s: %w", id, err)
	}
	return Record{ID: id, Data: data}, nil
}

func Unmarshal(rec *Record, v interface{}) error {
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w", rec.ID, err)
	}
	return nil
}

// fieldMatches reports whether the record's top-level JSON field equals value.
func fieldMatches(data []byte, field, value string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	raw, ok := doc[field]
	if !ok {
		return false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == value
	}
	return string(raw) == value
}
