// ABOUTME: Metadata storage data model
// ABOUTME: Properties and tags attached to entities, plus search requests and results

package metadata

import (
	"errors"
	"fmt"

	"github.com/nainya/metastore/pkg/entity"
)

// TagsKey is the reserved property key holding an entity's tags
const TagsKey = "tags"

var (
	// ErrNotFound is returned when an entity has no value for a key
	ErrNotFound = errors.New("metadata not found")
	// ErrInvalidArgument is returned for empty keys, reserved keys or empty queries
	ErrInvalidArgument = errors.New("invalid argument")
)

// MetadataEntry represents a single metadata attribute of one entity
type MetadataEntry struct {
	Entity entity.Entity
	Key    string // Metadata key
	Value  string // Metadata value
}

// Metadata is everything stored for one entity
type Metadata struct {
	Entity     entity.Entity
	Properties map[string]string
	Tags       []string
}

// SearchRequest selects index rows by term
type SearchRequest struct {
	TargetTypes []string // Restrict to these entity types, all when empty
	Query       string   // Term to match; a trailing '*' matches by prefix
	Limit       int      // Maximum entities returned, unlimited when <= 0
}

// SearchResult is one matching entity with the attributes that matched
type SearchResult struct {
	Entity  entity.Entity
	Matches []MetadataEntry
}

// RowKeyError reports a stored row key that could not be decoded
type RowKeyError struct {
	Key []byte
	Err error
}

func (e *RowKeyError) Error() string {
	return fmt.Sprintf("row %x: %v", e.Key, e.Err)
}

func (e *RowKeyError) Unwrap() error {
	return e.Err
}
