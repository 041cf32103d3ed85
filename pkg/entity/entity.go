// ABOUTME: Hierarchical entity identifiers for metadata targets
// ABOUTME: Ordered key/value path plus the key naming the entity's own kind

package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known component keys
const (
	Namespace   = "namespace"
	Application = "application"
	Artifact    = "artifact"
	Version     = "version"
	Dataset     = "dataset"
	Program     = "program"
	Schedule    = "schedule"
	Type        = "type"
	ProgramRun  = "program_run"
	Field       = "field"
)

// ErrInvalidEntity is returned when a builder is given an inconsistent path
var ErrInvalidEntity = errors.New("invalid entity")

// KeyValue is one component of an entity path
type KeyValue struct {
	Key   string
	Value string
}

// Entity is an immutable metadata target identifier
type Entity struct {
	parts []KeyValue
	typ   string
}

// Type returns the key of the component naming this entity
func (e Entity) Type() string {
	return e.typ
}

// Parts returns a copy of the path components in hierarchy order
func (e Entity) Parts() []KeyValue {
	out := make([]KeyValue, len(e.parts))
	copy(out, e.parts)
	return out
}

// Len returns the number of path components
func (e Entity) Len() int {
	return len(e.parts)
}

// Value returns the value stored under key, matched case-insensitively
func (e Entity) Value(key string) (string, bool) {
	if i := e.index(key); i >= 0 {
		return e.parts[i].Value, true
	}
	return "", false
}

// Name returns the value of the type component
func (e Entity) Name() string {
	v, _ := e.Value(e.typ)
	return v
}

// IsZero reports whether e was never built
func (e Entity) IsZero() bool {
	return len(e.parts) == 0
}

// Equal reports whether both entities have the same type and path
func (e Entity) Equal(o Entity) bool {
	if e.typ != o.typ || len(e.parts) != len(o.parts) {
		return false
	}
	for i := range e.parts {
		if e.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// String renders the path as key=value pairs, e.g. "namespace=ns,dataset=ds (dataset)"
func (e Entity) String() string {
	var sb strings.Builder
	for i, kv := range e.parts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(kv.Key)
		sb.WriteByte('=')
		sb.WriteString(kv.Value)
	}
	sb.WriteString(" (")
	sb.WriteString(e.typ)
	sb.WriteByte(')')
	return sb.String()
}

// WithVersion returns a copy whose version component is set to version.
// An existing version component is replaced in place; otherwise the component
// goes right after the application, or before the type component when there is
// no application.
func (e Entity) WithVersion(version string) Entity {
	parts := e.Parts()
	if i := e.index(Version); i >= 0 {
		parts[i].Value = version
		return Entity{parts: parts, typ: e.typ}
	}

	at := e.index(Application) + 1
	if at == 0 {
		at = e.index(e.typ)
	}
	if at < 0 {
		at = len(parts)
	}

	parts = append(parts, KeyValue{})
	copy(parts[at+1:], parts[at:])
	parts[at] = KeyValue{Key: Version, Value: version}
	return Entity{parts: parts, typ: e.typ}
}

func (e Entity) index(key string) int {
	for i, kv := range e.parts {
		if strings.EqualFold(kv.Key, key) {
			return i
		}
	}
	return -1
}

// Builder assembles an Entity one component at a time
type Builder struct {
	parts []KeyValue
	typ   string
	err   error
}

// NewBuilder creates an empty entity builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds a regular path component
func (b *Builder) Append(key, value string) *Builder {
	b.add(key, value)
	return b
}

// AppendAsType adds a path component and marks it as the entity's type
func (b *Builder) AppendAsType(key, value string) *Builder {
	if b.add(key, value) {
		b.typ = key
	}
	return b
}

func (b *Builder) add(key, value string) bool {
	if b.err != nil {
		return false
	}
	if key == "" {
		b.err = fmt.Errorf("%w: empty component key", ErrInvalidEntity)
		return false
	}
	if value == "" {
		b.err = fmt.Errorf("%w: empty value for component %q", ErrInvalidEntity, key)
		return false
	}
	for _, kv := range b.parts {
		if strings.EqualFold(kv.Key, key) {
			b.err = fmt.Errorf("%w: duplicate component %q", ErrInvalidEntity, key)
			return false
		}
	}
	b.parts = append(b.parts, KeyValue{Key: key, Value: value})
	return true
}

// Build validates and returns the entity.
// Without an explicit type the last appended component names the entity.
func (b *Builder) Build() (Entity, error) {
	if b.err != nil {
		return Entity{}, b.err
	}
	if len(b.parts) == 0 {
		return Entity{}, fmt.Errorf("%w: empty path", ErrInvalidEntity)
	}

	typ := b.typ
	if typ == "" {
		typ = b.parts[len(b.parts)-1].Key
	}

	found := false
	for _, kv := range b.parts {
		if kv.Key == typ {
			found = true
			break
		}
	}
	if !found {
		return Entity{}, fmt.Errorf("%w: type %q is not a path component", ErrInvalidEntity, typ)
	}

	parts := make([]KeyValue, len(b.parts))
	copy(parts, b.parts)
	return Entity{parts: parts, typ: typ}, nil
}

// New builds an entity from alternating key/value pairs with the given type
func New(typ string, pairs ...string) (Entity, error) {
	if len(pairs)%2 != 0 {
		return Entity{}, fmt.Errorf("%w: odd number of path elements", ErrInvalidEntity)
	}
	b := NewBuilder()
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i] == typ {
			b.AppendAsType(pairs[i], pairs[i+1])
		} else {
			b.Append(pairs[i], pairs[i+1])
		}
	}
	if b.err == nil && b.typ == "" {
		return Entity{}, fmt.Errorf("%w: type %q is not a path component", ErrInvalidEntity, typ)
	}
	return b.Build()
}

// ForNamespace identifies a namespace
func ForNamespace(ns string) (Entity, error) {
	return New(Namespace, Namespace, ns)
}

// ForApplication identifies an application at a specific version
func ForApplication(ns, app, version string) (Entity, error) {
	return New(Application, Namespace, ns, Application, app, Version, version)
}

// ForDataset identifies a dataset
func ForDataset(ns, ds string) (Entity, error) {
	return New(Dataset, Namespace, ns, Dataset, ds)
}

// ForProgram identifies a program of a given program type
func ForProgram(ns, app, version, programType, program string) (Entity, error) {
	return New(Program, Namespace, ns, Application, app, Version, version, Type, programType, Program, program)
}

// ForSchedule identifies a schedule of an application
func ForSchedule(ns, app, version, schedule string) (Entity, error) {
	return New(Schedule, Namespace, ns, Application, app, Version, version, Schedule, schedule)
}
