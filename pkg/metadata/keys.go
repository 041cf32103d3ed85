// ABOUTME: Row keys for metadata values and search index entries
// ABOUTME: [prefix][targetType]([key][value])*[attribute][term] over mdskey segments

package metadata

import (
	"fmt"
	"strings"

	"github.com/nainya/metastore/pkg/entity"
	"github.com/nainya/metastore/pkg/mdskey"
)

// RowKind distinguishes the two metadata sub-keyspaces
type RowKind byte

// Row prefixes. Each is stored as its own one-byte segment.
const (
	ValueRow RowKind = 'v' // direct lookup of one attribute value
	IndexRow RowKind = 'i' // one searchable term of one attribute
)

func (k RowKind) String() string {
	switch k {
	case ValueRow:
		return "value"
	case IndexRow:
		return "index"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(k))
	}
}

// DefaultVersion is the version versioned entities decode with
const DefaultVersion = "-SNAPSHOT"

var (
	valueRowPrefix = mdskey.NewBuilder().Add([]byte{byte(ValueRow)}).Build().Bytes()
	indexRowPrefix = mdskey.NewBuilder().Add([]byte{byte(IndexRow)}).Build().Bytes()
)

// ValueRowPrefix returns the encoded prefix shared by all value rows
func ValueRowPrefix() []byte {
	return append([]byte(nil), valueRowPrefix...)
}

// IndexRowPrefix returns the encoded prefix shared by all index rows
func IndexRowPrefix() []byte {
	return append([]byte(nil), indexRowPrefix...)
}

// KeySchemeConfig controls which entity types drop their version from row keys
type KeySchemeConfig struct {
	// VersionedTypes never persist a version component; it is restored on decode
	VersionedTypes []string
	// DefaultVersion is the version restored on decode
	DefaultVersion string
}

// DefaultKeySchemeConfig returns the versioned types applications, schedules and programs
func DefaultKeySchemeConfig() KeySchemeConfig {
	return KeySchemeConfig{
		VersionedTypes: []string{entity.Application, entity.Schedule, entity.Program},
		DefaultVersion: DefaultVersion,
	}
}

// KeyScheme encodes and decodes metadata row keys.
// It holds no mutable state and is safe for concurrent use.
type KeyScheme struct {
	versioned      map[string]struct{}
	defaultVersion string
}

// NewKeyScheme creates a key scheme from cfg
func NewKeyScheme(cfg KeySchemeConfig) *KeyScheme {
	ks := &KeyScheme{
		versioned:      make(map[string]struct{}, len(cfg.VersionedTypes)),
		defaultVersion: cfg.DefaultVersion,
	}
	for _, t := range cfg.VersionedTypes {
		ks.versioned[strings.ToLower(t)] = struct{}{}
	}
	if ks.defaultVersion == "" {
		ks.defaultVersion = DefaultVersion
	}
	return ks
}

// IsVersioned reports whether entities of type typ are stored without a version
func (ks *KeyScheme) IsVersioned(typ string) bool {
	_, ok := ks.versioned[strings.ToLower(typ)]
	return ok
}

// CreateValueRowKey builds [v][type][path][key]. A nil key yields the prefix of
// every value row of the entity.
func (ks *KeyScheme) CreateValueRowKey(e entity.Entity, key *string) ([]byte, error) {
	b, err := ks.rowPrefix(e, ValueRow)
	if err != nil {
		return nil, err
	}
	if key != nil {
		b.AddString(*key)
	}
	return b.Build().Bytes(), nil
}

// CreateIndexRowKey builds [i][type][path][key][term]. A nil term yields the
// prefix of every index row of the attribute, used for deletes and scans.
func (ks *KeyScheme) CreateIndexRowKey(e entity.Entity, key string, term *string) ([]byte, error) {
	b, err := ks.rowPrefix(e, IndexRow)
	if err != nil {
		return nil, err
	}
	b.AddString(key)
	if term != nil {
		b.AddString(*term)
	}
	return b.Build().Bytes(), nil
}

// CreateEntityIndexPrefix builds [i][type][path], the prefix of every index row of the entity
func (ks *KeyScheme) CreateEntityIndexPrefix(e entity.Entity) ([]byte, error) {
	b, err := ks.rowPrefix(e, IndexRow)
	if err != nil {
		return nil, err
	}
	return b.Build().Bytes(), nil
}

// TypePrefix builds [kind][targetType], the prefix of every row of one target type
func TypePrefix(kind RowKind, targetType string) []byte {
	return mdskey.NewBuilder().Add([]byte{byte(kind)}).AddString(targetType).Build().Bytes()
}

func (ks *KeyScheme) rowPrefix(e entity.Entity, kind RowKind) (*mdskey.Builder, error) {
	if e.IsZero() {
		return nil, fmt.Errorf("%w: empty path", entity.ErrInvalidEntity)
	}

	b := mdskey.NewBuilder()
	b.Add([]byte{byte(kind)})
	b.AddString(e.Type())

	skipVersion := ks.IsVersioned(e.Type())
	for _, kv := range e.Parts() {
		if skipVersion && strings.EqualFold(kv.Key, entity.Version) {
			continue
		}
		b.AddString(kv.Key)
		b.AddString(kv.Value)
	}
	return b, nil
}

// RowKindOf returns the kind of a row key
func RowKindOf(rowKey []byte) (RowKind, error) {
	kind, _, err := openRow(rowKey)
	return kind, err
}

// openRow reads the row prefix and returns a cursor positioned at the target type
func openRow(rowKey []byte) (RowKind, *mdskey.Splitter, error) {
	sp := mdskey.NewSplitter(rowKey)
	prefix, err := sp.GetBytes()
	if err != nil {
		return 0, nil, fmt.Errorf("reading row prefix: %w", err)
	}
	if len(prefix) != 1 {
		return 0, nil, fmt.Errorf("%w: row prefix of %d bytes", mdskey.ErrMalformedKey, len(prefix))
	}

	kind := RowKind(prefix[0])
	if kind != ValueRow && kind != IndexRow {
		return 0, nil, fmt.Errorf("%w: unknown row kind %s", mdskey.ErrMalformedKey, kind)
	}
	return kind, sp, nil
}

// ExtractTargetType returns the entity type stored right after the row prefix
func (ks *KeyScheme) ExtractTargetType(rowKey []byte) (string, error) {
	_, sp, err := openRow(rowKey)
	if err != nil {
		return "", err
	}
	typ, err := sp.GetString()
	if err != nil {
		return "", fmt.Errorf("reading target type: %w", err)
	}
	return typ, nil
}

// ExtractMetadataKey returns the attribute key of a value or index row
func (ks *KeyScheme) ExtractMetadataKey(rowKey []byte) (string, error) {
	kind, sp, err := openRow(rowKey)
	if err != nil {
		return "", err
	}
	if err := sp.SkipString(); err != nil {
		return "", fmt.Errorf("skipping target type: %w", err)
	}

	if kind == IndexRow {
		key, _, err := trailingIndexPair(sp)
		return key, err
	}
	return trailingValueKey(sp)
}

// ExtractIndexTerm returns the indexed term of an index row
func (ks *KeyScheme) ExtractIndexTerm(rowKey []byte) (string, error) {
	kind, sp, err := openRow(rowKey)
	if err != nil {
		return "", err
	}
	if kind != IndexRow {
		return "", fmt.Errorf("%w: %s row has no index term", mdskey.ErrMalformedKey, kind)
	}
	if err := sp.SkipString(); err != nil {
		return "", fmt.Errorf("skipping target type: %w", err)
	}
	_, term, err := trailingIndexPair(sp)
	return term, err
}

// trailingValueKey walks the path pairs and returns the one segment left over
func trailingValueKey(sp *mdskey.Splitter) (string, error) {
	for sp.HasRemaining() {
		key, err := sp.GetString()
		if err != nil {
			return "", err
		}
		if !sp.HasRemaining() {
			return key, nil
		}
		if err := sp.SkipString(); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: value row has no attribute key", mdskey.ErrMalformedKey)
}

// trailingIndexPair walks the path pairs and returns the attribute key and term left over
func trailingIndexPair(sp *mdskey.Splitter) (string, string, error) {
	for sp.HasRemaining() {
		first, err := sp.GetString()
		if err != nil {
			return "", "", err
		}
		if !sp.HasRemaining() {
			break
		}
		second, err := sp.GetString()
		if err != nil {
			return "", "", err
		}
		if !sp.HasRemaining() {
			return first, second, nil
		}
	}
	return "", "", fmt.Errorf("%w: index row has no attribute key and term", mdskey.ErrMalformedKey)
}

// ExtractMetadataEntityFromKey rebuilds the entity a row key belongs to.
// Trailing segments that do not complete a path pair are the attribute key
// (and index term) and are dropped. Versioned entities get the default version.
func (ks *KeyScheme) ExtractMetadataEntityFromKey(rowKey []byte) (entity.Entity, error) {
	_, sp, err := openRow(rowKey)
	if err != nil {
		return entity.Entity{}, err
	}

	targetType, err := sp.GetString()
	if err != nil {
		return entity.Entity{}, fmt.Errorf("reading target type: %w", err)
	}
	key, err := sp.GetString()
	if err != nil {
		return entity.Entity{}, fmt.Errorf("reading entity path: %w", err)
	}
	if !sp.HasRemaining() {
		return entity.Entity{}, fmt.Errorf("%w: row has no entity path", mdskey.ErrMalformedKey)
	}
	value, err := sp.GetString()
	if err != nil {
		return entity.Entity{}, fmt.Errorf("reading entity path: %w", err)
	}

	b := entity.NewBuilder()
	for sp.HasRemaining() {
		// only a pair followed by more segments belongs to the path
		if strings.EqualFold(key, targetType) {
			b.AppendAsType(key, value)
		} else {
			b.Append(key, value)
		}

		if key, err = sp.GetString(); err != nil {
			return entity.Entity{}, fmt.Errorf("reading entity path: %w", err)
		}
		if !sp.HasRemaining() {
			break
		}
		if value, err = sp.GetString(); err != nil {
			return entity.Entity{}, fmt.Errorf("reading entity path: %w", err)
		}
	}

	e, err := b.Build()
	if err != nil {
		return entity.Entity{}, fmt.Errorf("%w: %w", mdskey.ErrMalformedKey, err)
	}
	if !strings.EqualFold(e.Type(), targetType) {
		return entity.Entity{}, fmt.Errorf("%w: target type %q not found in entity path", mdskey.ErrMalformedKey, targetType)
	}
	if ks.IsVersioned(e.Type()) {
		e = e.WithVersion(ks.defaultVersion)
	}
	return e, nil
}

// RowInfo is every field decoded from one row key
type RowInfo struct {
	Kind       RowKind
	TargetType string
	Entity     entity.Entity
	Key        string
	Term       string // index rows only
}

// DescribeRow decodes all parts of a value or index row key
func (ks *KeyScheme) DescribeRow(rowKey []byte) (RowInfo, error) {
	kind, err := RowKindOf(rowKey)
	if err != nil {
		return RowInfo{}, err
	}
	info := RowInfo{Kind: kind}
	if info.TargetType, err = ks.ExtractTargetType(rowKey); err != nil {
		return RowInfo{}, err
	}
	if info.Entity, err = ks.ExtractMetadataEntityFromKey(rowKey); err != nil {
		return RowInfo{}, err
	}
	if info.Key, err = ks.ExtractMetadataKey(rowKey); err != nil {
		return RowInfo{}, err
	}
	if kind == IndexRow {
		if info.Term, err = ks.ExtractIndexTerm(rowKey); err != nil {
			return RowInfo{}, err
		}
	}
	return info, nil
}
