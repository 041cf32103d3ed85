// ABOUTME: Tests for metadata row keys
// ABOUTME: Verifies round trips, versioned entities, prefix disjointness and malformed input

package metadata

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nainya/metastore/pkg/entity"
	"github.com/nainya/metastore/pkg/mdskey"
)

func strPtr(s string) *string { return &s }

func mustEntity(t *testing.T, typ string, pairs ...string) entity.Entity {
	t.Helper()
	e, err := entity.New(typ, pairs...)
	if err != nil {
		t.Fatalf("Failed to build entity: %v", err)
	}
	return e
}

func TestValueRowRoundTrip(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	entities := []entity.Entity{
		mustEntity(t, entity.Namespace, entity.Namespace, "ns1"),
		mustEntity(t, entity.Dataset, entity.Namespace, "ns1", entity.Dataset, "purchases"),
		mustEntity(t, entity.Dataset, entity.Namespace, "ns1", entity.Dataset, "purchases", entity.Field, "price"),
		mustEntity(t, entity.Artifact, entity.Namespace, "ns1", entity.Artifact, "art", entity.Version, "1.0.0"),
	}

	for _, e := range entities {
		t.Run(e.String(), func(t *testing.T) {
			key, err := ks.CreateValueRowKey(e, strPtr("owner"))
			if err != nil {
				t.Fatalf("Failed to create key: %v", err)
			}

			decoded, err := ks.ExtractMetadataEntityFromKey(key)
			if err != nil {
				t.Fatalf("Failed to decode entity: %v", err)
			}
			if !decoded.Equal(e) {
				t.Errorf("Expected %s, got %s", e, decoded)
			}

			attr, err := ks.ExtractMetadataKey(key)
			if err != nil {
				t.Fatalf("Failed to extract key: %v", err)
			}
			if attr != "owner" {
				t.Errorf("Expected 'owner', got %q", attr)
			}
		})
	}
}

func TestIndexRowRoundTrip(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns1", entity.Dataset, "purchases")

	key, err := ks.CreateIndexRowKey(e, "owner", strPtr("owner:alice"))
	if err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	decoded, err := ks.ExtractMetadataEntityFromKey(key)
	if err != nil {
		t.Fatalf("Failed to decode entity: %v", err)
	}
	if !decoded.Equal(e) {
		t.Errorf("Expected %s, got %s", e, decoded)
	}

	attr, err := ks.ExtractMetadataKey(key)
	if err != nil {
		t.Fatalf("Failed to extract key: %v", err)
	}
	if attr != "owner" {
		t.Errorf("Expected attribute key 'owner', got %q", attr)
	}

	term, err := ks.ExtractIndexTerm(key)
	if err != nil {
		t.Fatalf("Failed to extract term: %v", err)
	}
	if term != "owner:alice" {
		t.Errorf("Expected term 'owner:alice', got %q", term)
	}

	kind, err := RowKindOf(key)
	if err != nil || kind != IndexRow {
		t.Errorf("Expected index row, got %s (%v)", kind, err)
	}
}

func TestIndexTermOnValueRow(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Namespace, entity.Namespace, "ns1")

	key, _ := ks.CreateValueRowKey(e, strPtr("k"))
	if _, err := ks.ExtractIndexTerm(key); !errors.Is(err, mdskey.ErrMalformedKey) {
		t.Errorf("Expected ErrMalformedKey, got %v", err)
	}
}

func TestVersionedEntityDecodesDefaultVersion(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	tests := []struct {
		name string
		in   entity.Entity
		want entity.Entity
	}{
		{
			name: "application",
			in:   mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app", entity.Version, "1.0"),
			want: mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app", entity.Version, DefaultVersion),
		},
		{
			name: "program",
			in: mustEntity(t, entity.Program, entity.Namespace, "ns", entity.Application, "app", entity.Version, "2.0",
				entity.Type, "Service", entity.Program, "svc"),
			want: mustEntity(t, entity.Program, entity.Namespace, "ns", entity.Application, "app", entity.Version, DefaultVersion,
				entity.Type, "Service", entity.Program, "svc"),
		},
		{
			name: "schedule without version",
			in:   mustEntity(t, entity.Schedule, entity.Namespace, "ns", entity.Application, "app", entity.Schedule, "nightly"),
			want: mustEntity(t, entity.Schedule, entity.Namespace, "ns", entity.Application, "app", entity.Version, DefaultVersion,
				entity.Schedule, "nightly"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, kind := range []RowKind{ValueRow, IndexRow} {
				var key []byte
				var err error
				if kind == ValueRow {
					key, err = ks.CreateValueRowKey(tt.in, strPtr("k"))
				} else {
					key, err = ks.CreateIndexRowKey(tt.in, "k", strPtr("v"))
				}
				if err != nil {
					t.Fatalf("Failed to create %s key: %v", kind, err)
				}

				decoded, err := ks.ExtractMetadataEntityFromKey(key)
				if err != nil {
					t.Fatalf("Failed to decode %s key: %v", kind, err)
				}
				if !decoded.Equal(tt.want) {
					t.Errorf("%s row: expected %s, got %s", kind, tt.want, decoded)
				}
			}
		})
	}
}

func TestVersionNotPersisted(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	v1 := mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app", entity.Version, "1.0")
	v2 := mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app", entity.Version, "2.0")
	noVersion := mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app")

	k1, _ := ks.CreateValueRowKey(v1, strPtr("k"))
	k2, _ := ks.CreateValueRowKey(v2, strPtr("k"))
	k3, _ := ks.CreateValueRowKey(noVersion, strPtr("k"))

	if !bytes.Equal(k1, k2) || !bytes.Equal(k1, k3) {
		t.Error("Expected application versions to share one row key")
	}
}

func TestInjectedVersionedTypes(t *testing.T) {
	// Only datasets are versioned in this configuration
	ks := NewKeyScheme(KeySchemeConfig{VersionedTypes: []string{entity.Dataset}, DefaultVersion: "0.0.0"})

	app := mustEntity(t, entity.Application, entity.Namespace, "ns", entity.Application, "app", entity.Version, "1.0")
	key, _ := ks.CreateValueRowKey(app, strPtr("k"))
	decoded, err := ks.ExtractMetadataEntityFromKey(key)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !decoded.Equal(app) {
		t.Errorf("Expected application version to be kept, got %s", decoded)
	}

	ds := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")
	key, _ = ks.CreateValueRowKey(ds, strPtr("k"))
	decoded, err = ks.ExtractMetadataEntityFromKey(key)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if v, ok := decoded.Value(entity.Version); !ok || v != "0.0.0" {
		t.Errorf("Expected injected version 0.0.0, got %s", decoded)
	}
}

func TestPrefixDisjointness(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")

	valueKey, _ := ks.CreateValueRowKey(e, strPtr("k"))
	indexKey, _ := ks.CreateIndexRowKey(e, "k", strPtr("t"))
	indexPrefix, _ := ks.CreateIndexRowKey(e, "k", nil)

	for _, other := range [][]byte{indexKey, indexPrefix} {
		if bytes.HasPrefix(valueKey, other) || bytes.HasPrefix(other, valueKey) {
			t.Error("Value and index keys overlap")
		}
	}

	if !bytes.HasPrefix(valueKey, ValueRowPrefix()) {
		t.Error("Value key does not start with value prefix")
	}
	if !bytes.HasPrefix(indexKey, IndexRowPrefix()) {
		t.Error("Index key does not start with index prefix")
	}
	if bytes.Equal(ValueRowPrefix(), IndexRowPrefix()) {
		t.Error("Row prefixes must differ")
	}
}

func TestValueKeyOrdering(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	names := []string{"ds-a", "ds-b", "ds-c"}
	var prev []byte
	for _, name := range names {
		e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, name)
		key, err := ks.CreateValueRowKey(e, strPtr("k"))
		if err != nil {
			t.Fatalf("Failed to create key: %v", err)
		}
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Errorf("Expected key for %s to sort after its predecessor", name)
		}
		prev = key
	}
}

func TestEntityValuePrefix(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")

	prefix, _ := ks.CreateValueRowKey(e, nil)
	for _, k := range []string{"a", "owner", "tags"} {
		key, _ := ks.CreateValueRowKey(e, strPtr(k))
		if !bytes.HasPrefix(key, prefix) {
			t.Errorf("Expected %q row under entity prefix", k)
		}
	}

	// A sibling dataset sharing a name prefix is not under the entity prefix
	sibling := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds2")
	key, _ := ks.CreateValueRowKey(sibling, strPtr("a"))
	if bytes.HasPrefix(key, prefix) {
		t.Error("Sibling entity leaked into prefix scan")
	}
}

func TestNullTermIsIndexPrefix(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")

	prefix, _ := ks.CreateIndexRowKey(e, "owner", nil)
	for _, term := range []string{"", "alice", "owner:alice"} {
		key, _ := ks.CreateIndexRowKey(e, "owner", strPtr(term))
		if !bytes.HasPrefix(key, prefix) || bytes.Equal(key, prefix) {
			t.Errorf("Expected null-term key to strictly prefix term %q", term)
		}
	}
}

func TestExtractTargetType(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Program, entity.Namespace, "ns", entity.Application, "app", entity.Type, "Worker", entity.Program, "w")

	valueKey, _ := ks.CreateValueRowKey(e, strPtr("k"))
	indexKey, _ := ks.CreateIndexRowKey(e, "k", strPtr("t"))

	for _, key := range [][]byte{valueKey, indexKey} {
		typ, err := ks.ExtractTargetType(key)
		if err != nil {
			t.Fatalf("Failed to extract type: %v", err)
		}
		if typ != entity.Program {
			t.Errorf("Expected %q, got %q", entity.Program, typ)
		}
	}
}

func TestCaseInsensitiveTypeMatch(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	// Historic rows may carry a type string that differs in case from the path key
	key := mdskey.NewBuilder().
		Add([]byte{'v'}).
		AddString("DATASET").
		AddString("namespace").AddString("ns").
		AddString("dataset").AddString("ds").
		AddString("field").AddString("f").
		AddString("owner").
		Build().Bytes()

	e, err := ks.ExtractMetadataEntityFromKey(key)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if e.Type() != "dataset" {
		t.Errorf("Expected type component 'dataset', got %q", e.Type())
	}
}

func TestMalformedKeys(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")
	full, _ := ks.CreateValueRowKey(e, strPtr("k"))
	entityPrefix, _ := ks.CreateValueRowKey(e, nil)

	tests := []struct {
		name string
		key  []byte
	}{
		{"empty", nil},
		{"partial prefix", full[:3]},
		{"prefix only", ValueRowPrefix()},
		{"truncated type", full[:len(ValueRowPrefix())+6]},
		{"truncated attribute", full[:len(full)-1]},
		{"unknown row kind", mdskey.NewBuilder().Add([]byte{'x'}).AddString("dataset").AddString("k").Build().Bytes()},
		{"no attribute key", entityPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ks.ExtractMetadataKey(tt.key); !errors.Is(err, mdskey.ErrMalformedKey) {
				t.Errorf("ExtractMetadataKey: expected ErrMalformedKey, got %v", err)
			}
			if _, err := ks.ExtractMetadataEntityFromKey(tt.key); !errors.Is(err, mdskey.ErrMalformedKey) {
				t.Errorf("ExtractMetadataEntityFromKey: expected ErrMalformedKey, got %v", err)
			}
		})
	}

	for _, key := range [][]byte{nil, full[:3], ValueRowPrefix()} {
		if _, err := ks.ExtractTargetType(key); !errors.Is(err, mdskey.ErrMalformedKey) {
			t.Errorf("ExtractTargetType: expected ErrMalformedKey, got %v", err)
		}
	}
}

func TestIndexRowWithoutTermIsMalformed(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Dataset, entity.Namespace, "ns", entity.Dataset, "ds")

	prefix, _ := ks.CreateIndexRowKey(e, "owner", nil)
	if _, err := ks.ExtractMetadataKey(prefix); !errors.Is(err, mdskey.ErrMalformedKey) {
		t.Errorf("Expected ErrMalformedKey, got %v", err)
	}
}

func TestInvalidEntity(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())

	if _, err := ks.CreateValueRowKey(entity.Entity{}, strPtr("k")); !errors.Is(err, entity.ErrInvalidEntity) {
		t.Errorf("Expected ErrInvalidEntity, got %v", err)
	}
	if _, err := ks.CreateIndexRowKey(entity.Entity{}, "k", nil); !errors.Is(err, entity.ErrInvalidEntity) {
		t.Errorf("Expected ErrInvalidEntity, got %v", err)
	}
}

func TestDescribeRow(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, entity.Schedule,
		entity.Namespace, "ns",
		entity.Application, "app",
		entity.Version, "1.0",
		entity.Schedule, "nightly")

	rowKey, err := ks.CreateIndexRowKey(e, "owner", strPtr("owner:alice"))
	if err != nil {
		t.Fatalf("CreateIndexRowKey failed: %v", err)
	}

	info, err := ks.DescribeRow(rowKey)
	if err != nil {
		t.Fatalf("DescribeRow failed: %v", err)
	}
	if info.Kind != IndexRow || info.TargetType != entity.Schedule {
		t.Errorf("Expected index row of schedule, got %s row of %s", info.Kind, info.TargetType)
	}
	if !info.Entity.Equal(e.WithVersion(DefaultVersion)) {
		t.Errorf("Expected entity %s, got %s", e.WithVersion(DefaultVersion), info.Entity)
	}
	if info.Key != "owner" || info.Term != "owner:alice" {
		t.Errorf("Expected owner/owner:alice, got %s/%s", info.Key, info.Term)
	}

	if _, err := ks.DescribeRow(rowKey[:len(rowKey)-2]); !errors.Is(err, mdskey.ErrMalformedKey) {
		t.Errorf("Expected ErrMalformedKey for truncated row, got %v", err)
	}
}

func TestVersionedTypeMatchIgnoresCase(t *testing.T) {
	ks := NewKeyScheme(DefaultKeySchemeConfig())
	e := mustEntity(t, "Application", entity.Namespace, "ns", "Application", "app", "Version", "1.0")

	if !ks.IsVersioned("Application") || !ks.IsVersioned("PROGRAM") {
		t.Fatal("Expected versioned type lookup to ignore case")
	}

	rowKey, err := ks.CreateValueRowKey(e, strPtr("owner"))
	if err != nil {
		t.Fatalf("CreateValueRowKey failed: %v", err)
	}
	if bytes.Contains(rowKey, []byte("1.0")) {
		t.Error("Version persisted for a versioned type spelled in another case")
	}

	decoded, err := ks.ExtractMetadataEntityFromKey(rowKey)
	if err != nil {
		t.Fatalf("ExtractMetadataEntityFromKey failed: %v", err)
	}
	if v, _ := decoded.Value(entity.Version); v != DefaultVersion {
		t.Errorf("Expected default version %s, got %q", DefaultVersion, v)
	}
}
