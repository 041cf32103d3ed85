// ABOUTME: Metadata dataset storing properties, tags and their search index
// ABOUTME: Value rows hold attribute values, index rows hold one term each

package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nainya/metastore/pkg/entity"
	"github.com/nainya/metastore/pkg/mdskey"
	"github.com/nainya/metastore/pkg/storage"
)

// Dataset manages entity metadata on top of a sorted KV store
type Dataset struct {
	kv      *storage.KV
	keys    *KeyScheme
	indexer Indexer
}

// NewDataset creates a dataset. A nil indexer uses DefaultIndexer.
func NewDataset(kv *storage.KV, keys *KeyScheme, indexer Indexer) *Dataset {
	if indexer == nil {
		indexer = DefaultIndexer{}
	}
	return &Dataset{kv: kv, keys: keys, indexer: indexer}
}

// Keys returns the key scheme rows are encoded with
func (ds *Dataset) Keys() *KeyScheme {
	return ds.keys
}

// SetProperties stores or replaces properties of an entity and reindexes them
func (ds *Dataset) SetProperties(ctx context.Context, e entity.Entity, props map[string]string) error {
	for k := range props {
		if k == "" {
			return fmt.Errorf("%w: empty property key", ErrInvalidArgument)
		}
		if strings.EqualFold(k, TagsKey) {
			return fmt.Errorf("%w: %q is reserved for tags", ErrInvalidArgument, TagsKey)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.kv.Update(func(tx *storage.KVTX) error {
		for _, k := range sortedKeys(props) {
			if err := ds.writeAttribute(tx, e, k, props[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProperty returns one property of an entity
func (ds *Dataset) GetProperty(ctx context.Context, e entity.Entity, key string) (MetadataEntry, error) {
	if err := ctx.Err(); err != nil {
		return MetadataEntry{}, err
	}
	rowKey, err := ds.keys.CreateValueRowKey(e, &key)
	if err != nil {
		return MetadataEntry{}, err
	}

	val, ok, err := ds.kv.Get(rowKey)
	if err != nil {
		return MetadataEntry{}, err
	}
	if !ok {
		return MetadataEntry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, e, key)
	}
	return MetadataEntry{Entity: e, Key: key, Value: string(val)}, nil
}

// GetProperties returns all properties of an entity, excluding tags
func (ds *Dataset) GetProperties(ctx context.Context, e entity.Entity) (map[string]string, error) {
	all, err := ds.attributes(ctx, e)
	if err != nil {
		return nil, err
	}
	delete(all, TagsKey)
	return all, nil
}

// GetMetadata returns properties and tags of an entity
func (ds *Dataset) GetMetadata(ctx context.Context, e entity.Entity) (Metadata, error) {
	all, err := ds.attributes(ctx, e)
	if err != nil {
		return Metadata{}, err
	}
	tags := splitTags(all[TagsKey])
	delete(all, TagsKey)
	return Metadata{Entity: e, Properties: all, Tags: tags}, nil
}

// RemoveProperties removes the named properties, or all properties when none are named
func (ds *Dataset) RemoveProperties(ctx context.Context, e entity.Entity, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.kv.Update(func(tx *storage.KVTX) error {
		if len(keys) == 0 {
			var err error
			if keys, err = ds.attributeKeys(tx, e); err != nil {
				return err
			}
		}
		for _, k := range keys {
			if strings.EqualFold(k, TagsKey) {
				continue
			}
			if err := ds.removeAttribute(tx, e, k); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddTags adds tags to an entity
func (ds *Dataset) AddTags(ctx context.Context, e entity.Entity, tags ...string) error {
	for _, t := range tags {
		if strings.TrimSpace(t) == "" || strings.Contains(t, ",") {
			return fmt.Errorf("%w: invalid tag %q", ErrInvalidArgument, t)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.kv.Update(func(tx *storage.KVTX) error {
		current, err := ds.readTags(tx, e)
		if err != nil {
			return err
		}
		merged := mergeTags(current, tags)
		if len(merged) == len(current) {
			return nil
		}
		return ds.writeAttribute(tx, e, TagsKey, strings.Join(merged, ","))
	})
}

// GetTags returns the tags of an entity in sorted order
func (ds *Dataset) GetTags(ctx context.Context, e entity.Entity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tags []string
	err := ds.kv.View(func(tx *storage.KVTX) error {
		var err error
		tags, err = ds.readTags(tx, e)
		return err
	})
	return tags, err
}

// RemoveTags removes the given tags, or all tags when none are given
func (ds *Dataset) RemoveTags(ctx context.Context, e entity.Entity, tags ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.kv.Update(func(tx *storage.KVTX) error {
		if len(tags) == 0 {
			return ds.removeAttribute(tx, e, TagsKey)
		}

		current, err := ds.readTags(tx, e)
		if err != nil {
			return err
		}
		drop := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			drop[strings.TrimSpace(t)] = struct{}{}
		}
		kept := current[:0]
		for _, t := range current {
			if _, ok := drop[t]; !ok {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			return ds.removeAttribute(tx, e, TagsKey)
		}
		return ds.writeAttribute(tx, e, TagsKey, strings.Join(kept, ","))
	})
}

// RemoveMetadata removes every value and index row of an entity
func (ds *Dataset) RemoveMetadata(ctx context.Context, e entity.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ds.kv.Update(func(tx *storage.KVTX) error {
		keys, err := ds.attributeKeys(tx, e)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := ds.removeAttribute(tx, e, k); err != nil {
				return err
			}
		}

		// index rows left without a value row
		prefix, err := ds.keys.CreateEntityIndexPrefix(e)
		if err != nil {
			return err
		}
		_, err = tx.DelPrefix(prefix, ownRow(prefix, 2))
		return err
	})
}

// Search returns entities with an index term matching the query.
// Results follow index row order and are grouped per encoded entity path.
func (ds *Dataset) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	if query == "" || query == "*" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidArgument)
	}

	prefixes := [][]byte{IndexRowPrefix()}
	if len(req.TargetTypes) > 0 {
		prefixes = prefixes[:0]
		for _, t := range req.TargetTypes {
			prefixes = append(prefixes, TypePrefix(IndexRow, t))
		}
	}

	var (
		results []SearchResult
		byID    = make(map[string]int)
		scanErr error
	)
	full := func() bool { return req.Limit > 0 && len(results) >= req.Limit }

	err := ds.kv.View(func(tx *storage.KVTX) error {
		for _, prefix := range prefixes {
			tx.ScanPrefix(prefix, func(rowKey, val []byte) bool {
				if scanErr = ctx.Err(); scanErr != nil {
					return false
				}

				term, err := ds.keys.ExtractIndexTerm(rowKey)
				if err != nil {
					scanErr = &RowKeyError{Key: rowKey, Err: err}
					return false
				}
				if !matchTerm(query, term) {
					return true
				}

				e, err := ds.keys.ExtractMetadataEntityFromKey(rowKey)
				if err != nil {
					scanErr = &RowKeyError{Key: rowKey, Err: err}
					return false
				}
				key, err := ds.keys.ExtractMetadataKey(rowKey)
				if err != nil {
					scanErr = &RowKeyError{Key: rowKey, Err: err}
					return false
				}
				entityPrefix, err := ds.keys.CreateEntityIndexPrefix(e)
				if err != nil {
					scanErr = &RowKeyError{Key: rowKey, Err: err}
					return false
				}

				id := string(entityPrefix)
				i, ok := byID[id]
				if !ok {
					if full() {
						return false
					}
					i = len(results)
					byID[id] = i
					results = append(results, SearchResult{Entity: e})
				}
				r := &results[i]
				for _, m := range r.Matches {
					if m.Key == key {
						return true
					}
				}
				r.Matches = append(r.Matches, MetadataEntry{Entity: e, Key: key, Value: string(val)})
				return true
			})
			if scanErr != nil || full() {
				break
			}
		}
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}
	return results, nil
}

// attributes reads all value rows of an entity
func (ds *Dataset) attributes(ctx context.Context, e entity.Entity) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, err := ds.keys.CreateValueRowKey(e, nil)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	var scanErr error
	err = ds.kv.ScanPrefix(prefix, func(rowKey, val []byte) bool {
		key, ok, err := ownAttribute(rowKey, prefix)
		if err != nil {
			scanErr = err
			return false
		}
		if ok {
			result[key] = string(val)
		}
		return true
	})
	if err == nil {
		err = scanErr
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attributeKeys lists the attribute keys with a value row for e
func (ds *Dataset) attributeKeys(tx *storage.KVTX, e entity.Entity) ([]string, error) {
	prefix, err := ds.keys.CreateValueRowKey(e, nil)
	if err != nil {
		return nil, err
	}

	var keys []string
	var scanErr error
	tx.ScanPrefix(prefix, func(rowKey, _ []byte) bool {
		key, ok, err := ownAttribute(rowKey, prefix)
		if err != nil {
			scanErr = err
			return false
		}
		if ok {
			keys = append(keys, key)
		}
		return true
	})
	return keys, scanErr
}

// ownAttribute returns the attribute key of a value row directly under prefix.
// Rows of descendant entities share the prefix but carry more segments.
func ownAttribute(rowKey, prefix []byte) (string, bool, error) {
	sp := mdskey.NewSplitter(rowKey[len(prefix):])
	key, err := sp.GetString()
	if err != nil {
		return "", false, err
	}
	return key, !sp.HasRemaining(), nil
}

// writeAttribute replaces the value row of one attribute and its index rows
func (ds *Dataset) writeAttribute(tx *storage.KVTX, e entity.Entity, key, value string) error {
	if err := ds.removeAttribute(tx, e, key); err != nil {
		return err
	}

	rowKey, err := ds.keys.CreateValueRowKey(e, &key)
	if err != nil {
		return err
	}
	if err := tx.Set(rowKey, []byte(value)); err != nil {
		return err
	}

	for _, term := range ds.indexer.Terms(key, value) {
		indexKey, err := ds.keys.CreateIndexRowKey(e, key, &term)
		if err != nil {
			return err
		}
		if err := tx.Set(indexKey, []byte(value)); err != nil {
			return err
		}
	}
	return nil
}

// removeAttribute deletes the value row of one attribute and all its index rows
func (ds *Dataset) removeAttribute(tx *storage.KVTX, e entity.Entity, key string) error {
	rowKey, err := ds.keys.CreateValueRowKey(e, &key)
	if err != nil {
		return err
	}
	if _, err := tx.Del(rowKey); err != nil {
		return err
	}

	indexPrefix, err := ds.keys.CreateIndexRowKey(e, key, nil)
	if err != nil {
		return err
	}
	// exactly one term segment follows the attribute key
	_, err = tx.DelPrefix(indexPrefix, ownRow(indexPrefix, 1))
	return err
}

// ownRow matches rows carrying exactly segments segments after prefix.
// Rows of descendant entities share the prefix but carry more.
func ownRow(prefix []byte, segments int) func(rowKey []byte) (bool, error) {
	return func(rowKey []byte) (bool, error) {
		sp := mdskey.NewSplitter(rowKey[len(prefix):])
		n := 0
		for sp.HasRemaining() {
			if err := sp.SkipBytes(); err != nil {
				return false, &RowKeyError{Key: rowKey, Err: err}
			}
			if n++; n > segments {
				return false, nil
			}
		}
		return n == segments, nil
	}
}

func (ds *Dataset) readTags(tx *storage.KVTX, e entity.Entity) ([]string, error) {
	key := TagsKey
	rowKey, err := ds.keys.CreateValueRowKey(e, &key)
	if err != nil {
		return nil, err
	}
	val, ok := tx.Get(rowKey)
	if !ok {
		return nil, nil
	}
	return splitTags(string(val)), nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func mergeTags(current, add []string) []string {
	set := make(map[string]struct{}, len(current)+len(add))
	for _, t := range current {
		set[t] = struct{}{}
	}
	for _, t := range add {
		set[strings.TrimSpace(t)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
