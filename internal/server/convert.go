// Conversions between Struct payloads and metadata types

package server

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/metastore/pkg/entity"
	"github.com/nainya/metastore/pkg/metadata"
)

// EntityValue encodes an entity as {"type": t, "parts": [{"key": k, "value": v}, ...]}
func EntityValue(e entity.Entity) *structpb.Value {
	parts := make([]*structpb.Value, 0, e.Len())
	for _, kv := range e.Parts() {
		parts = append(parts, pairValue(kv.Key, kv.Value))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"type":  structpb.NewStringValue(e.Type()),
		"parts": structpb.NewListValue(&structpb.ListValue{Values: parts}),
	}})
}

// EntityFromValue decodes an entity written by EntityValue.
// Without a "type" field the last part names the entity.
func EntityFromValue(v *structpb.Value) (entity.Entity, error) {
	s := v.GetStructValue()
	if s == nil {
		return entity.Entity{}, fmt.Errorf("%w: entity is required", entity.ErrInvalidEntity)
	}
	parts := s.GetFields()["parts"].GetListValue().GetValues()
	if len(parts) == 0 {
		return entity.Entity{}, fmt.Errorf("%w: entity has no parts", entity.ErrInvalidEntity)
	}

	pairs := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		ps := p.GetStructValue()
		if ps == nil {
			return entity.Entity{}, fmt.Errorf("%w: part %d is not an object", entity.ErrInvalidEntity, i)
		}
		pairs = append(pairs,
			ps.GetFields()["key"].GetStringValue(),
			ps.GetFields()["value"].GetStringValue())
	}

	if typ := s.GetFields()["type"].GetStringValue(); typ != "" {
		return entity.New(typ, pairs...)
	}
	b := entity.NewBuilder()
	for i := 0; i < len(pairs); i += 2 {
		b.Append(pairs[i], pairs[i+1])
	}
	return b.Build()
}

func requestEntity(req *structpb.Struct) (entity.Entity, error) {
	return EntityFromValue(req.GetFields()["entity"])
}

func pairValue(key, value string) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(key),
		"value": structpb.NewStringValue(value),
	}})
}

// stringList reads an optional list of strings
func stringList(req *structpb.Struct, field string) ([]string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s must be a list of strings", metadata.ErrInvalidArgument, field)
	}
	out := make([]string, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a string", metadata.ErrInvalidArgument, field, i)
		}
		out = append(out, sv.StringValue)
	}
	return out, nil
}

// stringMap reads an optional object of string values
func stringMap(req *structpb.Struct, field string) (map[string]string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("%w: %s must be an object", metadata.ErrInvalidArgument, field)
	}
	out := make(map[string]string, len(s.GetFields()))
	for k, item := range s.GetFields() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not a string", metadata.ErrInvalidArgument, field, k)
		}
		out[k] = sv.StringValue
	}
	return out, nil
}

// intField reads an optional non-negative whole number
func intField(req *structpb.Struct, field string) (int, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, nil
	}
	nv, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || nv.NumberValue < 0 || nv.NumberValue != math.Trunc(nv.NumberValue) || nv.NumberValue > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", metadata.ErrInvalidArgument, field)
	}
	return int(nv.NumberValue), nil
}

func stringListValue(items []string) *structpb.Value {
	values := make([]*structpb.Value, len(items))
	for i, s := range items {
		values[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func stringMapValue(m map[string]string) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewStringValue(v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func metadataValue(md metadata.Metadata) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entity":     EntityValue(md.Entity),
		"properties": stringMapValue(md.Properties),
		"tags":       stringListValue(md.Tags),
	}}
}

func searchResultValue(r metadata.SearchResult) *structpb.Value {
	matches := make([]*structpb.Value, len(r.Matches))
	for i, m := range r.Matches {
		matches[i] = pairValue(m.Key, m.Value)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"entity":  EntityValue(r.Entity),
		"matches": structpb.NewListValue(&structpb.ListValue{Values: matches}),
	}})
}

func ack(message string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
		"message": structpb.NewStringValue(message),
	}}
}
