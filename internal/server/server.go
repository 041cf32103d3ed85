// Package server implements the gRPC metadata service
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/metastore/internal/logger"
	"github.com/nainya/metastore/internal/metrics"
	"github.com/nainya/metastore/pkg/entity"
	"github.com/nainya/metastore/pkg/mdskey"
	"github.com/nainya/metastore/pkg/metadata"
	"github.com/nainya/metastore/pkg/storage"
)

// Options configures a Server
type Options struct {
	DBPath      string
	Bucket      string
	LockTimeout time.Duration
	Keys        metadata.KeySchemeConfig

	// Metrics defaults to a private registry, Logger to a no-op logger
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Server implements MetadataServiceServer
type Server struct {
	kv      *storage.KV
	dataset *metadata.Dataset
	metrics *metrics.Metrics
	log     *logger.Logger

	startTime time.Time
}

// NewServer opens the database and creates a server instance
func NewServer(opts Options) (*Server, error) {
	kv := &storage.KV{Path: opts.DBPath, Bucket: opts.Bucket, Timeout: opts.LockTimeout}
	if err := kv.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		kv:        kv,
		dataset:   metadata.NewDataset(kv, metadata.NewKeyScheme(opts.Keys), nil),
		metrics:   m,
		log:       log.Component("server"),
		startTime: time.Now(),
	}, nil
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.kv.Close()
}

// Ready reports whether the database is usable
func (s *Server) Ready() error {
	_, _, err := s.kv.Stats()
	return err
}

// ========== Metadata Operations ==========

func (s *Server) SetProperties(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "set_properties"

	e, err := requestEntity(req)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	props, err := stringMap(req, "properties")
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	if len(props) == 0 {
		return nil, status.Error(codes.InvalidArgument, "properties are required")
	}

	err = s.observe(op, e, len(props), func() error {
		return s.dataset.SetProperties(ctx, e, props)
	})
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return ack(fmt.Sprintf("Stored %d properties on %s", len(props), e)), nil
}

// GetMetadata returns properties and tags of an entity, or one property when "key" is set
func (s *Server) GetMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get_metadata"

	e, err := requestEntity(req)
	if err != nil {
		return nil, s.toStatus(op, err)
	}

	if key := req.GetFields()["key"].GetStringValue(); key != "" {
		var entry metadata.MetadataEntry
		err = s.observe("get_property", e, 1, func() error {
			entry, err = s.dataset.GetProperty(ctx, e, key)
			return err
		})
		if err != nil {
			return nil, s.toStatus(op, err)
		}
		return metadataValue(metadata.Metadata{
			Entity:     e,
			Properties: map[string]string{entry.Key: entry.Value},
		}), nil
	}

	var md metadata.Metadata
	err = s.observe(op, e, 0, func() error {
		md, err = s.dataset.GetMetadata(ctx, e)
		return err
	})
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return metadataValue(md), nil
}

// RemoveMetadata removes the listed "keys", or every property and tag when none are listed
func (s *Server) RemoveMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "remove_metadata"

	e, err := requestEntity(req)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	keys, err := stringList(req, "keys")
	if err != nil {
		return nil, s.toStatus(op, err)
	}

	if len(keys) > 0 {
		err = s.observe("remove_properties", e, len(keys), func() error {
			return s.dataset.RemoveProperties(ctx, e, keys...)
		})
	} else {
		err = s.observe(op, e, 0, func() error {
			return s.dataset.RemoveMetadata(ctx, e)
		})
	}
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return ack(fmt.Sprintf("Removed metadata of %s", e)), nil
}

func (s *Server) AddTags(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "add_tags"

	e, err := requestEntity(req)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	tags, err := stringList(req, "tags")
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	if len(tags) == 0 {
		return nil, status.Error(codes.InvalidArgument, "tags are required")
	}

	err = s.observe(op, e, len(tags), func() error {
		return s.dataset.AddTags(ctx, e, tags...)
	})
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return ack(fmt.Sprintf("Added %d tags to %s", len(tags), e)), nil
}

// RemoveTags removes the listed "tags", or all tags when none are listed
func (s *Server) RemoveTags(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "remove_tags"

	e, err := requestEntity(req)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	tags, err := stringList(req, "tags")
	if err != nil {
		return nil, s.toStatus(op, err)
	}

	err = s.observe(op, e, len(tags), func() error {
		return s.dataset.RemoveTags(ctx, e, tags...)
	})
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return ack(fmt.Sprintf("Removed tags of %s", e)), nil
}

func (s *Server) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "search"

	targetTypes, err := stringList(req, "target_types")
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	query := req.GetFields()["query"].GetStringValue()

	start := time.Now()
	results, err := s.dataset.Search(ctx, metadata.SearchRequest{
		TargetTypes: targetTypes,
		Query:       query,
		Limit:       limit,
	})
	s.record(op, query, start, len(results), err)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	s.metrics.SearchResultsTotal.Add(float64(len(results)))

	values := make([]*structpb.Value, len(results))
	for i, r := range results {
		values[i] = searchResultValue(r)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"results": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// ========== Health & Status ==========

func (s *Server) Health(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rows, size, err := s.kv.Stats()
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "database unavailable: %v", err)
	}
	s.metrics.UpdateDbStats(size, rows)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"healthy":        structpb.NewBoolValue(true),
		"service":        structpb.NewStringValue("metastore"),
		"uptime_seconds": structpb.NewNumberValue(float64(int64(time.Since(s.startTime).Seconds()))),
		"rows":           structpb.NewNumberValue(float64(rows)),
		"db_size_bytes":  structpb.NewNumberValue(float64(size)),
	}}, nil
}

// observe runs one dataset operation and records its duration and outcome
func (s *Server) observe(op string, e entity.Entity, rows int, fn func() error) error {
	start := time.Now()
	err := fn()
	s.record(op, e.String(), start, rows, err)
	return err
}

func (s *Server) record(op, target string, start time.Time, rows int, err error) {
	duration := time.Since(start)
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordMetadataOperation(op, result, duration)
	s.log.LogMetadataOperation(op, target, duration, rows, err)
}

// toStatus maps dataset errors onto gRPC status codes
func (s *Server) toStatus(op string, err error) error {
	var rowErr *metadata.RowKeyError
	switch {
	case errors.As(err, &rowErr):
		s.metrics.RecordMalformedKey(op)
		s.log.LogMalformedKey(op, rowErr.Key, rowErr.Err)
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	case errors.Is(err, mdskey.ErrMalformedKey):
		s.metrics.RecordMalformedKey(op)
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	case errors.Is(err, entity.ErrInvalidEntity), errors.Is(err, metadata.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, metadata.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
