// Package worldgen exposes world generation over gRPC.
package worldgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/louisbranch/worldgen/internal/core/world"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
	"github.com/louisbranch/worldgen/internal/services/worldgen/generation"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage/chunkfile"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service implements WorldServiceServer.
type Service struct {
	generator *generation.Service
}

// NewService creates a world service backed by a generation service.
func NewService(generator *generation.Service) *Service {
	return &Service{generator: generator}
}

// Generate generates, or loads from cache, the requested world and returns
// its summary.
func (s *Service) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "generate request is required")
	}
	if s == nil || s.generator == nil {
		return nil, status.Error(codes.Internal, "generation service is not configured")
	}
	body, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	req, err := generation.DecodeRequest(body)
	if err != nil {
		return nil, toStatus(err, "decode request")
	}
	res, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, toStatus(err, "generate world")
	}
	out, err := summaryToStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode summary: %v", err)
	}
	return out, nil
}

// GetChunk returns the stored chunk envelope at the requested coordinate.
func (s *Service) GetChunk(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get chunk request is required")
	}
	if s == nil || s.generator == nil {
		return nil, status.Error(codes.Internal, "generation service is not configured")
	}
	fields := in.GetFields()
	key := strings.TrimSpace(fields["world_key"].GetStringValue())
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "world key is required")
	}
	var coord world.ChunkCoord
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"layer", &coord.Layer},
		{"cx", &coord.CX},
		{"cy", &coord.CY},
	} {
		v, err := intField(fields, f.name)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		*f.dst = v
	}

	c, err := s.generator.Chunk(ctx, key, coord)
	if err != nil {
		return nil, toStatus(err, "get chunk")
	}
	data, err := chunkfile.EncodeEnvelope(c)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode chunk: %v", err)
	}
	return wrapperspb.Bytes(data), nil
}

func intField(fields map[string]*structpb.Value, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if n.NumberValue < 0 || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int(n.NumberValue), nil
}

func summaryToStruct(res generation.Result) (*structpb.Struct, error) {
	rec := res.Record
	warnings := make([]any, len(rec.Warnings))
	for i, w := range rec.Warnings {
		warnings[i] = w
	}
	return structpb.NewStruct(map[string]any{
		"world_key":          rec.Key,
		"seed":               fmt.Sprint(rec.Seed),
		"width":              rec.Width,
		"height":             rec.Height,
		"altitude_layers":    rec.AltitudeLayers,
		"chunk_size":         rec.ChunkSize,
		"chunks":             res.Chunks,
		"params_fingerprint": rec.Fingerprint,
		"checksum":           rec.Checksum,
		"schema_version":     rec.SchemaVersion,
		"plates":             rec.Plates,
		"rivers":             rec.Rivers,
		"lakes":              rec.Lakes,
		"features":           rec.Features,
		"warnings":           warnings,
		"cached":             res.Cached,
	})
}

func toStatus(err error, action string) error {
	var domainErr *apperrors.Error
	switch {
	case errors.As(err, &domainErr):
		return domainErr.ToGRPCStatus()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%s: %v", action, err)
	}
}

var _ WorldServiceServer = (*Service)(nil)
