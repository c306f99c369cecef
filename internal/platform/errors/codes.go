// Package errors provides structured, coded errors for world generation.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Parameter errors
	CodeInvalidParameter Code = "INVALID_PARAMETER"
	CodeCatalogInvalid   Code = "CATALOG_INVALID"

	// Degenerate geometry. Reported as a warning, never returned by generation.
	CodeDegenerateInput Code = "DEGENERATE_INPUT"

	// Persistence errors
	CodeChecksumMismatch         Code = "CHECKSUM_MISMATCH"
	CodeSchemaVersionUnsupported Code = "SCHEMA_VERSION_UNSUPPORTED"
	CodeNotFound                 Code = "NOT_FOUND"

	// Delta errors
	CodeDeltaBaseMismatch Code = "DELTA_BASE_MISMATCH"
	CodeDeltaOutOfRange   Code = "DELTA_OUT_OF_RANGE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidParameter,
		CodeCatalogInvalid,
		CodeDeltaOutOfRange:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeDeltaBaseMismatch,
		CodeSchemaVersionUnsupported,
		CodeDegenerateInput:
		return codes.FailedPrecondition

	// DataLoss - persisted bytes no longer match their checksum
	case CodeChecksumMismatch:
		return codes.DataLoss

	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
