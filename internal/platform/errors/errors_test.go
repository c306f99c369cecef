package errors

import (
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInvalidParameter, "width must be positive", map[string]string{"field": "width"})
	wrapped := fmt.Errorf("generate: %w", err)

	if !HasCode(wrapped, CodeInvalidParameter) {
		t.Fatal("expected wrapped error to match INVALID_PARAMETER")
	}
	if HasCode(wrapped, CodeChecksumMismatch) {
		t.Fatal("did not expect CHECKSUM_MISMATCH match")
	}
	if got := CodeOf(wrapped); got != CodeInvalidParameter {
		t.Fatalf("CodeOf = %q, want %q", got, CodeInvalidParameter)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf plain = %q, want %q", got, CodeUnknown)
	}
}

func TestWrapIncludesCauseInMessage(t *testing.T) {
	err := Wrap(CodeChecksumMismatch, "chunk L0 (1,2)", fmt.Errorf("digest differs"))
	if got, want := err.Error(), "chunk L0 (1,2): digest differs"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInvalidParameter, codes.InvalidArgument},
		{CodeCatalogInvalid, codes.InvalidArgument},
		{CodeChecksumMismatch, codes.DataLoss},
		{CodeNotFound, codes.NotFound},
		{CodeDeltaBaseMismatch, codes.FailedPrecondition},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.GRPCCode(); got != tt.want {
				t.Fatalf("GRPCCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToGRPCStatusAttachesErrorInfo(t *testing.T) {
	err := WithMetadata(CodeInvalidParameter, "sea level out of range", map[string]string{"field": "sea_level"})
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected gRPC status")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", st.Code(), codes.InvalidArgument)
	}
	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if v, ok := detail.(*errdetails.ErrorInfo); ok {
			info = v
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.GetReason() != string(CodeInvalidParameter) {
		t.Fatalf("reason = %q, want %q", info.GetReason(), CodeInvalidParameter)
	}
	if info.GetMetadata()["field"] != "sea_level" {
		t.Fatalf("metadata field = %q, want sea_level", info.GetMetadata()["field"])
	}
}
