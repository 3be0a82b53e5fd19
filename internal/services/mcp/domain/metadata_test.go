package domain

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"

	grpcmeta "github.com/louisbranch/slotsim/internal/platform/grpc/metadata"
)

func TestNewOutgoingContext(t *testing.T) {
	ctx, meta, err := NewOutgoingContext(context.Background(), "inv-1", "ja-JP")
	if err != nil {
		t.Fatalf("outgoing context: %v", err)
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	if got := grpcmeta.FirstMetadataValue(md, grpcmeta.RequestIDHeader); got == "" || got != meta.RequestID {
		t.Fatalf("request id = %q, meta %+v", got, meta)
	}
	if grpcmeta.FirstMetadataValue(md, grpcmeta.InvocationIDHeader) != "inv-1" || grpcmeta.FirstMetadataValue(md, grpcmeta.LocaleHeader) != "ja-JP" {
		t.Fatalf("outgoing md = %v", md)
	}
}

func TestMergeResponseMetadata(t *testing.T) {
	sent := ToolCallMetadata{RequestID: "req-1", InvocationID: "inv-1"}
	if got := MergeResponseMetadata(sent, nil); got != sent {
		t.Fatalf("merge without header = %+v", got)
	}
	header := metadata.Pairs(grpcmeta.RequestIDHeader, "req-2")
	if got := MergeResponseMetadata(sent, header); got.RequestID != "req-2" || got.InvocationID != "inv-1" {
		t.Fatalf("merge = %+v", got)
	}
	result := CallToolResultWithMetadata(ToolCallMetadata{RequestID: "req-3"})
	if result.Meta[grpcmeta.RequestIDHeader] != "req-3" {
		t.Fatalf("meta = %v", result.Meta)
	}
	if _, ok := result.Meta[grpcmeta.InvocationIDHeader]; ok {
		t.Fatal("empty invocation id should be omitted")
	}
}

func TestParseRunIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
		ok   bool
	}{
		{uri: "slotsim://runs/abc", want: "abc", ok: true},
		{uri: "slotsim://runs/", ok: false},
		{uri: "slotsim://runs/abc/sessions", ok: false},
		{uri: "other://abc", ok: false},
	}
	for _, tt := range tests {
		got, err := parseRunIDFromURI(tt.uri)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("parseRunIDFromURI(%q) = %q, %v", tt.uri, got, err)
		}
	}
}
