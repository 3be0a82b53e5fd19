package metadata

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeServerStream struct {
	grpc.ServerStream
	ctx     context.Context
	headers metadata.MD
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func (f *fakeServerStream) SetHeader(md metadata.MD) error {
	f.headers = metadata.Join(f.headers, md)
	return nil
}

func fixedID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func TestFirstMetadataValue(t *testing.T) {
	md := metadata.MD{"x-slotsim-locale": {"\x01bad", "ja-JP"}}
	if got := FirstMetadataValue(md, "X-Slotsim-Locale"); got != "ja-JP" {
		t.Fatalf("value = %q, want ja-JP", got)
	}
	if got := FirstMetadataValue(nil, LocaleHeader); got != "" {
		t.Fatalf("nil md value = %q", got)
	}
}

func TestEnsureRequestMetadata(t *testing.T) {
	tests := []struct {
		name      string
		md        metadata.MD
		requestID string
		locale    string
		invoke    string
	}{
		{name: "generated", md: metadata.MD{}, requestID: "gen-1", locale: "en-US"},
		{name: "caller ids", md: metadata.Pairs(RequestIDHeader, "req-9", InvocationIDHeader, "inv-2"), requestID: "req-9", locale: "en-US", invoke: "inv-2"},
		{name: "locale header", md: metadata.Pairs(LocaleHeader, "ja_JP"), requestID: "gen-1", locale: "ja-JP"},
		{name: "accept language", md: metadata.Pairs(AcceptLanguageHeader, "ja,en;q=0.5"), requestID: "gen-1", locale: "ja-JP"},
		{name: "unsupported", md: metadata.Pairs(LocaleHeader, "zz"), requestID: "gen-1", locale: "en-US"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), tt.md)
			got, headers, err := ensureRequestMetadata(ctx, fixedID("gen-1"))
			if err != nil {
				t.Fatalf("ensure: %v", err)
			}
			if RequestIDFromContext(got) != tt.requestID {
				t.Fatalf("request id = %q, want %q", RequestIDFromContext(got), tt.requestID)
			}
			if LocaleFromContext(got) != tt.locale {
				t.Fatalf("locale = %q, want %q", LocaleFromContext(got), tt.locale)
			}
			if InvocationIDFromContext(got) != tt.invoke {
				t.Fatalf("invocation id = %q, want %q", InvocationIDFromContext(got), tt.invoke)
			}
			if v := headers.Get(RequestIDHeader); len(v) != 1 || v[0] != tt.requestID {
				t.Fatalf("response headers = %v", headers)
			}
		})
	}
}

func TestEnsureRequestMetadataGeneratorError(t *testing.T) {
	_, _, err := ensureRequestMetadata(context.Background(), func() (string, error) {
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected generator error")
	}
}

func TestStreamServerInterceptor(t *testing.T) {
	stream := &fakeServerStream{ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "ja-JP"))}
	var seen context.Context
	err := StreamServerInterceptor(fixedID("req-1"))(nil, stream, &grpc.StreamServerInfo{}, func(_ any, s grpc.ServerStream) error {
		seen = s.Context()
		return nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if RequestIDFromContext(seen) != "req-1" || LocaleFromContext(seen) != "ja-JP" {
		t.Fatalf("context request=%q locale=%q", RequestIDFromContext(seen), LocaleFromContext(seen))
	}
	if v := stream.headers.Get(RequestIDHeader); len(v) != 1 || v[0] != "req-1" {
		t.Fatalf("headers = %v", stream.headers)
	}
}

func TestStreamServerInterceptorGeneratorError(t *testing.T) {
	stream := &fakeServerStream{ctx: context.Background()}
	err := StreamServerInterceptor(func() (string, error) { return "", errors.New("boom") })(nil, stream, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error {
		t.Fatal("handler should not run")
		return nil
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestOutgoingContext(t *testing.T) {
	ctx := OutgoingContext(context.Background(), "ja-JP", "inv-1")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if FirstMetadataValue(md, LocaleHeader) != "ja-JP" || FirstMetadataValue(md, InvocationIDHeader) != "inv-1" {
		t.Fatalf("outgoing md = %v", md)
	}

	bare := context.Background()
	if OutgoingContext(bare, " ", "") != bare {
		t.Fatal("empty values should leave context unchanged")
	}
}

func TestLocaleFromContextDefault(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "en-US" {
		t.Fatalf("default locale = %q", got)
	}
}
