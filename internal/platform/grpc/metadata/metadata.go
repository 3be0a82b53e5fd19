// Package metadata carries slotsim request metadata across gRPC calls.
//
// Every call gets a request ID (generated when the caller sent none) echoed
// back in response headers. MCP tool calls add an invocation ID. The caller's
// preferred locale travels in LocaleHeader, falling back to accept-language,
// and decides the language of error details.
package metadata

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/slotsim/internal/platform/i18n/catalog"
	"github.com/louisbranch/slotsim/internal/platform/id"
)

const (
	// RequestIDHeader is the metadata key for request correlation IDs.
	RequestIDHeader = "x-slotsim-request-id"
	// InvocationIDHeader is the metadata key for MCP tool invocation IDs.
	InvocationIDHeader = "x-slotsim-invocation-id"
	// LocaleHeader is the metadata key for the caller's preferred locale.
	LocaleHeader = "x-slotsim-locale"
	// AcceptLanguageHeader is consulted when LocaleHeader is absent.
	AcceptLanguageHeader = "accept-language"
)

type contextKey string

const (
	requestIDContextKey    contextKey = "slotsim-request-id"
	invocationIDContextKey contextKey = "slotsim-invocation-id"
	localeContextKey       contextKey = "slotsim-locale"
)

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// InvocationIDFromContext returns the invocation ID stored in context.
func InvocationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(invocationIDContextKey).(string)
	return value
}

// LocaleFromContext returns the resolved locale, or the base locale.
func LocaleFromContext(ctx context.Context) string {
	if ctx != nil {
		if value, ok := ctx.Value(localeContextKey).(string); ok && value != "" {
			return value
		}
	}
	return catalog.BaseLocale
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// WithInvocationID stores the invocation ID in context.
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, invocationIDContextKey, invocationID)
}

// WithLocale stores a resolved locale in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey, locale)
}

// OutgoingContext appends locale and invocation metadata for a client call.
// Empty values are skipped.
func OutgoingContext(ctx context.Context, locale, invocationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var kv []string
	if locale = strings.TrimSpace(locale); locale != "" {
		kv = append(kv, LocaleHeader, locale)
	}
	if invocationID = strings.TrimSpace(invocationID); invocationID != "" {
		kv = append(kv, InvocationIDHeader, invocationID)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// IsPrintableASCII reports whether value is non-empty printable ASCII.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII value for key.
func FirstMetadataValue(md metadata.MD, key string) string {
	if len(md) == 0 {
		return ""
	}
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// UnaryServerInterceptor attaches request metadata to unary calls.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		updatedCtx, headers, err := ensureRequestMetadata(ctx, idGenerator)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
		}
		if err := grpc.SetHeader(updatedCtx, headers); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(updatedCtx, req)
	}
}

// StreamServerInterceptor attaches request metadata to streaming calls.
func StreamServerInterceptor(idGenerator func() (string, error)) grpc.StreamServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		updatedCtx, headers, err := ensureRequestMetadata(stream.Context(), idGenerator)
		if err != nil {
			return status.Errorf(codes.Internal, "ensure request metadata: %v", err)
		}
		if err := stream.SetHeader(headers); err != nil {
			return status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(srv, &wrappedServerStream{ServerStream: stream, ctx: updatedCtx})
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

func ensureRequestMetadata(ctx context.Context, idGenerator func() (string, error)) (context.Context, metadata.MD, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	requestID := FirstMetadataValue(md, RequestIDHeader)
	if requestID == "" {
		generated, err := idGenerator()
		if err != nil {
			return nil, nil, err
		}
		requestID = generated
	}
	invocationID := FirstMetadataValue(md, InvocationIDHeader)

	requested := FirstMetadataValue(md, LocaleHeader)
	if requested == "" {
		requested = FirstMetadataValue(md, AcceptLanguageHeader)
	}
	locale := catalog.Default().Match(requested)

	updated := WithLocale(WithRequestID(ctx, requestID), locale)
	headers := metadata.Pairs(RequestIDHeader, requestID)
	if invocationID != "" {
		updated = WithInvocationID(updated, invocationID)
		headers.Append(InvocationIDHeader, invocationID)
	}

	attrs := []attribute.KeyValue{
		attribute.String("slotsim.request_id", requestID),
		attribute.String("slotsim.locale", locale),
	}
	if invocationID != "" {
		attrs = append(attrs, attribute.String("slotsim.invocation_id", invocationID))
	}
	trace.SpanFromContext(updated).SetAttributes(attrs...)
	return updated, headers, nil
}
