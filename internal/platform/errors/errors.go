package errors

import (
	stderrors "errors"

	"github.com/louisbranch/slotsim/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to slotsim statuses.
const Domain = "slotsim.louisbranch.github.com"

// Error is a domain error carrying a code and template metadata.
type Error struct {
	Code     Code
	Message  string            // internal, for logs
	Metadata map[string]string // template values for localized messages
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New returns an error with a code and internal message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error carrying template metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap returns an error with a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata returns an error with metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// GetCode returns the code of the first *Error in err's chain, or
// CodeUnknown.
func GetCode(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// LocalizedMessage renders the user-facing message for locale.
func (e *Error) LocalizedMessage(locale string) (string, string) {
	cat := i18n.GetCatalog(locale)
	return cat.Locale(), cat.Format(string(e.Code), e.Metadata)
}

// ToGRPCStatus converts the error to a status with ErrorInfo and a
// LocalizedMessage for locale.
func (e *Error) ToGRPCStatus(locale string) error {
	grpcCode := e.Code.GRPCCode()
	st := status.New(grpcCode, e.Error())
	resolved, userMessage := e.LocalizedMessage(locale)

	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  resolved,
			Message: userMessage,
		},
	)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ToGRPC converts any error into a gRPC status error. Domain errors keep
// their code; anything else becomes Internal.
func ToGRPC(err error, locale string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.ToGRPCStatus(locale)
	}
	return Wrap(CodeUnknown, err.Error(), err).ToGRPCStatus(locale)
}

// FromStatus recovers the domain code and localized message from a status
// error produced by ToGRPCStatus.
func FromStatus(err error) (Code, string, bool) {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return CodeUnknown, "", false
	}
	code := CodeUnknown
	message := st.Message()
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			code = Code(d.GetReason())
		case *errdetails.LocalizedMessage:
			message = d.GetMessage()
		}
	}
	return code, message, code != CodeUnknown
}

// StatusMetadata returns the ErrorInfo metadata carried by a status error.
func StatusMetadata(err error) map[string]string {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return nil
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info.GetMetadata()
		}
	}
	return nil
}
