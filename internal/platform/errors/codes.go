// Package errors defines slotsim domain errors and their gRPC mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// CodeSettingEmpty means the requested setting has no roles.
	CodeSettingEmpty Code = "SIM_SETTING_EMPTY"
	// CodeInvalidConfig covers non-positive counts, bad rates and similar.
	CodeInvalidConfig Code = "SIM_INVALID_CONFIG"
	// CodeRoleTableInvalid means a role table failed to parse or validate.
	CodeRoleTableInvalid Code = "SIM_ROLE_TABLE_INVALID"
	// CodeFilterInvalid means a session filter failed to parse.
	CodeFilterInvalid Code = "SIM_FILTER_INVALID"
	// CodeCancelled means a run stopped before all sessions completed.
	CodeCancelled Code = "SIM_CANCELLED"

	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps a domain code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeSettingEmpty,
		CodeInvalidConfig,
		CodeRoleTableInvalid,
		CodeFilterInvalid:
		return codes.InvalidArgument
	case CodeCancelled:
		return codes.Canceled
	case CodeNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
