// Package domain defines the MCP tools and resources of slotsim.
//
// Every handler forwards to the simulator gRPC API with request and
// invocation IDs attached, so tool calls can be correlated with server logs
// and traces. Tool errors are returned as tool results, not protocol errors.
package domain
