// Package service runs the slotsim MCP server.
//
// The server holds one gRPC connection to the simulator and exposes the
// tools and resources of package domain over stdio.
package service
