// Package discovery centralizes service address conventions.
package discovery

import (
	"net"
	"strconv"
	"strings"
)

const (
	// ServiceSimulator is the simulator gRPC service identity.
	ServiceSimulator = "simulator"
	// ServiceMCP is the MCP bridge identity. It serves stdio and owns no port.
	ServiceMCP = "mcp"
)

const localHost = "localhost"

var grpcPorts = map[string]int{
	ServiceSimulator: 8090,
}

// DefaultGRPCPort returns the conventional gRPC port for a service, or 0.
func DefaultGRPCPort(service string) int {
	return grpcPorts[strings.TrimSpace(service)]
}

// DefaultGRPCAddr returns the local development gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return addr(localHost, DefaultGRPCPort(service))
}

// InNetworkGRPCAddr returns the address a service has inside a container
// network, where the host name is the service identity.
func InNetworkGRPCAddr(service string) string {
	service = strings.TrimSpace(service)
	return addr(service, DefaultGRPCPort(service))
}

// OrDefaultGRPCAddr returns value when set, otherwise the local convention.
func OrDefaultGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

func addr(host string, port int) string {
	if host == "" || port <= 0 {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
