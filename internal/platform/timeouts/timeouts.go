// Package timeouts collects the durations shared by slotsim processes.
package timeouts

import "time"

// GRPCDial bounds the wait for a simulator connection to become healthy.
const GRPCDial = 2 * time.Second

// GRPCRequest bounds unary simulator calls such as GetRun and ListSettings.
const GRPCRequest = 5 * time.Second

// Simulation bounds a streamed RunSimulation call made on behalf of a tool.
const Simulation = 10 * time.Minute

// Shutdown bounds graceful stop of servers and telemetry flushes.
const Shutdown = 5 * time.Second

// EventPublish bounds delivery of a run-completed event.
const EventPublish = 3 * time.Second
