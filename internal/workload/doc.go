// Package workload defines the capability contract that every pluggable
// workload implementation must satisfy, along with the universal state and
// log-stream types exchanged between the orchestrator and implementations.
package workload
