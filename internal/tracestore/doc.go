// Package tracestore keeps finished execution traces so they can be listed
// and replayed after the fact. Memory keeps a bounded window of recent traces;
// SQLite persists them across restarts.
package tracestore
