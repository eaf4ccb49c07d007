// Package connectors provides the connector factory and the built-in
// Connector implementations. Each connector streams identity deltas from
// one kind of external resource (csvfile reads local exports and change
// logs).
//
// Connectors are registered with the Factory at startup.
package connectors
