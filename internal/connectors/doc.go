// Package connectors provides implementations of the Connector interface.
// The filesystem connector reads SOP files from a local directory tree and
// is the only source this tool supports.
package connectors
