// Package dblpkit extracts tabular data from the DBLP XML dump.
package dblpkit

const (
	// AppName is used for cache and data directories.
	AppName = "dblpkit"
	// Version of the tools.
	Version = "0.1.0"
)
