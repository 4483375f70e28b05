// Package entities defines core domain models and data structures.
package entities

// Artifact is the immutable content of a file under analysis
type Artifact struct {
	Path string
	Name string // base name of Path
	Size int64  // size reported by the filesystem

	// Data holds at most the configured max file bytes; it must not be mutated
	Data []byte

	// Truncated is set when Size exceeds len(Data)
	Truncated bool
}
