package gateways

import "github.com/gabriel-vasile/mimetype"

// typeSniffer detects MIME types from leading bytes
type typeSniffer struct{}

// NewTypeSniffer creates a new type sniffer
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewTypeSniffer() *typeSniffer {
	return &typeSniffer{}
}

// ClassifyType returns the detected MIME type; unknown content is
// application/octet-stream
func (t *typeSniffer) ClassifyType(data []byte) string {
	return mimetype.Detect(data).String()
}
