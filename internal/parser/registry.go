package parser

import (
	"fmt"
	"strings"
)

// Registry holds all available workbook decoders and provides auto-detection.
type Registry struct {
	decoders []Decoder
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the built-in decoders.
func NewRegistry() *Registry {
	return &Registry{
		decoders: []Decoder{
			NewXLSXDecoder(),
			NewXLSDecoder(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// FindDecoder detects the correct decoder for a file name.
func (r *Registry) FindDecoder(fileName string) (Decoder, error) {
	for _, d := range r.decoders {
		if d.CanDecode(fileName) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (expected one of %s)",
		ErrUnsupportedFormat, fileName, strings.Join(r.Extensions(), ", "))
}

// Extensions lists every file extension some decoder accepts.
func (r *Registry) Extensions() []string {
	var exts []string
	for _, d := range r.decoders {
		exts = append(exts, d.Extensions()...)
	}
	return exts
}
