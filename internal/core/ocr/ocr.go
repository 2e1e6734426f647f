// Package ocr extracts product text from page screenshots. The real
// engine delegates to a Tesseract HTTP sidecar; a deterministic mock
// stands in when no sidecar is configured so the recognition path
// stays exercisable end to end.
package ocr

import (
	"context"
	"time"
)

// Product is a product hit identified in recognized text.
type Product struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	RawText      string `json:"raw_text"`
	ExtractedVia string `json:"extracted_via"`
}

// Result is the outcome of one screenshot pass. Recognition failures
// are reported through Success and Error, never as a Go error: a bad
// frame should advance the cascade, not crash it.
type Result struct {
	Text           string        `json:"text"`
	Confidence     float64       `json:"confidence"`
	Products       []Product     `json:"products"`
	ProcessingTime time.Duration `json:"processing_time"`
	Success        bool          `json:"success"`
	Synthetic      bool          `json:"synthetic"`
	Error          string        `json:"error,omitempty"`
}

// Processor runs text recognition over a screenshot.
type Processor interface {
	Available(ctx context.Context) bool
	Process(ctx context.Context, image []byte) Result
}
