package ocr

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// mockText imitates what the engine reads off a footwear listing. The
// content is fixed so downstream parsing stays deterministic.
const mockText = `Tênis Nike Air Max 270
R$ 299,90
12x R$ 24,99 sem juros
Frete grátis

Tênis Adidas Ultraboost 22
R$ 449,90
10x R$ 44,99

Tênis Vans Old Skool
R$ 189,90
6x R$ 31,65

Tênis Converse All Star
R$ 159,90
5x R$ 31,98

Tênis Puma RS-X
R$ 329,90
8x R$ 41,24`

var mockProducts = []Product{
	{Title: "Tênis Nike Air Max 270", Price: "299,90", RawText: "Tênis Nike Air Max 270 R$ 299,90", ExtractedVia: "ocr_mock"},
	{Title: "Tênis Adidas Ultraboost 22", Price: "449,90", RawText: "Tênis Adidas Ultraboost 22 R$ 449,90", ExtractedVia: "ocr_mock"},
	{Title: "Tênis Vans Old Skool", Price: "189,90", RawText: "Tênis Vans Old Skool R$ 189,90", ExtractedVia: "ocr_mock"},
	{Title: "Tênis Converse All Star", Price: "159,90", RawText: "Tênis Converse All Star R$ 159,90", ExtractedVia: "ocr_mock"},
	{Title: "Tênis Puma RS-X", Price: "329,90", RawText: "Tênis Puma RS-X R$ 329,90", ExtractedVia: "ocr_mock"},
}

// Mock is the recognition substitute used when no sidecar is
// configured. It still validates the screenshot and simulates engine
// latency, so cascade behavior matches the real path.
type Mock struct {
	// Delay defaults to the typical engine latency; tests set it to 0.
	Delay time.Duration
}

func NewMock() *Mock {
	return &Mock{Delay: 500 * time.Millisecond}
}

func (m *Mock) Available(context.Context) bool { return true }

func (m *Mock) Process(ctx context.Context, image []byte) Result {
	start := time.Now()

	if _, err := imaging.Decode(bytes.NewReader(image)); err != nil {
		return Result{
			ProcessingTime: time.Since(start),
			Synthetic:      true,
			Error:          "invalid screenshot: " + err.Error(),
		}
	}

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{
				ProcessingTime: time.Since(start),
				Synthetic:      true,
				Error:          ctx.Err().Error(),
			}
		case <-t.C:
		}
	}

	products := make([]Product, len(mockProducts))
	copy(products, mockProducts)

	return Result{
		Text:           strings.TrimSpace(mockText),
		Confidence:     85.5,
		Products:       products,
		ProcessingTime: time.Since(start),
		Success:        true,
		Synthetic:      true,
	}
}
