package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"mlscraper/internal/logger"
)

// Service talks to a Tesseract HTTP sidecar. Recognition runs with
// Portuguese plus English models, the LSTM engine and uniform-block
// page segmentation.
type Service struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewService(baseURL string, log *logger.Logger) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// Available probes the sidecar's health endpoint.
func (s *Service) Available(ctx context.Context) bool {
	if s.baseURL == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// sidecarResponse is the engine's JSON shape. Confidences come per
// word; whitespace tokens carry non-positive sentinels.
type sidecarResponse struct {
	Text        string    `json:"text"`
	Confidences []float64 `json:"confidences"`
	Error       string    `json:"error,omitempty"`
}

// Process preprocesses the screenshot and submits it for recognition.
// All failures come back as an unsuccessful Result.
func (s *Service) Process(ctx context.Context, image []byte) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		msg := fmt.Sprintf(format, args...)
		s.log.LogWarnf("ocr: %s", msg)
		return Result{ProcessingTime: time.Since(start), Error: msg}
	}

	prepared, err := Preprocess(image)
	if err != nil {
		return fail("preprocess: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "screenshot.png")
	if err != nil {
		return fail("build request: %v", err)
	}
	if _, err := part.Write(prepared); err != nil {
		return fail("build request: %v", err)
	}
	mw.WriteField("lang", "por+eng")
	mw.WriteField("oem", "1")
	mw.WriteField("psm", "6")
	if err := mw.Close(); err != nil {
		return fail("build request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/ocr", &body)
	if err != nil {
		return fail("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fail("sidecar request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail("sidecar status %d: %s", resp.StatusCode, string(snippet))
	}

	var sr sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fail("decode response: %v", err)
	}
	if sr.Error != "" {
		return fail("sidecar error: %s", sr.Error)
	}

	text := strings.TrimSpace(sr.Text)
	if text == "" {
		return fail("empty recognition result")
	}

	return Result{
		Text:           text,
		Confidence:     AverageConfidence(sr.Confidences),
		Products:       IdentifyProducts(text),
		ProcessingTime: time.Since(start),
		Success:        true,
	}
}
