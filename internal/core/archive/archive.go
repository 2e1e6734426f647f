// Package archive persists acquisition artifacts (rendered HTML,
// screenshots) for later inspection. Saving is a side channel: a
// failed save never fails the acquisition that produced the artifact.
package archive

import (
	"bytes"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	supabase "github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"mlscraper/internal/logger"
)

// Config carries storage settings. With Supabase unset, artifacts go
// to the local data dir only.
type Config struct {
	DataDir            string
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
}

type Service struct {
	cfg            Config
	supabaseClient *supabase.Client
	log            *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Service {
	s := &Service{cfg: cfg, log: log}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			log.LogWarnf("supabase client init failed, archiving locally only: %v", err)
		} else {
			s.supabaseClient = client
		}
	}
	return s
}

var urlSanitizer = strings.NewReplacer(
	"https://", "", "http://", "",
	":", "-", "/", "-", "?", "-", "&", "-", "=", "-", "#", "-", "%", "",
)

func sanitize(url string) string {
	clean := urlSanitizer.Replace(url)
	if len(clean) > 64 {
		clean = clean[:64]
	}
	return clean
}

// Filename builds the artifact name from capture time, the sanitized
// source URL and the strategy that produced it.
func Filename(url, strategy, ext string) string {
	return time.Now().Format("20060102_150405") + "_" + sanitize(url) + "_" + strategy + "." + ext
}

// Save writes the artifact under kind in the local data dir and, when
// Supabase is configured, mirrors it to the bucket. The local path is
// returned; every failure is logged and swallowed.
func (s *Service) Save(kind, url, strategy string, data []byte) string {
	ext := "html"
	if kind == "screenshots" {
		ext = "png"
	}
	name := Filename(url, strategy, ext)

	dir := filepath.Join(s.cfg.DataDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.LogWarnf("archive mkdir %s: %v", dir, err)
		return ""
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.LogWarnf("archive write %s: %v", path, err)
		return ""
	}

	if s.supabaseClient != nil && s.cfg.SupabaseBucket != "" {
		s.upload(kind, name, data)
	}
	return path
}

func (s *Service) upload(kind, name string, data []byte) {
	bucketPath := filepath.ToSlash(filepath.Join(kind, name))
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	reader := bytes.NewReader(data)
	if _, err := s.supabaseClient.Storage.UploadFile(s.cfg.SupabaseBucket, bucketPath, reader, storage_go.FileOptions{ContentType: &mimeType}); err != nil {
		s.log.LogWarnf("supabase upload %s: %v", bucketPath, err)
		return
	}
	s.log.LogDebugf("archived %s to bucket %s", bucketPath, s.cfg.SupabaseBucket)
}

// SavePage archives rendered HTML.
func (s *Service) SavePage(url, strategy, html string) string {
	return s.Save("pages", url, strategy, []byte(html))
}

// SaveScreenshot archives a capture.
func (s *Service) SaveScreenshot(url, strategy string, png []byte) string {
	return s.Save("screenshots", url, strategy, png)
}
