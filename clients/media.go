package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// --- Session metadata ---

// LocatorFields are the metadata keys that may carry the media URL, in
// order of preference.
var LocatorFields = []string{"media_url", "s3_url", "url"}

type Metadata map[string]any

// MediaLocator returns the first non-empty locator field.
func (m Metadata) MediaLocator() (string, bool) {
	for _, k := range LocatorFields {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func (h *HTTP) FetchMetadata(ctx context.Context, url string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("metadata %s: %s", resp.Status, string(body))
	}

	var out Metadata
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("metadata decode: %w", err)
	}
	return out, nil
}

// --- Media download ---

// ExtensionFor picks the working extension for a declared content type.
func ExtensionFor(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "audio") {
		return ".wav"
	}
	return ".mp4"
}

// Download stores the body of url in a uniquely named file under dir and
// returns its path and declared content type. Nothing is left behind on
// failure.
func (h *HTTP) Download(ctx context.Context, url, dir string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("download %s: %s", resp.Status, string(body))
	}

	contentType := resp.Header.Get("Content-Type")
	path, err := SaveTemp(dir, ExtensionFor(contentType), resp.Body)
	if err != nil {
		return "", "", err
	}
	return path, contentType, nil
}

// SaveTemp copies r into a new uuid-named file in dir.
func SaveTemp(dir, ext string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}
