// Package filestore downloads chat attachments into local temporary storage.
package filestore

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"
)

// Attachment kinds the transport can deliver.
const (
	KindDocument = "document"
	KindPhoto    = "photo"
)

// Handle identifies one attachment on the transport side.
type Handle struct {
	FileID       string
	OriginalName string
	Kind         string
}

// FileResolver turns an opaque file id into a fetchable URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Store streams attachments into a temp directory with safe file names.
type Store struct {
	resolver FileResolver
	dir      string
	client   *http.Client
	now      func() time.Time
}

func New(resolver FileResolver, dir string) (*Store, error) {
	if resolver == nil {
		return nil, fmt.Errorf("filestore: resolver is nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("filestore: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: failed to create %s: %w", dir, err)
	}
	return &Store{
		resolver: resolver,
		dir:      dir,
		client:   &http.Client{Timeout: 60 * time.Second},
		now:      time.Now,
	}, nil
}

// Download resolves the handle, streams the content to the temp directory and
// returns the local path. The caller owns the file and removes it when done.
func (s *Store) Download(ctx context.Context, h Handle) (string, error) {
	if h.FileID == "" {
		return "", fmt.Errorf("filestore: empty file id")
	}

	url, err := s.resolver.FileURL(ctx, h.FileID)
	if err != nil {
		return "", fmt.Errorf("filestore: failed to resolve file %s: %w", h.FileID, err)
	}

	name := buildFileName(h, s.now(), url)
	localPath := filepath.Join(s.dir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("filestore: failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("filestore: download failed for %s: %w", h.FileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("filestore: download failed for %s: status %d", h.FileID, resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("filestore: failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("filestore: failed to write %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("filestore: failed to close %s: %w", localPath, err)
	}

	log.Printf("[filestore] Saved attachment %s as %s", h.FileID, localPath)
	return localPath, nil
}

// Remove deletes a previously downloaded file, logging failures.
func Remove(localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[filestore] Failed to remove %s: %v", localPath, err)
	}
}

var illegalNameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// buildFileName derives a timestamped safe name for the download. Documents
// keep their sanitized original name, photos get a .jpg suffix, anything
// nameless falls back to kind + timestamp + a file id prefix.
func buildFileName(h Handle, ts time.Time, url string) string {
	stamp := ts.Format("20060102_150405")

	switch {
	case h.Kind == KindDocument && h.OriginalName != "":
		return fmt.Sprintf("%s_%s", stamp, sanitizeName(h.OriginalName))
	case h.Kind == KindPhoto:
		base := h.OriginalName
		if base == "" {
			base = fmt.Sprintf("photo_%s", idPrefix(h.FileID))
		}
		return fmt.Sprintf("%s_%s.jpg", stamp, sanitizeName(base))
	default:
		ext := path.Ext(url)
		return fmt.Sprintf("%s_%s_%s%s", h.Kind, stamp, idPrefix(h.FileID), ext)
	}
}

func sanitizeName(name string) string {
	return illegalNameChars.ReplaceAllString(name, "")
}

func idPrefix(fileID string) string {
	if len(fileID) <= 8 {
		return fileID
	}
	return fileID[:8]
}
