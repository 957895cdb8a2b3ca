// internal/media/fetcher.go
package media

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher downloads remote attachments into a scratch directory. Downloads
// are deterministic by filename: fetching the same message/attachment pair
// twice reuses the file already on disk.
type Fetcher struct {
	client *http.Client
	dir    string
}

// NewFetcher creates a fetcher writing into dir.
func NewFetcher(dir string) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		dir:    dir,
	}
}

// Dir returns the scratch directory the fetcher writes into.
func (f *Fetcher) Dir() string { return f.dir }

// Download fetches rawURL into the scratch directory under a name derived
// from the logical name and the URL's extension. It returns the local path,
// or "" when the download failed -- a failed attachment is logged and left
// unresolved, never fatal.
func (f *Fetcher) Download(rawURL, name string) string {
	filename := SafeFileName(name)
	if ext := ExtensionFromURL(rawURL); ext != "" {
		filename += "." + ext
	}
	localPath := filepath.Join(f.dir, filename)

	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	resp, err := f.client.Get(rawURL)
	if err != nil {
		log.Error().Err(err).Str("url", rawURL).Msg("media download failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Str("url", rawURL).Str("status", resp.Status).Msg("media download failed")
		return ""
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", f.dir).Msg("could not create media directory")
		return ""
	}
	out, err := os.Create(localPath)
	if err != nil {
		log.Error().Err(err).Str("path", localPath).Msg("could not create media file")
		return ""
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		log.Error().Err(err).Str("path", localPath).Msg("could not write media file")
		os.Remove(localPath)
		return ""
	}

	return localPath
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]`)

// SafeFileName reduces a logical filename to lowercase [a-z0-9_].
func SafeFileName(name string) string {
	return unsafeChars.ReplaceAllString(strings.ToLower(name), "_")
}

// ExtensionFromURL extracts the lowercase file extension from the URL path,
// ignoring any query string. Returns "" when the path has none.
func ExtensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		// Fall back to stripping the query by hand.
		if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
			rawURL = rawURL[:idx]
		}
		return strings.ToLower(strings.TrimPrefix(path.Ext(rawURL), "."))
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
}

var fileTypes = map[string]string{}

func init() {
	register := func(kind string, exts ...string) {
		for _, ext := range exts {
			fileTypes[ext] = kind
		}
	}
	register("image", "jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "tiff", "ico", "heic", "heif", "avif")
	register("video", "mp4", "webm", "mov", "avi", "mkv", "flv", "wmv", "m4v", "mpg", "mpeg", "3gp", "ts", "ogv")
	register("audio", "mp3", "wav", "ogg", "flac", "m4a", "aac", "wma", "opus", "mid", "midi")
	register("document",
		"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "rtf", "csv", "json", "xml",
		"zip", "rar", "7z", "gz", "tar", "exe", "apk", "dmg", "iso", "html", "htm")
}

// FileTypeForExtension classifies an extension as image, video, audio,
// document or the generic "file". The classification decides how the
// transcript renders an attachment.
func FileTypeForExtension(ext string) string {
	if kind, ok := fileTypes[strings.ToLower(ext)]; ok {
		return kind
	}
	return "file"
}

// FileTypeForName classifies a filename by its extension.
func FileTypeForName(name string) string {
	return FileTypeForExtension(strings.TrimPrefix(path.Ext(name), "."))
}

// FormatFileSize renders a byte count the way the transcript shows it:
// below 1 MiB as whole kilobytes, above as megabytes with one decimal.
// A zero or negative size is reported as unknown.
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "Unknown size"
	}
	if size < 1024*1024 {
		return fmt.Sprintf("%d KB", int64(math.Round(float64(size)/1024)))
	}
	return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
}
