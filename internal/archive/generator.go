// internal/archive/generator.go
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"discord-ticket-bot/internal/database"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"
)

const (
	// archivePrefix names packaged archives: <prefix>_<channelID>_<epochMillis>.zip
	archivePrefix = "ticket_log"
	// zipRoot is the single top-level directory inside every archive.
	zipRoot = "ticket_log"
)

// Dirs holds the on-disk layout the generator works against.
type Dirs struct {
	// Archives receives packaged zip files (and hosts staging trees while
	// one is being built).
	Archives string
	// Logs holds legacy uncompressed HTML transcripts from before archives
	// were packaged.
	Logs string
}

// Generator reconstructs a browsable transcript from stored messages and
// packages it, together with the downloaded media it references, into a zip
// archive.
type Generator struct {
	db   *database.DB
	dirs Dirs

	// BotUserID marks the bot's own messages with a BOT tag in the
	// transcript. Set once after the session identifies itself.
	BotUserID string
}

// NewGenerator creates an archive generator.
func NewGenerator(db *database.DB, dirs Dirs) *Generator {
	return &Generator{db: db, dirs: dirs}
}

// Generate builds and packages the archive for a channel. It returns the
// path of the new zip, "" when the channel has no captured history, and an
// error when any packaging step failed -- in which case nothing is linked
// and any previous archive reference on the ticket stays untouched.
func (g *Generator) Generate(channelID string) (string, error) {
	messages, err := g.db.GetChannelMessages(channelID)
	if err != nil {
		return "", fmt.Errorf("loading messages for %s: %w", channelID, err)
	}
	if len(messages) == 0 {
		log.Info().Str("channel_id", channelID).Msg("no captured messages, skipping archive")
		return "", nil
	}

	// Distinct local media files referenced by stored attachments that are
	// still on disk. Anything already cleaned up is simply absent from the
	// archive.
	mediaPaths := map[string]struct{}{}
	for i := range messages {
		attachments, err := messages[i].Attachments()
		if err != nil {
			log.Error().Err(err).Str("message_id", messages[i].MessageID).Msg("skipping unreadable attachment data")
			continue
		}
		for _, att := range attachments {
			if att.LocalPath == "" {
				continue
			}
			if _, err := os.Stat(att.LocalPath); err == nil {
				mediaPaths[att.LocalPath] = struct{}{}
			}
		}
	}

	epoch := time.Now().UnixMilli()
	staging := filepath.Join(g.dirs.Archives, fmt.Sprintf("%s_%s_%d", archivePrefix, channelID, epoch))
	if err := os.MkdirAll(filepath.Join(staging, "media"), 0o755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	transcript, err := os.Create(filepath.Join(staging, "index.html"))
	if err != nil {
		return "", fmt.Errorf("creating transcript file: %w", err)
	}
	err = renderTranscript(transcript, channelID, messages, g.BotUserID)
	if closeErr := transcript.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("rendering transcript for %s: %w", channelID, err)
	}

	for path := range mediaPaths {
		target := filepath.Join(staging, "media", filepath.Base(path))
		if err := copyFile(path, target); err != nil {
			// Best effort, matching the download policy: the transcript
			// still references the file, the preview just breaks.
			log.Error().Err(err).Str("file", path).Msg("could not stage media file")
		}
	}

	zipName := fmt.Sprintf("%s_%s_%d.zip", archivePrefix, channelID, epoch)
	zipPath := filepath.Join(g.dirs.Archives, zipName)
	if err := zipDirectory(zipPath, staging, zipRoot); err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("packaging archive for %s: %w", channelID, err)
	}

	// Packaging succeeded: the media now lives inside the archive only.
	for path := range mediaPaths {
		if err := os.Remove(path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("could not remove scratch media file")
		}
	}

	if err := g.db.SetArchiveFile(channelID, zipName); err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("could not update archive reference")
	}

	log.Info().Str("channel_id", channelID).Str("archive", zipName).Int("messages", len(messages)).Msg("archive generated")
	return zipPath, nil
}

// Resolve returns an existing archive for a ticket. When the recorded
// reference is a packaged archive that exists, it is returned directly.
// Otherwise a legacy transcript (or the stored history itself) triggers
// regeneration. "" with a nil error means nothing exists for this channel.
func (g *Generator) Resolve(channelID string) (string, error) {
	channel, err := g.db.GetPrivateChannel(channelID)
	if err != nil {
		return "", err
	}
	if channel == nil {
		return "", nil
	}

	if strings.HasSuffix(channel.ArchiveFile, ".zip") {
		zipPath := filepath.Join(g.dirs.Archives, channel.ArchiveFile)
		if _, err := os.Stat(zipPath); err == nil {
			return zipPath, nil
		}
		log.Warn().Str("archive", channel.ArchiveFile).Msg("recorded archive missing, regenerating")
	}

	legacyPath := filepath.Join(g.dirs.Logs, channel.ArchiveFile)
	if _, err := os.Stat(legacyPath); err == nil {
		log.Info().Str("channel_id", channelID).Msg("converting legacy transcript into packaged archive")
		return g.Generate(channelID)
	}

	// Last resort: rebuild from whatever history is stored.
	return g.Generate(channelID)
}

// ArchiveName returns the download filename presented for a channel archive.
func ArchiveName(channelID string) string {
	return fmt.Sprintf("ticket_log_%s.zip", channelID)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// zipDirectory packages dir into a zip at zipPath, rooted under rootName,
// using maximum deflate compression.
func zipDirectory(zipPath, dir, rootName string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	writer.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entry, err := writer.Create(rootName + "/" + filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(entry, in)
		return err
	})
	if err != nil {
		writer.Close()
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}
	return out.Close()
}
