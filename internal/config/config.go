// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Colors is the embed color palette used by every bot reply.
type Colors struct {
	Error   int
	Success int
	Warning int
	Info    int
}

// Config holds everything the bot reads from the environment. It is loaded
// once in main and passed down; no component reads os.Getenv directly.
type Config struct {
	Token        string
	StaffRoleID  string
	LogChannelID string

	DataDir  string
	DBPath   string
	LogLevel zerolog.Level

	Colors Colors
}

// Load reads the .env file (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine, env vars may be set directly.
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is not set")
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "bot.db")
	}

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		parsed, err := zerolog.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
		}
		level = parsed
	}

	return &Config{
		Token:        token,
		StaffRoleID:  os.Getenv("STAFF_ROLE_ID"),
		LogChannelID: os.Getenv("LOG_CHANNEL_ID"),
		DataDir:      dataDir,
		DBPath:       dbPath,
		LogLevel:     level,
		Colors: Colors{
			Error:   0xf54242,
			Success: 0x42f569,
			Warning: 0xf5a742,
			Info:    0x4287f5,
		},
	}, nil
}

// ArchivesDir is where packaged ticket archives live.
func (c *Config) ArchivesDir() string { return filepath.Join(c.DataDir, "archives") }

// LogsDir holds legacy uncompressed HTML transcripts from before archives
// were zipped. New transcripts are never written here.
func (c *Config) LogsDir() string { return filepath.Join(c.DataDir, "logs") }

// MediaDir is the scratch directory for attachment downloads. Files here are
// deleted once they are folded into an archive.
func (c *Config) MediaDir() string { return filepath.Join(c.DataDir, "media") }

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.ArchivesDir(), c.LogsDir(), c.MediaDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
