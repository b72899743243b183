// Package downloader resolves free-text queries to local mp3 files by
// shelling out to yt-dlp.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is the only failure callers see: network errors, extraction
// errors and transcode errors all collapse into it, with detail in the log.
var ErrNotFound = errors.New("audio not found")

const fetchTimeout = 90 * time.Second

// YTDLP invokes the yt-dlp binary to fetch best-available audio as mp3.
type YTDLP struct {
	binary string
	dir    string
	logger *zap.Logger
}

// New builds a downloader writing into dir, which is created on demand.
func New(binary, dir string, logger *zap.Logger) *YTDLP {
	if logger == nil {
		logger = zap.NewNop()
	}
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{
		binary: binary,
		dir:    dir,
		logger: logger,
	}
}

// FetchAudio resolves query to an audio file and returns its path. Each call
// gets its own temp directory under the scratch dir; the caller must remove
// filepath.Dir(path) when done with the file.
func (d *YTDLP) FetchAudio(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrNotFound
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Error("scratch dir unavailable", zap.String("dir", d.dir), zap.Error(err))
		return "", ErrNotFound
	}

	tmpDir, err := os.MkdirTemp(d.dir, "track-*")
	if err != nil {
		d.logger.Error("temp dir create failed", zap.Error(err))
		return "", ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binary, buildArgs(query, tmpDir)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(tmpDir)
		d.logger.Warn("yt-dlp failed",
			zap.String("query", query),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err))
		return "", ErrNotFound
	}

	path := lastLine(stdout.String())
	if path == "" {
		_ = os.RemoveAll(tmpDir)
		d.logger.Warn("yt-dlp reported no output file", zap.String("query", query))
		return "", ErrNotFound
	}
	if _, err := os.Stat(path); err != nil {
		_ = os.RemoveAll(tmpDir)
		d.logger.Warn("downloaded file missing", zap.String("path", path), zap.Error(err))
		return "", ErrNotFound
	}

	return path, nil
}

// buildArgs mirrors the extractor configuration the bot has always used:
// first YouTube search hit, best audio stream, mp3 at 192 kbps.
func buildArgs(query, dir string) []string {
	return []string{
		"--default-search", "ytsearch1",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		query,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
