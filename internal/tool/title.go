package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

const probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// VideoTitle asks the downloader for the source's metadata without
// fetching any media and returns its title.
func (b Binaries) VideoTitle(ctx context.Context, url string) (string, error) {
	b = b.withDefaults()
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("source URL is required")
	}

	args := []string{
		"-j",
		"--user-agent", probeUserAgent,
		"--no-cookies",
		"--no-check-certificates",
		"--no-warnings",
		"--ignore-errors",
		"--skip-download",
		"--extractor-args", "youtube:player_client=web",
		"--retries", "3",
		"--socket-timeout", "30",
		url,
	}

	cmd := exec.CommandContext(ctx, b.YTDLP, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("probe title: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var meta struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return "", fmt.Errorf("parse title metadata: %w", err)
	}
	if strings.TrimSpace(meta.Title) == "" {
		return "", fmt.Errorf("source metadata carries no title")
	}
	return meta.Title, nil
}
