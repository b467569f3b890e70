package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wignn/media-tools/internal/runstore"
)

// DefaultRateLimitKiB caps downloader bandwidth when the user has not
// configured a limit of their own.
const DefaultRateLimitKiB = 512

type Settings struct {
	DownloadDir  string `json:"download_dir,omitempty"`
	RateLimitKiB int    `json:"rate_limit_kib,omitempty"`
}

func DefaultStateDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(base, "media-tools"), nil
}

func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, "settings.json")
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// Load reads settings from path. A missing file is not an error:
// defaults are returned so first runs work without a setup step.
func Load(path string) (Settings, error) {
	s := Settings{
		DownloadDir:  defaultDownloadDir(),
		RateLimitKiB: DefaultRateLimitKiB,
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("stat settings %s: %w", path, err)
	}
	if err := runstore.ReadJSON(path, &s); err != nil {
		return Settings{}, err
	}
	if strings.TrimSpace(s.DownloadDir) == "" {
		s.DownloadDir = defaultDownloadDir()
	}
	if s.RateLimitKiB <= 0 {
		s.RateLimitKiB = DefaultRateLimitKiB
	}
	return s, nil
}

func Save(path string, s Settings) error {
	return runstore.WriteJSON(path, s)
}

func Keys() []string {
	return []string{"download-dir", "rate-limit-kib"}
}

func (s Settings) Get(key string) (string, error) {
	switch key {
	case "download-dir":
		return s.DownloadDir, nil
	case "rate-limit-kib":
		return strconv.Itoa(s.RateLimitKiB), nil
	default:
		return "", fmt.Errorf("unknown settings key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
}

func (s *Settings) Set(key, value string) error {
	switch key {
	case "download-dir":
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return fmt.Errorf("download-dir cannot be empty")
		}
		s.DownloadDir = trimmed
		return nil
	case "rate-limit-kib":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("rate-limit-kib must be a positive integer, got %q", value)
		}
		s.RateLimitKiB = n
		return nil
	default:
		return fmt.Errorf("unknown settings key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
}
