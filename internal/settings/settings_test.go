package settings

import (
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load missing settings: %v", err)
	}
	if s.RateLimitKiB != DefaultRateLimitKiB {
		t.Fatalf("rate limit = %d, want %d", s.RateLimitKiB, DefaultRateLimitKiB)
	}
	if s.DownloadDir == "" {
		t.Fatalf("expected a default download dir")
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	want := Settings{DownloadDir: "/tmp/media", RateLimitKiB: 1024}
	if err := Save(path, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if got != want {
		t.Fatalf("loaded %+v, want %+v", got, want)
	}
}

func TestSet_ValidatesValues(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{name: "valid download dir", key: "download-dir", value: "/tmp/x", wantErr: false},
		{name: "empty download dir", key: "download-dir", value: "  ", wantErr: true},
		{name: "valid rate limit", key: "rate-limit-kib", value: "2048", wantErr: false},
		{name: "zero rate limit", key: "rate-limit-kib", value: "0", wantErr: true},
		{name: "non-numeric rate limit", key: "rate-limit-kib", value: "fast", wantErr: true},
		{name: "unknown key", key: "theme", value: "dark", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s Settings
			err := s.Set(tc.key, tc.value)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGet_KnownAndUnknownKeys(t *testing.T) {
	s := Settings{DownloadDir: "/data", RateLimitKiB: 256}

	if got, err := s.Get("download-dir"); err != nil || got != "/data" {
		t.Fatalf("get download-dir = %q, %v", got, err)
	}
	if got, err := s.Get("rate-limit-kib"); err != nil || got != "256" {
		t.Fatalf("get rate-limit-kib = %q, %v", got, err)
	}
	if _, err := s.Get("theme"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
