package runstore

import (
	"path/filepath"
	"testing"
)

func TestAcquireStateLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireStateLock(stateDir)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireStateLock(stateDir); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireStateLock(stateDir)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireStateLock_CreatesMissingStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireStateLock(stateDir)
	if err != nil {
		t.Fatalf("acquire lock in missing dir: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
}
