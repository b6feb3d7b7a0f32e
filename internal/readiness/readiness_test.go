package readiness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWait_AlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	assert.NoError(t, os.WriteFile(path, nil, 0644))
	assert.True(t, Wait(context.Background(), path, 1, time.Hour, zap.NewNop()))
}

func TestWait_AppearsMidWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte("SQLite format 3\x00"), 0644)
	}()
	assert.True(t, Wait(context.Background(), path, 20, 100*time.Millisecond, zap.NewNop()))
}

func TestWait_NeverAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	start := time.Now()
	assert.False(t, Wait(context.Background(), path, 3, 10*time.Millisecond, zap.NewNop()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWait_UnwatchableDirectoryPolls(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	path := filepath.Join(dir, "db.sqlite3")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.MkdirAll(dir, 0755)
		_ = os.WriteFile(path, nil, 0644)
	}()
	assert.True(t, Wait(context.Background(), path, 50, 20*time.Millisecond, zap.NewNop()))
}

func TestWait_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	assert.False(t, Wait(ctx, path, 100, time.Hour, zap.NewNop()))
}

func TestWait_ZeroAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	assert.False(t, Wait(context.Background(), path, 0, time.Millisecond, zap.NewNop()))
}
