package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWithMtime(t *testing.T, path, body string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestWatcher_Poll(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "guard.yaml")
	base := time.Now().Add(-time.Hour)
	writeWithMtime(t, path, "cors:\n  maxAge: 100\n", base)

	var applied []*GuardConfig
	var reject bool
	w := NewWatcher(path, time.Second, func(cfg *GuardConfig) error {
		if reject {
			return errors.New("engine refused")
		}
		applied = append(applied, cfg)
		return nil
	}, logger)

	// the version present at start is not pushed again
	assert.False(t, w.Poll())

	writeWithMtime(t, path, "cors:\n  maxAge: 200\n", base.Add(time.Minute))
	assert.True(t, w.Poll())
	require.Len(t, applied, 1)
	assert.Equal(t, 200, applied[0].Cors.MaxAge)

	// unchanged mtime
	assert.False(t, w.Poll())

	writeWithMtime(t, path, "cors:\n  maxAge: -1\n", base.Add(2*time.Minute))
	assert.False(t, w.Poll())
	assert.Len(t, applied, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	reject = true
	writeWithMtime(t, path, "cors:\n  maxAge: 300\n", base.Add(3*time.Minute))
	assert.False(t, w.Poll())
	assert.Equal(t, "config reload rejected", hook.LastEntry().Message)

	require.NoError(t, os.Remove(path))
	assert.False(t, w.Poll())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
