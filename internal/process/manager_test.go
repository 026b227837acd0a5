package process

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PIDLifecycle(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "nested"))

	assert.Equal(t, 0, m.ReadPID())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.WritePID())
	assert.Equal(t, os.Getpid(), m.ReadPID())
	assert.True(t, m.IsRunning())

	// Writing again from the same process is fine.
	require.NoError(t, m.WritePID())

	m.CleanupPID()
	assert.NoFileExists(t, m.PIDFile())
	assert.Equal(t, 0, m.ReadPID())
}

func TestManager_ReadPID(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"valid", "1234\n", 1234},
		{"garbage", "abc", 0},
		{"negative", "-5", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(t.TempDir())
			require.NoError(t, os.WriteFile(m.PIDFile(), []byte(tt.content), 0o600))
			assert.Equal(t, tt.want, m.ReadPID())
		})
	}
}

func TestManager_StalePIDIsCleaned(t *testing.T) {
	m := NewManager(t.TempDir())

	// Max pid on Linux is bounded well below this.
	require.NoError(t, os.WriteFile(m.PIDFile(), []byte(strconv.Itoa(1<<30)), 0o600))

	assert.False(t, m.IsRunning())
	assert.NoFileExists(t, m.PIDFile())

	require.NoError(t, os.WriteFile(m.PIDFile(), []byte(strconv.Itoa(1<<30)), 0o600))
	assert.NoError(t, m.Stop(time.Second))
	assert.NoFileExists(t, m.PIDFile())
}

func TestManager_StopWithoutPID(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NoError(t, m.Stop(time.Second))
}
