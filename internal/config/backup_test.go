package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupConfig_NoConfig_ReturnsEmpty(t *testing.T) {
	// Given: no config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")

	// When: backing up
	backupPath, err := BackupConfig(configPath)

	// Then: nothing to do, no error
	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackupConfig_CreatesTimestampedCopy(t *testing.T) {
	// Given: an existing config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")
	content := []byte("chunking:\n  size: 1500\n")
	require.NoError(t, os.WriteFile(configPath, content, 0o644))

	// When: backing up
	backupPath, err := BackupConfig(configPath)

	// Then: the backup exists with identical content
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)
	assert.Contains(t, backupPath, BackupSuffix)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// And: the original is untouched
	orig, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, content, orig)
}

func TestListConfigBackups_SortsNewestFirst(t *testing.T) {
	// Given: several backup files with staggered mtimes
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")

	names := []string{
		".lorekeep.yaml.bak.20260101-000000",
		".lorekeep.yaml.bak.20260102-000000",
		".lorekeep.yaml.bak.20260103-000000",
	}
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}

	// When: listing
	backups, err := ListConfigBackups(configPath)

	// Then: newest first
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, filepath.Join(tmpDir, names[2]), backups[0])
	assert.Equal(t, filepath.Join(tmpDir, names[0]), backups[2])
}

func TestListConfigBackups_IgnoresUnrelatedFiles(t *testing.T) {
	// Given: a directory with backups and unrelated files
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".lorekeep.yaml.bak.20260101-000000"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.md"), []byte("x"), 0o644))

	// When: listing
	backups, err := ListConfigBackups(configPath)

	// Then: only the backup is returned
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestBackupConfig_CleansUpOldBackups(t *testing.T) {
	// Given: more backups than MaxBackups already on disk
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("current"), 0o644))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < MaxBackups+2; i++ {
		name := filepath.Join(tmpDir, ".lorekeep.yaml.bak.2026010"+string(rune('1'+i))+"-000000")
		require.NoError(t, os.WriteFile(name, []byte("old"), 0o644))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(name, mtime, mtime))
	}

	// When: creating a fresh backup
	_, err := BackupConfig(configPath)
	require.NoError(t, err)

	// Then: at most MaxBackups remain
	backups, err := ListConfigBackups(configPath)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}

func TestRestoreConfig_RoundTrips(t *testing.T) {
	// Given: a config and a backup with different content
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("current"), 0o644))

	backupPath := filepath.Join(tmpDir, ".lorekeep.yaml.bak.20260101-000000")
	require.NoError(t, os.WriteFile(backupPath, []byte("older"), 0o644))

	// When: restoring from the backup
	require.NoError(t, RestoreConfig(configPath, backupPath))

	// Then: the config has the backup's content
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "older", string(data))
}

func TestRestoreConfig_MissingBackup_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".lorekeep.yaml")

	err := RestoreConfig(configPath, filepath.Join(tmpDir, "missing.bak"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
