package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the global fallback log directory (~/.lorekeep/logs/),
// used when no library root is known. Falls back to the temp directory if the
// home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lorekeep", "logs")
	}
	return filepath.Join(home, ".lorekeep", "logs")
}

// DefaultLogPath returns the global fallback log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "lorekeep.log")
}

// LogPathForLibrary returns the log path inside a library's data directory.
func LogPathForLibrary(root string) string {
	return filepath.Join(root, ".lorekeep", "logs", "lorekeep.log")
}

// FindLogFile locates the log file for viewing.
// Priority:
//  1. Explicit path (if provided)
//  2. <libraryRoot>/.lorekeep/logs/lorekeep.log (if libraryRoot is non-empty)
//  3. ~/.lorekeep/logs/lorekeep.log (global fallback)
//
// Returns an error if no log file is found.
func FindLogFile(explicit, libraryRoot string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	var checked []string

	if libraryRoot != "" {
		libPath := LogPathForLibrary(libraryRoot)
		checked = append(checked, libPath)
		if _, err := os.Stat(libPath); err == nil {
			return libPath, nil
		}
	}

	globalPath := DefaultLogPath()
	checked = append(checked, globalPath)
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found (checked %v). Run an indexing command or 'lorekeep serve' first", checked)
}
