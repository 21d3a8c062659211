package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	logPathEnv   = "SONICURSOR_LOG_PATH"
	diagFileName = "diagnostics_log.txt"
)

var (
	diag     = zerolog.Nop()
	diagFile *os.File
	diagMu   sync.Mutex
)

// resolveLogDir picks the diagnostics directory: the flag first, then the
// environment, then the config file, then the user cache directory.
func resolveLogDir(flagPath, configured string) (string, error) {
	for _, path := range []string{flagPath, os.Getenv(logPathEnv), configured} {
		if path != "" {
			return filepath.Abs(path)
		}
	}

	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "sonicursor"), nil
}

func openDiagnostics(dir string) error {
	diagMu.Lock()
	defer diagMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if diagFile != nil {
		diagFile.Close()
	}
	diagFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        f,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diag = zerolog.New(consoleWriter).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return nil
}

func closeDiagnostics() {
	diagMu.Lock()
	defer diagMu.Unlock()

	diag = zerolog.Nop()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}
