// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// Config validation already covered syntax; these checks touch the host.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")
	logger.Info().Str(xglog.FieldEvent, "startup.checks").Msg("running pre-flight startup checks")

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkJournalDir(logger, cfg.Journal.Path); err != nil {
		return fmt.Errorf("journal directory check failed: %w", err)
	}

	if err := checkListenAddr(logger, cfg.Server.Listen); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	checkCookies(logger, cfg)

	logger.Info().Str(xglog.FieldEvent, "startup.checks_passed").Msg("all startup checks passed")
	return nil
}

// checkJournalDir creates the journal directory if needed and proves it is
// writable. An in-memory journal needs nothing.
func checkJournalDir(logger zerolog.Logger, path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	tempDir := filepath.Clean(os.TempDir())
	if tempDir != "." && (dir == tempDir || strings.HasPrefix(dir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("journal_dir", dir).
			Msg("journal directory is under temp; scan history may be lost on reboot")
	}

	logger.Info().Str("path", dir).Msg("journal directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

// checkCookies warns when session cookies travel in clear text to a remote
// backend.
func checkCookies(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.Server.SecureCookies || cfg.Server.TLS.Enabled() {
		return
	}
	if strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		logger.Warn().
			Str("backend", config.MaskURL(cfg.Backend.BaseURL)).
			Msg("secure cookies disabled while the backend uses https; enable server.secureCookies behind TLS")
	}
}
