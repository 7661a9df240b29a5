// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strings"
	"testing"
)

// TestMain drops inherited JOSCAN_* variables; tests opt in with t.Setenv.
func TestMain(m *testing.M) {
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
	os.Exit(m.Run())
}
