// SPDX-License-Identifier: MIT

// Package config loads joscan's configuration.
//
// Precedence is defaults, then the YAML file (strict: unknown keys are
// rejected), then JOSCAN_* environment variables. The result is validated as
// a whole. ConfigHolder keeps the active configuration and reloads it when the
// file changes or the daemon receives SIGHUP.
package config
