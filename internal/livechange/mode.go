package livechange

import (
	"log/slog"
	"strings"
)

// ModeEnvVar is the environment variable consulted at the CLI boundary.
const ModeEnvVar = "INTERMAP_LIVE_CHANGES_MODE"

// ResolveMode normalizes a raw mode token. An empty token selects the
// default optimized mode; any other unrecognized token logs a warning and
// falls back to the legacy mode.
func ResolveMode(raw string, logger *slog.Logger) Mode {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case "":
		return ModeOptimized
	case string(ModeOptimized):
		return ModeOptimized
	case string(ModeLegacy):
		return ModeLegacy
	default:
		logger.Warn("live_changes.invalid_mode",
			"mode", trimmed,
			"fallback_mode", string(ModeLegacy))
		return ModeLegacy
	}
}
