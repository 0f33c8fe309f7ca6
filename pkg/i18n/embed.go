package i18n

import "embed"

// EmbeddedLocales holds locales/*.json compiled into the binary.
// Use LoadEmbedded, or fs.Sub(EmbeddedLocales, "locales").
//
//go:embed locales/*.json
var EmbeddedLocales embed.FS
