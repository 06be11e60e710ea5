package app

import (
	"log/slog"
	"mime"
	"sync"
)

// staticTypes are the asset types the portal serves. Minimal base images
// often ship without a mime.types file, leaving these unresolved.
var staticTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
}

var registerTypesOnce sync.Once

func registerStaticTypes(logger *slog.Logger) {
	registerTypesOnce.Do(func() {
		for ext, typ := range staticTypes {
			if mime.TypeByExtension(ext) != "" {
				continue
			}
			if err := mime.AddExtensionType(ext, typ); err != nil {
				logger.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
			}
		}
	})
}
