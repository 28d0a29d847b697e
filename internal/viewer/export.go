package viewer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/local/docviewer/internal/metrics"
)

// Export saves doc under filename through the handle's own save method.
// A nil doc is a no-op. Failures, including panics, come back as
// *ExportError and are logged here.
func Export(ctx context.Context, doc Document, filename string) (err error) {
	if doc == nil {
		return nil
	}
	if filename == "" {
		filename = DefaultFilename
	}
	defer func() {
		if v := recover(); v != nil {
			err = &ExportError{Filename: filename, Err: panicError(v)}
		}
		if err != nil {
			metrics.IncExport("error")
			log.Error().Err(err).Str("filename", filename).Msg("export failed")
			return
		}
		metrics.IncExport("success")
		log.Info().Str("filename", filename).Msg("document exported")
	}()

	if serr := doc.Save(ctx, filename); serr != nil {
		return &ExportError{Filename: filename, Err: serr}
	}
	return nil
}
