// -----------------------------------------------------------------------
// Extraction - Backend client selection
// -----------------------------------------------------------------------

package extraction

import (
	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/common"
	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
)

// NewExtractor creates the appropriate extractor implementation based on
// configuration: an HTTP client when a backend URL is configured, otherwise
// the built-in local extractor.
func NewExtractor(
	cfg *common.ExtractionConfig,
	blobs interfaces.BlobStorage,
	logger arbor.ILogger,
) interfaces.Extractor {
	if cfg.BackendURL != "" {
		logger.Info().Str("backend_url", cfg.BackendURL).Msg("Using HTTP extraction backend")
		return NewHTTPExtractor(cfg, blobs, logger)
	}

	logger.Info().Msg("No extraction backend configured, using local extractor")
	return NewLocalExtractor(blobs, logger)
}
