package capture

import (
	"fmt"

	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/logger"
)

// NewSource builds the source backend selected by cfg. The source is not
// opened.
func NewSource(cfg config.CameraConfig, run Runner) (Source, error) {
	log := logger.WithComponent("capture")

	switch cfg.Backend {
	case config.BackendGphoto2, "":
		log.Debug().Str("camera", cfg.Name).Msg("Using gphoto2 capture backend")
		return NewGphoto2Source(cfg.Gphoto2Path, cfg.Name, run), nil
	case config.BackendReplay:
		log.Debug().Str("path", cfg.ReplayPath).Msg("Using replay capture backend")
		return NewReplaySource(cfg.ReplayPath, cfg.ReplayLoop), nil
	default:
		return nil, fmt.Errorf("no capture backend named %q", cfg.Backend)
	}
}
