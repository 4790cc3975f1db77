package commands

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/webcamize/internal/api"
	"github.com/bryanchriswhite/webcamize/internal/capture"
	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/convert"
	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/output"
	"github.com/bryanchriswhite/webcamize/internal/stream"
)

func runStream(cmd *cobra.Command, args []string) error {
	if err := useFileOperand(cmd, args); err != nil {
		return err
	}
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.WithComponent("main")
	log.Info().
		Str("version", Version).
		Str("config", configMgr.GetConfigPath()).
		Msg("webcamize starting")

	source, err := capture.NewSource(cfg.Camera, capture.ExecRunner)
	if err != nil {
		return err
	}

	sink, err := newSink(cfg)
	if err != nil {
		return err
	}

	opts := stream.Options{
		Source:          source,
		Sink:            sink,
		FPS:             cfg.FPS,
		LabelFromCamera: cfg.Output.DeviceLabel == "",
		Alive:           stream.NewAlive(),
		Stats:           stream.NewStats(),
	}
	if cfg.Convert.Enabled {
		conv, err := convert.New(convert.Options{
			Format:      cfg.TargetFormat(),
			Accelerated: cfg.Convert.Accelerated,
		})
		if err != nil {
			return err
		}
		opts.Converter = conv
	}

	stopSignals := opts.Alive.NotifyOnSignal(os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if cfg.Status.Addr != "" {
		server := api.NewServer(opts.Stats, configMgr, Version)
		if err := server.Start(cfg.Status.Addr); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("Status API shutdown failed")
			}
		}()
	}

	log.Info().
		Str("session", opts.Stats.SessionID()).
		Str("format", cfg.Convert.PixelFormat).
		Bool("convert", cfg.Convert.Enabled).
		Int("fps", cfg.FPS).
		Msg("Press Ctrl+C to stop")

	if err := stream.NewSession(opts).Run(cmd.Context()); err != nil {
		return err
	}
	log.Info().Msg("Shut down cleanly")
	return nil
}

// newSink builds the configured output. Without a virtual device the
// stream falls back to discarding frames.
func newSink(cfg *config.Config) (output.Sink, error) {
	switch cfg.Output.Sink {
	case config.SinkFile:
		return output.NewFileSink(cfg.Output.FilePath, cfg.Output.LengthPrefix), nil
	case config.SinkNone:
		return output.NewNoneSink(), nil
	}

	lb := output.NewLoopback(output.LoopbackOptions{
		Number:        cfg.Output.DeviceNumber,
		Label:         cfg.Output.DeviceLabel,
		ExclusiveCaps: cfg.Output.ExclusiveCaps,
		Modprobe:      cfg.Output.ModprobePath,
		Run:           capture.ExecRunner,
	})
	sink, err := output.NewDeviceSink(lb)
	if errors.Is(err, output.ErrDeviceUnsupported) {
		logger.WithComponent("main").Warn().Err(err).Msg("Frames will be discarded; use --file to keep them")
		return output.NewNoneSink(), nil
	}
	return sink, err
}
