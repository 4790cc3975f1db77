package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/bryanchriswhite/webcamize/internal/logger"
)

// Gphoto2Source streams preview frames from a tethered camera by running
// `gphoto2 --capture-movie --stdout` as a subprocess. This keeps libgphoto2
// out of the process and needs no cgo.
type Gphoto2Source struct {
	binary     string
	cameraName string
	run        Runner

	camera Camera
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	frames *FrameReader
	done   chan struct{}
}

// NewGphoto2Source creates a source for the camera whose model matches
// name, or the first detected camera when name is empty.
func NewGphoto2Source(binary, name string, run Runner) *Gphoto2Source {
	if binary == "" {
		binary = "gphoto2"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Gphoto2Source{
		binary:     binary,
		cameraName: name,
		run:        run,
	}
}

// Open detects the camera and starts the preview subprocess
func (g *Gphoto2Source) Open(ctx context.Context) error {
	if g.cmd != nil {
		return fmt.Errorf("gphoto2 source already open")
	}

	log := logger.WithComponent("gphoto2")

	cameras, err := Detect(ctx, g.run, g.binary)
	if err != nil {
		return err
	}
	camera, err := SelectCamera(cameras, g.cameraName)
	if err != nil {
		return err
	}
	g.camera = camera
	log.Info().Str("model", camera.Model).Str("port", camera.Port).Msg("Using camera")

	args := []string{
		"--camera", camera.Model,
		"--port", camera.Port,
		"--capture-movie",
		"--stdout",
	}
	log.Debug().Str("binary", g.binary).Strs("args", args).Msg("Starting gphoto2 subprocess")

	g.cmd = exec.Command(g.binary, args...)

	// Capture stdout for frame data
	stdout, err := g.cmd.StdoutPipe()
	if err != nil {
		g.cmd = nil
		return fmt.Errorf("%w: failed to get stdout pipe: %v", ErrProtocol, err)
	}
	g.stdout = stdout

	// Capture stderr for errors
	stderr, err := g.cmd.StderrPipe()
	if err != nil {
		g.cmd = nil
		return fmt.Errorf("%w: failed to get stderr pipe: %v", ErrProtocol, err)
	}
	g.stderr = stderr

	if err := g.cmd.Start(); err != nil {
		g.cmd = nil
		return fmt.Errorf("%w: failed to start gphoto2: %v", ErrProtocol, err)
	}

	g.frames = NewFrameReader(g.stdout)
	g.done = make(chan struct{})
	go g.logStderr()

	log.Info().Int("pid", g.cmd.Process.Pid).Msg("gphoto2 preview started")
	return nil
}

// Capture reads the next preview frame from the subprocess
func (g *Gphoto2Source) Capture() ([]byte, error) {
	if g.frames == nil {
		return nil, fmt.Errorf("%w: source not open", ErrCaptureFailed)
	}
	frame, err := g.frames.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	return frame, nil
}

// logStderr relays gphoto2 diagnostics
func (g *Gphoto2Source) logStderr() {
	defer close(g.done)

	log := logger.WithComponent("gphoto2")
	scanner := bufio.NewScanner(g.stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARN") {
			log.Warn().Str("gphoto2", line).Msg("gphoto2 message")
		} else {
			log.Debug().Str("gphoto2", line).Msg("gphoto2 output")
		}
	}
}

// Close stops the gphoto2 subprocess
func (g *Gphoto2Source) Close() error {
	if g.cmd == nil {
		return nil
	}

	log := logger.WithComponent("gphoto2")

	if g.cmd.Process != nil {
		log.Debug().Int("pid", g.cmd.Process.Pid).Msg("Stopping gphoto2 subprocess")
		g.cmd.Process.Kill()
	}
	// stderr reaches EOF once the process is gone; Wait's error only
	// reports the kill.
	<-g.done
	g.cmd.Wait()

	g.cmd = nil
	g.frames = nil
	log.Info().Msg("gphoto2 preview stopped")
	return nil
}

// Name returns the camera model
func (g *Gphoto2Source) Name() string {
	if g.camera.Model != "" {
		return g.camera.Model
	}
	return g.cameraName
}
