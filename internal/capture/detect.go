package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec. Stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Detect lists the cameras gphoto2 can see.
func Detect(ctx context.Context, run Runner, binary string) ([]Camera, error) {
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, binary, "--auto-detect")
	if err != nil {
		return nil, fmt.Errorf("%w: auto-detect failed: %v", ErrProtocol, err)
	}
	return ParseAutoDetect(out), nil
}

// ParseAutoDetect parses the model/port table printed by
// `gphoto2 --auto-detect`.
func ParseAutoDetect(out []byte) []Camera {
	var cameras []Camera
	inTable := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if !inTable {
			inTable = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		port := fields[len(fields)-1]
		model := strings.TrimSpace(strings.TrimSuffix(line, port))
		cameras = append(cameras, Camera{Model: model, Port: port})
	}
	return cameras
}

// SelectCamera picks a camera by model name: exact (case-insensitive)
// first, then prefix. An empty name selects the first camera.
func SelectCamera(cameras []Camera, name string) (Camera, error) {
	if len(cameras) == 0 {
		return Camera{}, fmt.Errorf("%w: no cameras detected", ErrNotFound)
	}
	if name == "" {
		return cameras[0], nil
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range cameras {
		if strings.ToLower(c.Model) == want {
			return c, nil
		}
	}
	for _, c := range cameras {
		if strings.HasPrefix(strings.ToLower(c.Model), want) {
			return c, nil
		}
	}

	models := make([]string, len(cameras))
	for i, c := range cameras {
		models[i] = c.Model
	}
	return Camera{}, fmt.Errorf("%w: %q (detected: %s)", ErrNotFound, name, strings.Join(models, ", "))
}
