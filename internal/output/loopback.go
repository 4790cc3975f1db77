package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bryanchriswhite/webcamize/internal/logger"
)

const loopbackModule = "v4l2loopback"

// DefaultLabel names the virtual camera when no camera name is known.
const DefaultLabel = "webcamize"

// LoopbackOptions configures virtual device creation.
type LoopbackOptions struct {
	// Number requests /dev/videoN; negative lets the module pick.
	Number        int
	Label         string
	ExclusiveCaps bool
	Modprobe      string
	Run           Runner

	SysfsRoot string
	DevRoot   string
	Timeout   time.Duration
}

// LoopbackDevice is one node created by v4l2loopback.
type LoopbackDevice struct {
	Number int    `json:"number"`
	Path   string `json:"path"`
	Label  string `json:"label"`
}

// Loopback creates, locates and removes v4l2loopback devices.
type Loopback struct {
	opts   LoopbackOptions
	path   string
	loaded bool
}

// NewLoopback fills in defaults for opts.
func NewLoopback(opts LoopbackOptions) *Loopback {
	if opts.Modprobe == "" {
		opts.Modprobe = "modprobe"
	}
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = "/sys"
	}
	if opts.DevRoot == "" {
		opts.DevRoot = "/dev"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	return &Loopback{opts: opts}
}

// SetLabel changes the card label used when the module is loaded.
func (l *Loopback) SetLabel(label string) {
	if label != "" {
		l.opts.Label = label
	}
}

// Label returns the card label
func (l *Loopback) Label() string {
	return l.opts.Label
}

// Path returns the device node after Setup
func (l *Loopback) Path() string {
	return l.path
}

// Loaded reports whether Setup loaded the kernel module.
func (l *Loopback) Loaded() bool {
	return l.loaded
}

// ModuleLoaded reports whether v4l2loopback is currently loaded.
func (l *Loopback) ModuleLoaded() bool {
	_, err := os.Stat(filepath.Join(l.opts.SysfsRoot, "module", loopbackModule))
	return err == nil
}

// Devices lists the loopback nodes present in sysfs.
func (l *Loopback) Devices() ([]LoopbackDevice, error) {
	matches, err := filepath.Glob(filepath.Join(l.opts.SysfsRoot, "class", "video4linux", "video*"))
	if err != nil {
		return nil, err
	}

	var devices []LoopbackDevice
	for _, dir := range matches {
		// only v4l2loopback publishes max_openers
		if _, err := os.Stat(filepath.Join(dir, "max_openers")); err != nil {
			continue
		}
		base := filepath.Base(dir)
		n, err := strconv.Atoi(strings.TrimPrefix(base, "video"))
		if err != nil {
			continue
		}
		name, _ := os.ReadFile(filepath.Join(dir, "name"))
		devices = append(devices, LoopbackDevice{
			Number: n,
			Path:   filepath.Join(l.opts.DevRoot, base),
			Label:  strings.TrimSpace(string(name)),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Number < devices[j].Number })
	return devices, nil
}

// Setup reuses or creates the virtual device and returns its node path.
func (l *Loopback) Setup(ctx context.Context) (string, error) {
	log := logger.WithComponent("loopback")

	if l.ModuleLoaded() {
		path, err := l.reuse()
		if err != nil {
			return "", err
		}
		l.path = path
		log.Info().Str("device", path).Msg("Reusing existing loopback device")
		return path, nil
	}

	if l.opts.Run == nil {
		return "", fmt.Errorf("no command runner for %s", l.opts.Modprobe)
	}
	args := l.modprobeArgs()
	log.Debug().Str("modprobe", l.opts.Modprobe).Strs("args", args).Msg("Loading v4l2loopback")
	if _, err := l.opts.Run(ctx, l.opts.Modprobe, args...); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", loopbackModule, err)
	}
	l.loaded = true

	path, err := l.waitForNode(ctx)
	if err != nil {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.Timeout)
		defer cancel()
		if terr := l.Teardown(uctx); terr != nil {
			return "", errors.Join(err, terr)
		}
		return "", err
	}
	l.path = path
	log.Info().Str("device", path).Str("label", l.opts.Label).Msg("Created loopback device")
	return path, nil
}

// Teardown removes the module if Setup loaded it.
func (l *Loopback) Teardown(ctx context.Context) error {
	if !l.loaded {
		return nil
	}
	l.loaded = false
	if _, err := l.opts.Run(ctx, l.opts.Modprobe, "-r", loopbackModule); err != nil {
		return fmt.Errorf("failed to unload %s: %w", loopbackModule, err)
	}
	logger.WithComponent("loopback").Info().Msg("Removed v4l2loopback module")
	return nil
}

func (l *Loopback) modprobeArgs() []string {
	exclusive := 0
	if l.opts.ExclusiveCaps {
		exclusive = 1
	}
	label := strings.ReplaceAll(l.opts.Label, `"`, "")
	args := []string{
		loopbackModule,
		"devices=1",
		fmt.Sprintf("exclusive_caps=%d", exclusive),
		`card_label="` + label + `"`,
	}
	if l.opts.Number >= 0 {
		args = append(args, fmt.Sprintf("video_nr=%d", l.opts.Number))
	}
	return args
}

// reuse picks a node while the module is already loaded: the requested
// number, else a device carrying our label, else the first loopback device.
func (l *Loopback) reuse() (string, error) {
	if l.opts.Number >= 0 {
		path := l.nodePath(l.opts.Number)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%s is loaded but %s does not exist; unload the module or pick another device", loopbackModule, path)
		}
		return path, nil
	}

	devices, err := l.Devices()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%s is loaded but has no devices", loopbackModule)
	}
	for _, d := range devices {
		if d.Label == l.opts.Label {
			return d.Path, nil
		}
	}
	return devices[0].Path, nil
}

func (l *Loopback) waitForNode(ctx context.Context) (string, error) {
	deadline := time.Now().Add(l.opts.Timeout)
	for {
		if path, ok := l.findNode(); ok {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", errors.New("timed out waiting for loopback device node")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *Loopback) findNode() (string, bool) {
	if l.opts.Number >= 0 {
		path := l.nodePath(l.opts.Number)
		_, err := os.Stat(path)
		return path, err == nil
	}
	devices, err := l.Devices()
	if err != nil {
		return "", false
	}
	for _, d := range devices {
		if d.Label != l.opts.Label {
			continue
		}
		if _, err := os.Stat(d.Path); err == nil {
			return d.Path, true
		}
	}
	return "", false
}

func (l *Loopback) nodePath(n int) string {
	return filepath.Join(l.opts.DevRoot, fmt.Sprintf("video%d", n))
}
