package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

type fakeSystem struct {
	sysfs string
	dev   string
	calls [][]string
}

func newFakeSystem(t *testing.T) *fakeSystem {
	t.Helper()
	root := t.TempDir()
	fs := &fakeSystem{sysfs: filepath.Join(root, "sys"), dev: filepath.Join(root, "dev")}
	for _, dir := range []string{filepath.Join(fs.sysfs, "class", "video4linux"), fs.dev} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

// addDevice publishes a loopback node the way the kernel module does.
func (fs *fakeSystem) addDevice(t *testing.T, n int, label string) {
	t.Helper()
	dir := filepath.Join(fs.sysfs, "class", "video4linux", "video"+strconv.Itoa(n))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{"name": label + "\n", "max_openers": "10\n"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(fs.dev, "video"+strconv.Itoa(n)), nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func (fs *fakeSystem) loadModule(t *testing.T) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(fs.sysfs, "module", "v4l2loopback"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func (fs *fakeSystem) runner(t *testing.T, onLoad func()) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		fs.calls = append(fs.calls, append([]string{name}, args...))
		if len(args) > 0 && args[0] == "v4l2loopback" && onLoad != nil {
			onLoad()
		}
		return nil, nil
	}
}

func TestLoopback_CreatesDevice(t *testing.T) {
	fs := newFakeSystem(t)
	lb := NewLoopback(LoopbackOptions{
		Number:        -1,
		Label:         "Canon EOS 80D",
		ExclusiveCaps: true,
		SysfsRoot:     fs.sysfs,
		DevRoot:       fs.dev,
	})
	lb.opts.Run = fs.runner(t, func() {
		fs.loadModule(t)
		fs.addDevice(t, 0, "Integrated Camera")
		fs.addDevice(t, 3, "Canon EOS 80D")
	})

	path, err := lb.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if want := filepath.Join(fs.dev, "video3"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if !lb.Loaded() {
		t.Error("Loaded() = false after creating the device")
	}

	want := []string{"modprobe", "v4l2loopback", "devices=1", "exclusive_caps=1", `card_label="Canon EOS 80D"`}
	if len(fs.calls) != 1 || strings.Join(fs.calls[0], "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %q, want %q", fs.calls, want)
	}

	if err := lb.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(fs.calls) != 2 || strings.Join(fs.calls[1], " ") != "modprobe -r v4l2loopback" {
		t.Fatalf("teardown calls = %q", fs.calls)
	}
}

func TestLoopback_RequestedNumber(t *testing.T) {
	fs := newFakeSystem(t)
	lb := NewLoopback(LoopbackOptions{Number: 7, SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	lb.opts.Run = fs.runner(t, func() {
		fs.loadModule(t)
		fs.addDevice(t, 7, DefaultLabel)
	})

	path, err := lb.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if path != filepath.Join(fs.dev, "video7") {
		t.Errorf("path = %q", path)
	}
	args := strings.Join(fs.calls[0], " ")
	if !strings.Contains(args, "video_nr=7") || !strings.Contains(args, "exclusive_caps=0") {
		t.Errorf("modprobe args = %q", args)
	}
}

func TestLoopback_ReusesLoadedDevice(t *testing.T) {
	fs := newFakeSystem(t)
	fs.loadModule(t)
	fs.addDevice(t, 2, "OBS Virtual Camera")

	lb := NewLoopback(LoopbackOptions{Number: 2, SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	lb.opts.Run = fs.runner(t, nil)

	path, err := lb.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if path != filepath.Join(fs.dev, "video2") {
		t.Errorf("path = %q", path)
	}
	if lb.Loaded() {
		t.Error("reused device must not be marked as loaded by us")
	}
	if err := lb.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(fs.calls) != 0 {
		t.Errorf("unexpected commands: %q", fs.calls)
	}
}

func TestLoopback_ReusePrefersLabel(t *testing.T) {
	fs := newFakeSystem(t)
	fs.loadModule(t)
	fs.addDevice(t, 1, "Other")
	fs.addDevice(t, 4, "Canon EOS 80D")

	lb := NewLoopback(LoopbackOptions{Number: -1, Label: "Canon EOS 80D", SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	path, err := lb.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if path != filepath.Join(fs.dev, "video4") {
		t.Errorf("path = %q", path)
	}
}

func TestLoopback_LoadedButMissingNode(t *testing.T) {
	fs := newFakeSystem(t)
	fs.loadModule(t)

	lb := NewLoopback(LoopbackOptions{Number: 9, SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	if _, err := lb.Setup(context.Background()); err == nil {
		t.Fatal("expected error for missing node")
	}
}

func TestLoopback_Timeout(t *testing.T) {
	fs := newFakeSystem(t)
	lb := NewLoopback(LoopbackOptions{Number: -1, SysfsRoot: fs.sysfs, DevRoot: fs.dev, Timeout: 100 * time.Millisecond})
	lb.opts.Run = fs.runner(t, nil)

	if _, err := lb.Setup(context.Background()); err == nil {
		t.Fatal("expected timeout")
	}
	if lb.Loaded() {
		t.Error("Loaded() = true after timeout")
	}
	assertUnloaded(t, fs.calls)
}

func TestLoopback_CancelledWhileWaiting(t *testing.T) {
	fs := newFakeSystem(t)
	ctx, cancel := context.WithCancel(context.Background())
	lb := NewLoopback(LoopbackOptions{Number: -1, SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	lb.opts.Run = fs.runner(t, cancel)

	if _, err := lb.Setup(ctx); err == nil {
		t.Fatal("expected error after cancel")
	}
	assertUnloaded(t, fs.calls)
}

func assertUnloaded(t *testing.T, calls [][]string) {
	t.Helper()
	if len(calls) != 2 {
		t.Fatalf("calls = %v, want load then unload", calls)
	}
	if got := strings.Join(calls[1], " "); got != "modprobe -r v4l2loopback" {
		t.Errorf("last call = %q, want modprobe -r v4l2loopback", got)
	}
}

func TestLoopback_ModprobeFailure(t *testing.T) {
	fs := newFakeSystem(t)
	lb := NewLoopback(LoopbackOptions{Number: -1, SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	lb.opts.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("operation not permitted")
	}
	if _, err := lb.Setup(context.Background()); err == nil {
		t.Fatal("expected modprobe error")
	}
	if lb.Loaded() {
		t.Error("Loaded() = true after failed modprobe")
	}
}

func TestLoopback_Devices(t *testing.T) {
	fs := newFakeSystem(t)
	fs.addDevice(t, 5, "b")
	fs.addDevice(t, 1, "a")
	// a real capture device has no max_openers attribute
	if err := os.MkdirAll(filepath.Join(fs.sysfs, "class", "video4linux", "video0"), 0o755); err != nil {
		t.Fatal(err)
	}

	lb := NewLoopback(LoopbackOptions{SysfsRoot: fs.sysfs, DevRoot: fs.dev})
	devices, err := lb.Devices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0].Number != 1 || devices[1].Number != 5 {
		t.Fatalf("devices = %+v", devices)
	}
	if devices[0].Label != "a" {
		t.Errorf("label = %q", devices[0].Label)
	}
	if lb.ModuleLoaded() {
		t.Error("ModuleLoaded() = true without module directory")
	}
}
