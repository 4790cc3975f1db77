package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/logger"
)

// Version is the release version
var Version = "2.0.0"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "webcamize",
		Short: "webcamize - Use a camera's live preview as a webcam",
		Long: `webcamize streams the live preview of a tethered camera into a
v4l2loopback virtual video device so any application can use it as a
webcam.

Features:
  • Detect cameras via gphoto2
  • Convert preview frames to YUYV, RGB24 or BGR24
  • Create and remove the v4l2loopback device automatically
  • Write frames to a file or stdout instead
  • Frame rate cap
  • Optional HTTP status API`,
		Example: `  # Stream the first detected camera to a new /dev/videoN
  webcamize

  # Pick a camera and device, cap at 30 FPS
  webcamize --camera "Canon EOS 80D" --device 4 --fps 30

  # Write raw preview JPEGs to stdout
  webcamize --no-convert --file | ffplay -f mjpeg -

  # Replay a recorded preview dump
  webcamize --replay preview.mjpeg --file out.yuyv`,
		Version:       Version,
		Args:          fileArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStream,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/webcamize/config.yaml)")
	pf.StringP("log-level", "l", "", "log level (DEBUG, INFO, WARN, FATAL)")
	pf.Bool("no-color", false, "disable colored log output")

	// Streaming flags
	f := rootCmd.Flags()
	f.StringP("camera", "c", "", "camera model to use (default is the first detected)")
	f.StringP("file", "f", "", "write frames to PATH instead of a device (stdout when PATH is omitted; --file PATH and --file=PATH both work)")
	f.Lookup("file").NoOptDefVal = config.StdoutPath
	f.IntP("device", "d", config.AutoDevice, "/dev/videoN number to use or create (default is automatic)")
	f.BoolP("no-convert", "x", false, "pass camera frames through without conversion")
	f.IntP("fps", "p", 60, "maximum frames per second, 0 for unlimited")
	f.String("format", "", "output pixel format (yuyv, rgb24, bgr24)")
	f.String("replay", "", "read frames from a recorded preview stream instead of a camera")
	f.String("status-addr", "", "serve the status API on this address (e.g. localhost:8080)")

	// Bind flags to viper
	bindFlags(pf, map[string]string{
		"log_level": "log-level",
		"no_color":  "no-color",
	})
	bindFlags(f, map[string]string{
		"camera.name":          "camera",
		"camera.replay_path":   "replay",
		"output.file_path":     "file",
		"output.device_number": "device",
		"no_convert":           "no-convert",
		"fps":                  "fps",
		"convert.pixel_format": "format",
		"status.addr":          "status-addr",
	})

	rootCmd.SetVersionTemplate("webcamize {{.Version}}\n")
}

// fileArgs accepts a single operand only as the path of a bare --file,
// which pflag parses as stdout followed by a positional argument.
func fileArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && bareFile(cmd) {
		return nil
	}
	return cobra.NoArgs(cmd, args)
}

func bareFile(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("file")
	return f != nil && f.Changed && f.Value.String() == config.StdoutPath
}

// useFileOperand moves the operand accepted by fileArgs into --file.
func useFileOperand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || !bareFile(cmd) {
		return nil
	}
	return cmd.Flags().Set("file", args[0])
}

// bindFlags binds viper keys to the named flags of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind --%s: %v", name, err))
		}
	}
}

func initConfig() {
	viper.SetEnvPrefix("WEBCAMIZE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.FatalErr(err, "webcamize failed")
		return 1
	}
	return 0
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file, applies flag and environment
// overrides, validates the result and configures logging.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Init(cfg.LogLevel, logger.ColorDisabled(cfg.NoColor))
	return configMgr, cfg, nil
}

// applyOverrides copies explicitly set flags and WEBCAMIZE_* variables
// over the file configuration.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("log_level") {
		cfg.LogLevel = strings.ToUpper(viper.GetString("log_level"))
	}
	if viper.IsSet("no_color") {
		cfg.NoColor = viper.GetBool("no_color")
	}
	if viper.IsSet("camera.name") {
		cfg.Camera.Name = viper.GetString("camera.name")
	}
	if viper.IsSet("camera.replay_path") {
		cfg.Camera.ReplayPath = viper.GetString("camera.replay_path")
		cfg.Camera.Backend = config.BackendReplay
	}
	if viper.IsSet("output.file_path") {
		cfg.Output.FilePath = viper.GetString("output.file_path")
		cfg.Output.Sink = config.SinkFile
	}
	if viper.IsSet("output.device_number") {
		cfg.Output.DeviceNumber = viper.GetInt("output.device_number")
	}
	if viper.IsSet("no_convert") {
		cfg.Convert.Enabled = !viper.GetBool("no_convert")
	}
	if viper.IsSet("fps") {
		cfg.FPS = viper.GetInt("fps")
	}
	if viper.IsSet("convert.pixel_format") {
		cfg.Convert.PixelFormat = viper.GetString("convert.pixel_format")
	}
	if viper.IsSet("status.addr") {
		cfg.Status.Addr = viper.GetString("status.addr")
	}
}
