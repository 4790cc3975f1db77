package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/webcamize/internal/capture"
	"github.com/bryanchriswhite/webcamize/internal/convert"
	"github.com/bryanchriswhite/webcamize/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cameras, loopback devices and configuration",
	Long: `Report what webcamize would use: the detected cameras, whether the
v4l2loopback module is loaded, its devices, and the active configuration
file.`,
	Example: `  # Human-readable report
  webcamize status

  # Machine-readable report
  webcamize status --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "output format (text or json)")
}

type statusReport struct {
	Version      string                  `json:"version"`
	ConfigPath   string                  `json:"config_path"`
	Accelerated  bool                    `json:"accelerated_decoder"`
	Cameras      []capture.Camera        `json:"cameras"`
	CameraError  string                  `json:"camera_error,omitempty"`
	ModuleLoaded bool                    `json:"loopback_loaded"`
	Devices      []output.LoopbackDevice `json:"loopback_devices"`
	DevicesError string                  `json:"loopback_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report := statusReport{
		Version:     Version,
		ConfigPath:  configMgr.GetConfigPath(),
		Accelerated: convert.AccelerationAvailable(),
		Cameras:     []capture.Camera{},
		Devices:     []output.LoopbackDevice{},
	}

	cameras, err := capture.Detect(cmd.Context(), capture.ExecRunner, cfg.Camera.Gphoto2Path)
	if err != nil {
		report.CameraError = err.Error()
	} else if cameras != nil {
		report.Cameras = cameras
	}

	lb := output.NewLoopback(output.LoopbackOptions{})
	report.ModuleLoaded = lb.ModuleLoaded()
	devices, err := lb.Devices()
	if err != nil {
		report.DevicesError = err.Error()
	} else if devices != nil {
		report.Devices = devices
	}

	switch statusFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "text":
		printStatus(report)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", statusFormat)
	}
}

func printStatus(r statusReport) {
	fmt.Printf("webcamize %s\n", r.Version)
	fmt.Printf("Config:  %s\n", r.ConfigPath)
	if r.Accelerated {
		fmt.Println("Decoder: gocv (accelerated)")
	} else {
		fmt.Println("Decoder: software")
	}
	fmt.Println()

	fmt.Println("Cameras:")
	switch {
	case r.CameraError != "":
		fmt.Printf("  unavailable: %s\n", r.CameraError)
	case len(r.Cameras) == 0:
		fmt.Println("  none detected")
	default:
		for _, c := range r.Cameras {
			fmt.Printf("  %s (%s)\n", c.Model, c.Port)
		}
	}
	fmt.Println()

	if r.ModuleLoaded {
		fmt.Println("v4l2loopback: loaded")
	} else {
		fmt.Println("v4l2loopback: not loaded")
	}
	switch {
	case r.DevicesError != "":
		fmt.Printf("  unavailable: %s\n", r.DevicesError)
	case len(r.Devices) == 0:
		fmt.Println("  no loopback devices")
	default:
		for _, d := range r.Devices {
			fmt.Printf("  %s  %s\n", d.Path, d.Label)
		}
	}
}
