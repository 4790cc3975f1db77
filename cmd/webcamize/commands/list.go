package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/webcamize/internal/capture"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List detected cameras",
	Long: `List all cameras gphoto2 can detect.

The model name shown here can be passed to --camera.`,
	Example: `  # List cameras in table format (default)
  webcamize list

  # List cameras in JSON format
  webcamize list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cameras, err := capture.Detect(cmd.Context(), capture.ExecRunner, cfg.Camera.Gphoto2Path)
	if err != nil {
		return fmt.Errorf("failed to detect cameras: %w", err)
	}

	switch listFormat {
	case "json":
		if cameras == nil {
			cameras = []capture.Camera{}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cameras)
	case "table":
		return printCameras(cameras)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printCameras(cameras []capture.Camera) error {
	if len(cameras) == 0 {
		fmt.Println("No cameras detected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPORT")
	fmt.Fprintln(w, "-----\t----")
	for _, c := range cameras {
		fmt.Fprintf(w, "%s\t%s\n", c.Model, c.Port)
	}
	return w.Flush()
}
