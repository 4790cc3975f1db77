package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/webcamize/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage webcamize configuration",
	Long:  `View and manage webcamize configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current webcamize configuration.`,
	Example: `  # Show configuration as YAML (default)
  webcamize config show

  # Show configuration as JSON
  webcamize config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value. Keys use dots for nesting.`,
	Example: `  # Cap the frame rate
  webcamize config set fps 30

  # Always use /dev/video4
  webcamize config set output.device_number 4

  # Convert to RGB24
  webcamize config set convert.pixel_format rgb24`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get the frame rate cap
  webcamize config get fps

  # Get the camera section
  webcamize config get camera`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func openConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return configMgr, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := openConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := openConfig()
	if err != nil {
		return err
	}
	if err := configMgr.SetValue(key, value); err != nil {
		return err
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	configMgr, err := openConfig()
	if err != nil {
		return err
	}

	value, err := configMgr.GetValue(args[0])
	if err != nil {
		return err
	}

	if section, ok := value.(map[string]interface{}); ok {
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(section)
	}
	fmt.Println(value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := openConfig()
	if err != nil {
		return err
	}

	fmt.Println(configMgr.GetConfigPath())
	return nil
}
