package main

import (
	"fmt"
	"os"

	"hgboot/internal/config"
	"hgboot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hgboot",
	Short: "HiGlass container startup for Galaxy interactive environments",
	Long: `hgboot prepares a HiGlass container launched from Galaxy.

It waits for the higlass-server database, pulls the requested datasets out of
the Galaxy history, registers them as tilesets, writes the initial view
configuration and hands the front-end over to nginx.

Configuration comes from an optional YAML file overridden by the container
environment: GALAXY_URL, GALAXY_WEB_PORT, API_KEY, HISTORY_ID, ADDITIONAL_IDS,
PROXY_URL and DEBUG.

Run without a subcommand to perform the full startup sequence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Debug = true
		}
		l, err := logging.New(loaded.Logging.Options())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg, logger = loaded, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runStartup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging (same as DEBUG=true)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.Flags().BoolVar(&waitForChildren, "wait", false, "Wait for every launched process before exiting")
	runCmd.Flags().BoolVar(&waitForChildren, "wait", false, "Wait for every launched process before exiting")

	viewconfCmd.Flags().StringVar(&descriptorsPath, "descriptors", "", "YAML file listing dataset descriptors (required)")
	viewconfCmd.Flags().BoolVar(&writeViewConf, "write", false, "Write the fixture and config.js instead of printing")
	viewconfCmd.MarkFlagRequired("descriptors")

	tilesetsCmd.Flags().StringVar(&tilesetDB, "db", "", "Tileset database (default: the readiness file)")
	tilesetsCmd.Flags().BoolVar(&tilesetsJSON, "json", false, "Print tilesets as JSON")

	configCmd.Flags().StringVar(&configSavePath, "save", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(viewconfCmd)
	rootCmd.AddCommand(tilesetsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
