package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var configSavePath string

// configCmd shows the configuration after file and environment are merged
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Prints the configuration hgboot would run with, after the YAML file and the
container environment are merged. The API key is masked.

With --save the effective configuration is written to a file instead, which
can then be passed back with --config.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configSavePath != "" {
		if err := cfg.Save(configSavePath); err != nil {
			return err
		}
		logger.Info("configuration saved", zap.String("path", configSavePath))
		return nil
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
