package main

import (
	"fmt"
	"os"

	"hgboot/internal/importer"
	"hgboot/internal/viewconf"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	descriptorsPath string
	writeViewConf   bool
)

// viewconfCmd renders a view config without touching Galaxy
var viewconfCmd = &cobra.Command{
	Use:   "viewconf",
	Short: "Render the default view config for a list of datasets",
	Long: `Reads dataset descriptors from YAML and prints the rendered view config.

Example descriptors file:
  - name: contacts
    uid: 1_contacts
    filetype: cooler
    datatype: matrix
    track_type: heatmap
    genome: hg19

With --write the fixture and config.js are written to their configured paths.`,
	RunE: runViewConf,
}

func loadDescriptors(path string) ([]importer.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptors: %w", err)
	}
	var descriptors []importer.Descriptor
	if err := yaml.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("failed to parse descriptors: %w", err)
	}
	for i, d := range descriptors {
		switch d.DataType {
		case importer.DataMatrix, importer.DataVector, importer.DataBedlike:
		default:
			return nil, fmt.Errorf("descriptor %d (%s): unknown datatype %q", i, d.UID, d.DataType)
		}
	}
	return descriptors, nil
}

func runViewConf(cmd *cobra.Command, args []string) error {
	descriptors, err := loadDescriptors(descriptorsPath)
	if err != nil {
		return err
	}
	vc := viewconf.Synthesize(descriptors)

	if !writeViewConf {
		out, err := vc.Render(cfg.ProxyURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if err := vc.WriteFixture(cfg.Paths.FixtureFile, cfg.ProxyURL); err != nil {
		return err
	}
	if err := vc.WriteConfigJS(cfg.Paths.ConfigJSFile, cfg.ProxyURL, cfg.WebServer.ServerOverride); err != nil {
		return err
	}
	logger.Info("view config written",
		zap.String("fixture", cfg.Paths.FixtureFile),
		zap.String("config_js", cfg.Paths.ConfigJSFile),
		zap.Int("tiles", vc.TileCount()))
	return nil
}
