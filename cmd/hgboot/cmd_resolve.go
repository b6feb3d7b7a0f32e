package main

import (
	"errors"
	"fmt"

	"hgboot/internal/galaxy"
	"hgboot/internal/startup"

	"github.com/spf13/cobra"
)

// resolveCmd runs only the Galaxy connection step
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Find a reachable Galaxy URL and print it",
	Long: `Substitutes the Docker gateway into GALAXY_URL, validates it against the
history API, and falls back to http://<gateway>:<GALAXY_WEB_PORT>/<path>.`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	g := cfg.Galaxy
	switch {
	case g.URL == "":
		return errors.New("GALAXY_URL not configured")
	case g.APIKey == "":
		return errors.New("API_KEY not configured")
	case g.HistoryID == "":
		return errors.New("HISTORY_ID not configured")
	}

	ctx, stop := signalContext()
	defer stop()

	src, err := startup.NewConnector(cfg, newExecutor(), logger).Connect(ctx, galaxy.ConnectOptions{
		URLTemplate: g.URL,
		WebPort:     g.WebPort,
		APIKey:      g.APIKey,
		HistoryID:   g.HistoryID,
	})
	if err != nil {
		return err
	}
	if b, ok := src.(interface{ BaseURL() string }); ok {
		fmt.Fprintln(cmd.OutOrStdout(), b.BaseURL())
	}
	return nil
}
