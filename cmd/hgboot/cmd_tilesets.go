package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"hgboot/internal/tilesets"

	"github.com/spf13/cobra"
)

var (
	tilesetDB    string
	tilesetsJSON bool
)

// tilesetsCmd lists what higlass-server has registered
var tilesetsCmd = &cobra.Command{
	Use:   "tilesets",
	Short: "List tilesets registered in the higlass-server database",
	RunE:  runTilesets,
}

func runTilesets(cmd *cobra.Command, args []string) error {
	path := tilesetDB
	if path == "" {
		path = cfg.Paths.ReadinessFile
	}

	store, err := tilesets.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	if err := store.Ping(ctx); err != nil {
		return err
	}
	list, err := store.List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tilesetsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []tilesets.Tileset{}
		}
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No tilesets registered")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tNAME\tFILETYPE\tDATATYPE\tCOORDSYSTEM")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.UUID, t.Name, t.FileType, t.DataType, t.CoordSystem)
	}
	return w.Flush()
}
