// Package viewconf builds the initial HiGlass view configuration from the
// imported datasets and writes it where the server and front-end read it.
package viewconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hgboot/internal/importer"
)

// ProxyPlaceholder is replaced by the proxy URL at render time.
const ProxyPlaceholder = "$PROXY_URL"

const (
	localServer  = ProxyPlaceholder + "/api/v1"
	publicServer = "http://higlass.io/api/v1"
	tileSize     = 100
	domainMax    = 3200000000
)

// ViewConfig is the top-level HiGlass view configuration.
type ViewConfig struct {
	Editable           bool     `json:"editable"`
	ZoomFixed          bool     `json:"zoomFixed"`
	TrackSourceServers []string `json:"trackSourceServers"`
	ExportViewURL      string   `json:"exportViewUrl"`
	Views              []View   `json:"views"`
	ZoomLocks          Locks    `json:"zoomLocks"`
	LocationLocks      Locks    `json:"locationLocks"`
}

// View is one panel.
type View struct {
	Tracks         Tracks   `json:"tracks"`
	InitialXDomain [2]int64 `json:"initialXDomain"`
	InitialYDomain [2]int64 `json:"initialYDomain"`
	Layout         Layout   `json:"layout"`
}

// Tracks are the per-side track lists of a view.
type Tracks struct {
	Top    []Tile  `json:"top"`
	Left   []Tile  `json:"left"`
	Center []Track `json:"center"`
	Right  []Tile  `json:"right"`
	Bottom []Tile  `json:"bottom"`
}

// Track groups tiles; only the combined center track is produced.
type Track struct {
	Type     string `json:"type"`
	Position string `json:"position"`
	Contents []Tile `json:"contents"`
}

// Tile references one tileset.
type Tile struct {
	Name       string `json:"name"`
	Server     string `json:"server"`
	TilesetUID string `json:"tilesetUid"`
	Type       string `json:"type"`
	MaxZoom    *int   `json:"maxZoom"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Transforms []any  `json:"transforms"`
	Position   string `json:"position"`
}

// Layout is the panel grid placement.
type Layout struct {
	W      int  `json:"w"`
	H      int  `json:"h"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Moved  bool `json:"moved"`
	Static bool `json:"static"`
}

// Locks is an empty zoom or location lock table.
type Locks struct {
	LocksByViewUID map[string]any `json:"locksByViewUid"`
	LocksDict      map[string]any `json:"locksDict"`
}

func emptyLocks() Locks {
	return Locks{LocksByViewUID: map[string]any{}, LocksDict: map[string]any{}}
}

// New returns the skeleton configuration: one view with empty track lists.
func New() *ViewConfig {
	return &ViewConfig{
		Editable:           true,
		ZoomFixed:          false,
		TrackSourceServers: []string{localServer, publicServer},
		ExportViewURL:      "/api/v1/viewconfs/",
		Views: []View{{
			Tracks: Tracks{
				Top:    []Tile{},
				Left:   []Tile{},
				Center: []Track{},
				Right:  []Tile{},
				Bottom: []Tile{},
			},
			InitialXDomain: [2]int64{0, domainMax},
			InitialYDomain: [2]int64{0, domainMax},
			Layout:         Layout{W: 12, H: 12},
		}},
		ZoomLocks:     emptyLocks(),
		LocationLocks: emptyLocks(),
	}
}

// Synthesize places every descriptor into a fresh configuration in order.
func Synthesize(descriptors []importer.Descriptor) *ViewConfig {
	vc := New()
	for _, d := range descriptors {
		vc.Add(d)
	}
	return vc
}

// Add places one descriptor. Matrices share a single combined center track;
// vectors and bedlike datasets get a top tile and a vertical left tile.
func (vc *ViewConfig) Add(d importer.Descriptor) {
	tracks := &vc.Views[0].Tracks
	switch d.DataType {
	case importer.DataMatrix:
		if len(tracks.Center) == 0 {
			tracks.Center = append(tracks.Center, Track{
				Type:     "combined",
				Position: "center",
				Contents: []Tile{},
			})
		}
		tracks.Center[0].Contents = append(tracks.Center[0].Contents, newTile(d, d.TrackType, "center"))
	case importer.DataVector:
		tracks.Left = append(tracks.Left, newTile(d, strings.ReplaceAll(d.TrackType, "horizontal", "vertical"), "left"))
		tracks.Top = append(tracks.Top, newTile(d, d.TrackType, "top"))
	case importer.DataBedlike:
		tracks.Left = append(tracks.Left, newTile(d, "vertical-"+d.TrackType, "left"))
		tracks.Top = append(tracks.Top, newTile(d, d.TrackType, "top"))
	}
}

func newTile(d importer.Descriptor, trackType, position string) Tile {
	return Tile{
		Name:       d.Name,
		Server:     localServer,
		TilesetUID: d.UID,
		Type:       trackType,
		Width:      tileSize,
		Height:     tileSize,
		Transforms: []any{},
		Position:   position,
	}
}

// TileCount returns the number of tiles across all sides.
func (vc *ViewConfig) TileCount() int {
	n := 0
	for _, v := range vc.Views {
		n += len(v.Tracks.Top) + len(v.Tracks.Left) + len(v.Tracks.Right) + len(v.Tracks.Bottom)
		for _, t := range v.Tracks.Center {
			n += len(t.Contents)
		}
	}
	return n
}

// Render serializes the configuration as compact JSON with the proxy URL
// substituted. An empty proxy yields relative server paths.
func (vc *ViewConfig) Render(proxy string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(vc); err != nil {
		return nil, fmt.Errorf("failed to encode view config: %w", err)
	}

	escaped, err := json.Marshal(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proxy url: %w", err)
	}
	// Strip the quotes; the placeholder only ever appears inside strings.
	escaped = escaped[1 : len(escaped)-1]

	out := bytes.ReplaceAll(bytes.TrimRight(buf.Bytes(), "\n"), []byte(ProxyPlaceholder), escaped)
	return out, nil
}

// WriteFixture writes the rendered configuration as the server fixture.
func (vc *ViewConfig) WriteFixture(path, proxy string) error {
	data, err := vc.Render(proxy)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// ConfigJS renders the front-end configuration script.
func (vc *ViewConfig) ConfigJS(proxy, server string) ([]byte, error) {
	data, err := vc.Render(proxy)
	if err != nil {
		return nil, err
	}
	quoted, err := json.Marshal(server)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("window.HGAC_HOMEPAGE_DEMOS=false;\n")
	fmt.Fprintf(&buf, "window.HGAC_SERVER=%s;\n", quoted)
	fmt.Fprintf(&buf, "window.HGAC_DEFAULT_VIEW_CONFIG=%s;", data)
	return buf.Bytes(), nil
}

// WriteConfigJS writes the front-end configuration script.
func (vc *ViewConfig) WriteConfigJS(path, proxy, server string) error {
	data, err := vc.ConfigJS(proxy, server)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
