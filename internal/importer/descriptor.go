// Package importer pulls the requested Galaxy datasets into the viewer's
// media directory and classifies them for tile serving.
package importer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DataType is the tile backend's coarse data class.
type DataType string

const (
	DataMatrix  DataType = "matrix"
	DataVector  DataType = "vector"
	DataBedlike DataType = "bedlike"
)

// ErrUnsupportedExtension is returned by Classify for unknown extensions.
var ErrUnsupportedExtension = errors.New("unsupported dataset extension")

// Kind is the ingestion and rendering classification of an extension.
type Kind struct {
	FileType  string
	DataType  DataType
	TrackType string
}

// kinds maps Galaxy extensions to tileset kinds. Anything else is skipped.
var kinds = map[string]Kind{
	"mcool":        {FileType: "cooler", DataType: DataMatrix, TrackType: "heatmap"},
	"bigwig":       {FileType: "bigwig", DataType: DataVector, TrackType: "horizontal-bar"},
	"beddb.sqlite": {FileType: "beddb", DataType: DataBedlike, TrackType: "bedlike"},
}

// Classify maps a Galaxy extension to its Kind.
func Classify(extension string) (Kind, error) {
	k, ok := kinds[strings.ToLower(extension)]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnsupportedExtension, extension)
	}
	return k, nil
}

// Extensions lists the supported extensions in sorted order.
func Extensions() []string {
	return slices.Sorted(maps.Keys(kinds))
}

// Descriptor is one imported, classified dataset.
type Descriptor struct {
	Name      string   `json:"name" yaml:"name"`
	UID       string   `json:"uid" yaml:"uid"`
	Path      string   `json:"path" yaml:"path"`
	FileType  string   `json:"filetype" yaml:"filetype"`
	DataType  DataType `json:"datatype" yaml:"datatype"`
	TrackType string   `json:"track_type" yaml:"track_type"`
	Genome    string   `json:"genome" yaml:"genome"`
}

// SanitizeUID builds the tileset uid "<hid>_<name>" with every character
// outside [A-Za-z0-9_] replaced by an underscore.
func SanitizeUID(hid int, name string) string {
	raw := fmt.Sprintf("%d_%s", hid, name)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
