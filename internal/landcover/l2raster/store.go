package l2raster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/landcover.report/internal/fsutil"
	"github.com/banshee-data/landcover.report/internal/security"
)

// ManifestName is the file that marks a stack directory as complete.
const ManifestName = "stack.json"

// Manifest describes a stack directory.
type Manifest struct {
	Name         string       `json:"name"`
	Lineage      string       `json:"lineage,omitempty"`
	RuleSet      string       `json:"ruleset,omitempty"`
	StartYear    int          `json:"start_year"`
	EndYear      int          `json:"end_year"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	GeoTransform GeoTransform `json:"geotransform"`
	Producer     string       `json:"producer,omitempty"`
}

// BandStore reads and writes a stack as stack.json + classification_<year>.tif
// files under one directory.
type BandStore struct {
	fs  fsutil.FileSystem
	dir string
}

// NewBandStore creates a store rooted at dir.
func NewBandStore(fsys fsutil.FileSystem, dir string) *BandStore {
	return &BandStore{fs: fsys, dir: dir}
}

// Dir returns the root directory.
func (b *BandStore) Dir() string { return b.dir }

func bandName(year int) string { return fmt.Sprintf("classification_%d.tif", year) }

// ReadStack loads the manifest and every year band.
func (b *BandStore) ReadStack() (*Stack, *Manifest, error) {
	data, err := b.fs.ReadFile(filepath.Join(b.dir, ManifestName))
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	s, err := NewStack(m.StartYear, m.EndYear, m.Width, m.Height)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest %s: %w", m.Name, err)
	}
	s.Geo = m.GeoTransform
	for i, year := range s.Years() {
		g, err := b.ReadLabelLayer(strings.TrimSuffix(bandName(year), ".tif"))
		if err != nil {
			return nil, nil, err
		}
		if err := s.Shape.Check(g.Shape); err != nil {
			return nil, nil, fmt.Errorf("band %d: %w", year, err)
		}
		s.Bands[i] = g
	}
	return s, &m, nil
}

// WriteStack persists every band and then the manifest. Bands are staged
// under temporary names and only renamed into place once all of them have
// been written; the manifest goes last. A failure removes staged files so
// the directory never carries a partial stack that reads as complete.
func (b *BandStore) WriteStack(s *Stack, m Manifest) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("write stack: %w", err)
	}
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("write stack: %w", err)
	}
	// An existing manifest would vouch for bands we are about to replace.
	manifestPath := filepath.Join(b.dir, ManifestName)
	if b.fs.Exists(manifestPath) {
		if err := b.fs.Remove(manifestPath); err != nil {
			return fmt.Errorf("write stack: remove old manifest: %w", err)
		}
	}

	var staged []string
	cleanup := func() {
		for _, p := range staged {
			_ = b.fs.Remove(p)
		}
	}
	for i, g := range s.Bands {
		var buf bytes.Buffer
		if err := EncodeBand(&buf, g); err != nil {
			cleanup()
			return fmt.Errorf("band %d: %w", s.StartYear+i, err)
		}
		tmp := filepath.Join(b.dir, bandName(s.StartYear+i)) + ".tmp"
		if err := b.fs.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
			cleanup()
			return fmt.Errorf("band %d: %w", s.StartYear+i, err)
		}
		staged = append(staged, tmp)
	}
	for _, tmp := range staged {
		if err := b.fs.Rename(tmp, strings.TrimSuffix(tmp, ".tmp")); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", tmp, err)
		}
	}

	m.StartYear, m.EndYear = s.StartYear, s.EndYear()
	m.Width, m.Height = s.Width, s.Height
	m.GeoTransform = s.Geo
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return fsutil.WriteFileAtomic(b.fs, manifestPath, data, 0o644)
}

// layerPath maps a layer name to its file. Names come from rule sets and
// must stay inside the directory.
func (b *BandStore) layerPath(name string) (string, error) {
	if err := security.ValidateLayerName(name); err != nil {
		return "", err
	}
	return filepath.Join(b.dir, name+".tif"), nil
}

// ReadLabelLayer reads <dir>/<name>.tif as a label grid.
func (b *BandStore) ReadLabelLayer(name string) (*Grid, error) {
	p, err := b.layerPath(name)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open layer %s: %w", name, err)
	}
	defer f.Close()
	g, err := DecodeBand(f)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	return g, nil
}

// ReadValueLayer reads <dir>/<name>.tif as a continuous grid.
func (b *BandStore) ReadValueLayer(name string, noData int, scale float64) (*ValueGrid, error) {
	p, err := b.layerPath(name)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open layer %s: %w", name, err)
	}
	defer f.Close()
	v, err := DecodeValues(f, noData, scale)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	return v, nil
}

// Layers lists the layer names present in the directory.
func (b *BandStore) Layers() ([]string, error) {
	names, err := b.fs.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list layers: %w", err)
	}
	var out []string
	for _, n := range names {
		if strings.HasSuffix(n, ".tif") {
			out = append(out, strings.TrimSuffix(n, ".tif"))
		}
	}
	return out, nil
}

// WriteLabelLayer atomically writes a single label grid as <dir>/<name>.tif.
func (b *BandStore) WriteLabelLayer(name string, g *Grid) error {
	p, err := b.layerPath(name)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write layer %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := EncodeBand(&buf, g); err != nil {
		return fmt.Errorf("layer %s: %w", name, err)
	}
	return fsutil.WriteFileAtomic(b.fs, p, buf.Bytes(), 0o644)
}

// WriteValueLayer atomically writes a continuous grid as a 16-bit TIFF.
func (b *BandStore) WriteValueLayer(name string, v *ValueGrid, noData uint16, scale float64) error {
	p, err := b.layerPath(name)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write layer %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := EncodeValues(&buf, v, noData, scale); err != nil {
		return fmt.Errorf("layer %s: %w", name, err)
	}
	return fsutil.WriteFileAtomic(b.fs, p, buf.Bytes(), 0o644)
}
