package sqlite

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
)

// checkpointMagic prefixes every encoded stack.
const checkpointMagic = "LCK1"

// maxCheckpointYears bounds the band count a header may claim, so a
// corrupt blob cannot make DecodeStack allocate before the bands are read.
const maxCheckpointYears = 1000

// ErrCorruptCheckpoint is returned when a stored blob cannot be decoded.
var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

type checkpointHeader struct {
	StartYear int32
	Years     uint32
	Width     uint32
	Height    uint32
	Geo       [4]float64
}

// EncodeStack serialises a stack as a gzip stream: a fixed header followed
// by the raw label bytes of every band in year order.
func EncodeStack(s *l2raster.Stack) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	hdr := checkpointHeader{
		StartYear: int32(s.StartYear),
		Years:     uint32(s.Len()),
		Width:     uint32(s.Width),
		Height:    uint32(s.Height),
		Geo:       [4]float64{s.Geo.OriginX, s.Geo.OriginY, s.Geo.PixelWidth, s.Geo.PixelHeight},
	}
	if _, err := zw.Write([]byte(checkpointMagic)); err != nil {
		return nil, err
	}
	if err := binary.Write(zw, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("encode checkpoint header: %w", err)
	}
	row := make([]byte, s.Pixels())
	for _, b := range s.Bands {
		for i, l := range b.Cells {
			row[i] = byte(l)
		}
		if _, err := zw.Write(row); err != nil {
			return nil, fmt.Errorf("encode checkpoint band: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeStack inverts EncodeStack.
func DecodeStack(data []byte) (*l2raster.Stack, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	defer zr.Close()

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(zr, magic); err != nil || string(magic) != checkpointMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptCheckpoint)
	}
	var hdr checkpointHeader
	if err := binary.Read(zr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptCheckpoint, err)
	}
	if hdr.Years == 0 || hdr.Years > maxCheckpointYears || hdr.Width == 0 || hdr.Height == 0 ||
		uint64(hdr.Width)*uint64(hdr.Height) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: header %dx%d x %d years", ErrCorruptCheckpoint, hdr.Width, hdr.Height, hdr.Years)
	}
	start := int(hdr.StartYear)
	s, err := l2raster.NewStack(start, start+int(hdr.Years)-1, int(hdr.Width), int(hdr.Height))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	s.Geo = l2raster.GeoTransform{OriginX: hdr.Geo[0], OriginY: hdr.Geo[1], PixelWidth: hdr.Geo[2], PixelHeight: hdr.Geo[3]}
	row := make([]byte, s.Pixels())
	for i, b := range s.Bands {
		if _, err := io.ReadFull(zr, row); err != nil {
			return nil, fmt.Errorf("%w: band %d: %v", ErrCorruptCheckpoint, start+i, err)
		}
		for j, v := range row {
			b.Cells[j] = l1labels.Label(v)
		}
	}
	return s, nil
}

// CheckpointStore persists intermediate stacks attached to registered assets.
type CheckpointStore struct {
	db     *sql.DB
	assets *AssetStore
}

// NewCheckpointStore creates a CheckpointStore sharing assets' database.
func NewCheckpointStore(db *sql.DB, assets *AssetStore) *CheckpointStore {
	return &CheckpointStore{db: db, assets: assets}
}

// Save registers a (or updates it) and stores s as its checkpoint.
func (c *CheckpointStore) Save(a *Asset, s *l2raster.Stack) error {
	blob, err := EncodeStack(s)
	if err != nil {
		return err
	}
	a.StartYear, a.EndYear = s.StartYear, s.EndYear()
	a.Width, a.Height = s.Width, s.Height
	if err := c.assets.Insert(a); err != nil {
		return err
	}
	now := c.assets.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		_, err := c.db.Exec(`
			INSERT INTO checkpoints (asset_id, encoding, bands, created_at)
			VALUES (?, 'gzip', ?, ?)
			ON CONFLICT(asset_id) DO UPDATE SET
				bands = excluded.bands,
				created_at = excluded.created_at`,
			a.AssetID, blob, now)
		if err != nil {
			return fmt.Errorf("save checkpoint %s: %w", a.Name, err)
		}
		return nil
	})
}

// Load returns the checkpoint stored for a lineage name.
func (c *CheckpointStore) Load(name string) (*l2raster.Stack, error) {
	var blob []byte
	err := c.db.QueryRow(`
		SELECT c.bands FROM checkpoints c
		JOIN assets a ON a.asset_id = c.asset_id
		WHERE a.name = ?`, name).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no checkpoint for %s", ErrAssetNotFound, name)
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	s, err := DecodeStack(blob)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", name, err)
	}
	return s, nil
}

// Has reports whether a checkpoint exists for name.
func (c *CheckpointStore) Has(name string) (bool, error) {
	var n int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM checkpoints c
		JOIN assets a ON a.asset_id = c.asset_id
		WHERE a.name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check checkpoint %s: %w", name, err)
	}
	return n > 0, nil
}
