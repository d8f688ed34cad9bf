package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/landcover.report/internal/landcover/lineage"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

// ErrAssetNotFound is returned when no asset matches a lookup.
var ErrAssetNotFound = errors.New("asset not found")

// Asset is one registered stage output. Name is the full lineage string;
// Prefix, Stage and StageVersion are derived from it on insert.
type Asset struct {
	AssetID       string          `json:"asset_id"`
	Name          string          `json:"name"`
	Prefix        string          `json:"prefix"`
	Stage         string          `json:"stage"`
	StageVersion  int             `json:"stage_version"`
	RuleSet       string          `json:"ruleset"`
	StartYear     int             `json:"start_year"`
	EndYear       int             `json:"end_year"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Producer      string          `json:"producer"`
	Path          string          `json:"path,omitempty"`
	ChangedPixels int64           `json:"changed_pixels"`
	ReportJSON    json.RawMessage `json:"report,omitempty"`
	CreatedAt     int64           `json:"created_at"`
}

// AssetStore provides persistence for registered assets.
type AssetStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewAssetStore creates an AssetStore using the wall clock.
func NewAssetStore(db *sql.DB) *AssetStore {
	return &AssetStore{db: db, clock: timeutil.RealClock{}}
}

// NewAssetStoreWithClock creates an AssetStore with an injected clock.
func NewAssetStoreWithClock(db *sql.DB, clock timeutil.Clock) *AssetStore {
	return &AssetStore{db: db, clock: clock}
}

const assetColumns = `asset_id, name, prefix, stage, stage_version, ruleset,
	start_year, end_year, width, height, producer, path,
	changed_pixels, report_json, created_at`

// Insert registers an asset. If AssetID is empty, a UUID is generated.
// Registering a name that already exists replaces its metadata in place
// and keeps the original asset ID, so checkpoints stay attached.
func (s *AssetStore) Insert(a *Asset) error {
	name, err := lineage.Parse(a.Name)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	a.Prefix = name.Prefix
	a.Stage, a.StageVersion = "", 0
	if last, ok := name.Latest(); ok {
		a.Stage, a.StageVersion = last.Stage, last.Version
	}
	if a.AssetID == "" {
		a.AssetID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = s.clock.Now().UnixNano()
	}
	report := "{}"
	if len(a.ReportJSON) > 0 {
		report = string(a.ReportJSON)
	}

	err = retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO assets (`+assetColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				ruleset = excluded.ruleset,
				start_year = excluded.start_year,
				end_year = excluded.end_year,
				width = excluded.width,
				height = excluded.height,
				producer = excluded.producer,
				path = excluded.path,
				changed_pixels = excluded.changed_pixels,
				report_json = excluded.report_json,
				created_at = excluded.created_at`,
			a.AssetID, a.Name, a.Prefix, a.Stage, a.StageVersion, a.RuleSet,
			a.StartYear, a.EndYear, a.Width, a.Height, a.Producer, a.Path,
			a.ChangedPixels, report, a.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", a.Name, err)
	}
	if err := s.db.QueryRow(`SELECT asset_id FROM assets WHERE name = ?`, a.Name).Scan(&a.AssetID); err != nil {
		return fmt.Errorf("read back asset %s: %w", a.Name, err)
	}
	return nil
}

// Get returns a single asset by ID.
func (s *AssetStore) Get(assetID string) (*Asset, error) {
	return s.getOne(`SELECT `+assetColumns+` FROM assets WHERE asset_id = ?`, assetID)
}

// GetByName returns the asset registered under a lineage name.
func (s *AssetStore) GetByName(name string) (*Asset, error) {
	return s.getOne(`SELECT `+assetColumns+` FROM assets WHERE name = ?`, name)
}

// LatestForPrefix returns the most recently registered asset sharing a
// lineage prefix.
func (s *AssetStore) LatestForPrefix(prefix string) (*Asset, error) {
	return s.getOne(`SELECT `+assetColumns+` FROM assets WHERE prefix = ?
		ORDER BY created_at DESC, name DESC LIMIT 1`, prefix)
}

func (s *AssetStore) getOne(query string, arg string) (*Asset, error) {
	a, err := scanAsset(s.db.QueryRow(query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, arg)
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return a, nil
}

// List returns assets ordered by creation time, oldest first. An empty
// prefix lists everything.
func (s *AssetStore) List(prefix string) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []interface{}
	if prefix != "" {
		query += ` WHERE prefix = ?`
		args = append(args, prefix)
	}
	query += ` ORDER BY created_at ASC, name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Delete removes an asset and, through the foreign key, its checkpoint.
func (s *AssetStore) Delete(name string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM assets WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("delete asset: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var report string
	err := row.Scan(
		&a.AssetID, &a.Name, &a.Prefix, &a.Stage, &a.StageVersion, &a.RuleSet,
		&a.StartYear, &a.EndYear, &a.Width, &a.Height, &a.Producer, &a.Path,
		&a.ChangedPixels, &report, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if report != "" {
		a.ReportJSON = json.RawMessage(report)
	}
	return &a, nil
}
