package services

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nearby_server/models"
	"nearby_server/utils"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ConnectPostgres opens the database and brings the schema up to date.
func ConnectPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.Info("database schema ready", "version", version, "dirty", dirty)
	return nil
}

var selectUsers = `SELECT u.* FROM users u`

type userRow struct {
	UserID               string     `db:"user_id"`
	Name                 string     `db:"name"`
	Username             string     `db:"username"`
	Bio                  string     `db:"bio"`
	Age                  int        `db:"age"`
	PhotoKey             string     `db:"photo_key"`
	Email                string     `db:"email"`
	IsDiscoverable       bool       `db:"is_discoverable"`
	IsActive             bool       `db:"is_active"`
	DiscoveryRangeMeters int        `db:"discovery_range_meters"`
	ShowAge              *bool      `db:"show_age"`
	ShowLocation         *bool      `db:"show_location"`
	ShowLastSeen         *bool      `db:"show_last_seen"`
	LastSeen             *time.Time `db:"last_seen"`

	Latitude           *float64   `db:"latitude"`
	Longitude          *float64   `db:"longitude"`
	GPSUpdatedAt       *time.Time `db:"gps_updated_at"`
	NetworkID          *string    `db:"network_id"`
	WiFiUpdatedAt      *time.Time `db:"wifi_updated_at"`
	DeviceID           *string    `db:"device_id"`
	BluetoothUpdatedAt *time.Time `db:"bluetooth_updated_at"`
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func (r *userRow) toProfile() *models.UserProfile {
	p := &models.UserProfile{
		UserID:               r.UserID,
		Name:                 r.Name,
		Username:             r.Username,
		Bio:                  r.Bio,
		Age:                  r.Age,
		PhotoKey:             r.PhotoKey,
		Email:                r.Email,
		IsDiscoverable:       r.IsDiscoverable,
		IsActive:             r.IsActive,
		DiscoveryRangeMeters: r.DiscoveryRangeMeters,
		Privacy: models.PrivacySettings{
			ShowAge:      r.ShowAge,
			ShowLocation: r.ShowLocation,
			ShowLastSeen: r.ShowLastSeen,
		},
		LastSeen: r.LastSeen,
	}
	if r.Latitude != nil && r.Longitude != nil {
		p.GPS = &models.GPSSignal{Latitude: *r.Latitude, Longitude: *r.Longitude, UpdatedAt: derefTime(r.GPSUpdatedAt)}
	}
	if r.NetworkID != nil && *r.NetworkID != "" {
		p.WiFi = &models.WiFiSignal{NetworkID: *r.NetworkID, UpdatedAt: derefTime(r.WiFiUpdatedAt)}
	}
	if r.DeviceID != nil && *r.DeviceID != "" {
		p.Bluetooth = &models.BluetoothSignal{DeviceID: *r.DeviceID, UpdatedAt: derefTime(r.BluetoothUpdatedAt)}
	}
	return p
}

func rowsToProfiles(rows []userRow) []*models.UserProfile {
	out := make([]*models.UserProfile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toProfile())
	}
	return out
}

// PostgresSignalStore keeps signals in the users table.
type PostgresSignalStore struct {
	db *sqlx.DB
}

// NewPostgresSignalStore creates a new PostgresSignalStore instance
func NewPostgresSignalStore(db *sqlx.DB) *PostgresSignalStore {
	return &PostgresSignalStore{db: db}
}

func (s *PostgresSignalStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, selectUsers+" WHERE u.user_id = $1;", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toProfile(), nil
}

// SaveSignal overwrites one channel's columns and last_seen with a single UPDATE.
func (s *PostgresSignalStore) SaveSignal(ctx context.Context, userID string, update models.SignalUpdate) (*models.UserProfile, error) {
	var (
		stmt string
		args []any
	)
	ts := update.UpdatedAt()
	switch {
	case update.GPS != nil:
		stmt = `UPDATE users SET latitude = $1, longitude = $2, gps_updated_at = $3, last_seen = $3
		WHERE user_id = $4 RETURNING *;`
		args = []any{update.GPS.Latitude, update.GPS.Longitude, ts, userID}
	case update.WiFi != nil:
		stmt = `UPDATE users SET network_id = $1, wifi_updated_at = $2, last_seen = $2
		WHERE user_id = $3 RETURNING *;`
		args = []any{update.WiFi.NetworkID, ts, userID}
	case update.Bluetooth != nil:
		stmt = `UPDATE users SET device_id = $1, bluetooth_updated_at = $2, last_seen = $2
		WHERE user_id = $3 RETURNING *;`
		args = []any{update.Bluetooth.DeviceID, ts, userID}
	default:
		return nil, fmt.Errorf("empty signal update for user %s", userID)
	}

	var row userRow
	err := s.db.GetContext(ctx, &row, stmt, args...)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toProfile(), nil
}

const discoverableWhere = " WHERE u.is_discoverable AND u.is_active AND u.user_id <> $1"

func (s *PostgresSignalStore) FindNearby(ctx context.Context, box utils.BoundingBox, f CandidateFilter) ([]*models.UserProfile, error) {
	query := selectUsers + discoverableWhere + " AND u.latitude BETWEEN $2 AND $3"
	if box.WrapsAntimeridian() {
		query += " AND (u.longitude >= $4 OR u.longitude <= $5)"
	} else {
		query += " AND u.longitude BETWEEN $4 AND $5"
	}
	args := []any{f.ExcludeUserID, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon}
	if !f.Since.IsZero() {
		query += " AND u.gps_updated_at >= $6"
		args = append(args, f.Since)
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query+";", args...); err != nil {
		return nil, err
	}
	return rowsToProfiles(rows), nil
}

func (s *PostgresSignalStore) FindByNetwork(ctx context.Context, networkID string, f CandidateFilter) ([]*models.UserProfile, error) {
	query := selectUsers + discoverableWhere + `
	AND u.network_id = $2 AND u.wifi_updated_at >= $3
	ORDER BY u.wifi_updated_at DESC, u.user_id
	LIMIT NULLIF($4, 0);`

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, f.ExcludeUserID, networkID, f.Since, f.Limit); err != nil {
		return nil, err
	}
	return rowsToProfiles(rows), nil
}

func (s *PostgresSignalStore) FindByDevices(ctx context.Context, deviceIDs []string, f CandidateFilter) ([]*models.UserProfile, error) {
	query := selectUsers + discoverableWhere + `
	AND u.device_id = ANY($2) AND u.bluetooth_updated_at >= $3
	ORDER BY u.bluetooth_updated_at DESC, u.user_id
	LIMIT NULLIF($4, 0);`

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, f.ExcludeUserID, pq.Array(deviceIDs), f.Since, f.Limit); err != nil {
		return nil, err
	}
	return rowsToProfiles(rows), nil
}
