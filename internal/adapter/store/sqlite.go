package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	credentialRowID  = 1

	schemaCredential = `
CREATE TABLE IF NOT EXISTS credential (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_in INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    daily_counter INTEGER NOT NULL,
    last_update TEXT NOT NULL
);
`

	upsertCredentialSQL = `
		INSERT INTO credential (id, access_token, refresh_token, expires_in, expires_at, daily_counter, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token=excluded.access_token,
			refresh_token=excluded.refresh_token,
			expires_in=excluded.expires_in,
			expires_at=excluded.expires_at,
			daily_counter=excluded.daily_counter,
			last_update=excluded.last_update
	`

	selectCredentialSQL = `
		SELECT access_token, refresh_token, expires_in, expires_at, daily_counter, last_update
		FROM credential WHERE id=?
	`
)

// OpenSQLite opens or creates the database file and applies the schema
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaCredential); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// SQLiteRepository keeps the credential record in a single row (id=1)
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Load(ctx context.Context) (domain.CredentialRecord, error) {
	row := r.db.QueryRowContext(ctx, selectCredentialSQL, credentialRowID)

	var rec domain.CredentialRecord
	if err := row.Scan(
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.ExpiresIn,
		&rec.ExpiresAt,
		&rec.DailyCounter,
		&rec.LastUpdate,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CredentialRecord{}, ErrRecordNotFound
		}
		return domain.CredentialRecord{}, err
	}
	return rec, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, rec domain.CredentialRecord) error {
	_, err := r.db.ExecContext(ctx, upsertCredentialSQL,
		credentialRowID,
		rec.AccessToken,
		rec.RefreshToken,
		rec.ExpiresIn,
		rec.ExpiresAt,
		rec.DailyCounter,
		rec.LastUpdate,
	)
	return err
}

// ImportIfMissing copies the record from src when the table has no row yet.
// It returns true when a record was imported.
func (r *SQLiteRepository) ImportIfMissing(ctx context.Context, src port.CredentialRepository, logger *zap.Logger) (bool, error) {
	_, err := r.Load(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return false, err
	}
	rec, err := src.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("import credential record: %w", err)
	}
	if err := r.Save(ctx, rec); err != nil {
		return false, fmt.Errorf("import credential record: %w", err)
	}
	logger.Info("store: credential record imported into sqlite")
	return true, nil
}

// ensure interface compliance
var _ port.CredentialRepository = (*SQLiteRepository)(nil)
