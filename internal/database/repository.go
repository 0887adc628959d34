package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/google/uuid"
)

type Run struct {
	ID          uuid.UUID `json:"id"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
	Date        string    `json:"date"`
	Folder      string    `json:"folder"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error"`
	PSDChecksum string    `json:"psd_checksum"`
	JPGChecksum string    `json:"jpg_checksum"`
	DurationMs  int64     `json:"duration_ms"`
	StartedAt   time.Time `json:"started_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunFromRecord converts a finished run into a row with a fresh id.
func RunFromRecord(rec poster.RunRecord) *Run {
	return &Run{
		ID:          uuid.New(),
		City:        rec.Request.City,
		Venue:       rec.Request.Venue,
		Date:        rec.Request.Date,
		Folder:      rec.Request.Folder,
		Succeeded:   rec.Succeeded,
		Error:       rec.Error,
		PSDChecksum: rec.LayeredChecksum,
		JPGChecksum: rec.WebChecksum,
		DurationMs:  rec.Duration.Milliseconds(),
		StartedAt:   rec.StartedAt,
	}
}

func SaveRun(ctx context.Context, db *sql.DB, r *Run) error {
	query := `
		INSERT INTO poster_runs (id, city, venue, event_date, folder, succeeded, error, psd_checksum, jpg_checksum, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.ExecContext(ctx, query, r.ID, r.City, r.Venue, r.Date, r.Folder, r.Succeeded, r.Error, r.PSDChecksum, r.JPGChecksum, r.DurationMs, r.StartedAt)
	return err
}

func GetRecentRuns(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, city, venue, event_date, folder, succeeded, error, psd_checksum, jpg_checksum, duration_ms, started_at, created_at FROM poster_runs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.City, &r.Venue, &r.Date, &r.Folder, &r.Succeeded, &r.Error, &r.PSDChecksum, &r.JPGChecksum, &r.DurationMs, &r.StartedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLastSuccessByChecksum finds the latest successful run that produced a
// layered file with the given checksum.
func GetLastSuccessByChecksum(ctx context.Context, db *sql.DB, checksum string) (*Run, error) {
	var r Run
	query := "SELECT id, city, venue, event_date, folder, succeeded, error, psd_checksum, jpg_checksum, duration_ms, started_at, created_at FROM poster_runs WHERE psd_checksum = $1 AND succeeded ORDER BY started_at DESC LIMIT 1"
	err := db.QueryRowContext(ctx, query, checksum).Scan(&r.ID, &r.City, &r.Venue, &r.Date, &r.Folder, &r.Succeeded, &r.Error, &r.PSDChecksum, &r.JPGChecksum, &r.DurationMs, &r.StartedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RunRepository records poster runs in Postgres.
type RunRepository struct {
	DB *sql.DB
}

func (r *RunRepository) RecordRun(ctx context.Context, rec poster.RunRecord) error {
	return SaveRun(ctx, r.DB, RunFromRecord(rec))
}

func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return GetRecentRuns(ctx, r.DB, limit)
}

func (r *RunRepository) LastSuccessByChecksum(ctx context.Context, checksum string) (*Run, error) {
	return GetLastSuccessByChecksum(ctx, r.DB, checksum)
}
