// Package analytics provides the concrete SQL-based repositories backing
// the collector API (interactions and visits).
package analytics

import (
	"database/sql"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/security"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// SQLInteractionRepository is the SQL-based store for interaction points.
type SQLInteractionRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLInteractionRepository creates the repository and ensures its schema.
func NewSQLInteractionRepository(db *database.DB, logger *logging.ChanneledLogger) (*SQLInteractionRepository, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			page TEXT NOT NULL,
			type TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			value INTEGER NOT NULL,
			viewport_width INTEGER,
			page_height INTEGER,
			guest_id TEXT,
			session_id TEXT,
			visit_number INTEGER,
			created_at DATETIME NOT NULL
		)`

	if _, err := db.Exec(schema); err != nil {
		logger.Database().Error("Failed to create interactions table", "error", err.Error())
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_interactions_page_time ON interactions (page, created_at)`); err != nil {
		return nil, err
	}

	return &SQLInteractionRepository{db: db, logger: logger}, nil
}

// Create saves one delivered interaction event.
func (r *SQLInteractionRepository) Create(payload *collectorapi.InteractionPayload) error {
	const query = `
		INSERT INTO interactions (id, page, type, x, y, value, viewport_width, page_height, guest_id, session_id, visit_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ev := payload.Event
	x, y := float64(ev.PageX), float64(ev.PageY)
	if x == 0 && y == 0 {
		x, y = float64(ev.ViewportX), float64(ev.ViewportY)
	}

	start := time.Now()
	_, err := r.db.Exec(
		query,
		security.GenerateULID(),
		ev.Page,
		string(ev.Type),
		x,
		y,
		ev.Value,
		ev.ViewportWidth,
		ev.PageHeight,
		payload.GuestID,
		payload.SessionID,
		payload.VisitNumber,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Failed to insert interaction", "error", err.Error(), "page", ev.Page)
		return err
	}

	if duration := time.Since(start); duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "collector")
	}
	return nil
}

// CreateBatch saves migrated heatmap points for one page in a single
// transaction.
func (r *SQLInteractionRepository) CreateBatch(page string, points []heatmap.Point) (int, error) {
	const query = `
		INSERT INTO interactions (id, page, type, x, y, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, p := range points {
		kind := "move"
		if p.Value >= config.ClickPointWeight {
			kind = "click"
		}
		createdAt := time.Now().UTC()
		if p.Timestamp != nil {
			createdAt = p.Timestamp.UTC()
		}
		if _, err := tx.Exec(query, security.GenerateULID(), page, kind, p.X, p.Y, p.Value, createdAt); err != nil {
			tx.Rollback()
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// FetchPoints returns the time-ordered points for a page, optionally
// bounded by a date range. The dataset carries the maximum point weight and
// the largest capture surface recorded with the points, so renderers can
// rescale onto their own surface. Migrated legacy rows have no recorded
// surface and contribute nothing to it.
func (r *SQLInteractionRepository) FetchPoints(page string, startDate, endDate *time.Time) (*heatmap.Dataset, error) {
	query := `
		SELECT x, y, value, viewport_width, page_height, created_at
		FROM interactions
		WHERE page = ?`
	args := []any{page}

	if startDate != nil {
		query += ` AND created_at >= ?`
		args = append(args, startDate.UTC())
	}
	if endDate != nil {
		query += ` AND created_at <= ?`
		args = append(args, endDate.UTC())
	}
	query += ` ORDER BY created_at ASC`

	start := time.Now()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query interactions", "error", err.Error(), "page", page)
		return nil, err
	}
	defer rows.Close()

	dataset := &heatmap.Dataset{Page: page}
	for rows.Next() {
		var p heatmap.Point
		var createdAt time.Time
		var viewportWidth, pageHeight sql.NullInt64
		if err := rows.Scan(&p.X, &p.Y, &p.Value, &viewportWidth, &pageHeight, &createdAt); err != nil {
			return nil, err
		}
		ts := createdAt
		p.Timestamp = &ts
		if p.Value > dataset.Max {
			dataset.Max = p.Value
		}
		if w := float64(viewportWidth.Int64); w > dataset.CapturedViewportWidth {
			dataset.CapturedViewportWidth = w
		}
		if h := float64(pageHeight.Int64); h > dataset.CapturedPageHeight {
			dataset.CapturedPageHeight = h
		}
		dataset.Points = append(dataset.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if duration := time.Since(start); duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "collector")
	}
	return dataset, nil
}

// CountForPage returns the number of stored interactions for a page.
func (r *SQLInteractionRepository) CountForPage(page string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM interactions WHERE page = ?`, page).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}
