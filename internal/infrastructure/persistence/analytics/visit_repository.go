package analytics

import (
	"encoding/json"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/collectorapi"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/security"
)

// SQLVisitRepository is the SQL-based store for visit summaries and
// migrated visitor records.
type SQLVisitRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLVisitRepository creates the repository and ensures its schema.
func NewSQLVisitRepository(db *database.DB, logger *logging.ChanneledLogger) (*SQLVisitRepository, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			guest_id TEXT NOT NULL,
			fingerprint_hash TEXT,
			visit_number INTEGER NOT NULL,
			reason TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_ms INTEGER,
			click_count INTEGER,
			move_count INTEGER,
			scroll_count INTEGER,
			total_interactions INTEGER,
			pages TEXT,
			created_at DATETIME NOT NULL
		)`

	if _, err := db.Exec(schema); err != nil {
		logger.Database().Error("Failed to create visits table", "error", err.Error())
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_visits_guest ON visits (guest_id, started_at)`); err != nil {
		return nil, err
	}

	return &SQLVisitRepository{db: db, logger: logger}, nil
}

// Create saves one visit summary.
func (r *SQLVisitRepository) Create(payload *collectorapi.VisitPayload) error {
	const query = `
		INSERT INTO visits (id, session_id, guest_id, fingerprint_hash, visit_number, reason, started_at, ended_at, duration_ms, click_count, move_count, scroll_count, total_interactions, pages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	pages, err := json.Marshal(payload.PagesVisited)
	if err != nil {
		return err
	}

	guestID, fingerprint := "", ""
	if payload.Guest != nil {
		guestID = payload.Guest.GuestID
		fingerprint = payload.Guest.FingerprintHash
	}

	var endedAt any
	if payload.EndedAt != nil {
		endedAt = payload.EndedAt.UTC()
	}

	_, err = r.db.Exec(
		query,
		security.GenerateULID(),
		payload.SessionID,
		guestID,
		fingerprint,
		payload.VisitNumber,
		string(payload.Reason),
		payload.StartedAt.UTC(),
		endedAt,
		payload.DurationMs,
		payload.ClickCount,
		payload.MoveCount,
		payload.ScrollCount,
		payload.TotalInteractions,
		string(pages),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Failed to insert visit", "error", err.Error(), "sessionId", payload.SessionID)
	}
	return err
}

// CreateVisitorRecords saves migrated fallback visitor records in one
// transaction, skipping session IDs already present so reruns cannot
// duplicate remote rows.
func (r *SQLVisitRepository) CreateVisitorRecords(records []collectorapi.VisitorRecord) (int, error) {
	const query = `
		INSERT INTO visits (id, session_id, guest_id, visit_number, reason, started_at, click_count, move_count, scroll_count, total_interactions, created_at)
		SELECT ?, ?, ?, ?, 'migrated', ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM visits WHERE session_id = ? AND reason = 'migrated')`

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, rec := range records {
		res, err := tx.Exec(
			query,
			security.GenerateULID(),
			rec.SessionID,
			rec.GuestID,
			rec.VisitNumber,
			rec.RecordedAt.UTC(),
			rec.ClickCount,
			rec.MoveCount,
			rec.ScrollCount,
			rec.ClickCount+rec.MoveCount+rec.ScrollCount,
			time.Now().UTC(),
			rec.SessionID,
		)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountForGuest returns how many visit rows exist for a guest.
func (r *SQLVisitRepository) CountForGuest(guestID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM visits WHERE guest_id = ?`, guestID).Scan(&count)
	return count, err
}
