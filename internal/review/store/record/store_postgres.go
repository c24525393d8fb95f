package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// Schema contains the DDL the postgres store expects. Applied by deployment
// migrations and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	id UUID PRIMARY KEY,
	survey_id TEXT NOT NULL,
	response_id TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	assigned_user_id UUID,
	created_at TIMESTAMPTZ NOT NULL,
	last_modified_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	version BIGINT NOT NULL DEFAULT 0,
	UNIQUE (survey_id, response_id)
);
CREATE TABLE IF NOT EXISTS record_audit (
	record_id UUID NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	seq INT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	actor_id UUID,
	action TEXT NOT NULL,
	field TEXT NOT NULL DEFAULT '',
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (record_id, seq)
);
CREATE INDEX IF NOT EXISTS records_status_idx ON records (status);
`

const recordColumns = `id, survey_id, response_id, payload, status, assigned_user_id, created_at, last_modified_at, completed_at, version`

// PostgresStore persists records and their audit trails in PostgreSQL.
// Execute serializes per record with SELECT ... FOR UPDATE; the status write
// and the audit append commit in one transaction so a reader never observes
// one without the other.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a record and its existing audit entries (the import entry).
func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(rec.ID), string(rec.SurveyID), string(rec.ResponseID), payload, string(rec.Status),
		nullableUser(rec.AssignedUserID), rec.CreatedAt, rec.LastModifiedAt, rec.CompletedAt, rec.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert record: %w", err)
	}
	if err := insertAuditEntries(ctx, tx, rec.ID, 0, rec.Audit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create record: %w", err)
	}
	return nil
}

// FindByID loads a record with its full audit trail.
func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	return s.findOne(ctx, s.db, `SELECT `+recordColumns+` FROM records WHERE id = $1`, uuid.UUID(recordID))
}

// FindByProvenance looks a record up by its upstream identifiers.
func (s *PostgresStore) FindByProvenance(ctx context.Context, surveyID id.SurveyID, responseID id.ResponseID) (*models.Record, error) {
	return s.findOne(ctx, s.db, `SELECT `+recordColumns+` FROM records WHERE survey_id = $1 AND response_id = $2`,
		string(surveyID), string(responseID))
}

// Execute runs validate then mutate with the record row locked (FOR UPDATE),
// then persists the mutation and any appended audit entries in the same
// transaction. The version check is kept as a guard against writers that
// bypass the row lock; a mismatch surfaces as sentinel.ErrConflict.
func (s *PostgresStore) Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rec, err := s.findOne(ctx, tx, `SELECT `+recordColumns+` FROM records WHERE id = $1 FOR UPDATE`, uuid.UUID(recordID))
	if err != nil {
		return nil, err
	}
	loadedVersion := rec.Version
	auditLen := len(rec.Audit)

	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)
	rec.Version++

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE records
		SET payload = $2, status = $3, assigned_user_id = $4,
			last_modified_at = $5, completed_at = $6, version = $7
		WHERE id = $1 AND version = $8
	`, uuid.UUID(rec.ID), payload, string(rec.Status), nullableUser(rec.AssignedUserID),
		rec.LastModifiedAt, rec.CompletedAt, rec.Version, loadedVersion)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	} else if n == 0 {
		return nil, sentinel.ErrConflict
	}
	if err := insertAuditEntries(ctx, tx, rec.ID, auditLen, rec.Audit); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return rec, nil
}

// Delete removes a record; audit rows cascade.
func (s *PostgresStore) Delete(ctx context.Context, recordID id.RecordID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, uuid.UUID(recordID))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	} else if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of records per workflow status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.Status(status)] = count
	}
	return counts, rows.Err()
}

// ListByStatus returns all records in the given status with audit trails.
func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rec := range out {
		if rec.Audit, err = s.loadAudit(ctx, s.db, rec.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) findOne(ctx context.Context, q querier, query string, args ...any) (*models.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec.Audit, err = s.loadAudit(ctx, q, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) loadAudit(ctx context.Context, q querier, recordID id.RecordID) ([]models.AuditEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT occurred_at, actor_id, action, field, old_value, new_value, notes
		FROM record_audit WHERE record_id = $1 ORDER BY seq
	`, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("load audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var actor uuid.NullUUID
		if err := rows.Scan(&e.Timestamp, &actor, &e.Action, &e.Field, &e.OldValue, &e.NewValue, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if actor.Valid {
			e.ActorID = id.UserID(actor.UUID)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec      models.Record
		recID    uuid.UUID
		survey   string
		response string
		payload  []byte
		status   string
		assigned uuid.NullUUID
		complete sql.NullTime
	)
	err := row.Scan(&recID, &survey, &response, &payload, &status, &assigned,
		&rec.CreatedAt, &rec.LastModifiedAt, &complete, &rec.Version)
	if err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(recID)
	rec.SurveyID = id.SurveyID(survey)
	rec.ResponseID = id.ResponseID(response)
	rec.Status = models.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if assigned.Valid {
		owner := id.UserID(assigned.UUID)
		rec.AssignedUserID = &owner
	}
	if complete.Valid {
		completed := complete.Time
		rec.CompletedAt = &completed
	}
	return &rec, nil
}

func insertAuditEntries(ctx context.Context, tx *sql.Tx, recordID id.RecordID, startSeq int, entries []models.AuditEntry) error {
	for i := startSeq; i < len(entries); i++ {
		e := entries[i]
		var actor uuid.NullUUID
		if !e.ActorID.IsNil() {
			actor = uuid.NullUUID{UUID: uuid.UUID(e.ActorID), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO record_audit (record_id, seq, occurred_at, actor_id, action, field, old_value, new_value, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.UUID(recordID), i, e.Timestamp, actor, e.Action, e.Field, e.OldValue, e.NewValue, e.Notes)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullableUser(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}
