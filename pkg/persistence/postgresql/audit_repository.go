package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stageflow/stageflow/pkg/models"
)

// AuditRepository handles audit-related database operations.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// AppendEntry records an audit entry.
func (r *AuditRepository) AppendEntry(ctx context.Context, entry *models.AuditEntry) error {
	var changesJSON []byte

	if len(entry.Changes) > 0 {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}

		changesJSON = data
	}

	query := `
		INSERT INTO audit_entries (id, recorded_at, operation, user_id,
content_uid, template_id, success, changes, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.Operation,
		entry.UserID,
		entry.ContentUID,
		nullable(entry.TemplateID),
		entry.Success,
		changesJSON,
		nullable(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// EntriesByContentUID returns the audit trail for one piece of content, in
// recording order.
func (r *AuditRepository) EntriesByContentUID(ctx context.Context, contentUID string) ([]*models.AuditEntry, error) {
	return r.query(ctx, "content_uid", contentUID)
}

// EntriesByUser returns every entry recorded for operations by the user, in
// recording order.
func (r *AuditRepository) EntriesByUser(ctx context.Context, userID string) ([]*models.AuditEntry, error) {
	return r.query(ctx, "user_id", userID)
}

func (r *AuditRepository) query(ctx context.Context, column, value string) ([]*models.AuditEntry, error) {
	query := `
		SELECT
			id
		  , recorded_at
		  , operation
		  , user_id
		  , content_uid
		  , template_id
		  , success
		  , changes
		  , error
		FROM audit_entries
		WHERE ` + column + ` = $1
		ORDER BY recorded_at
	`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var (
			entry       models.AuditEntry
			templateID  sql.NullString
			errorDetail sql.NullString
			changesJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Operation,
			&entry.UserID,
			&entry.ContentUID,
			&templateID,
			&entry.Success,
			&changesJSON,
			&errorDetail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.TemplateID = templateID.String
		entry.Error = errorDetail.String

		if changesJSON != nil {
			if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
