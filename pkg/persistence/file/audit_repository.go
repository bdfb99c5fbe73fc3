package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
)

// AuditRepository appends audit entries to a JSON Lines file. Queries scan
// the whole trail, which keeps the format trivially greppable and is fine for
// the audit volumes a single deployment produces.
type AuditRepository struct {
	root string
	mu   sync.Mutex
}

// NewAuditRepository creates a new file-backed audit repository.
func NewAuditRepository(root string) *AuditRepository {
	return &AuditRepository{root: root}
}

// AppendEntry records an audit entry at the end of the trail.
func (ar *AuditRepository) AppendEntry(_ context.Context, entry *models.AuditEntry) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(ar.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry %s: %w", entry.ID, err)
	}

	file, err := os.OpenFile(ar.trailPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry %s: %w", entry.ID, err)
	}

	return nil
}

// EntriesByContentUID returns the audit trail for one piece of content, in
// append order.
func (ar *AuditRepository) EntriesByContentUID(ctx context.Context, contentUID string) ([]*models.AuditEntry, error) {
	return ar.scan(ctx, func(entry *models.AuditEntry) bool {
		return entry.ContentUID == contentUID
	})
}

// EntriesByUser returns every entry recorded for operations by the user, in
// append order.
func (ar *AuditRepository) EntriesByUser(ctx context.Context, userID string) ([]*models.AuditEntry, error) {
	return ar.scan(ctx, func(entry *models.AuditEntry) bool {
		return entry.UserID == userID
	})
}

func (ar *AuditRepository) trailPath() string {
	return path.Join(ar.root, "audit.jsonl")
}

func (ar *AuditRepository) scan(_ context.Context, match func(*models.AuditEntry) bool) ([]*models.AuditEntry, error) {
	file, err := os.Open(ar.trailPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.AuditEntry, 0), nil
		}

		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer file.Close()

	matched := make([]*models.AuditEntry, 0)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry models.AuditEntry

		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}

		if match(&entry) {
			matched = append(matched, &entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}

	return matched, nil
}
