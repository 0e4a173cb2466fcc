package artifacts

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// FailureRecord captures where and why a task failed.
type FailureRecord struct {
	Stage  string `json:"stage"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// StatusRecord is the durable status snapshot written next to the task's
// artifacts. The registry database is rebuilt from these files on startup,
// so the file on disk is the source of truth.
type StatusRecord struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     *FailureRecord `json:"error,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	VideoURL  string         `json:"video_url"`
	Style     string         `json:"style"`
	Model     string         `json:"model,omitempty"`
	Extras    string         `json:"extras,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SaveStatus atomically writes the task's status snapshot.
func (s *Store) SaveStatus(record *StatusRecord) error {
	if record == nil || record.TaskID == "" {
		return errors.New("artifacts: status record requires a task id")
	}
	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	return s.SaveJSON(record.TaskID, FileStatus, record)
}

// LoadStatus reads the task's status snapshot.
func (s *Store) LoadStatus(taskID string) (*StatusRecord, error) {
	var record StatusRecord
	if err := s.LoadJSON(taskID, FileStatus, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ScanStatuses walks the store root and returns every readable status
// snapshot, oldest first. Directories without a parseable status.json are
// skipped; a half-written snapshot must not prevent startup.
func (s *Store) ScanStatuses() ([]*StatusRecord, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("artifacts: scan root: %w", err)
	}
	records := make([]*StatusRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.LoadStatus(entry.Name())
		if err != nil {
			continue
		}
		if record.TaskID != entry.Name() {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
