package domain

import "time"

// Backup run statuses.
const (
	BackupRequested = "requested"
	BackupRunning   = "running"
	BackupCompleted = "completed"
	BackupFailed    = "failed"
	BackupRestoring = "restoring"
	BackupRestored  = "restored"
)

// BackupRun is one backup (or restore) of a tenant's data, tracked for
// the super-admin backup dashboard. The actual dump is produced by an
// external worker; this service is the system of record for run state.
type BackupRun struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Status      string    `json:"status"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	StorageKey  string    `json:"storage_key,omitempty"`
	RequestedBy string    `json:"requested_by"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
