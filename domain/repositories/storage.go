package repositories

import (
	"context"

	"github.com/voxkeep/voxkeep/domain/entities"
)

// StoreInfo is a diagnostic snapshot of the audio store, used by the
// maintenance sweep to decide whether a rebuild is needed.
type StoreInfo struct {
	RecordCount   int64 `json:"record_count"`
	SchemaVersion int   `json:"schema_version"`
	IsHealthy     bool  `json:"is_healthy"`
}

// AudioRepository defines data access methods for audio records.
//
// Create assigns the record's ID and CreatedAt. List returns records
// without their audio payload; callers sort by CreatedAt descending
// for presentation. Delete is idempotent.
type AudioRepository interface {
	Create(ctx context.Context, record *entities.AudioRecord) (int64, error)
	Get(ctx context.Context, id int64) (*entities.AudioRecord, error)
	List(ctx context.Context, query string) ([]*entities.AudioRecord, error)
	UpdateTranslation(ctx context.Context, id int64, translation string) error
	Delete(ctx context.Context, id int64) error
	Describe(ctx context.Context) (StoreInfo, error)
}
