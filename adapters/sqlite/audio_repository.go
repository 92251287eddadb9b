package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/domain/repositories"
	"github.com/voxkeep/voxkeep/internal/retry"
)

// AudioRepository implements repositories.AudioRepository on the
// embedded database.
type AudioRepository struct {
	client *Client
	logger *zap.Logger
	policy retry.Policy
}

var _ repositories.AudioRepository = (*AudioRepository)(nil)

// NewAudioRepository creates a repository on top of a lifecycle client.
func NewAudioRepository(client *Client, logger *zap.Logger) *AudioRepository {
	return &AudioRepository{
		client: client,
		logger: logger,
		policy: retry.DefaultPolicy,
	}
}

// Create validates and persists a record, assigning its ID and
// CreatedAt. Write failures are retried with a fresh connection each
// attempt; exhausted retries surface a StoreError carrying the last
// cause.
func (r *AudioRepository) Create(ctx context.Context, record *entities.AudioRecord) (int64, error) {
	if record == nil {
		return 0, entities.ErrInvalidInput
	}
	record.SourceText = entities.TruncateSourceText(record.SourceText)
	if record.VoiceProfile == "" {
		record.VoiceProfile = entities.DefaultVoiceProfile
	}
	if err := record.Validate(); err != nil {
		return 0, err
	}

	createdAt := time.Now().UTC()
	var id int64
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		db, err := r.client.Conn(ctx)
		if err != nil {
			return err
		}
		res, err := db.ExecContext(ctx,
			`INSERT INTO audios (audio_data, source_text, translation, voice_profile, created_at, byte_size, duration_seconds)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.AudioData,
			record.SourceText,
			record.Translation,
			record.VoiceProfile,
			createdAt,
			int64(len(record.AudioData)),
			nullFloat(record.DurationSeconds),
		)
		if err != nil {
			// Do not trust a handle that just failed a write.
			r.client.Invalidate()
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, entities.NewStoreError("create", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	record.ByteSize = int64(len(record.AudioData))
	r.logger.Info("Audio record saved",
		zap.Int64("id", id),
		zap.Int64("byteSize", record.ByteSize),
		zap.String("voiceProfile", record.VoiceProfile))
	return id, nil
}

// Get returns a full record including its audio payload.
func (r *AudioRepository) Get(ctx context.Context, id int64) (*entities.AudioRecord, error) {
	db, err := r.client.Conn(ctx)
	if err != nil {
		return nil, entities.NewStoreError("get", err)
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, audio_data, source_text, translation, voice_profile, created_at, byte_size, duration_seconds
		 FROM audios WHERE id = ?`, id)

	record, err := scanRecord(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, entities.NewStoreError("get", err)
	}
	return record, nil
}

// List returns record metadata without materializing audio payloads.
// An optional query filters by source text substring. Order is left to
// the caller.
func (r *AudioRepository) List(ctx context.Context, query string) ([]*entities.AudioRecord, error) {
	db, err := r.client.Conn(ctx)
	if err != nil {
		return nil, entities.NewStoreError("list", err)
	}

	stmt := `SELECT id, source_text, translation, voice_profile, created_at, byte_size, duration_seconds
	         FROM audios`
	args := []interface{}{}
	if query != "" {
		stmt += ` WHERE source_text LIKE ?`
		args = append(args, "%"+query+"%")
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, entities.NewStoreError("list", err)
	}
	defer rows.Close()

	records := make([]*entities.AudioRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows, false)
		if err != nil {
			return nil, entities.NewStoreError("list", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, entities.NewStoreError("list", err)
	}
	return records, nil
}

// UpdateTranslation overwrites only the translation field.
func (r *AudioRepository) UpdateTranslation(ctx context.Context, id int64, translation string) error {
	db, err := r.client.Conn(ctx)
	if err != nil {
		return entities.NewStoreError("update", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE audios SET translation = ? WHERE id = ?`, translation, id)
	if err != nil {
		return entities.NewStoreError("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return entities.NewStoreError("update", err)
	}
	if affected == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// Delete removes a record by ID. Deleting a nonexistent ID is not an
// error.
func (r *AudioRepository) Delete(ctx context.Context, id int64) error {
	db, err := r.client.Conn(ctx)
	if err != nil {
		return entities.NewStoreError("delete", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM audios WHERE id = ?`, id); err != nil {
		return entities.NewStoreError("delete", err)
	}
	return nil
}

// Describe reports a diagnostic snapshot of the store.
func (r *AudioRepository) Describe(ctx context.Context) (repositories.StoreInfo, error) {
	db, err := r.client.Conn(ctx)
	if err != nil {
		return repositories.StoreInfo{}, entities.NewStoreError("describe", err)
	}

	info := repositories.StoreInfo{}
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return info, entities.NewStoreError("describe", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audios`).Scan(&info.RecordCount); err != nil {
		return info, entities.NewStoreError("describe", err)
	}
	info.IsHealthy = info.SchemaVersion == currentSchemaVersion
	return info, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner, withPayload bool) (*entities.AudioRecord, error) {
	var (
		record   entities.AudioRecord
		duration sql.NullFloat64
	)
	var err error
	if withPayload {
		err = row.Scan(
			&record.ID,
			&record.AudioData,
			&record.SourceText,
			&record.Translation,
			&record.VoiceProfile,
			&record.CreatedAt,
			&record.ByteSize,
			&duration,
		)
	} else {
		err = row.Scan(
			&record.ID,
			&record.SourceText,
			&record.Translation,
			&record.VoiceProfile,
			&record.CreatedAt,
			&record.ByteSize,
			&duration,
		)
	}
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		record.DurationSeconds = &duration.Float64
	}
	return &record, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
