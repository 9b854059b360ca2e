package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rohits-web03/lockbox/internal/filename"
	"github.com/rohits-web03/lockbox/internal/models"
)

var ErrFileNotFound = errors.New("file not found")

// Match is a field-equality filter. Empty company and project ids are left
// out of the filter unless Namespaced is set.
type Match struct {
	Filename   string
	CompanyID  string
	ProjectID  string
	Namespaced bool
}

// Fields returns the filter as field name to value, using the stored
// field names.
func (m Match) Fields() map[string]any {
	fields := map[string]any{"filename": m.Filename}
	if m.Namespaced {
		fields["company_id"] = m.CompanyID
		fields["project_id"] = m.ProjectID
	}
	return fields
}

func (m Match) matches(r models.FileRecord) bool {
	if r.Filename != m.Filename {
		return false
	}
	if m.Namespaced {
		return r.CompanyID == m.CompanyID && r.ProjectID == m.ProjectID
	}
	return true
}

// Patch lists the mutable record fields; nil fields are left untouched.
type Patch struct {
	IsLocked     *bool
	DownloadLink *string
}

// RecordStore is a document store of file records queryable by field.
type RecordStore interface {
	Insert(ctx context.Context, rec *models.FileRecord) error
	// Upsert replaces the record sharing rec's company, project and
	// filename, or inserts rec. rec is updated with the stored record.
	Upsert(ctx context.Context, rec *models.FileRecord) error
	Query(ctx context.Context, match Match, limit int) ([]models.FileRecord, error)
	Update(ctx context.Context, id string, patch Patch) error
	List(ctx context.Context) ([]models.FileRecord, error)
}

// RecordRepository creates and finds file records.
//
// In filename lookup mode records are found by filename alone and the
// first match wins when several namespaces share a filename. Namespaced
// mode matches the full company/project/filename key.
type RecordRepository struct {
	store      RecordStore
	namespaced bool
	upsert     bool
}

func NewRecordRepository(store RecordStore, namespaced, upsert bool) *RecordRepository {
	return &RecordRepository{store: store, namespaced: namespaced, upsert: upsert}
}

func (r *RecordRepository) Namespaced() bool {
	return r.namespaced
}

// Create stores rec and returns its id. Without upsert every call inserts
// a new record, so repeated uploads leave duplicates behind.
func (r *RecordRepository) Create(ctx context.Context, rec *models.FileRecord) (string, error) {
	rec.ID = uuid.NewString()
	if r.upsert {
		if err := r.store.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("upsert record: %w", err)
		}
		return rec.ID, nil
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return rec.ID, nil
}

// Find returns the first record for name, or ErrFileNotFound.
func (r *RecordRepository) Find(ctx context.Context, name filename.Name) (*models.FileRecord, error) {
	return r.find(ctx, name, r.namespaced)
}

// FindExact matches the full company/project/filename key whatever the
// lookup mode.
func (r *RecordRepository) FindExact(ctx context.Context, name filename.Name) (*models.FileRecord, error) {
	return r.find(ctx, name, true)
}

func (r *RecordRepository) find(ctx context.Context, name filename.Name, namespaced bool) (*models.FileRecord, error) {
	recs, err := r.store.Query(ctx, Match{
		Filename:   name.Filename,
		CompanyID:  name.CompanyID,
		ProjectID:  name.ProjectID,
		Namespaced: namespaced,
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrFileNotFound
	}
	return &recs[0], nil
}

func (r *RecordRepository) SetLocked(ctx context.Context, rec *models.FileRecord, locked bool) error {
	if err := r.store.Update(ctx, rec.ID, Patch{IsLocked: &locked}); err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	rec.IsLocked = locked
	return nil
}

// SetContent records new content: it refreshes the download link and
// clears the lock.
func (r *RecordRepository) SetContent(ctx context.Context, rec *models.FileRecord, downloadLink string) error {
	unlocked := false
	if err := r.store.Update(ctx, rec.ID, Patch{IsLocked: &unlocked, DownloadLink: &downloadLink}); err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	rec.IsLocked = unlocked
	rec.DownloadLink = downloadLink
	return nil
}

func (r *RecordRepository) List(ctx context.Context) ([]models.FileRecord, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}
