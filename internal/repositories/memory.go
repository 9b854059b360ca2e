package repositories

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rohits-web03/lockbox/internal/models"
)

// MemoryBlobStore is a BlobStore kept in process memory. Used for local
// development and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	return &MemoryBlobStore{
		baseURL: baseURL,
		objects: map[string][]byte{},
	}
}

func (m *MemoryBlobStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryBlobStore) SignedURL(_ context.Context, key string, expires time.Duration) (string, error) {
	q := url.Values{}
	q.Set("expires", fmt.Sprint(time.Now().Add(expires).Unix()))
	return m.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (m *MemoryBlobStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Object returns a copy of the stored bytes.
func (m *MemoryBlobStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// MemoryRecordStore is a RecordStore kept in process memory. Records are
// returned in insertion order.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records []models.FileRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{}
}

func (m *MemoryRecordStore) Insert(_ context.Context, rec *models.FileRecord) error {
	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now

	m.mu.Lock()
	m.records = append(m.records, *rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecordStore) Upsert(_ context.Context, rec *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i := range m.records {
		r := &m.records[i]
		if r.CompanyID == rec.CompanyID && r.ProjectID == rec.ProjectID && r.Filename == rec.Filename {
			r.DownloadLink = rec.DownloadLink
			r.IsLocked = rec.IsLocked
			r.UpdatedAt = now
			*rec = *r
			return nil
		}
	}

	rec.CreatedAt, rec.UpdatedAt = now, now
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryRecordStore) Query(_ context.Context, match Match, limit int) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.FileRecord
	for _, r := range m.records {
		if !match.matches(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRecordStore) Update(_ context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		if patch.IsLocked != nil {
			m.records[i].IsLocked = *patch.IsLocked
		}
		if patch.DownloadLink != nil {
			m.records[i].DownloadLink = *patch.DownloadLink
		}
		m.records[i].UpdatedAt = time.Now()
		return nil
	}
	return ErrFileNotFound
}

func (m *MemoryRecordStore) List(_ context.Context) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FileRecord(nil), m.records...), nil
}
