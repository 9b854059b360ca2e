package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rohits-web03/lockbox/internal/api/handlers"
	"github.com/rohits-web03/lockbox/internal/api/services"
	"github.com/rohits-web03/lockbox/internal/filename"
	"github.com/rohits-web03/lockbox/internal/models"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/rohits-web03/lockbox/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPut struct {
	*repositories.MemoryBlobStore
}

func (*failingPut) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket unreachable")
}

type fixture struct {
	handler *handlers.FileHandler
	blobs   *repositories.MemoryBlobStore
	records *repositories.MemoryRecordStore
}

func newFixture(t *testing.T, blobStore repositories.BlobStore, namespaced bool, maxUpload int64) *fixture {
	t.Helper()
	blobs := repositories.NewMemoryBlobStore("http://blobs.local")
	if blobStore == nil {
		blobStore = blobs
	}
	records := repositories.NewMemoryRecordStore()

	gateway := repositories.NewBlobGateway(blobStore, time.Hour)
	repo := repositories.NewRecordRepository(records, namespaced, false)
	svc := services.NewFileService(gateway, repo, filename.Parse, zerolog.Nop())

	return &fixture{
		handler: handlers.NewFileHandler(svc, services.NewReconciler(gateway, repo, zerolog.Nop()), maxUpload, zerolog.Nop()),
		blobs:   blobs,
		records: records,
	}
}

func multipartRequest(t *testing.T, target, field, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) utils.Payload {
	t.Helper()
	var p utils.Payload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)

	rr := serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B"))

	require.Equal(t, http.StatusOK, rr.Code)
	p := decode(t, rr)
	assert.True(t, p.Success)
	assert.Equal(t, "File uploaded successfully", p.Message)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	data, ok := f.blobs.Object("acme/proj1/report.pdf")
	require.True(t, ok)
	assert.Equal(t, "B", string(data))
}

func TestUpload_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		message string
		code    string
	}{
		{
			name:    "invalid filename",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "file", "badname.txt", "x") },
			message: "Invalid filename format",
			code:    handlers.CodeInvalidFilenameFormat,
		},
		{
			name:    "wrong field",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "document", "acme_p_f.txt", "x") },
			message: "No file provided",
			code:    handlers.CodeInvalidRequest,
		},
		{
			name:    "not multipart",
			req:     func(t *testing.T) *http.Request { return jsonRequest("/upload", `{}`) },
			message: "Invalid file upload form",
			code:    handlers.CodeInvalidRequest,
		},
		{
			name:    "too large",
			req:     func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "file", "acme_p_f.txt", strings.Repeat("x", 2048)) },
			code:    handlers.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, false, 1024)

			rr := serve(f.handler.Upload, tt.req(t))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			p := decode(t, rr)
			assert.False(t, p.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, p.Message)
			}
			assert.Equal(t, tt.code, p.Code)

			keys, err := f.blobs.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, keys)
			recs, err := f.records.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestUpload_StorageFailure(t *testing.T) {
	f := newFixture(t, &failingPut{MemoryBlobStore: repositories.NewMemoryBlobStore("")}, false, 1<<20)

	rr := serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	p := decode(t, rr)
	assert.True(t, strings.HasPrefix(p.Message, "File upload failed: "), p.Message)
	assert.Contains(t, p.Message, "bucket unreachable")
	assert.Equal(t, handlers.CodeStorageError, p.Code)
	assert.Equal(t, services.StepPutBlob, p.Step)
}

func TestLockUnlock(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)
	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B")).Code)

	rr := serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "File locked successfully", decode(t, rr).Message)
	assert.True(t, f.storedRecord(t).IsLocked)

	rr = serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, f.storedRecord(t).IsLocked)

	rr = serve(f.handler.Unlock, jsonRequest("/unlock", `{"filename":"report.pdf"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "File unlocked successfully", decode(t, rr).Message)
	assert.False(t, f.storedRecord(t).IsLocked)
}

func TestLockUnlock_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
		code    string
	}{
		{"missing filename", `{}`, http.StatusBadRequest, "Filename is required in the request body", handlers.CodeMissingFilename},
		{"empty filename", `{"filename":""}`, http.StatusBadRequest, "Filename is required in the request body", handlers.CodeMissingFilename},
		{"empty body", ``, http.StatusBadRequest, "Filename is required in the request body", handlers.CodeMissingFilename},
		{"malformed body", `{"filename":`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"unknown field", `{"file":"report.pdf"}`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"wrong type", `{"filename":42}`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"trailing value", `{"filename":"report.pdf"}{"filename":"other.pdf"}`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"trailing garbage", `{"filename":"report.pdf"} junk`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"trailing brace", `{"filename":"report.pdf"}}`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"oversized body", `{"filename":"` + strings.Repeat("a", 2<<20) + `"}`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"not found", `{"filename":"ghost.pdf"}`, http.StatusNotFound, "File not found", handlers.CodeFileNotFound},
	}

	for _, tt := range tests {
		for _, op := range []string{"lock", "unlock"} {
			t.Run(op+" "+tt.name, func(t *testing.T) {
				f := newFixture(t, nil, false, 1<<20)
				h := f.handler.Lock
				if op == "unlock" {
					h = f.handler.Unlock
				}

				rr := serve(h, jsonRequest("/"+op, tt.body))

				require.Equal(t, tt.status, rr.Code)
				p := decode(t, rr)
				assert.False(t, p.Success)
				assert.Equal(t, tt.message, p.Message)
				assert.Equal(t, tt.code, p.Code)
			})
		}
	}
}

func TestLock_TrailingWhitespaceAccepted(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)
	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B")).Code)

	rr := serve(f.handler.Lock, jsonRequest("/lock", "{\"filename\":\"report.pdf\"}\n"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, f.storedRecord(t).IsLocked)
}

func TestLock_NamespacedRequiresIDs(t *testing.T) {
	f := newFixture(t, nil, true, 1<<20)
	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B")).Code)

	rr := serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, handlers.CodeMissingNamespace, decode(t, rr).Code)

	rr = serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf","company_id":"acme","project_id":"proj1"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf","company_id":"acme","project_id":"proj2"}`))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOverwrite(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)
	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "v1")).Code)
	require.Equal(t, http.StatusOK, serve(f.handler.Lock, jsonRequest("/lock", `{"filename":"report.pdf"}`)).Code)

	rr := serve(f.handler.Overwrite, multipartRequest(t, "/overwrite", "file", "acme_proj1_report.pdf", "v2"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "File updated successfully", decode(t, rr).Message)
	assert.False(t, f.storedRecord(t).IsLocked)
	data, _ := f.blobs.Object("acme/proj1/report.pdf")
	assert.Equal(t, "v2", string(data))
}

func TestOverwrite_Errors(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)

	rr := serve(f.handler.Overwrite, multipartRequest(t, "/overwrite", "file", "acme_report.pdf", "x"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid filename format", decode(t, rr).Message)

	rr = serve(f.handler.Overwrite, multipartRequest(t, "/overwrite", "file", "acme_proj1_ghost.pdf", "x"))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "File not found", decode(t, rr).Message)

	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "acme")).Code)
	rr = serve(f.handler.Overwrite, multipartRequest(t, "/overwrite", "file", "globex_proj9_report.pdf", "globex"))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, f.storedRecord(t).DownloadLink, "acme/proj1/report.pdf")
	_, ok := f.blobs.Object("globex/proj9/report.pdf")
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, nil, false, 1<<20)
	require.Equal(t, http.StatusOK, serve(f.handler.Upload, multipartRequest(t, "/upload", "file", "acme_proj1_report.pdf", "B")).Code)

	rr := serve(f.handler.Reconcile, httptest.NewRequest(http.MethodGet, "/reconcile", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Stores are consistent", decode(t, rr).Message)

	require.NoError(t, f.blobs.Put(context.Background(), "acme/proj1/stray.bin", strings.NewReader("x"), 1, ""))
	rr = serve(f.handler.Reconcile, httptest.NewRequest(http.MethodGet, "/reconcile", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Stores are inconsistent", decode(t, rr).Message)
}

func (f *fixture) storedRecord(t *testing.T) models.FileRecord {
	t.Helper()
	recs, err := f.records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	return recs[0]
}
