package repositories_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/lockbox/internal/config"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/files/")

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>files</Name><IsTruncated>false</IsTruncated>`)
		for k := range f.objects {
			b.WriteString("<Contents><Key>" + k + "</Key></Contents>")
		}
		b.WriteString("</ListBucketResult>")
		_, _ = io.WriteString(w, b.String())
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = string(data)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3Store(t *testing.T) (*repositories.S3BlobStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return repositories.NewS3BlobStore(config.S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "files",
		Region:          "us-east-1",
	}), fake
}

func TestS3BlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, fake := newS3Store(t)

	exists, err := store.Exists(ctx, "acme/proj1/report.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "acme/proj1/report.pdf", strings.NewReader("content"), 7, "application/pdf"))
	assert.Equal(t, "content", fake.objects["acme/proj1/report.pdf"])

	exists, err = store.Exists(ctx, "acme/proj1/report.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/proj1/report.pdf"}, keys)

	require.NoError(t, store.Delete(ctx, "acme/proj1/report.pdf"))
	assert.Empty(t, fake.objects)
}

func TestS3BlobStore_SignedURL(t *testing.T) {
	store, _ := newS3Store(t)

	url, err := store.SignedURL(context.Background(), "acme/proj1/report.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "/files/acme/proj1/report.pdf")
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestS3BlobStore_GatewayDeleteMissing(t *testing.T) {
	store, _ := newS3Store(t)
	gateway := repositories.NewBlobGateway(store, time.Hour)

	err := gateway.Delete(context.Background(), reportName)
	require.ErrorIs(t, err, repositories.ErrBlobNotFound)
}
