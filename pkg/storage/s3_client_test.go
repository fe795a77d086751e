package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) S3Config {
	return S3Config{
		Bucket:          "traceability",
		Region:          "ap-southeast-1",
		Endpoint:        endpoint,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	}
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestS3Client_PresignedURL(t *testing.T) {
	client, err := NewS3Client(context.Background(), testConfig("http://localhost:9000"))
	require.NoError(t, err)

	raw, err := client.GetPresignedURL(context.Background(), "exports/b-001.csv", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/traceability/exports/b-001.csv", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3Client_Upload(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, ctype, body = r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(data)
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewS3Client(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	err = client.Upload(context.Background(), "exports/b-001.csv", strings.NewReader("code,land\n"), "text/csv")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/traceability/exports/b-001.csv", path)
	assert.Equal(t, "text/csv", ctype)
	assert.Contains(t, body, "code,land")
}

func TestS3Client_UploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewS3Client(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	err = client.Upload(context.Background(), "k", strings.NewReader("x"), "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload k")
}
