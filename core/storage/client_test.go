package storage_test

import (
	"testing"
	"time"

	"moodle-sync/core/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
	}{
		{"PlainEndpoint", storage.Config{Endpoint: "localhost:9000", AccessKey: "key", SecretKey: "secret", Bucket: "moodle-sync"}},
		{"EndpointWithHTTP", storage.Config{Endpoint: "http://localhost:9000", AccessKey: "key", SecretKey: "secret"}},
		{"EndpointWithHTTPS", storage.Config{Endpoint: "https://s3.amazonaws.com", AccessKey: "key", SecretKey: "secret", Region: "us-east-1"}},
		{"ExplicitTimeout", storage.Config{Endpoint: "localhost:9000", TimeoutSeconds: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := storage.NewClient(tt.cfg)
			assert.NoError(t, err)
			assert.NotNil(t, client)
		})
	}

	_, err := storage.NewClient(storage.Config{Endpoint: "http://"})
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		host     string
		secure   bool
	}{
		{"localhost:9000", false, "localhost:9000", false},
		{"localhost:9000", true, "localhost:9000", true},
		{"http://minio.internal:9000/", false, "minio.internal:9000", false},
		{"https://s3.amazonaws.com", false, "s3.amazonaws.com", true},
	}
	for _, tt := range tests {
		host, secure, err := storage.Endpoint(storage.Config{Endpoint: tt.endpoint, UseSSL: tt.useSSL})
		require.NoError(t, err, tt.endpoint)
		assert.Equal(t, tt.host, host, tt.endpoint)
		assert.Equal(t, tt.secure, secure, tt.endpoint)
	}

	for _, bad := range []string{"", "https://", "minio.internal:9000/reports"} {
		_, _, err := storage.Endpoint(storage.Config{Endpoint: bad})
		assert.Error(t, err, bad)
	}
}

func TestConfig_Timeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, storage.Config{}.Timeout())
	assert.Equal(t, 5*time.Second, storage.Config{TimeoutSeconds: 5}.Timeout())
}
