package storage_test

import (
	"testing"

	"app-bootstrap/core/storage"

	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
	}{
		{"PlainEndpoint", "localhost:9000", false},
		{"HTTPScheme", "http://localhost:9000", false},
		{"HTTPSScheme", "https://s3.amazonaws.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := storage.NewClient(storage.Config{
				Endpoint:  tt.endpoint,
				AccessKey: "testkey",
				SecretKey: "testsecret",
				UseSSL:    tt.useSSL,
				Bucket:    "packages",
				Region:    "us-east-1",
			})
			assert.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}
