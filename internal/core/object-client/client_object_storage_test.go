package objectclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-2",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
}

func TestCreateSignedURL(t *testing.T) {
	c := NewS3ClientFromConfig(testAWSConfig(), "curriculum-private", "")

	raw, err := c.CreateSignedURL(context.Background(), "curriculum/1700000000000-biology.pdf", 60*time.Second)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, u.Host, "curriculum-private")
	assert.Equal(t, "/curriculum/1700000000000-biology.pdf", u.Path)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestUploadAndDelete_PathStyleEndpoint(t *testing.T) {
	var (
		putBody string
		calls   []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	c := NewS3ClientFromConfig(testAWSConfig(), "bucket", server.URL)

	require.NoError(t, c.UploadFile(context.Background(), "curriculum/a.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"))
	require.NoError(t, c.DeleteFile(context.Background(), "curriculum/a.pdf"))

	assert.Equal(t, []string{"PUT /bucket/curriculum/a.pdf", "DELETE /bucket/curriculum/a.pdf"}, calls)
	assert.Contains(t, putBody, "%PDF-1.4")
}
