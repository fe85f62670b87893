package s3

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestImageKey(t *testing.T) {
	key, err := ImageKey("alice", "image/PNG", time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "messages/alice/2026/05/04/"))
	require.True(t, strings.HasSuffix(key, ".png"))

	_, err = ImageKey("alice", "application/pdf", time.Now())
	require.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestNewClientValidatesInput(t *testing.T) {
	_, err := NewClient(Options{Bucket: "b"})
	require.Error(t, err)
	_, err = NewClient(Options{Endpoint: "http://localhost:9000"})
	require.Error(t, err)

	c, err := NewClient(Options{Endpoint: "http://localhost:9000", Bucket: "media", PublicBaseURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com", c.publicBaseURL)
}

func TestObjectURLAndHost(t *testing.T) {
	require.Equal(t, "http://h:9000/media/messages/a.png", objectURL("http://h:9000/", "media", "/messages/a.png"))
	require.Equal(t, "h:9000", hostOf("http://h:9000"))
	require.Equal(t, "h:9000", hostOf("h:9000"))
}

func TestNoopUploader(t *testing.T) {
	_, err := NoopUploader{}.Upload(context.Background(), "k", strings.NewReader("x"), 1, "image/png")
	require.ErrorIs(t, err, ErrNotConfigured)
}
