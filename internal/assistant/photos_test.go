package assistant

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n"+n), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestDescribePhotos(t *testing.T) {
	images := writeImages(t, "a.png", "b.png", "c.jpg")

	t.Run("batches merged in order", func(t *testing.T) {
		srv, calls, requests := newTestServer(t, reply{http.StatusOK, "batch one"}, reply{http.StatusOK, "batch two"})
		c := newTestClient(srv.URL)

		desc := c.DescribePhotos(context.Background(), images, 2)

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, "batch one\n\nbatch two", desc.Text)
		require.Len(t, desc.Batches, 2)
		assert.Len(t, desc.Batches[0].Images, 2)
		assert.Len(t, desc.Batches[1].Images, 1)
		assert.Zero(t, desc.Failed())
		assert.Equal(t, 30, desc.Usage.TotalTokens)

		parts, ok := (*requests)[0].Messages[1].Content.([]any)
		require.True(t, ok)
		require.Len(t, parts, 3)
		img := parts[1].(map[string]any)["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))
	})

	t.Run("failed batch is skipped", func(t *testing.T) {
		srv, _, _ := newTestServer(t, reply{http.StatusInternalServerError, ""}, reply{http.StatusOK, "batch two"})
		c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxAttempts: 1, RetryDelay: time.Millisecond}, nil)

		desc := c.DescribePhotos(context.Background(), images, 2)

		assert.Equal(t, "batch two", desc.Text)
		assert.Equal(t, 1, desc.Failed())
		assert.Error(t, desc.Batches[0].Err)
		assert.Equal(t, 0, desc.Batches[0].Index)
	})

	t.Run("unreadable batch makes no call", func(t *testing.T) {
		srv, calls, _ := newTestServer(t, reply{http.StatusOK, "never"})
		c := newTestClient(srv.URL)

		desc := c.DescribePhotos(context.Background(), []string{filepath.Join(t.TempDir(), "gone.png")}, 0)

		assert.Zero(t, calls.Load())
		assert.Empty(t, desc.Text)
		assert.Equal(t, 1, desc.Failed())
	})

	t.Run("no images", func(t *testing.T) {
		desc := newTestClient("http://unused").DescribePhotos(context.Background(), nil, 5)
		assert.Empty(t, desc.Batches)
		assert.Empty(t, desc.Text)
	})
}

func TestSavePhotoDescription(t *testing.T) {
	dir := t.TempDir()
	path, err := SavePhotoDescription(dir, "two oak chairs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, PhotoDescriptionFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two oak chairs", string(data))

	_, err = SavePhotoDescription(filepath.Join(dir, "missing"), "x")
	assert.Error(t, err)
}

func TestTemplateRenderer(t *testing.T) {
	srv, _, requests := newTestServer(t, reply{http.StatusOK, "```markdown\nSale at 12 Elm St for {{ seller }}\n```"})
	r := NewTemplateRenderer(newTestClient(srv.URL))

	out, err := r.Render(context.Background(), "Sale at {{property_address}} for {{seller}}", map[string]string{
		"property_address": "12 Elm St",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sale at 12 Elm St for [MISSING:seller]", out)

	user := (*requests)[0].Messages[1].Content.(string)
	assert.Contains(t, user, `"property_address": "12 Elm St"`)
}

func TestTemplateRenderer_Failure(t *testing.T) {
	srv, _, _ := newTestServer(t, reply{http.StatusForbidden, ""})
	_, err := NewTemplateRenderer(newTestClient(srv.URL)).Render(context.Background(), "{{a}}", nil)
	require.Error(t, err)
}
