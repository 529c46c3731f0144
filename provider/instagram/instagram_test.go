package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkamalov/mediagrab"
)

const sampleFragment = `
<div class="row">
  <video controls poster="https://insta-save.example/media.php?media=https%3A%2F%2Fcdn.example%2Fthumb.jpg">
    <source src="ignored.mp4">
  </video>
  <p class="text-sm" style="word-break: break-word; max-width: 100%;">
    sunset over the bay
  </p>
  <a href="https://insta-save.example/media.php?media=https%3A%2F%2Fcdn.example%2Freel.mp4"
     data-filesize="4.2 MB" name="reel_one.mp4">
    <span class="d-block">Download</span>
  </a>
  <a href="https://insta-save.example/about">About</a>
</div>`

func serveAPI(t *testing.T, handler func(r *http.Request) any) (*httptest.Server, Config) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content.php", r.URL.Path)
		_ = json.NewEncoder(w).Encode(handler(r))
	}))
	return server, Config{BaseURL: server.URL, HTTPClient: server.Client()}
}

func TestMatch(t *testing.T) {
	assert := assert.New(t)
	config := NewConfig()

	_, err := config.Match("https://www.instagram.com/reel/Cabcdef/")
	assert.NoError(err)
	_, err = config.Match("https://instagram.com/p/Cabcdef/")
	assert.NoError(err)
	_, err = config.Match("https://example.com/p/Cabcdef/")
	assert.Error(err)
}

func TestResolve(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		assert.Equal("https://www.instagram.com/reel/Cabcdef/", r.URL.Query().Get("url"))
		return map[string]any{
			"status":   "ok",
			"username": "baywatcher",
			"html":     sampleFragment,
		}
	})
	defer server.Close()

	request, err := config.Match("https://www.instagram.com/reel/Cabcdef/")
	assert.NoError(err)
	resolved, err := request.Resolve(context.Background())
	assert.NoError(err)

	assert.Equal("sunset over the bay", resolved.Title)
	assert.Equal("baywatcher", resolved.Meta["username"])
	assert.Equal("https://insta-save.example/media.php?media=https%3A%2F%2Fcdn.example%2Fthumb.jpg", resolved.Thumbnail)

	assert.Len(resolved.Formats, 1)
	format := resolved.Formats[0]
	assert.Equal("mp4", format.Container)
	assert.Contains(format.SourceURL, "media.php?media=")
	assert.Equal(int64(4404019), format.ApproxSize)
	assert.Equal("https://cdn.example/reel.mp4", resolved.Meta["direct_url"])
}

func TestResolveFallsBackToUsername(t *testing.T) {
	assert := assert.New(t)
	fragment := `<a href="https://x.example/media.php?media=https%3A%2F%2Fcdn.example%2Fpost.mp4"></a>`
	server, config := serveAPI(t, func(r *http.Request) any {
		return map[string]any{"status": "ok", "username": "someone", "html": fragment}
	})
	defer server.Close()

	request, err := config.Match("https://instagram.com/p/C1/")
	assert.NoError(err)
	resolved, err := request.Resolve(context.Background())
	assert.NoError(err)
	assert.Equal("someone", resolved.Title, "caption-less posts fall back to the username")
	assert.Empty(resolved.Thumbnail)
}

func TestResolveServiceError(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		return map[string]any{"status": "error", "msg": "private account"}
	})
	defer server.Close()

	request, err := config.Match("https://instagram.com/p/C1/")
	assert.NoError(err)
	_, err = request.Resolve(context.Background())
	assert.Equal(mediagrab.ResolutionNotFound, mediagrab.ResolutionCategory(err))
	assert.ErrorContains(err, "private account")
}

func TestResolveNoMedia(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		return map[string]any{"status": "ok", "username": "someone", "html": "<div>nothing here</div>"}
	})
	defer server.Close()

	request, err := config.Match("https://instagram.com/p/C1/")
	assert.NoError(err)
	_, err = request.Resolve(context.Background())
	assert.Equal(mediagrab.ResolutionNoFormats, mediagrab.ResolutionCategory(err))
}

func TestDirectURL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("https://cdn.example/a b.mp4",
		DirectURL("https://x.example/media.php?media=https%3A%2F%2Fcdn.example%2Fa%20b.mp4"))
	assert.Equal("https://cdn.example/plain.mp4",
		DirectURL("https://cdn.example/plain.mp4"))
}
