package tiktok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkamalov/mediagrab"
)

func serveAPI(t *testing.T, handler func(r *http.Request) any) (*httptest.Server, Config) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ajax/search", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		_ = json.NewEncoder(w).Encode(handler(r))
	}))
	return server, Config{BaseURL: server.URL, HTTPClient: server.Client()}
}

func TestMatch(t *testing.T) {
	assert := assert.New(t)
	config := NewConfig()

	for _, url := range []string{
		"https://www.tiktok.com/@user/video/7123456789",
		"https://vm.tiktok.com/ZMabcdef/",
		"https://tiktok.com/@user/video/7123456789",
	} {
		_, err := config.Match(url)
		assert.NoError(err, url)
	}

	_, err := config.Match("https://nottiktok.com/whatever")
	assert.Error(err)
}

func TestResolve(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		assert.Equal("https://www.tiktok.com/@user/video/7123", r.PostForm.Get("query"))
		return map[string]any{
			"status":      "ok",
			"desc":        "dancing cat",
			"cover":       "https://cdn.example/cover.jpg",
			"author_name": "catlover",
			"links": []map[string]any{
				{"t": "Download MP4 HD", "s": "1080p", "a": "https://cdn.example/hd.mp4"},
				{"t": "Download MP4", "s": "720p", "a": "https://cdn.example/sd.mp4"},
				{"t": "Download MP3", "s": "", "a": "https://cdn.example/audio.mp3"},
				{"t": "Watermarked", "s": "", "a": "https://cdn.example/wm"},
				{"t": "Download MP4", "s": "360p", "a": ""},
			},
		}
	})
	defer server.Close()

	request, err := config.Match("https://www.tiktok.com/@user/video/7123")
	assert.NoError(err)
	resolved, err := request.Resolve(context.Background())
	assert.NoError(err)

	assert.Equal("dancing cat", resolved.Title)
	assert.Equal("https://cdn.example/cover.jpg", resolved.Thumbnail)
	assert.Equal("catlover", resolved.Meta["author"])

	// Unclassifiable and URL-less links are skipped.
	assert.Len(resolved.Formats, 3)
	assert.Equal(mediagrab.MediaVideo, resolved.Formats[0].Kind)
	assert.Equal("1080p", resolved.Formats[0].Quality)
	assert.Equal(mediagrab.MediaAudio, resolved.Formats[2].Kind)
	assert.Equal("mp3", resolved.Formats[2].Container)
}

func TestResolveErrorStatus(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		return map[string]any{"status": "error", "mess": "video not found"}
	})
	defer server.Close()

	request, err := config.Match("https://www.tiktok.com/@user/video/1")
	assert.NoError(err)
	_, err = request.Resolve(context.Background())
	assert.Equal(mediagrab.ResolutionNotFound, mediagrab.ResolutionCategory(err))
	assert.ErrorContains(err, "video not found")
}

func TestResolveNoUsableLinks(t *testing.T) {
	assert := assert.New(t)
	server, config := serveAPI(t, func(r *http.Request) any {
		return map[string]any{"status": "ok", "desc": "x", "links": []map[string]any{
			{"t": "Watermarked", "s": "", "a": "https://cdn.example/wm"},
		}}
	})
	defer server.Close()

	request, err := config.Match("https://www.tiktok.com/@user/video/1")
	assert.NoError(err)
	_, err = request.Resolve(context.Background())
	assert.Equal(mediagrab.ResolutionNoFormats, mediagrab.ResolutionCategory(err))
	assert.ErrorIs(err, mediagrab.ErrNoFormats)
}
