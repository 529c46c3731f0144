package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/pending"
)

// fakeTransport records every outgoing interaction.
type fakeTransport struct {
	mu         sync.Mutex
	nextID     int
	texts      []string
	edits      []string
	deleted    []MessageRef
	menus      [][][]Button
	menuTexts  []string
	menuThumbs []string
	audio      []sentFile
	video      []sentFile
	cached     []string
}

type sentFile struct {
	path  string
	title string
	size  int64
}

func (f *fakeTransport) SendText(chatID int64, text string) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.texts = append(f.texts, text)
	return MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) EditText(ref MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) DeleteMessage(ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeTransport) SendMenu(chatID int64, text, thumbnailPath string, buttons [][]Button) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.menus = append(f.menus, buttons)
	f.menuTexts = append(f.menuTexts, text)
	f.menuThumbs = append(f.menuThumbs, thumbnailPath)
	return MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) sendFile(list *[]sentFile, path, title string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, sentFile{path: path, title: title, size: info.Size()})
	return fmt.Sprintf("file-%d", len(*list)), nil
}

func (f *fakeTransport) SendAudioFile(chatID int64, path, title, performer string) (string, error) {
	return f.sendFile(&f.audio, path, title)
}

func (f *fakeTransport) SendVideoFile(chatID int64, path, caption string) (string, error) {
	return f.sendFile(&f.video, path, caption)
}

func (f *fakeTransport) SendCachedAudio(chatID int64, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = append(f.cached, fileID)
	return nil
}

func (f *fakeTransport) SendCachedVideo(chatID int64, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = append(f.cached, fileID)
	return nil
}

func (f *fakeTransport) AnswerCallback(callbackID, text string) error { return nil }

type staticRequest struct {
	url      string
	resolved *mediagrab.ResolvedMedia
}

func (r *staticRequest) URL() string { return r.url }

func (r *staticRequest) Resolve(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	return r.resolved, nil
}

func newTestBot(t *testing.T, resolved *mediagrab.ResolvedMedia, checker pending.Checker) (*Bot, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}

	registry := &mediagrab.ProviderRegistry{}
	registry.MustAdd(mediagrab.Provider{
		Name: "yt",
		Match: func(s string) (mediagrab.Request, error) {
			return &staticRequest{url: s, resolved: resolved}, nil
		},
	})

	opts := []Option{
		WithRegistry(registry),
		WithDownloader(mediagrab.NewDownloader(nil)),
	}
	if checker != nil {
		opts = append(opts, WithPendingResolver(pending.NewResolver(checker,
			pending.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))))
	}

	b, err := New(Config{TempDir: filepath.Join(t.TempDir(), "work")}, transport, opts...)
	assert.NoError(t, err)
	t.Cleanup(b.Close)
	return b, transport
}

func TestURLToMenuToAudioDelivery(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3 bytes here"))
	}))
	defer server.Close()

	resolved := &mediagrab.ResolvedMedia{
		Title: "some video",
		Formats: []mediagrab.Format{
			{Container: "mp4", Quality: "720p", SourceURL: server.URL + "/video", Kind: mediagrab.MediaVideo},
			{Container: "m4a", Quality: "160K", SourceURL: "job://pending-1", Kind: mediagrab.MediaAudio, Pending: true},
		},
	}
	checker := pending.CheckerFunc(func(ctx context.Context, pendingURL string) (pending.Status, error) {
		assert.Equal("job://pending-1", pendingURL)
		return pending.Status{Done: true, FileURL: server.URL + "/final", FileName: "song.m4a"}, nil
	})

	b, transport := newTestBot(t, resolved, checker)
	ctx := context.Background()
	ev := Event{ChatID: 100, UserID: 7, Text: "https://www.youtube.com/watch?v=abc"}

	b.HandleText(ctx, ev)

	// One menu with one button per format.
	assert.Len(transport.menus, 1)
	assert.Len(transport.menus[0], 2)
	assert.Contains(transport.menuTexts[0], "some video")

	// Press the audio button.
	audioButton := transport.menus[0][1][0]
	b.HandleCallback(ctx, Event{ChatID: 100, UserID: 7, CallbackID: "cb1", CallbackData: audioButton.Data})

	assert.Len(transport.audio, 1)
	assert.Equal("some video", transport.audio[0].title)
	assert.EqualValues(14, transport.audio[0].size)
	assert.Empty(transport.video)

	// The delivery scope is removed after sending.
	assert.NoFileExists(transport.audio[0].path)
	entries, err := os.ReadDir(filepath.Join(b.temp.Base()))
	assert.NoError(err)
	for _, entry := range entries {
		chatDirs, err := os.ReadDir(filepath.Join(b.temp.Base(), entry.Name()))
		assert.NoError(err)
		assert.Empty(chatDirs, "no session scratch directories may survive a delivery")
	}
}

func TestVideoDelivery(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video bytes"))
	}))
	defer server.Close()

	resolved := &mediagrab.ResolvedMedia{
		Title: "clip",
		Formats: []mediagrab.Format{
			{Container: "mp4", Quality: "720p", SourceURL: server.URL + "/v", Kind: mediagrab.MediaVideo},
		},
	}
	b, transport := newTestBot(t, resolved, nil)
	ctx := context.Background()

	b.HandleText(ctx, Event{ChatID: 1, UserID: 2, Text: "https://www.youtube.com/watch?v=x"})
	assert.Len(transport.menus, 1)

	b.HandleCallback(ctx, Event{ChatID: 1, UserID: 2, CallbackData: transport.menus[0][0][0].Data})
	assert.Len(transport.video, 1)
	assert.Empty(transport.audio)
}

func TestThumbnailScratchRemovedAfterMenu(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	resolved := &mediagrab.ResolvedMedia{
		Title:     "clip",
		Thumbnail: server.URL + "/thumb.jpg",
		Formats: []mediagrab.Format{
			{Container: "mp4", Quality: "720p", SourceURL: server.URL + "/v", Kind: mediagrab.MediaVideo},
		},
	}
	b, transport := newTestBot(t, resolved, nil)

	b.HandleText(context.Background(), Event{ChatID: 5, UserID: 2, Text: "https://www.youtube.com/watch?v=x"})

	// The menu went out with a real local thumbnail attached.
	assert.Len(transport.menus, 1)
	assert.NotEmpty(transport.menuThumbs[0])

	// The thumbnail scratch directory must not outlive the menu send.
	assert.NoFileExists(transport.menuThumbs[0])
	entries, err := os.ReadDir(filepath.Join(b.temp.Base(), "5"))
	assert.NoError(err)
	assert.Empty(entries, "no scratch directories may survive the menu flow")
}

func TestExpiredSessionCallback(t *testing.T) {
	assert := assert.New(t)
	b, transport := newTestBot(t, &mediagrab.ResolvedMedia{}, nil)

	b.HandleCallback(context.Background(),
		Event{ChatID: 1, UserID: 2, CallbackData: "yt_1_20240101000000_gone"})

	assert.Contains(transport.texts, msgSessionExpired)
	assert.Empty(transport.audio)
	assert.Empty(transport.video)
}

func TestMalformedCallbackToken(t *testing.T) {
	assert := assert.New(t)
	b, transport := newTestBot(t, &mediagrab.ResolvedMedia{}, nil)

	b.HandleCallback(context.Background(), Event{ChatID: 1, UserID: 2, CallbackData: "yt_x"})

	// Rejected at parse time; no messages beyond the callback answer.
	assert.Empty(transport.texts)
	assert.Empty(transport.audio)
}

func TestOversizedFormatRejectedBeforeDownload(t *testing.T) {
	assert := assert.New(t)

	resolved := &mediagrab.ResolvedMedia{
		Title: "huge",
		Formats: []mediagrab.Format{
			{Container: "mp4", Quality: "4K", SourceURL: "https://example.com/huge", ApproxSize: 500 << 20, Kind: mediagrab.MediaVideo},
		},
	}
	b, transport := newTestBot(t, resolved, nil)
	ctx := context.Background()

	b.HandleText(ctx, Event{ChatID: 1, UserID: 2, Text: "https://www.youtube.com/watch?v=x"})
	b.HandleCallback(ctx, Event{ChatID: 1, UserID: 2, CallbackData: transport.menus[0][0][0].Data})

	assert.Contains(transport.texts, msgTooLarge)
	assert.Empty(transport.video)
}

func TestRateLimiter(t *testing.T) {
	assert := assert.New(t)
	limiter := newRateLimiter(3, time.Minute, nil)

	for i := 0; i < 3; i++ {
		assert.True(limiter.Allow(1))
	}
	assert.False(limiter.Allow(1))
	assert.True(limiter.Allow(2), "limits are per user")
}
