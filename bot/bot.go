// Package bot ties the pipeline together: URL in, format menu out, button
// press in, file out. It is platform-agnostic; a Transport implementation
// does the actual messaging.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/database"
	"github.com/dkamalov/mediagrab/internal/callback"
	"github.com/dkamalov/mediagrab/internal/filecache"
	"github.com/dkamalov/mediagrab/internal/sessioncache"
	"github.com/dkamalov/mediagrab/internal/tempfs"
	"github.com/dkamalov/mediagrab/internal/workerpool"
	"github.com/dkamalov/mediagrab/pending"
	"github.com/dkamalov/mediagrab/provider/youtube"
	"github.com/dkamalov/mediagrab/providers"
	"github.com/dkamalov/mediagrab/search"
	"github.com/dkamalov/mediagrab/transcode"
	"github.com/dkamalov/mediagrab/util"
)

type Config struct {
	// MaxAudioBytes caps audio deliveries (default 50 MiB).
	MaxAudioBytes int64
	// MaxVideoBytes caps video and image deliveries (default 100 MiB).
	MaxVideoBytes int64
	// SessionTTL is how long a format menu stays pressable.
	SessionTTL time.Duration
	// RateLimit is actions per user per minute; 0 disables.
	RateLimit int
	// Workers bounds concurrent downloads.
	Workers int
	// MenuLimit caps search-result menu entries.
	MenuLimit int
	// TempDir is the scratch space root; empty means the OS temp dir.
	TempDir string
}

func (c *Config) withDefaults() {
	if c.MaxAudioBytes == 0 {
		c.MaxAudioBytes = 50 << 20
	}
	if c.MaxVideoBytes == 0 {
		c.MaxVideoBytes = 100 << 20
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = sessioncache.DefaultTTL
	}
	if c.RateLimit == 0 {
		c.RateLimit = 50
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.MenuLimit == 0 {
		c.MenuLimit = 10
	}
}

type Bot struct {
	config    Config
	transport Transport
	registry  *mediagrab.ProviderRegistry
	sessions  *sessioncache.Cache
	router    *callback.Router
	limiter   *rateLimiter

	downloader *mediagrab.Downloader
	pending    *pending.Resolver
	transcoder *transcode.Transcoder
	searcher   *search.Searcher
	policy     mediagrab.SelectionPolicy
	// audioResolver resolves a watch URL straight to audio formats for the
	// search flow, bypassing the menu deny list.
	audioResolver mediagrab.MatchFunc

	db    *database.Database
	files *filecache.Cache

	pool *workerpool.Pool
	temp *tempfs.Root
	log  *zap.SugaredLogger
}

type Option func(*Bot)

func WithRegistry(registry *mediagrab.ProviderRegistry) Option {
	return func(b *Bot) { b.registry = registry }
}

func WithSearcher(searcher *search.Searcher) Option {
	return func(b *Bot) { b.searcher = searcher }
}

func WithDatabase(db *database.Database) Option {
	return func(b *Bot) { b.db = db }
}

func WithFileCache(files *filecache.Cache) Option {
	return func(b *Bot) { b.files = files }
}

func WithTranscoder(transcoder *transcode.Transcoder) Option {
	return func(b *Bot) { b.transcoder = transcoder }
}

func WithDownloader(downloader *mediagrab.Downloader) Option {
	return func(b *Bot) { b.downloader = downloader }
}

func WithPendingResolver(resolver *pending.Resolver) Option {
	return func(b *Bot) { b.pending = resolver }
}

func WithAudioResolver(match mediagrab.MatchFunc) Option {
	return func(b *Bot) { b.audioResolver = match }
}

func New(config Config, transport Transport, opts ...Option) (*Bot, error) {
	config.withDefaults()

	temp, err := tempfs.NewRoot(config.TempDir)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	audioConfig := youtube.NewAudioConfig()
	audioConfig.HTTPClient = client

	b := &Bot{
		config:        config,
		transport:     transport,
		registry:      providers.NewRegistry(client),
		sessions:      sessioncache.New(config.SessionTTL),
		router:        callback.NewRouter(),
		limiter:       newRateLimiter(config.RateLimit, time.Minute, nil),
		downloader:    mediagrab.NewDownloader(client),
		pending:       pending.NewResolver(youtube.NewPendingChecker(audioConfig)),
		transcoder:    transcode.New(),
		searcher:      search.New(),
		policy:        mediagrab.DefaultSelectionPolicy(),
		audioResolver: audioConfig.Match,
		pool:          workerpool.New("downloads", config.Workers, config.Workers*4),
		temp:          temp,
		log:           zap.S().Named("bot"),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.router.MustHandle("yt", 4, b.handleYouTubeCallback)
	b.router.MustHandle("tt", 5, b.handleTikTokCallback)
	b.router.MustHandle("insta", 4, b.handleInstagramCallback)
	b.router.MustHandle("s", 4, b.handleSearchCallback)
	return b, nil
}

// Close drains in-flight deliveries.
func (b *Bot) Close() {
	b.pool.Close()
}

// HandleEvent processes one incoming update to completion. The transport's
// update loop is expected to call it from a per-update goroutine.
func (b *Bot) HandleEvent(ctx context.Context, ev Event) {
	if ev.CallbackData != "" {
		b.HandleCallback(ctx, ev)
		return
	}
	b.HandleText(ctx, ev)
}

func (b *Bot) HandleText(ctx context.Context, ev Event) {
	b.recordUser(ev)

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ev, text)
		return
	}
	if !b.limiter.Allow(ev.UserID) {
		_, _ = b.transport.SendText(ev.ChatID, msgRateLimited)
		return
	}

	cleaned := util.CleanURL(text)
	if util.IsValidURL(cleaned) {
		b.handleURL(ctx, ev, cleaned)
		return
	}
	b.handleSearch(ctx, ev, text)
}

func (b *Bot) handleCommand(ev Event, text string) {
	command := strings.SplitN(text, " ", 2)[0]
	switch command {
	case "/start":
		_, _ = b.transport.SendText(ev.ChatID,
			"Send a YouTube, TikTok or Instagram link to download it, or type a song name to search.")
	case "/help":
		_, _ = b.transport.SendText(ev.ChatID,
			"Paste a media link for a format menu, or type any text to search for music.")
	default:
		_, _ = b.transport.SendText(ev.ChatID, "Unknown command.")
	}
}

func (b *Bot) handleURL(ctx context.Context, ev Event, url string) {
	match, err := b.registry.Match(url)
	if err != nil {
		b.log.Debugw("no provider matched", "url", url, "error", err)
		_, _ = b.transport.SendText(ev.ChatID, msgUnsupported)
		return
	}

	loading, _ := b.transport.SendText(ev.ChatID, msgResolving)
	err = <-b.pool.Submit(func(ctx context.Context) error {
		resolved, err := match.Request.Resolve(ctx)
		if err != nil {
			return err
		}

		meta := resolved.Meta
		if meta == nil {
			meta = make(map[string]string)
		}
		meta["source_url"] = match.Request.URL()
		sessionID := b.sessions.Store(sessioncache.Entry{
			Platform: match.ProviderName,
			Title:    resolved.Title,
			Formats:  resolved.Formats,
			Meta:     meta,
		})

		b.logActivity(ev.UserID, match.ProviderName, "resolve", match.Request.URL())
		return b.sendFormatMenu(ev, loading, match.ProviderName, sessionID, resolved)
	})
	if err != nil {
		b.log.Warnw("resolution failed", "url", url, "error", err)
		_ = b.transport.EditText(loading, userMessage(err))
	}
}

// sendFormatMenu renders the per-platform format keyboard, with the
// thumbnail attached when one can be fetched.
func (b *Bot) sendFormatMenu(ev Event, loading MessageRef, platform, sessionID string, resolved *mediagrab.ResolvedMedia) error {
	var buttons [][]Button
	switch platform {
	case "insta":
		// Instagram always gets exactly two options: the post as-is, or its
		// audio track.
		buttons = [][]Button{
			{{Label: "MP4", Data: callback.New("insta", "mp4", sessionID).String()}},
			{{Label: "MP3", Data: callback.New("insta", "mp3", sessionID).String()}},
		}
	default:
		for i, format := range resolved.Formats {
			label := format.Label()
			if format.ApproxSize > 0 {
				label = fmt.Sprintf("%s (%s)", label, formatSize(format.ApproxSize))
			}
			var data string
			if platform == "tt" {
				selector := "mp4"
				if format.Kind == mediagrab.MediaAudio {
					selector = "mp3"
				}
				data = callback.New("tt", selector, sessionID, strconv.Itoa(i+1)).String()
			} else {
				data = callback.New(platform, strconv.Itoa(i+1), sessionID).String()
			}
			buttons = append(buttons, []Button{{Label: label, Data: data}})
		}
	}

	text := fmt.Sprintf("%s\n\nPick a format:", resolved.Title)
	thumbnailPath, thumbScope := b.fetchThumbnail(ev.ChatID, sessionID, resolved.Thumbnail)
	if thumbScope != nil {
		defer func() { _ = thumbScope.Close() }()
	}

	if _, err := b.transport.SendMenu(ev.ChatID, text, thumbnailPath, buttons); err != nil {
		return err
	}
	_ = b.transport.DeleteMessage(loading)
	return nil
}

// fetchThumbnail downloads a preview image into its own scope and returns the
// local path plus the owning scope, or "" and nil when unavailable. The caller
// must Close the scope once the menu is sent; the path is only valid until
// then.
func (b *Bot) fetchThumbnail(chatID int64, sessionID, thumbnailURL string) (string, *tempfs.Scope) {
	if thumbnailURL == "" {
		return "", nil
	}
	scope, err := b.temp.Scope(strconv.FormatInt(chatID, 10), sessionID)
	if err != nil {
		return "", nil
	}
	path := scope.Path("thumbnail.jpg")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	job := mediagrab.DownloadJob{URL: thumbnailURL, DestPath: path, MaxBytes: 10 << 20}
	if err := b.downloader.Download(ctx, job); err != nil {
		b.log.Debugw("thumbnail fetch failed", "url", thumbnailURL, "error", err)
		_ = scope.Close()
		return "", nil
	}
	return path, scope
}

func (b *Bot) handleSearch(ctx context.Context, ev Event, query string) {
	loading, _ := b.transport.SendText(ev.ChatID, msgSearching)
	err := <-b.pool.Submit(func(ctx context.Context) error {
		results, err := b.searcher.Search(ctx, query)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return b.transport.EditText(loading, msgNoResults)
		}

		var hits []sessioncache.Hit
		for _, result := range results {
			hits = append(hits, sessioncache.Hit{Title: result.Title, URL: result.URL})
		}
		sessionID := b.sessions.Store(sessioncache.Entry{Platform: "s", Title: query, Hits: hits})

		var buttons [][]Button
		for i, hit := range hits {
			if i >= b.config.MenuLimit {
				break
			}
			buttons = append(buttons, []Button{{
				Label: hit.Title,
				Data:  callback.New("s", strconv.Itoa(i+1), sessionID).String(),
			}})
		}
		if _, err := b.transport.SendMenu(ev.ChatID, msgPickResult, "", buttons); err != nil {
			return err
		}
		_ = b.transport.DeleteMessage(loading)
		b.logActivity(ev.UserID, "s", "search", query)
		return nil
	})
	if err != nil {
		b.log.Warnw("search failed", "query", query, "error", err)
		_ = b.transport.EditText(loading, userMessage(err))
	}
}

func (b *Bot) HandleCallback(ctx context.Context, ev Event) {
	_ = b.transport.AnswerCallback(ev.CallbackID, "")
	if !b.limiter.Allow(ev.UserID) {
		_, _ = b.transport.SendText(ev.ChatID, msgRateLimited)
		return
	}
	if err := b.router.Route(withEvent(ctx, ev), ev.CallbackData); err != nil {
		b.log.Warnw("callback failed", "data", ev.CallbackData, "error", err)
		if callback.IsTokenError(err) {
			_ = b.transport.AnswerCallback(ev.CallbackID, msgInvalidButton)
			return
		}
		_, _ = b.transport.SendText(ev.ChatID, userMessage(err))
	}
}

func (b *Bot) handleYouTubeCallback(ctx context.Context, token callback.Token) error {
	ev, entry, format, err := b.lookupIndexed(ctx, token)
	if err != nil {
		return err
	}
	return b.deliver(ctx, ev, entry, format, token.Selector)
}

func (b *Bot) handleTikTokCallback(ctx context.Context, token callback.Token) error {
	ev, _ := eventFromContext(ctx)
	entry, err := b.sessions.Get(token.SessionID)
	if err != nil {
		return err
	}
	if len(token.Extra) == 0 {
		return fmt.Errorf("%w: missing format index", callback.ErrInvalidToken)
	}
	index, err := strconv.Atoi(token.Extra[0])
	if err != nil || index < 1 || index > len(entry.Formats) {
		return fmt.Errorf("%w: bad format index", callback.ErrInvalidToken)
	}
	return b.deliver(ctx, ev, entry, entry.Formats[index-1], token.Selector+"_"+token.Extra[0])
}

func (b *Bot) handleInstagramCallback(ctx context.Context, token callback.Token) error {
	ev, _ := eventFromContext(ctx)
	entry, err := b.sessions.Get(token.SessionID)
	if err != nil {
		return err
	}
	if len(entry.Formats) == 0 {
		return mediagrab.ErrNoFormats
	}
	format := entry.Formats[0]
	switch token.Selector {
	case "mp4", "mp3":
	default:
		return fmt.Errorf("%w: unknown selector %q", callback.ErrInvalidToken, token.Selector)
	}
	return b.deliver(ctx, ev, entry, format, token.Selector)
}

func (b *Bot) handleSearchCallback(ctx context.Context, token callback.Token) error {
	ev, _ := eventFromContext(ctx)
	entry, err := b.sessions.Get(token.SessionID)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(token.Selector)
	if err != nil || index < 1 || index > len(entry.Hits) {
		return fmt.Errorf("%w: bad result index", callback.ErrInvalidToken)
	}
	hit := entry.Hits[index-1]

	request, err := b.audioResolver(hit.URL)
	if err != nil {
		return err
	}
	return <-b.pool.Submit(func(ctx context.Context) error {
		resolved, err := request.Resolve(ctx)
		if err != nil {
			return err
		}
		audioEntry := sessioncache.Entry{
			ID:       entry.ID,
			Platform: "yt",
			Title:    hit.Title,
			Meta:     map[string]string{"source_url": hit.URL},
		}
		format, err := b.policy.BestAudio(resolved.Formats)
		if err == nil {
			return b.deliverLocked(ctx, ev, audioEntry, format, "mp3")
		}
		if len(resolved.Formats) == 0 {
			return mediagrab.ErrNoFormats
		}
		// No native audio at all; take any format and extract the track.
		return b.deliverLocked(ctx, ev, audioEntry, resolved.Formats[0], "mp3")
	})
}

// deliver runs the download-and-send pipeline on the worker pool and waits
// for it.
func (b *Bot) deliver(ctx context.Context, ev Event, entry sessioncache.Entry, format mediagrab.Format, selector string) error {
	return <-b.pool.Submit(func(ctx context.Context) error {
		return b.deliverLocked(ctx, ev, entry, format, selector)
	})
}

// deliverLocked is the pipeline body; it must already be running on a pool
// worker.
func (b *Bot) deliverLocked(ctx context.Context, ev Event, entry sessioncache.Entry, format mediagrab.Format, selector string) error {
	wantAudio := format.Kind == mediagrab.MediaAudio || strings.HasPrefix(selector, "mp3")
	caption := entry.Title

	cacheKey := filecache.Key(entry.Platform, format.SourceURL, selector)
	if b.files != nil {
		if record, found := b.files.Get(cacheKey); found {
			b.log.Debugw("delivering cached file", "key", cacheKey, "file_id", record.FileID)
			if record.Kind == "audio" {
				if err := b.transport.SendCachedAudio(ev.ChatID, record.FileID, caption); err == nil {
					return nil
				}
			} else {
				if err := b.transport.SendCachedVideo(ev.ChatID, record.FileID, caption); err == nil {
					return nil
				}
			}
			// Stale file id; fall through to a fresh download.
			b.files.Delete(cacheKey)
		}
	}

	maxBytes := b.config.MaxVideoBytes
	if wantAudio {
		maxBytes = b.config.MaxAudioBytes
	}
	if format.ApproxSize > 0 && format.ApproxSize > maxBytes {
		return mediagrab.ErrTooLarge
	}

	loading, _ := b.transport.SendText(ev.ChatID, msgDownloading)

	scope, err := b.temp.Scope(strconv.FormatInt(ev.ChatID, 10), entry.ID)
	if err != nil {
		return err
	}
	defer func() { _ = scope.Close() }()

	sourceURL := format.SourceURL
	filename := deliveryFilename(entry.Title, format.Container)
	if format.Pending {
		final, err := b.pending.Await(ctx, format.SourceURL)
		if err != nil {
			_ = b.transport.EditText(loading, userMessage(err))
			return nil
		}
		sourceURL = final.FileURL
		if final.FileName != "" {
			filename = util.SanitizeTitle(final.FileName)
		}
	}

	destPath := scope.Path(filename)
	job := mediagrab.DownloadJob{
		URL:         sourceURL,
		FallbackURL: entry.Meta["direct_url"],
		DestPath:    destPath,
		MaxBytes:    maxBytes,
	}
	if err := b.downloader.Download(ctx, job); err != nil {
		b.log.Warnw("download failed", "url", sourceURL, "error", err)
		_ = b.transport.EditText(loading, userMessage(err))
		return nil
	}

	sendPath := destPath
	if wantAudio && format.Kind == mediagrab.MediaVideo {
		audioPath := scope.Path("audio.mp3")
		if err := b.transcoder.ToAudioOnly(ctx, destPath, audioPath); err != nil {
			b.log.Warnw("transcode failed", "input", destPath, "error", err)
			_ = b.transport.EditText(loading, msgTranscodeFailed)
			return nil
		}
		sendPath = audioPath
	}

	var fileID string
	var sendErr error
	if wantAudio {
		fileID, sendErr = b.transport.SendAudioFile(ev.ChatID, sendPath, entry.Title, entry.Meta["author"])
	} else {
		fileID, sendErr = b.transport.SendVideoFile(ev.ChatID, sendPath, caption)
	}
	if sendErr != nil {
		_ = b.transport.EditText(loading, msgGenericError)
		return fmt.Errorf("delivery failed: %w", sendErr)
	}
	_ = b.transport.DeleteMessage(loading)

	if b.files != nil && fileID != "" {
		kind := "video"
		if wantAudio {
			kind = "audio"
		}
		b.files.Put(cacheKey, filecache.Record{FileID: fileID, Title: entry.Title, Kind: kind})
	}
	b.logActivity(ev.UserID, entry.Platform, "download", entry.Meta["source_url"])
	b.log.Infow("delivered", "chat_id", ev.ChatID, "platform", entry.Platform, "selector", selector)
	return nil
}

// lookupIndexed resolves the common "selector is a 1-based format index"
// token shape against the session cache.
func (b *Bot) lookupIndexed(ctx context.Context, token callback.Token) (Event, sessioncache.Entry, mediagrab.Format, error) {
	ev, _ := eventFromContext(ctx)
	entry, err := b.sessions.Get(token.SessionID)
	if err != nil {
		return ev, sessioncache.Entry{}, mediagrab.Format{}, err
	}
	index, err := strconv.Atoi(token.Selector)
	if err != nil || index < 1 || index > len(entry.Formats) {
		return ev, sessioncache.Entry{}, mediagrab.Format{},
			fmt.Errorf("%w: bad format index", callback.ErrInvalidToken)
	}
	return ev, entry, entry.Formats[index-1], nil
}

func (b *Bot) recordUser(ev Event) {
	if b.db == nil || ev.UserID == 0 {
		return
	}
	user := database.User{
		ID:        ev.UserID,
		Username:  ev.Username,
		FirstName: ev.FirstName,
		Language:  ev.Language,
	}
	if err := b.db.UpsertUser(user); err != nil {
		b.log.Warnw("failed to record user", "user_id", ev.UserID, "error", err)
	}
}

func (b *Bot) logActivity(userID int64, platform, action, target string) {
	if b.db == nil {
		return
	}
	b.db.LogActivity(userID, platform, action, target)
}

func deliveryFilename(title, container string) string {
	name := util.SanitizeTitle(title)
	if name == "" {
		name = "media"
	}
	if container == "" {
		container = "bin"
	}
	return name + "." + strings.ToLower(container)
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(size)/float64(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f KB", float64(size)/float64(1<<10))
	}
}

type eventContextKey struct{}

func withEvent(ctx context.Context, ev Event) context.Context {
	return context.WithValue(ctx, eventContextKey{}, ev)
}

func eventFromContext(ctx context.Context) (Event, bool) {
	ev, ok := ctx.Value(eventContextKey{}).(Event)
	return ev, ok
}
