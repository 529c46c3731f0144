// Package youtube resolves YouTube watch/shorts URLs into downloadable
// formats via an external conversion service, with the native innertube
// client as a fallback when the service is down.
//
// Audio variants returned by the service are conversion jobs, not byte URLs:
// their Format.Pending flag is set and the caller must run them through
// pending.Resolver before downloading.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	kkdai "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/generic"
	"github.com/dkamalov/mediagrab/pending"
	"github.com/dkamalov/mediagrab/util"
)

const (
	DefaultBaseURL = "https://ytdown.io"
	proxyPath      = "/proxy.php"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var shortsPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]+)`)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// AudioDeny drops m4a variants by quality label before any caller sees
	// them. Labels containing "false" are always dropped regardless.
	AudioDeny generic.Set[string]
	// NativeFallback resolves through the innertube client when the external
	// service fails entirely.
	NativeFallback bool
}

// NewConfig returns the format-menu configuration: the 48K tier is unusable
// and the 128K tier is reserved for the audio-search flow, so neither shows
// up on a menu.
func NewConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		AudioDeny:      generic.NewSet("48K", "128K"),
		NativeFallback: true,
	}
}

// NewAudioConfig returns the direct-audio configuration, which keeps the 128K
// tier since that is exactly the variant the audio flow wants.
func NewAudioConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		AudioDeny:      generic.NewSet("48K"),
		NativeFallback: true,
	}
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "yt", Match: c.Match}
}

// Match accepts youtube.com (including m. and shorts URLs) and youtu.be links.
func (c Config) Match(s string) (mediagrab.Request, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	host := strings.TrimPrefix(strings.ToLower(parsedURL.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtu.be":
	default:
		return nil, fmt.Errorf("unrecognised hostname %v", parsedURL.Hostname())
	}
	return &request{url: NormalizeURL(s), config: c}, nil
}

// NormalizeURL rewrites the shorts URL form to the canonical watch form the
// external service understands. Any other URL passes through unchanged.
func NormalizeURL(s string) string {
	if m := shortsPattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s", m[1])
	}
	return s
}

type request struct {
	url    string
	config Config
}

func (r *request) URL() string {
	return r.url
}

func (r *request) String() string {
	return r.URL()
}

func (r *request) Resolve(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	resolved, err := r.resolveProxy(ctx)
	if err != nil && r.config.NativeFallback && mediagrab.ResolutionCategory(err) == mediagrab.ResolutionNetwork {
		zap.S().Named("youtube").Warnw("external resolver failed, using native client", "url", r.url, "error", err)
		return r.resolveNative(ctx)
	}
	return resolved, err
}

// apiEnvelope is the service's response shape, shared between metadata
// resolution and conversion-job status checks.
type apiEnvelope struct {
	API apiResponse `json:"api"`
}

type apiResponse struct {
	Status          string         `json:"status"`
	Title           string         `json:"title"`
	ImagePreviewURL string         `json:"imagePreviewUrl"`
	MediaItems      []apiMediaItem `json:"mediaItems"`
	// Percent/FileURL/FileName are only present on conversion-job checks.
	Percent  string `json:"percent"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

type apiMediaItem struct {
	MediaExtension string `json:"mediaExtension"`
	MediaRes       string `json:"mediaRes"`
	MediaQuality   string `json:"mediaQuality"`
	MediaURL       string `json:"mediaUrl"`
	MediaFileSize  string `json:"mediaFileSize"`
	Type           string `json:"type"`
}

func (r *request) resolveProxy(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	envelope, err := postProxy(ctx, r.config, r.url)
	if err != nil {
		return nil, err
	}
	if envelope.API.Status != "OK" {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNotFound,
			fmt.Errorf("service status %q", envelope.API.Status))
	}

	var formats []mediagrab.Format
	for _, item := range envelope.API.MediaItems {
		extension := strings.ToLower(item.MediaExtension)
		if extension != "mp4" && extension != "m4a" || item.MediaURL == "" {
			continue
		}
		kind := mediagrab.MediaVideo
		if strings.EqualFold(item.Type, "audio") || extension == "m4a" {
			kind = mediagrab.MediaAudio
		}
		if kind == mediagrab.MediaAudio && !audioUsable(r.config, item.MediaQuality) {
			continue
		}
		formats = append(formats, mediagrab.Format{
			Container:  item.MediaExtension,
			Quality:    item.MediaQuality,
			Resolution: item.MediaRes,
			SourceURL:  item.MediaURL,
			ApproxSize: util.ParseApproxSize(item.MediaFileSize),
			Kind:       kind,
			// The service hands out conversion-job URLs for audio.
			Pending: kind == mediagrab.MediaAudio,
		})
	}
	if len(formats) == 0 {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNoFormats,
			mediagrab.ErrNoFormats)
	}

	return &mediagrab.ResolvedMedia{
		Title:     util.SanitizeTitle(envelope.API.Title),
		Formats:   formats,
		Thumbnail: envelope.API.ImagePreviewURL,
	}, nil
}

func audioUsable(c Config, quality string) bool {
	if strings.Contains(strings.ToLower(quality), "false") {
		return false
	}
	if c.AudioDeny != nil && c.AudioDeny.Contains(quality) {
		return false
	}
	return true
}

// resolveNative builds a format list from the innertube client directly. The
// URLs it yields are final byte URLs, so nothing is marked pending.
func (r *request) resolveNative(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	client := kkdai.Client{HTTPClient: r.config.HTTPClient}
	video, err := client.GetVideoContext(ctx, r.url)
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNotFound,
			fmt.Errorf("failed to get video info: %w", err))
	}

	var formats []mediagrab.Format
	for _, f := range video.Formats.WithAudioChannels() {
		f := f
		streamURL, err := client.GetStreamURLContext(ctx, video, &f)
		if err != nil {
			continue
		}
		mimeType := strings.SplitN(f.MimeType, ";", 2)[0]
		kind := mediagrab.MediaVideo
		if strings.HasPrefix(mimeType, "audio/") {
			kind = mediagrab.MediaAudio
		}
		format := mediagrab.Format{
			Container:  strings.SplitN(mimeType, "/", 2)[1],
			Quality:    f.QualityLabel,
			SourceURL:  streamURL,
			ApproxSize: f.ContentLength,
			Kind:       kind,
		}
		if f.Width > 0 && f.Height > 0 {
			format.Resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
		}
		formats = append(formats, format)
	}
	if len(formats) == 0 {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNoFormats,
			mediagrab.ErrNoFormats)
	}

	resolved := &mediagrab.ResolvedMedia{
		Title:   util.SanitizeTitle(video.Title),
		Formats: formats,
		Meta:    map[string]string{"author": video.Author},
	}
	if len(video.Thumbnails) > 0 {
		resolved.Thumbnail = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	return resolved, nil
}

// NewPendingChecker adapts the conversion-job status call to pending.Checker:
// a job is done once the service reports the completed sentinel along with a
// final URL and filename.
func NewPendingChecker(config Config) pending.Checker {
	return pending.CheckerFunc(func(ctx context.Context, pendingURL string) (pending.Status, error) {
		envelope, err := postProxy(ctx, config, pendingURL)
		if err != nil {
			return pending.Status{}, err
		}
		api := envelope.API
		if api.Percent == "Completed" && api.FileURL != "" && api.FileName != "" {
			return pending.Status{Done: true, FileURL: api.FileURL, FileName: api.FileName}, nil
		}
		return pending.Status{}, nil
	})
}

// postProxy performs the form POST both resolution and job polling use, with
// the browser-mimicking headers the unofficial endpoint expects.
func postProxy(ctx context.Context, config Config, target string) (*apiEnvelope, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	form := url.Values{"url": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+proxyPath,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", baseURL)
	req.Header.Set("Referer", baseURL+"/en")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := client.Do(req)
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork, err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionParse, err)
	}
	return &envelope, nil
}
