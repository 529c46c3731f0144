// Package tiktok resolves TikTok video URLs through an external search
// endpoint that returns pre-extracted MP4 and MP3 links.
package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/util"
)

const (
	DefaultBaseURL = "https://lovetik.com"
	searchPath     = "/api/ajax/search"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "tt", Match: c.Match}
}

// Match accepts any tiktok.com URL, including vm./vt. short links; the
// external endpoint follows redirects itself.
func (c Config) Match(s string) (mediagrab.Request, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	host := strings.ToLower(parsedURL.Hostname())
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		return nil, fmt.Errorf("unrecognised hostname %v", parsedURL.Hostname())
	}
	return &request{url: s, config: c}, nil
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

// searchResponse is the endpoint's JSON shape. Each link's "t" field is a
// display label whose text carries the container ("MP4", "MP3"), "s" a
// quality/size note and "a" the download URL.
type searchResponse struct {
	Status     string `json:"status"`
	Message    string `json:"mess"`
	Desc       string `json:"desc"`
	Cover      string `json:"cover"`
	AuthorName string `json:"author_name"`
	Links      []struct {
		T string `json:"t"`
		S string `json:"s"`
		A string `json:"a"`
	} `json:"links"`
}

func (r *request) Resolve(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	baseURL := r.config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := r.config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	form := url.Values{"query": {r.url}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+searchPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", baseURL)
	req.Header.Set("Referer", baseURL+"/")
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
	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionParse, err)
	}
	if search.Status != "ok" {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNotFound,
			fmt.Errorf("service status %q: %v", search.Status, search.Message))
	}

	var formats []mediagrab.Format
	for _, link := range search.Links {
		if link.A == "" {
			continue
		}
		switch {
		case strings.Contains(link.T, "MP4"):
			formats = append(formats, mediagrab.Format{
				Container: "mp4",
				Quality:   link.S,
				SourceURL: link.A,
				Kind:      mediagrab.MediaVideo,
			})
		case strings.Contains(link.T, "MP3"):
			formats = append(formats, mediagrab.Format{
				Container: "mp3",
				Quality:   link.S,
				SourceURL: link.A,
				Kind:      mediagrab.MediaAudio,
			})
		}
	}
	if len(formats) == 0 {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNoFormats,
			mediagrab.ErrNoFormats)
	}

	return &mediagrab.ResolvedMedia{
		Title:     util.SanitizeTitle(search.Desc),
		Formats:   formats,
		Thumbnail: search.Cover,
		Meta: map[string]string{
			"author":  search.AuthorName,
			"caption": search.Desc,
		},
	}, nil
}
