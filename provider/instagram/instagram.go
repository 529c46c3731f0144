// Package instagram resolves Instagram post/reel URLs through an external
// extractor that wraps its results in a JSON envelope containing an HTML
// fragment. All of the DOM digging stays inside this package; callers only
// ever see the normalized format list.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/util"
)

const (
	DefaultBaseURL = "https://insta-save.net"
	contentPath    = "/content.php"

	// The proxied href embeds the CDN URL after this marker, URL-encoded.
	mediaMarker = "media.php?media="

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

func (c Config) Provider() mediagrab.Provider {
	return mediagrab.Provider{Name: "insta", Match: c.Match}
}

func (c Config) Match(s string) (mediagrab.Request, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	host := strings.ToLower(parsedURL.Hostname())
	if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
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

// envelope is the extractor's JSON response; the interesting part is an HTML
// fragment in the html field.
type envelope struct {
	Status   string `json:"status"`
	Msg      string `json:"msg"`
	Username string `json:"username"`
	HTML     string `json:"html"`
}

func (r *request) Resolve(ctx context.Context) (*mediagrab.ResolvedMedia, error) {
	baseURL := r.config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := r.config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}

	query := url.Values{"url": {r.url}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+contentPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", baseURL)
	req.Header.Set("Referer", baseURL+"/")
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

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionParse, err)
	}
	if env.Status == "error" {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNotFound,
			fmt.Errorf("service error: %v", env.Msg))
	}

	media, thumbnail, caption, err := parseFragment(env.HTML)
	if err != nil {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionParse, err)
	}
	if len(media) == 0 {
		return nil, mediagrab.NewResolutionError(mediagrab.ResolutionNoFormats,
			mediagrab.ErrNoFormats)
	}

	// The first item is the one delivered; the rest of a carousel is ignored.
	selected := media[0]
	title := caption
	if title == "" {
		title = env.Username
	}
	format := mediagrab.Format{
		Container:  selected.extension,
		SourceURL:  selected.href,
		ApproxSize: util.ParseApproxSize(selected.fileSize),
		Kind:       mediagrab.MediaVideo,
	}

	return &mediagrab.ResolvedMedia{
		Title:     util.SanitizeTitle(title),
		Formats:   []mediagrab.Format{format},
		Thumbnail: thumbnail,
		Meta: map[string]string{
			"username": env.Username,
			"caption":  caption,
			// A second chance if the proxied URL stops working mid-session.
			"direct_url": selected.directURL,
		},
	}, nil
}

type mediaItem struct {
	href      string
	directURL string
	fileSize  string
	extension string
}

// parseFragment extracts download anchors, the preview image and the caption
// from the extractor's HTML. Anchors reference media through a proxy href
// that embeds the CDN URL.
func parseFragment(html string) ([]mediaItem, string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", "", err
	}

	var items []mediaItem
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, mediaMarker) {
			return
		}
		item := mediaItem{
			href:      href,
			directURL: DirectURL(href),
			fileSize:  sel.AttrOr("data-filesize", ""),
			extension: "mp4",
		}
		if name := sel.AttrOr("name", ""); strings.Contains(name, ".") {
			parts := strings.Split(name, ".")
			item.extension = strings.ToLower(parts[len(parts)-1])
		}
		items = append(items, item)
	})

	thumbnail := doc.Find("video").AttrOr("poster", "")
	caption := strings.TrimSpace(doc.Find("p.text-sm").First().Text())
	return items, thumbnail, caption, nil
}

// DirectURL recovers the CDN URL embedded in a proxied media href. The input
// is returned unchanged when it does not carry the marker.
func DirectURL(href string) string {
	_, encoded, found := strings.Cut(href, mediaMarker)
	if !found {
		return href
	}
	if decoded, err := url.QueryUnescape(encoded); err == nil {
		return decoded
	}
	return encoded
}
