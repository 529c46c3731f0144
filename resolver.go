package mediagrab

import "context"

// ResolvedMedia is the normalized output of a platform resolver: everything
// needed to render a format menu and later download a chosen variant.
type ResolvedMedia struct {
	// Title is sanitized for filesystem use and capped in length.
	Title string
	// Formats is the display-ordered variant list. Every element has a
	// non-empty SourceURL and a quality label that survived filtering.
	Formats []Format
	// Thumbnail is a preview image URL, or "".
	Thumbnail string
	// Meta carries platform-specific fields (author, caption, fallback URLs).
	Meta map[string]string
}

// A Request is a URL that some provider has claimed. Resolve calls the
// platform's external metadata endpoint and normalizes the response.
type Request interface {
	// URL returns the canonical URL for this request. The Provider.Match that
	// created the Request is assumed to match this canonical form too.
	URL() string
	// Resolve fetches and normalizes the media metadata. Failures come back
	// as a *ResolutionError.
	Resolve(context.Context) (*ResolvedMedia, error)
}
