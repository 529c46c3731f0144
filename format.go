package mediagrab

import (
	"fmt"
	"strings"

	"github.com/dkamalov/mediagrab/generic"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// A Format is one concrete downloadable variant of a piece of media.
type Format struct {
	// Container is the file container/extension, e.g. "mp4", "m4a", "mp3".
	Container string
	// Quality is the platform-reported quality label, e.g. "128K", "720p". Not normalized.
	Quality string
	// Resolution, where the platform reports one, e.g. "1280x720".
	Resolution string
	// SourceURL is either a final byte URL or a pending conversion-job URL (see Pending).
	SourceURL string
	// ApproxSize is the platform-reported size in bytes. Advisory only; 0 when unknown.
	ApproxSize int64
	Kind       MediaKind
	// Pending marks SourceURL as a conversion job that must be polled to
	// completion before the real byte URL is known.
	Pending bool
}

// Label renders the format the way it appears on a menu button.
func (f Format) Label() string {
	parts := []string{strings.ToUpper(f.Container)}
	if f.Resolution != "" {
		parts = append(parts, f.Resolution)
	}
	if f.Quality != "" {
		parts = append(parts, f.Quality)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("%s - %s", parts[0], strings.Join(parts[1:], " "))
}

// SelectionPolicy picks the best audio variant from a format list. The deny
// list and preferred label come from observed external-API behavior and are
// configuration, not invariants: the services relabel without notice.
type SelectionPolicy struct {
	// DeniedQualities are labels dropped outright, e.g. "48K".
	DeniedQualities generic.Set[string]
	// PreferredQuality is picked over everything else when present, e.g. "128K".
	PreferredQuality string
}

func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{
		DeniedQualities:  generic.NewSet("48K"),
		PreferredQuality: "128K",
	}
}

// Usable reports whether a quality label survives filtering: not on the deny
// list and not flagged unavailable by the source ("false" markers).
func (p SelectionPolicy) Usable(quality string) bool {
	if strings.Contains(strings.ToLower(quality), "false") {
		return false
	}
	if p.DeniedQualities != nil && p.DeniedQualities.Contains(quality) {
		return false
	}
	return true
}

// BestAudio deterministically picks the audio format to deliver: audio kind
// only, deny-listed labels excluded, the preferred label if present, otherwise
// the first remaining candidate in original order. ErrNoAudioFormat means the
// caller should download any format and extract audio with the transcoder.
func (p SelectionPolicy) BestAudio(formats []Format) (Format, error) {
	var candidates []Format
	for _, f := range formats {
		if f.Kind != MediaAudio {
			continue
		}
		if !p.Usable(f.Quality) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return Format{}, ErrNoAudioFormat
	}
	for _, f := range candidates {
		if f.Quality == p.PreferredQuality {
			return f, nil
		}
	}
	return candidates[0], nil
}
