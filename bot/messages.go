package bot

import (
	"errors"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/internal/sessioncache"
	"github.com/dkamalov/mediagrab/pending"
)

const (
	msgUnsupported       = "This platform isn't supported. Send a YouTube, TikTok or Instagram link."
	msgRateLimited       = "Slow down a little. Try again in a minute."
	msgResolving         = "Fetching media info..."
	msgDownloading       = "Downloading..."
	msgSessionExpired    = "This menu has expired. Send the link again."
	msgInvalidButton     = "This button is no longer valid."
	msgTimeout           = "The conversion is taking too long. Try again."
	msgTooLarge          = "The file is too large to deliver."
	msgNoFormats         = "No downloadable formats were found."
	msgNoResults         = "Nothing found for that query."
	msgNetworkError      = "The platform isn't responding. Try again later."
	msgDownloadFailed    = "Download failed. Try again."
	msgTranscodeFailed   = "Audio extraction failed for this file."
	msgSearching         = "Searching..."
	msgPickResult        = "Pick a track:"
	msgGenericError      = "Something went wrong. Try again."
)

// userMessage maps an internal failure onto the message shown in chat. The
// error itself is only ever logged.
func userMessage(err error) string {
	switch {
	case errors.Is(err, sessioncache.ErrNotFound):
		return msgSessionExpired
	case errors.Is(err, pending.ErrTimeout):
		return msgTimeout
	case errors.Is(err, mediagrab.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, mediagrab.ErrNoFormats), errors.Is(err, mediagrab.ErrNoAudioFormat):
		return msgNoFormats
	case errors.Is(err, mediagrab.ErrNoMatch), errors.Is(err, mediagrab.ErrUnknownProvider):
		return msgUnsupported
	case errors.Is(err, mediagrab.ErrBadContentType), errors.Is(err, mediagrab.ErrEmptyFile):
		return msgDownloadFailed
	}
	switch mediagrab.ResolutionCategory(err) {
	case mediagrab.ResolutionNetwork:
		return msgNetworkError
	case mediagrab.ResolutionNotFound, mediagrab.ResolutionParse:
		return msgNoFormats
	case mediagrab.ResolutionNoFormats:
		return msgNoFormats
	}
	return msgGenericError
}
