package mediagrab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkamalov/mediagrab/generic"
)

func TestFormatLabel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("MP4 - 1280x720 720p", Format{Container: "mp4", Resolution: "1280x720", Quality: "720p"}.Label())
	assert.Equal("M4A - 128K", Format{Container: "m4a", Quality: "128K"}.Label())
	assert.Equal("MP3", Format{Container: "mp3"}.Label())
}

func TestBestAudioPrefersPreferredQuality(t *testing.T) {
	assert := assert.New(t)
	policy := DefaultSelectionPolicy()

	formats := []Format{
		{Container: "mp4", Quality: "720p", Kind: MediaVideo},
		{Container: "m4a", Quality: "64K", Kind: MediaAudio},
		{Container: "m4a", Quality: "128K", Kind: MediaAudio},
		{Container: "m4a", Quality: "256K", Kind: MediaAudio},
	}
	best, err := policy.BestAudio(formats)
	assert.NoError(err)
	assert.Equal("128K", best.Quality)
}

func TestBestAudioFallsBackToFirstCandidate(t *testing.T) {
	assert := assert.New(t)
	policy := DefaultSelectionPolicy()

	formats := []Format{
		{Container: "m4a", Quality: "64K", Kind: MediaAudio},
		{Container: "m4a", Quality: "256K", Kind: MediaAudio},
	}
	best, err := policy.BestAudio(formats)
	assert.NoError(err)
	assert.Equal("64K", best.Quality, "first remaining candidate wins when the preferred label is absent")
}

func TestBestAudioDenyList(t *testing.T) {
	assert := assert.New(t)
	policy := DefaultSelectionPolicy()

	formats := []Format{
		{Container: "m4a", Quality: "48K", Kind: MediaAudio},
		{Container: "m4a", Quality: "96K", Kind: MediaAudio},
	}
	best, err := policy.BestAudio(formats)
	assert.NoError(err)
	assert.Equal("96K", best.Quality)

	// Only denied candidates left.
	_, err = policy.BestAudio(formats[:1])
	assert.ErrorIs(err, ErrNoAudioFormat)
}

func TestBestAudioRejectsUnavailableLabels(t *testing.T) {
	assert := assert.New(t)
	policy := DefaultSelectionPolicy()

	formats := []Format{
		{Container: "m4a", Quality: "false", Kind: MediaAudio},
		{Container: "m4a", Quality: "320K false", Kind: MediaAudio},
	}
	_, err := policy.BestAudio(formats)
	assert.ErrorIs(err, ErrNoAudioFormat)
}

func TestBestAudioIgnoresVideo(t *testing.T) {
	assert := assert.New(t)
	policy := DefaultSelectionPolicy()

	formats := []Format{
		{Container: "mp4", Quality: "1080p", Kind: MediaVideo},
		{Container: "mp4", Quality: "720p", Kind: MediaVideo},
	}
	_, err := policy.BestAudio(formats)
	assert.ErrorIs(err, ErrNoAudioFormat)
}

func TestBestAudioIsDeterministic(t *testing.T) {
	assert := assert.New(t)
	policy := SelectionPolicy{DeniedQualities: generic.NewSet[string](), PreferredQuality: "128K"}

	formats := []Format{
		{Container: "m4a", Quality: "96K", Kind: MediaAudio},
		{Container: "m4a", Quality: "96K", Resolution: "second", Kind: MediaAudio},
	}
	for i := 0; i < 10; i++ {
		best, err := policy.BestAudio(formats)
		assert.NoError(err)
		assert.Empty(best.Resolution, "identical labels must resolve by original order")
	}
}
