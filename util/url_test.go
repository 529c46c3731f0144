package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanURL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("https://youtu.be/abc", CleanURL("https://youtu.be/abc+ \n"))
	assert.Equal("https://youtu.be/abc", CleanURL("https://youtu.be/abc/"))
	assert.Equal("https://youtu.be/abc?t=1", CleanURL("https://youtu.be/abc?t=1"))
}

func TestIsValidURL(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsValidURL("https://example.com/path"))
	assert.True(IsValidURL("http://example.com"))
	assert.False(IsValidURL("ftp://example.com/file"))
	assert.False(IsValidURL("https://"))
	assert.False(IsValidURL("just some text"))
}

func TestFilenameFromURLString(t *testing.T) {
	assert := assert.New(t)

	filename, err := FilenameFromURLString("https://cdn.example/files/video.mp4?sig=abc")
	assert.NoError(err)
	assert.Equal("video.mp4", filename)

	_, err = FilenameFromURLString("https://cdn.example/")
	assert.Error(err)
}
