package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Some Video Title", SanitizeTitle(`Some <Video> "Title?"`))
	assert.Equal("ab", SanitizeTitle(`a\/b`))
	long := strings.Repeat("x", 250)
	assert.Len(SanitizeTitle(long), 100)
}

func TestCleanURLText(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("https://youtu.be/abc", CleanURL("https://youtu.be/abc/ \n"))
	assert.Equal("https://youtu.be/abc", CleanURL("https://youtu.be/abc+++"))
}

func TestIsValidURLText(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsValidURL("https://www.youtube.com/watch?v=abc"))
	assert.True(IsValidURL("http://example.com"))
	assert.False(IsValidURL("ftp://example.com"))
	assert.False(IsValidURL("not a url"))
	assert.False(IsValidURL("https://"))
}

func TestParseApproxSize(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(int64(5452595), ParseApproxSize("5.2 MB"))
	assert.Equal(int64(1181116006), ParseApproxSize("1.1 GB"))
	assert.Equal(int64(0), ParseApproxSize("Unknown"))
	assert.Equal(int64(0), ParseApproxSize(""))
	assert.Equal(int64(0), ParseApproxSize("garbage"))
}
