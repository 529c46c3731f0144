package util

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// CleanURL strips the junk users paste along with links (trailing slashes,
// plus signs, whitespace).
func CleanURL(s string) string {
	return strings.TrimRight(s, "+/ \t\n\r")
}

// IsValidURL reports whether s is a well-formed http(s) URL with a host.
func IsValidURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}
