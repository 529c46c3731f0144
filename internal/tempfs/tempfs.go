// Package tempfs manages per-delivery scratch directories. Every download gets
// a directory namespaced by chat and session id, and the whole directory is
// removed when the delivery finishes, succeed or fail.
package tempfs

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Root creates scopes under a base directory.
type Root struct {
	base string
	log  *zap.SugaredLogger
}

func NewRoot(base string) (*Root, error) {
	if base == "" {
		base = filepath.Join(os.TempDir(), "mediagrab")
	}
	if err := os.MkdirAll(base, 0o770); err != nil {
		return nil, fmt.Errorf("failed to create temp root %v: %w", base, err)
	}
	return &Root{base: base, log: zap.S().Named("tempfs")}, nil
}

func (r *Root) Base() string { return r.base }

// A Scope is one delivery's scratch directory. Close removes it recursively,
// so partial downloads and transcode intermediates never outlive the delivery.
type Scope struct {
	dir  string
	root *Root
}

// Scope creates (or reuses) the directory base/chatID/sessionID.
func (r *Root) Scope(chatID, sessionID string) (*Scope, error) {
	dir := filepath.Join(r.base, chatID, sessionID)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("failed to create scope %v: %w", dir, err)
	}
	return &Scope{dir: dir, root: r}, nil
}

func (s *Scope) Dir() string { return s.dir }

// Path returns a file path inside the scope.
func (s *Scope) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Close removes the scope directory and everything in it. Safe to call more
// than once.
func (s *Scope) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	if err != nil {
		s.root.log.Errorw("failed to remove scope", "dir", s.dir, "error", err)
		return err
	}
	s.root.log.Debugw("removed scope", "dir", s.dir)
	s.dir = ""
	return nil
}
