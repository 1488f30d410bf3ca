// Package session persists the client's {token, user} pair on disk.
// The two values live in a single file so they can only ever be
// written or cleared together.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shoplite/apiserver/internal/auth"
	"github.com/shoplite/apiserver/types"
)

// Session is the cached authentication snapshot.
type Session struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// IsAuthenticated reports whether a user snapshot is present.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// IsAdmin reports whether the cached user holds the admin role.
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.User.IsAdmin()
}

// Store reads and writes the session file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a Store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath places the session file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "shoplite", "session.json"), nil
}

// Load restores the cached session. The token is decoded locally
// (no network call, no signature check — the client has no secret) and
// checked for expiry; a malformed or expired token clears the whole
// file and returns nil. A missing file is not an error.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Token == "" {
		_ = s.Clear()
		return nil, nil
	}

	claims, err := auth.DecodeUnverified(sess.Token)
	if err != nil || claims.Expired(s.now()) {
		_ = s.Clear()
		return nil, nil
	}

	return &sess, nil
}

// Save persists the pair atomically: the new content is written to a
// temp file in the same directory and renamed over the old one, so a
// crash can never leave a token without its user snapshot.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.Token == "" {
		return errors.New("refusing to save empty session")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// Clear removes the session file. Logout is purely local: tokens are
// stateless and the server keeps no revocation list, so there is
// nothing to call.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
