// ABOUTME: File-backed session provider holding the signed-in user's token
// ABOUTME: Re-reads the session file on each call so sign-in/out needs no restart
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/coldflow/coldflow/sync"
)

type sessionFile struct {
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

// FileSession reads the current session from a JSON file on disk. A missing
// file means signed out.
type FileSession struct {
	path string
}

func NewFileSession(path string) *FileSession {
	return &FileSession{path: path}
}

// Session implements sync.SessionProvider. A missing or unreadable file is
// signed out, not an error.
func (f *FileSession) Session(ctx context.Context) (*sync.Session, error) {
	data, ok := f.read()
	if !ok || data.Email == "" {
		return nil, nil
	}
	return &sync.Session{Email: data.Email}, nil
}

// Token implements TokenSource for the REST client.
func (f *FileSession) Token() string {
	data, ok := f.read()
	if !ok {
		return ""
	}
	return data.AccessToken
}

// Write persists a session to disk, creating or replacing the file.
func (f *FileSession) Write(email, accessToken string) error {
	payload, err := json.MarshalIndent(sessionFile{Email: email, AccessToken: accessToken}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(f.path, payload, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear signs out by removing the session file.
func (f *FileSession) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

func (f *FileSession) read() (sessionFile, bool) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return sessionFile{}, false
	}
	var data sessionFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return sessionFile{}, false
	}
	return data, true
}
