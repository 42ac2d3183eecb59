package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wagate/internal/engine"
)

// FileStore keeps one directory per device id under Root, one file per
// credential blob. The device directory is the unit of ownership: it is
// created on first save and removed wholesale on delete.
type FileStore struct {
	Root string
}

func NewFileStore(root string) (*FileStore, error) {
	cleaned := strings.TrimSpace(root)
	if cleaned == "" {
		return nil, fmt.Errorf("credstore: root directory is required")
	}
	if err := os.MkdirAll(cleaned, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create root %q: %w", cleaned, err)
	}
	return &FileStore{Root: cleaned}, nil
}

func (s *FileStore) Load(deviceID string) (engine.Credential, error) {
	dir, err := s.deviceDir(deviceID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine.Credential{}, nil
		}
		return nil, fmt.Errorf("credstore: read %q: %w", dir, err)
	}
	cred := make(engine.Credential, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("credstore: read blob %q: %w", entry.Name(), err)
		}
		cred[entry.Name()] = blob
	}
	return cred, nil
}

func (s *FileStore) Save(deviceID string, cred engine.Credential) error {
	dir, err := s.deviceDir(deviceID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create %q: %w", dir, err)
	}
	for name, blob := range cred {
		if !validBlobName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidBlobName, name)
		}
		if err := writeFileAtomic(filepath.Join(dir, name), blob); err != nil {
			return fmt.Errorf("credstore: write blob %q: %w", name, err)
		}
	}
	return nil
}

func (s *FileStore) Delete(deviceID string) error {
	dir, err := s.deviceDir(deviceID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("credstore: delete %q: %w", dir, err)
	}
	return nil
}

// Exists reports whether any material is stored for the device.
func (s *FileStore) Exists(deviceID string) (bool, error) {
	dir, err := s.deviceDir(deviceID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileStore) deviceDir(deviceID string) (string, error) {
	key := sanitizeDeviceID(deviceID)
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeviceID, deviceID)
	}
	return filepath.Join(s.Root, key), nil
}

// sanitizeDeviceID maps a caller-supplied device id onto a safe directory
// name. Path separators and dot-segments must not escape Root.
func sanitizeDeviceID(deviceID string) string {
	key := strings.TrimSpace(deviceID)
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "\\", "_")
	key = strings.ReplaceAll(key, ":", "_")
	if key == "." || key == ".." {
		return ""
	}
	return key
}

func validBlobName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return name == filepath.Base(name) && name != "." && name != ".."
}

func writeFileAtomic(path string, blob []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
