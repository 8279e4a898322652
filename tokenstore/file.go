package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
)

// fileContents is the on-disk layout. Each profile (one per backend host)
// owns its own key space so switching servers never clobbers another
// server's session.
type fileContents struct {
	Profiles map[string]map[string]string `json:"profiles"`
}

// FileBackend stores values for a single profile in a JSON file shared with
// other profiles and other processes.
type FileBackend struct {
	path    string
	profile string
}

// NewFileBackend returns a backend that reads and writes profile's values in
// the file at path. The file is created on first write.
func NewFileBackend(path, profile string) *FileBackend {
	return &FileBackend{path: path, profile: profile}
}

// Path returns the location of the token file.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Read(keys ...string) (map[string]string, error) {
	contents, err := b.readFile()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	stored := contents.Profiles[b.profile]
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := stored[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (b *FileBackend) Write(values map[string]string) error {
	return b.update(func(profile map[string]string) {
		maps.Copy(profile, values)
	})
}

func (b *FileBackend) Delete(keys ...string) error {
	return b.update(func(profile map[string]string) {
		for _, k := range keys {
			delete(profile, k)
		}
	})
}

// update applies fn to this profile's values under the file lock and commits
// the result with write-then-rename.
func (b *FileBackend) update(fn func(profile map[string]string)) (err error) {
	lock, err := acquireFileLock(b.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil && err == nil {
			err = fmt.Errorf("failed to release lock: %w", releaseErr)
		}
	}()

	contents, readErr := b.readFile()
	if readErr != nil {
		// A missing or corrupt file is replaced rather than blocking writes.
		contents = &fileContents{}
	}
	if contents.Profiles == nil {
		contents.Profiles = make(map[string]map[string]string)
	}
	profile := contents.Profiles[b.profile]
	if profile == nil {
		profile = make(map[string]string)
	}

	fn(profile)

	if len(profile) == 0 {
		delete(contents.Profiles, b.profile)
	} else {
		contents.Profiles[b.profile] = profile
	}

	return b.commit(contents)
}

func (b *FileBackend) readFile() (*fileContents, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, err
	}
	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &contents, nil
}

func (b *FileBackend) commit(contents *fileContents) error {
	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
