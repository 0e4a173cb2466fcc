package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"vidnote/internal/fileutil"
	"vidnote/internal/notes"
	"vidnote/internal/services"
)

// Artifact file names within a task directory.
const (
	FileAudioMeta  = "audio_meta.json"
	FileTranscript = "transcript.json"
	FileNote       = "note.md"
	FileStatus     = "status.json"
	FileResult     = "result.json"
	DirScreenshots = "screenshots"
)

// Store persists pipeline artifacts under a per-task directory. All writes go
// through a temp file followed by an atomic rename, so readers never observe a
// partially written artifact.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifacts: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// TaskDir returns the directory holding artifacts for the given task,
// creating it if needed.
func (s *Store) TaskDir(taskID string) (string, error) {
	dir := filepath.Join(s.root, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create task dir: %w", err)
	}
	return dir, nil
}

// ScreenshotsDir returns the screenshot directory for the task, creating it
// if needed.
func (s *Store) ScreenshotsDir(taskID string) (string, error) {
	dir := filepath.Join(s.root, taskID, DirScreenshots)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create screenshots dir: %w", err)
	}
	return dir, nil
}

// Path returns the absolute path of the named artifact without checking
// whether it exists.
func (s *Store) Path(taskID, name string) string {
	return filepath.Join(s.root, taskID, name)
}

// Exists reports whether the named artifact is present on disk.
func (s *Store) Exists(taskID, name string) bool {
	info, err := os.Stat(s.Path(taskID, name))
	return err == nil && info.Mode().IsRegular()
}

// SaveJSON atomically writes v as indented JSON to the named artifact.
func (s *Store) SaveJSON(taskID, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: encode %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.Path(taskID, name), data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", name, err)
	}
	return nil
}

// LoadJSON reads the named artifact into out. A missing file maps to
// services.ErrNotFound; unparseable content maps to services.ErrArtifactCorrupt
// so callers treat it as a cache miss and recompute.
func (s *Store) LoadJSON(taskID, name string, out any) error {
	data, err := os.ReadFile(s.Path(taskID, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: artifact %s for task %s", services.ErrNotFound, name, taskID)
		}
		return fmt.Errorf("artifacts: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: artifact %s for task %s: %v", services.ErrArtifactCorrupt, name, taskID, err)
	}
	return nil
}

// SaveNote atomically writes the rendered markdown note.
func (s *Store) SaveNote(taskID, markdown string) error {
	if err := fileutil.WriteFileAtomic(s.Path(taskID, FileNote), []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("artifacts: write note: %w", err)
	}
	return nil
}

// LoadNote reads the rendered markdown note.
func (s *Store) LoadNote(taskID string) (string, error) {
	data, err := os.ReadFile(s.Path(taskID, FileNote))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: note for task %s", services.ErrNotFound, taskID)
		}
		return "", fmt.Errorf("artifacts: read note: %w", err)
	}
	return string(data), nil
}

// SaveAudioMeta stores the download stage output.
func (s *Store) SaveAudioMeta(taskID string, meta *notes.AudioMeta) error {
	return s.SaveJSON(taskID, FileAudioMeta, meta)
}

// LoadAudioMeta reads the download stage output.
func (s *Store) LoadAudioMeta(taskID string) (*notes.AudioMeta, error) {
	var meta notes.AudioMeta
	if err := s.LoadJSON(taskID, FileAudioMeta, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveTranscript stores the transcription stage output.
func (s *Store) SaveTranscript(taskID string, transcript *notes.Transcript) error {
	return s.SaveJSON(taskID, FileTranscript, transcript)
}

// LoadTranscript reads the transcription stage output.
func (s *Store) LoadTranscript(taskID string) (*notes.Transcript, error) {
	var transcript notes.Transcript
	if err := s.LoadJSON(taskID, FileTranscript, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// SaveResult stores the final task result.
func (s *Store) SaveResult(taskID string, result *notes.Result) error {
	return s.SaveJSON(taskID, FileResult, result)
}

// LoadResult reads the final task result.
func (s *Store) LoadResult(taskID string) (*notes.Result, error) {
	var result notes.Result
	if err := s.LoadJSON(taskID, FileResult, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveTask deletes every artifact for the task.
func (s *Store) RemoveTask(taskID string) error {
	if taskID == "" {
		return errors.New("artifacts: task id is required")
	}
	return os.RemoveAll(filepath.Join(s.root, taskID))
}
