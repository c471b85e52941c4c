package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

var (
	// ErrFileNotFound indicates no archived run exists
	ErrFileNotFound = errors.New("archived run not found")
	// ErrFileWriteFailed indicates file write operation failed
	ErrFileWriteFailed = errors.New("failed to write archive")
	// ErrFileReadFailed indicates file read operation failed
	ErrFileReadFailed = errors.New("failed to read archive")
)

// fileTimeLayout prefixes archive file names so they sort chronologically
const fileTimeLayout = "20060102T150405Z"

// Record is everything a finished run produced
type Record struct {
	RunID          string                  `json:"run_id"`
	State          domain.RunState         `json:"state"`
	Mode           string                  `json:"mode"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	SourceFailures []string                `json:"source_failures,omitempty"`
	Messages       []domain.Message        `json:"messages"`
	Results        []domain.AnalysisResult `json:"results"`
	Todo           domain.TodoList         `json:"todo"`
	Report         string                  `json:"report"`
}

// Store writes run records as indented JSON files under one directory
type Store struct {
	dir string
}

// NewStore creates a new Store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the archive directory
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the record and returns the file path
func (s *Store) Save(rec *Record) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	filename := rec.StartedAt.UTC().Format(fileTimeLayout) + "_" + sanitizeFilename(rec.RunID) + ".json"
	filePath := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	// Write to a temp file first so readers never see a partial archive
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	return filePath, nil
}

// Load reads one archived record
func (s *Store) Load(filePath string) (*Record, error) {
	content, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	var rec Record
	if err := json.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}
	return &rec, nil
}

// List returns archive file paths, newest first
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// LoadLatest reads the most recent archived record
func (s *Store) LoadLatest() (*Record, error) {
	paths, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrFileNotFound
	}
	return s.Load(paths[0])
}

// sanitizeFilename removes or replaces characters that are invalid in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(name)
}
