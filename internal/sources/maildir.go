package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

// MaildirSource reads .eml files and maildir cur/new entries under a
// directory
type MaildirSource struct {
	dir string
}

// NewMaildirSource creates a new MaildirSource instance
func NewMaildirSource(dir string) *MaildirSource {
	return &MaildirSource{dir: dir}
}

// Name returns the source name
func (s *MaildirSource) Name() string {
	return "maildir:" + filepath.Base(s.dir)
}

// Collect parses every message file. A file that cannot be read or parsed
// is logged and skipped.
func (s *MaildirSource) Collect(ctx context.Context) ([]ingest.Record, error) {
	if info, err := os.Stat(s.dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, s.dir)
	}

	var files []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		parent := filepath.Base(filepath.Dir(path))
		if strings.EqualFold(filepath.Ext(path), ".eml") || parent == "cur" || parent == "new" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	sort.Strings(files)

	var records []ingest.Record
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			s.skip(path, err)
			continue
		}
		var rec ingest.MailRecord
		if err := parseMIME(raw, &rec); err != nil {
			s.skip(path, err)
			continue
		}
		records = append(records, ingest.FromMail(s.Name(), len(records), rec))
	}
	return records, nil
}

func (s *MaildirSource) skip(path string, err error) {
	log.WithFields(log.Fields{
		"source": s.Name(),
		"file":   path,
		"error":  err.Error(),
	}).Warn("[Sources] Skipping unreadable message file")
}
