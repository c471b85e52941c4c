package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

// ChatDirSource reads every *.json chat log in a directory
type ChatDirSource struct {
	dir string
}

// NewChatDirSource creates a new ChatDirSource instance
func NewChatDirSource(dir string) *ChatDirSource {
	return &ChatDirSource{dir: dir}
}

// Name returns the source name
func (s *ChatDirSource) Name() string {
	return "chat:" + filepath.Base(s.dir)
}

// Collect decodes each file independently; one bad file never stops the
// others
func (s *ChatDirSource) Collect(ctx context.Context) ([]ingest.Record, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if info, err := os.Stat(s.dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, s.dir)
	}
	sort.Strings(files)

	var records []ingest.Record
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		origin := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		data, err := os.ReadFile(path)
		if err != nil {
			s.skip(path, err)
			continue
		}
		got, err := ingest.DecodeChatFile(origin, data)
		if err != nil {
			s.skip(path, err)
			continue
		}
		records = append(records, got...)
	}
	return records, nil
}

func (s *ChatDirSource) skip(path string, err error) {
	log.WithFields(log.Fields{
		"source": s.Name(),
		"file":   path,
		"error":  err.Error(),
	}).Warn("[Sources] Skipping unreadable chat file")
}
