package sources

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

var (
	// ErrSourceUnavailable indicates a connector could not be reached or read
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Source yields raw records from one connector
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]ingest.Record, error)
}

// Failure records a source whose contribution was dropped
type Failure struct {
	Source string
	Err    error
}

// CollectAll asks every source in turn. A failing source contributes
// nothing and is reported; it never stops the others.
func CollectAll(ctx context.Context, sources []Source) ([]ingest.Record, []Failure) {
	var records []ingest.Record
	var failures []Failure

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Source: src.Name(), Err: unavailable(err)})
			continue
		}

		got, err := src.Collect(ctx)
		if err != nil {
			err = unavailable(err)
			log.WithFields(log.Fields{
				"source": src.Name(),
				"error":  err.Error(),
			}).Warn("[Sources] Source unavailable, skipping")
			failures = append(failures, Failure{Source: src.Name(), Err: err})
			continue
		}

		log.WithFields(log.Fields{
			"source":  src.Name(),
			"records": len(got),
		}).Info("[Sources] Collected records")
		records = append(records, got...)
	}

	return records, failures
}

func unavailable(err error) error {
	if errors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}
