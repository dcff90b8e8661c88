package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

const (
	bulkPageSize    = 1000
	bulkWorkers     = 4
	bulkRetries     = 2
	bulkRetryPause  = 30 * time.Second
	scrollBatchSize = 500
)

// Elastic implements Store on an Elasticsearch cluster. Bulk writes fan out
// page batches across a small worker pool; that concurrency is internal to
// this type and invisible to callers, who issue one blocking call per batch.
type Elastic struct {
	client *elastic.Client
	log    *logrus.Entry
}

// NewElastic connects to the cluster at serverURL. The health check is
// disabled so an unreachable cluster surfaces as per-run store errors rather
// than a startup failure.
func NewElastic(serverURL string, log *logrus.Entry) (*Elastic, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(serverURL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating elasticsearch client")
	}
	return &Elastic{client: client, log: log}, nil
}

// readingFields is the projection used when reading documents back.
type readingFields struct {
	SeriesKey string    `json:"seriesKey"`
	Timestamp time.Time `json:"timestamp"`
}

// MostRecent implements Store.
func (s *Elastic) MostRecent(ctx context.Context, index, seriesKey string) ([]Hit, error) {
	res, err := s.client.Search(index).
		IgnoreUnavailable(true).
		Query(elastic.NewTermQuery("seriesKey.keyword", seriesKey)).
		Sort("timestamp", false).
		Size(1).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "searching %s", index)
	}

	hits := make([]Hit, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		hit, err := toHit(h)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// WriteBatch implements Store. Pages of the batch are written concurrently;
// each page is retried on failure before the batch is reported as failed.
func (s *Elastic) WriteBatch(ctx context.Context, index string, readings []model.Reading) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkWorkers)

	for start := 0; start < len(readings); start += bulkPageSize {
		end := start + bulkPageSize
		if end > len(readings) {
			end = len(readings)
		}
		page := readings[start:end]

		g.Go(func() error {
			return s.writePage(gctx, index, page)
		})
	}

	return g.Wait()
}

func (s *Elastic) writePage(ctx context.Context, index string, page []model.Reading) error {
	attempt := func() error {
		bulk := s.client.Bulk()
		for _, r := range page {
			bulk.Add(elastic.NewBulkIndexRequest().
				Index(index).
				Id(DocID(r.Meta())).
				Doc(r.Document()))
		}

		res, err := bulk.Do(ctx)
		if err != nil {
			return err
		}
		if res.Errors {
			for _, item := range res.Failed() {
				return errors.Errorf("bulk item %s failed: %s", item.Id, item.Error.Reason)
			}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(bulkRetryPause), bulkRetries), ctx)

	if err := backoff.Retry(attempt, policy); err != nil {
		return errors.Wrapf(err, "bulk write of %d docs to %s", len(page), index)
	}

	s.log.WithFields(logrus.Fields{"index": index, "count": len(page)}).Debug("bulk page indexed")
	return nil
}

// EnsureAlias implements Store.
func (s *Elastic) EnsureAlias(ctx context.Context, baseName string) error {
	_, err := s.client.Alias().Add(baseName+"-*", baseName).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "aliasing %s-* as %s", baseName, baseName)
	}
	return nil
}

// ScanAll implements Store using a scroll cursor.
func (s *Elastic) ScanAll(ctx context.Context, index string, fn func(Hit) error) error {
	scroll := s.client.Scroll(index).
		IgnoreUnavailable(true).
		Sort("timestamp", true).
		Size(scrollBatchSize)
	defer scroll.Clear(context.Background())

	for {
		res, err := scroll.Do(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "scrolling %s", index)
		}

		for _, h := range res.Hits.Hits {
			hit, err := toHit(h)
			if err != nil {
				return err
			}
			if err := fn(hit); err != nil {
				return err
			}
		}
	}
}

// Delete implements Store.
func (s *Elastic) Delete(ctx context.Context, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}

	bulk := s.client.Bulk()
	for _, h := range hits {
		bulk.Add(elastic.NewBulkDeleteRequest().Index(h.Index).Id(h.ID))
	}

	res, err := bulk.Do(ctx)
	if err != nil {
		return errors.Wrap(err, "bulk delete")
	}
	if res.Errors {
		for _, item := range res.Failed() {
			return errors.Errorf("delete of %s failed: %s", item.Id, item.Error.Reason)
		}
	}
	return nil
}

func toHit(h *elastic.SearchHit) (Hit, error) {
	var fields readingFields
	if err := json.Unmarshal(h.Source, &fields); err != nil {
		return Hit{}, errors.Wrapf(err, "decoding document %s", h.Id)
	}
	return Hit{
		ID:        h.Id,
		Index:     h.Index,
		SeriesKey: fields.SeriesKey,
		Timestamp: fields.Timestamp.UTC(),
	}, nil
}
