package league

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/flow"
	"github.com/riftdata/pipeline/internal/geo"
)

const (
	// maxInFlight bounds concurrent league fetches per batch.
	maxInFlight = 128
	// pageUpperBound is the largest page the bound search considers.
	pageUpperBound = 1024
	pageNotFound   = 404
)

// Fetcher is the slice of the fetch client the crawler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, location string) (fetch.Result, error)
}

// Crawler streams ladder entries through a fetch client.
type Crawler struct {
	api       Fetcher
	endpoints fetch.Endpoints
	log       *zap.Logger
	inFlight  int
}

// NewCrawler builds a ladder crawler.
func NewCrawler(api Fetcher, endpoints fetch.Endpoints, log *zap.Logger) *Crawler {
	return &Crawler{
		api:       api,
		endpoints: endpoints,
		log:       log.Named("league"),
		inFlight:  maxInFlight,
	}
}

type eliteJob struct {
	url   string
	queue geo.Queue
	shard geo.Shard
}

// StreamElite fetches every bounded elite list and sends the flattened
// entries to out. Validation failures skip the response; only ctx
// cancellation aborts the stream.
func (c *Crawler) StreamElite(ctx context.Context, bounds EliteBoundsConfig, out chan<- Entry) error {
	var jobs []eliteJob
	for _, queue := range geo.Queues {
		b, ok := bounds[queue]
		if !ok || !b.Collect {
			continue
		}
		for _, tier := range b.Tiers() {
			for _, shard := range geo.Shards {
				jobs = append(jobs, eliteJob{
					url:   c.endpoints.EliteList(shard, tier, queue),
					queue: queue,
					shard: shard,
				})
			}
		}
	}

	spread := flow.Spread(jobs, func(j eliteJob) geo.SuperShard {
		return geo.SuperShardOf(j.shard)
	})

	for _, batch := range flow.Chunk(spread, c.inFlight) {
		results, err := fetchBatch(c, ctx, batch, func(j eliteJob) (string, geo.Shard) {
			return j.url, j.shard
		})
		if err != nil {
			return err
		}

		for i, j := range batch {
			res := results[i]
			if res.Outcome != fetch.OK {
				continue
			}

			var list leagueList
			err := json.Unmarshal(res.Data, &list)
			if err == nil {
				err = list.validate()
			}
			if err != nil {
				c.log.Info("elite list validation failed",
					zap.String("shard", string(j.shard)),
					zap.Error(err),
					zap.String("preview", fetch.BodyPreview(res.Data)))
				continue
			}

			for _, item := range list.Entries {
				select {
				case out <- entryFromItem(item, list, j.queue, j.shard):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// PageKey names one divisioned bracket on one shard.
type PageKey struct {
	Shard    geo.Shard
	Queue    geo.Queue
	Tier     geo.Tier
	Division geo.Division
}

// PageBound is the discovered last non-empty page for a key.
type PageBound struct {
	Key      PageKey
	LastPage int
}

// DiscoverPageBounds binary searches [1, 1024] per bounded bracket for
// the last non-empty page. The endpoint reports no page count; an
// empty list is the authoritative past-end signal, and a 404 counts as
// empty. Failed probes are logged and skipped.
func (c *Crawler) DiscoverPageBounds(ctx context.Context, bounds BracketBoundsConfig) ([]PageBound, error) {
	var keys []PageKey
	for _, shard := range geo.Shards {
		for _, queue := range geo.Queues {
			b, ok := bounds[queue]
			if !ok || !b.Collect {
				continue
			}
			for _, br := range b.Brackets() {
				keys = append(keys, PageKey{
					Shard:    shard,
					Queue:    queue,
					Tier:     br.Tier,
					Division: br.Division,
				})
			}
		}
	}

	spread := flow.Spread(keys, func(k PageKey) geo.Shard { return k.Shard })

	var out []PageBound
	for _, batch := range flow.Chunk(spread, c.inFlight) {
		pages := make([]int, len(batch))
		errs := make([]error, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, key := range batch {
			i, key := i, key
			g.Go(func() error {
				page, err := c.probe(gctx, key)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					errs[i] = err
					return nil
				}
				pages[i] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, key := range batch {
			if errs[i] != nil {
				c.log.Warn("page-bound probe failed",
					zap.String("shard", string(key.Shard)),
					zap.String("queue", string(key.Queue)),
					zap.String("tier", string(key.Tier)),
					zap.String("division", string(key.Division)),
					zap.Error(errs[i]))
				continue
			}
			out = append(out, PageBound{Key: key, LastPage: pages[i]})
		}
	}
	return out, nil
}

// probe binary searches one bracket. Invariant: pages <= low are known
// non-empty (or page 1 untested), pages >= high are known empty.
func (c *Crawler) probe(ctx context.Context, key PageKey) (int, error) {
	low, high := 1, pageUpperBound+1

	for low+1 < high {
		mid := (low + high) / 2
		url := c.endpoints.Entries(key.Shard, key.Queue, key.Tier, key.Division, mid)

		res, err := c.api.Fetch(ctx, url, string(key.Shard))
		if err != nil {
			return 0, err
		}

		switch {
		case res.Outcome == fetch.OK:
			var records []jsoniter.RawMessage
			if err := json.Unmarshal(res.Data, &records); err != nil {
				return 0, fmt.Errorf("league: probe page %d: unexpected payload: %w", mid, err)
			}
			if len(records) > 0 {
				low = mid
			} else {
				high = mid
			}
		case res.Outcome == fetch.HTTPNonRetryable && res.Status == pageNotFound:
			return low, nil
		default:
			return 0, fmt.Errorf("league: probe page %d: outcome=%s status=%d",
				mid, res.Outcome, res.Status)
		}
	}
	return low, nil
}

type pageJob struct {
	url string
	key PageKey
}

// StreamSubElite discovers page bounds, then fetches every page and
// sends validated records to out. Bad records are skipped per entry.
func (c *Crawler) StreamSubElite(ctx context.Context, bounds BracketBoundsConfig, out chan<- Entry) error {
	pageBounds, err := c.DiscoverPageBounds(ctx, bounds)
	if err != nil {
		return err
	}

	var jobs []pageJob
	for _, pb := range pageBounds {
		for page := 1; page <= pb.LastPage; page++ {
			jobs = append(jobs, pageJob{
				url: c.endpoints.Entries(pb.Key.Shard, pb.Key.Queue, pb.Key.Tier, pb.Key.Division, page),
				key: pb.Key,
			})
		}
	}

	spread := flow.Spread(jobs, func(j pageJob) geo.Shard { return j.key.Shard })

	for _, batch := range flow.Chunk(spread, c.inFlight) {
		results, err := fetchBatch(c, ctx, batch, func(j pageJob) (string, geo.Shard) {
			return j.url, j.key.Shard
		})
		if err != nil {
			return err
		}

		for i, j := range batch {
			res := results[i]
			if res.Outcome != fetch.OK {
				continue
			}

			var records []jsoniter.RawMessage
			if err := json.Unmarshal(res.Data, &records); err != nil {
				c.log.Info("entries page is not a list",
					zap.String("shard", string(j.key.Shard)),
					zap.String("preview", fetch.BodyPreview(res.Data)))
				continue
			}

			for _, raw := range records {
				var rec leagueEntry
				err := json.Unmarshal(raw, &rec)
				if err == nil {
					err = rec.validate()
				}
				if err != nil {
					c.log.Info("entry validation failed",
						zap.String("shard", string(j.key.Shard)),
						zap.Error(err),
						zap.String("preview", fetch.BodyPreview(raw)))
					continue
				}

				select {
				case out <- entryFromRecord(rec, j.key.Shard):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// fetchBatch runs one chunk of jobs concurrently and returns results
// positionally. Only ctx cancellation is an error; per-job outcomes
// are classified in the results.
func fetchBatch[J any](c *Crawler, ctx context.Context, batch []J, addr func(J) (string, geo.Shard)) ([]fetch.Result, error) {
	results := make([]fetch.Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range batch {
		i, j := i, j
		g.Go(func() error {
			url, shard := addr(j)
			res, err := c.api.Fetch(gctx, url, string(shard))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
