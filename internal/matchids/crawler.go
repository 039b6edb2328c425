// Package matchids crawls per-player ranked match-id pages through a
// self-feeding worker pool.
package matchids

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/geo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// MaxPageStart caps the pagination offset; the upstream endpoint
	// serves at most 1000 ids per player.
	MaxPageStart = 900
	// PageSize ids per page; a shorter page ends a player's crawl.
	PageSize = 100

	maxInFlight = 128
)

// Fetcher is the slice of the fetch client the crawler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, location string) (fetch.Result, error)
}

// PlayerState is one player's crawl position. Successor states are new
// values; a state is never mutated in place.
type PlayerState struct {
	PUUID         string
	Queue         geo.Queue
	SuperShard    geo.SuperShard
	NextPageStart int
	// BaseURL carries the {start} and {endTime} placeholders filled at
	// request time.
	BaseURL string
}

func (s PlayerState) url(ts int64) string {
	return strings.NewReplacer(
		fetch.StartPlaceholder, strconv.Itoa(s.NextPageStart),
		fetch.EndTimePlaceholder, strconv.FormatInt(ts, 10),
	).Replace(s.BaseURL)
}

// Crawler drains a set of player states through a worker pool.
type Crawler struct {
	api     Fetcher
	log     *zap.Logger
	workers int
}

// NewCrawler builds a match-id crawler.
func NewCrawler(api Fetcher, log *zap.Logger) *Crawler {
	return &Crawler{
		api:     api,
		log:     log.Named("matchids"),
		workers: maxInFlight,
	}
}

// Stream sends one id batch per fetched page to out until every player
// is exhausted. Workers enqueue a successor state only when the page
// came back full and the offset is below the cap, so each player is
// advanced at most ten times. Stream does not close out.
func (c *Crawler) Stream(ctx context.Context, states []PlayerState, ts int64, out chan<- []string) error {
	// Occupancy never exceeds the initial state count: a worker
	// enqueues at most one successor per state it consumed. The extra
	// slots hold the per-worker shutdown sentinels.
	work := make(chan *PlayerState, len(states)+c.workers)

	var pending atomic.Int64
	drained := make(chan struct{})
	pending.Store(int64(len(states)))
	if len(states) == 0 {
		close(drained)
	}
	for i := range states {
		st := states[i]
		work <- &st
	}

	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < c.workers; w++ {
		g.Go(func() error {
			for {
				var st *PlayerState
				select {
				case st = <-work:
				case <-gctx.Done():
					return gctx.Err()
				}
				if st == nil {
					return nil
				}

				ids, err := c.fetchPage(gctx, st, ts)
				if err != nil {
					return err
				}

				select {
				case out <- ids:
				case <-gctx.Done():
					return gctx.Err()
				}

				// Successor before the pending decrement so the
				// drained signal can't fire with work still due.
				if st.NextPageStart != MaxPageStart && len(ids) == PageSize {
					next := *st
					next.NextPageStart += PageSize
					pending.Add(1)
					work <- &next
				}
				if pending.Add(-1) == 0 {
					close(drained)
				}
			}
		})
	}

	g.Go(func() error {
		select {
		case <-drained:
		case <-gctx.Done():
			return gctx.Err()
		}
		for i := 0; i < c.workers; i++ {
			work <- nil
		}
		return nil
	})

	return g.Wait()
}

// fetchPage returns the page's ids; any non-OK outcome is an empty
// page so the player simply stops advancing.
func (c *Crawler) fetchPage(ctx context.Context, st *PlayerState, ts int64) ([]string, error) {
	res, err := c.api.Fetch(ctx, st.url(ts), string(st.SuperShard))
	if err != nil {
		return nil, err
	}
	if res.Outcome != fetch.OK {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(res.Data, &ids); err != nil {
		c.log.Info("id page is not a string list",
			zap.String("puuid", st.PUUID),
			zap.String("preview", fetch.BodyPreview(res.Data)))
		return nil, nil
	}
	return ids, nil
}
