// Package matchdata fetches match payloads for a set of match ids and
// fans the non-timeline and timeline streams into one bounded channel.
package matchdata

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftdata/pipeline/internal/fetch"
	"github.com/riftdata/pipeline/internal/flow"
	"github.com/riftdata/pipeline/internal/geo"
)

const (
	// maxInFlight is lower than the league stages because match
	// payloads run to hundreds of kilobytes.
	maxInFlight = 16
	mergeBuffer = 3000
)

// Stream names one of the two payload streams.
type Stream string

const (
	NonTimeline Stream = "non_timeline"
	Timeline    Stream = "timeline"
)

// Item is one tagged payload out of the merged stream.
type Item struct {
	Stream Stream
	Raw    []byte
}

// Fetcher is the slice of the fetch client the streamer needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, location string) (fetch.Result, error)
}

// Streamer produces match payload streams.
type Streamer struct {
	api       Fetcher
	endpoints fetch.Endpoints
	log       *zap.Logger
	inFlight  int
}

// NewStreamer builds a payload streamer.
func NewStreamer(api Fetcher, endpoints fetch.Endpoints, log *zap.Logger) *Streamer {
	return &Streamer{
		api:       api,
		endpoints: endpoints,
		log:       log.Named("matchdata"),
		inFlight:  maxInFlight,
	}
}

type work struct {
	matchID string
	super   geo.SuperShard
}

func (s *Streamer) url(w work, kind Stream) string {
	if kind == Timeline {
		return s.endpoints.Timeline(w.super, w.matchID)
	}
	return s.endpoints.Match(w.super, w.matchID)
}

// StreamPayloads fetches one endpoint kind for every id, spread by
// super-shard and chunked, and hands each JSON object to emit in fetch
// completion order. Ids with no shard prefix and non-object payloads
// are skipped.
func (s *Streamer) StreamPayloads(ctx context.Context, ids []string, kind Stream, emit func(raw []byte) error) error {
	items := make([]work, 0, len(ids))
	for _, id := range ids {
		shard, err := geo.ShardOfMatchID(id)
		if err != nil {
			s.log.Info("unroutable match id", zap.String("match_id", id), zap.Error(err))
			continue
		}
		items = append(items, work{matchID: id, super: geo.SuperShardOf(shard)})
	}

	spread := flow.Spread(items, func(w work) geo.SuperShard { return w.super })

	for _, batch := range flow.Chunk(spread, s.inFlight) {
		results := make([]fetch.Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, w := range batch {
			i, w := i, w
			g.Go(func() error {
				res, err := s.api.Fetch(gctx, s.url(w, kind), string(w.super))
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, w := range batch {
			res := results[i]
			if res.Outcome != fetch.OK {
				continue
			}
			if body := bytes.TrimSpace(res.Data); len(body) == 0 || body[0] != '{' {
				s.log.Info("payload is not an object",
					zap.String("match_id", w.matchID),
					zap.String("stream", string(kind)))
				continue
			}
			if err := emit(res.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// Merge runs both payload streams and fans them into one bounded
// channel. The channel closes once both streams are exhausted; the
// returned wait func reports the first stream error after drain.
func (s *Streamer) Merge(ctx context.Context, ids []string) (<-chan Item, func() error) {
	merged := make(chan Item, mergeBuffer)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range []Stream{NonTimeline, Timeline} {
		kind := kind
		g.Go(func() error {
			return s.StreamPayloads(gctx, ids, kind, func(raw []byte) error {
				select {
				case merged <- Item{Stream: kind, Raw: raw}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		})
	}

	go func() {
		g.Wait()
		close(merged)
	}()
	return merged, g.Wait
}
