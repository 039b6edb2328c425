// Package league streams the ranked ladder: elite tiers through list
// endpoints, sub-elite brackets through paged divisioned endpoints
// with binary-search page-bound discovery.
package league

import "github.com/riftdata/pipeline/internal/geo"

// EliteBounds selects an inclusive [Upper, Lower] elite-tier range for
// one queue. Nil bounds mean unbounded in that direction.
type EliteBounds struct {
	Collect bool
	Upper   *geo.EliteTier
	Lower   *geo.EliteTier
}

// Tiers enumerates the bounded elite tiers, best first.
func (b EliteBounds) Tiers() []geo.EliteTier {
	var out []geo.EliteTier
	started := b.Upper == nil
	for _, t := range geo.EliteTiers {
		if !started && b.Upper != nil && t == *b.Upper {
			started = true
		}
		if started {
			out = append(out, t)
		}
		if b.Lower != nil && t == *b.Lower {
			break
		}
	}
	return out
}

// BracketBounds selects an inclusive [Upper, Lower] bracket range for
// one queue over the (tier, division) product.
type BracketBounds struct {
	Collect bool
	Upper   *geo.Bracket
	Lower   *geo.Bracket
}

// Brackets enumerates the bounded (tier, division) pairs, best first.
func (b BracketBounds) Brackets() []geo.Bracket {
	var out []geo.Bracket
	started := b.Upper == nil
	for _, br := range geo.Brackets() {
		if !started && b.Upper != nil && br == *b.Upper {
			started = true
		}
		if started {
			out = append(out, br)
		}
		if b.Lower != nil && br == *b.Lower {
			break
		}
	}
	return out
}

// EliteBoundsConfig maps each queue to its elite collection bounds.
type EliteBoundsConfig map[geo.Queue]EliteBounds

// BracketBoundsConfig maps each queue to its sub-elite bounds.
type BracketBoundsConfig map[geo.Queue]BracketBounds

// DefaultEliteBounds collects every elite tier on both queues.
func DefaultEliteBounds() EliteBoundsConfig {
	return EliteBoundsConfig{
		geo.QueueSolo: {Collect: true},
		geo.QueueFlex: {Collect: true},
	}
}

// DefaultBracketBounds collects every sub-elite bracket on both queues.
func DefaultBracketBounds() BracketBoundsConfig {
	return BracketBoundsConfig{
		geo.QueueSolo: {Collect: true},
		geo.QueueFlex: {Collect: true},
	}
}
