// Package scanner produces Bitcoin blocks in strictly ascending, contiguous
// order, holding back the configured confirmation count, and blocking on the
// node's newblock notification once caught up to the tip.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/chain"
)

// defaultWaitTimeout bounds a single waitfornewblock call; the scanner loops
// back around and re-checks the tip on timeout or notification alike.
const defaultWaitTimeout = 60 * time.Second

// Item is one block ready for the Parser, paired with its height and hash.
type Item struct {
	Height uint64
	Hash   string
	Block  *wire.MsgBlock
}

// Scanner walks the chain forward from a starting height, respecting a
// confirmation lag against the node's reported tip.
type Scanner struct {
	node          chain.NodeRPC
	confirmations uint64
	capacity      int
	nextHeight    uint64
	waitTimeout   time.Duration
}

// New creates a Scanner that will begin emitting at startHeight.
func New(node chain.NodeRPC, startHeight uint64, confirmations uint64, capacity int) *Scanner {
	if capacity <= 0 {
		capacity = 1
	}
	return &Scanner{
		node:          node,
		confirmations: confirmations,
		capacity:      capacity,
		nextHeight:    startHeight,
		waitTimeout:   defaultWaitTimeout,
	}
}

// NextHeight reports the height the scanner will fetch next, for resume
// bookkeeping by the caller.
func (s *Scanner) NextHeight() uint64 { return s.nextHeight }

// NextBatch blocks until at least one block is ready, then returns up to
// `capacity` contiguous items starting at NextHeight(). Transient RPC errors
// are retried internally with bounded backoff; any other error, including
// cancellation of ctx, is returned to the caller without advancing
// NextHeight() — the scanner never silently skips a height.
func (s *Scanner) NextBatch(ctx context.Context) ([]Item, error) {
	backoff := initialRPCBackoff

	for {
		items, err := s.collectReady(ctx)
		if err == nil {
			if len(items) > 0 {
				return items, nil
			}
			if err := s.waitForTip(ctx); err != nil {
				return nil, err
			}
			backoff = initialRPCBackoff
			continue
		}

		if !chain.IsTransient(err) {
			return nil, err
		}

		slog.Warn("scanner rpc error, retrying", "height", s.nextHeight, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Scanner) waitForTip(ctx context.Context) error {
	err := s.node.WaitForNewBlock(ctx, s.waitTimeout)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !chain.IsTransient(err) {
		return err
	}
	// Timeout and transient wait errors both just mean "re-check the tip" —
	// the caller loops back into collectReady.
	return nil
}

func (s *Scanner) collectReady(ctx context.Context) ([]Item, error) {
	tip, err := s.node.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}
	if tip < s.confirmations {
		return nil, nil
	}
	target := tip - s.confirmations
	if s.nextHeight > target {
		return nil, nil
	}

	available := target - s.nextHeight + 1
	toFetch := uint64(s.capacity)
	if available < toFetch {
		toFetch = available
	}

	items := make([]Item, 0, toFetch)
	for i := uint64(0); i < toFetch; i++ {
		height := s.nextHeight + i

		hash, err := s.node.GetBlockHash(ctx, height)
		if err != nil {
			return nil, err
		}
		block, err := s.node.GetBlock(ctx, hash)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Height: height, Hash: hash, Block: block})
	}

	s.nextHeight += toFetch
	return items, nil
}

const (
	initialRPCBackoff = 500 * time.Millisecond
	maxRPCBackoff     = 30 * time.Second
)

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxRPCBackoff {
		return maxRPCBackoff
	}
	return d
}
