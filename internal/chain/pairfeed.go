package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// DefaultMaxBlockRange bounds a single eth_getLogs window.
const DefaultMaxBlockRange = 2000

// PairFeed polls a factory for PairCreated logs. The first Poll anchors at
// the current head, so only pairs created after startup are reported; each
// later Poll returns the events mined since the previous successful one, in
// chain order.
type PairFeed struct {
	filterer LogFilterer
	factory  common.Address
	maxRange uint64
	logger   *slog.Logger

	mu       sync.Mutex
	cursor   uint64 // last block fully scanned
	anchored bool
}

// NewPairFeed creates a feed over factory's PairCreated events.
func NewPairFeed(filterer LogFilterer, factory common.Address, maxRange uint64, logger *slog.Logger) *PairFeed {
	if maxRange == 0 {
		maxRange = DefaultMaxBlockRange
	}
	return &PairFeed{
		filterer: filterer,
		factory:  factory,
		maxRange: maxRange,
		logger:   logger.With(slog.String("component", "pair_feed")),
	}
}

// Poll returns newly created pairs. On error the cursor does not move and
// the same window is retried on the next call.
func (f *PairFeed) Poll(ctx context.Context) ([]domain.PairCreated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	head, err := f.filterer.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: pair feed: head: %w", err)
	}
	if !f.anchored {
		f.cursor = head
		f.anchored = true
		f.logger.Info("pair feed anchored", slog.Uint64("block", head), slog.String("factory", f.factory.Hex()))
		return nil, nil
	}
	if head <= f.cursor {
		return nil, nil
	}

	from := f.cursor + 1
	to := head
	if to-from+1 > f.maxRange {
		to = from + f.maxRange - 1
	}

	logs, err := f.filterer.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{f.factory},
		Topics:    [][]common.Hash{{PairCreatedTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("chain: pair feed: filter %d-%d: %w", from, to, err)
	}

	out := make([]domain.PairCreated, 0, len(logs))
	for _, l := range logs {
		evt, ok := decodePairCreated(l)
		if !ok {
			f.logger.Warn("skipping malformed PairCreated log",
				slog.String("tx", l.TxHash.Hex()),
				slog.Uint64("block", l.BlockNumber),
			)
			continue
		}
		out = append(out, evt)
	}
	f.cursor = to
	return out, nil
}

func decodePairCreated(l types.Log) (domain.PairCreated, bool) {
	if l.Removed || len(l.Topics) < 3 || l.Topics[0] != PairCreatedTopic || len(l.Data) < 32 {
		return domain.PairCreated{}, false
	}
	return domain.PairCreated{
		Token0:      common.BytesToAddress(l.Topics[1].Bytes()),
		Token1:      common.BytesToAddress(l.Topics[2].Bytes()),
		Pair:        common.BytesToAddress(l.Data[:32]),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, true
}
