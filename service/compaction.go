package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartCompaction drops journal segments already covered by snapshots
// on a fixed interval until ctx is done. Every operation snapshots its
// book on commit, so under normal operation the journal stays short.
func (e *Engine) StartCompaction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = e.cfg.CompactionInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.compact()
			}
		}
	}()
}

// compact truncates the journal below the lowest sequence any shard
// still needs. A shard whose snapshot trails its book pins everything
// past its durable frontier.
func (e *Engine) compact() {
	bound := e.seq.Current()

	e.mu.RLock()
	shards := make([]*shard, 0, len(e.shards))
	for _, sh := range e.shards {
		shards = append(shards, sh)
	}
	e.mu.RUnlock()

	for _, sh := range shards {
		sh.mu.Lock()
		if sh.durableSeq < sh.lastSeq && sh.durableSeq < bound {
			bound = sh.durableSeq
		}
		sh.mu.Unlock()
	}

	if bound == 0 {
		return
	}
	if err := e.journal.TruncateBefore(bound); err != nil {
		e.log.Warn("journal compaction failed", zap.Uint64("bound", bound), zap.Error(err))
		return
	}
	e.log.Debug("journal compacted", zap.Uint64("bound", bound))
}
