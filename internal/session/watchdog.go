package session

import (
	"context"
	"time"
)

// RunIdleWatchdog closes sessions that have gone quiet: no chunk writes for
// at least idleTimeout. Sessions with a summarization in flight are spared
// until it finishes. Runs until ctx is cancelled.
func (c *Coordinator) RunIdleWatchdog(ctx context.Context, idleTimeout, interval time.Duration) {
	if idleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range c.idleSessions(idleTimeout) {
				c.logger.Info("closing idle session", "session_id", id, "idle_timeout", idleTimeout)
				_ = c.Close(id)
			}
		}
	}
}

func (c *Coordinator) idleSessions(idleTimeout time.Duration) []string {
	cutoff := c.now().UTC().Add(-idleTimeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, sess := range c.sessions {
		if sess.summarizing {
			continue
		}
		lastActivity := sess.lastWriteAt
		if lastActivity.IsZero() {
			lastActivity = sess.createdAt
		}
		if lastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
