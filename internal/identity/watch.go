// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/safechat-tui/internal/tokenstore"
)

// WatchStore reloads the identity whenever the token file changes on disk.
// It blocks until ctx is done and any reload in progress has returned.
// Changes reported after that are ignored.
func (c *Context) WatchStore(ctx context.Context, fs *tokenstore.FileStore, debounce time.Duration) error {
	var (
		mu      sync.Mutex
		stopped bool
		running sync.WaitGroup
	)
	err := fs.Watch(ctx, debounce, func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		running.Add(1)
		mu.Unlock()
		defer running.Done()

		id := c.Reload(ctx)
		c.log.Debug("token file changed", "state", id.State.String())
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	mu.Lock()
	stopped = true
	mu.Unlock()
	running.Wait()
	return nil
}
