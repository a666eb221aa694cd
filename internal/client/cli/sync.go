package cli

import "context"

// SyncNow triggers a sync cycle immediately instead of waiting for the
// watcher. The cycle itself reports failures through the manager status.
func (a *App) SyncNow(ctx context.Context) error {
	if !a.manager.Sync(ctx, false) {
		printlnFn("Sync already in progress")
		return nil
	}
	if a.manager.Status() == "error" {
		printlnFn("Sync failed, will retry; see logs")
		return nil
	}
	printlnFn("Sync complete")
	return nil
}

// ShowStatus prints the manager's current lifecycle state.
func (a *App) ShowStatus(ctx context.Context) error {
	printlnFn("Status:", string(a.manager.Status()))
	return nil
}

// Reset rewinds the cursor to the beginning of time and re-pulls everything.
// Local pending changes stay queued and push as usual.
func (a *App) Reset(ctx context.Context) error {
	if err := a.manager.ResetCursorAndSync(ctx); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Full resync complete")
	return nil
}
