package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// CommandBuilder implements Builder by shelling out to a bundler command.
// The command is invoked as: <command> <entries...> -o <outfile>.
type CommandBuilder struct {
	Command string
	Logger  *slog.Logger
}

// Build runs one bundle pass.
func (b *CommandBuilder) Build(ctx context.Context, cfg BuildConfig) error {
	args := append([]string{}, cfg.Entries...)
	if cfg.OutFile != "" {
		args = append(args, "-o", cfg.OutFile)
	}

	cmd := exec.CommandContext(ctx, b.Command, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("bundle %s: %w: %s", cfg.Category, err, out)
	}

	b.Logger.Debug("bundle_complete",
		"category", cfg.Category,
		"entries", len(cfg.Entries),
		"duration", time.Since(start).String(),
	)
	return nil
}

// Watch builds immediately, then polls the entry files' modification
// times and rebuilds on change. onComplete fires after every build,
// successful or not, until the context is cancelled.
func (b *CommandBuilder) Watch(ctx context.Context, cfg BuildConfig, interval time.Duration, onComplete func(error)) {
	go func() {
		mods := snapshotModTimes(cfg.Entries)
		onComplete(b.Build(ctx, cfg))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !updateModTimes(cfg.Entries, mods) {
					continue
				}
				onComplete(b.Build(ctx, cfg))
			}
		}
	}()
}

// snapshotModTimes records the current modification time of each entry.
func snapshotModTimes(entries []string) map[string]time.Time {
	mods := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if info, err := os.Stat(e); err == nil {
			mods[e] = info.ModTime()
		}
	}
	return mods
}

// updateModTimes refreshes the snapshot and reports whether any entry
// changed since the last check.
func updateModTimes(entries []string, mods map[string]time.Time) bool {
	changed := false
	for _, e := range entries {
		info, err := os.Stat(e)
		if err != nil {
			continue
		}
		if !info.ModTime().Equal(mods[e]) {
			mods[e] = info.ModTime()
			changed = true
		}
	}
	return changed
}
