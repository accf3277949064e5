package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	savesDir   = "Saves"
	tempDir    = "Saves.tmp"
	oldDir     = "Saves.old"
	backupsDir = "Backups"
	headerFile = "World.hdr"
	partsDir   = "Participants"

	backupStamp = "2006-01-02-15-04-05.000"
)

// file is one output file, path relative to the snapshot directory.
type file struct {
	path string
	data []byte
}

// writeTree writes files under dir, fsyncing each file and every directory
// it created.
func writeTree(ctx context.Context, dir string, files []file) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dirs := map[string]bool{dir: true}
	for _, f := range files {
		d := filepath.Join(dir, filepath.Dir(f.path))
		if !dirs[d] {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return err
			}
			dirs[d] = true
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeFileSync(filepath.Join(dir, f.path), f.data)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for d := range dirs {
		if err := syncDir(d); err != nil {
			return err
		}
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync dir %s: %w", dir, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// committer moves a fully written temp tree into place.
type committer struct {
	root     string
	backups  int
	attempts int
	base     time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// commit writes files into the temp tree and swaps it in for the current
// snapshot. The I/O is retried with exponential backoff; the current
// snapshot is left untouched until the temp tree is complete.
func (c *committer) commit(ctx context.Context, files []file) error {
	b := retry.WithMaxRetries(uint64(c.attempts), retry.NewExponential(c.base))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.try(ctx, files)
		if err == nil {
			return nil
		}
		c.log.Warn("save attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *committer) try(ctx context.Context, files []file) error {
	tmp := filepath.Join(c.root, tempDir)
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear temp dir: %w", err)
	}
	if err := writeTree(ctx, tmp, files); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := c.swap(tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	return nil
}

// swap moves the current snapshot aside and renames tmp into its place,
// restoring the previous snapshot if the rename fails.
func (c *committer) swap(tmp string) error {
	saves := filepath.Join(c.root, savesDir)
	prev := ""
	if exists(saves) {
		prev = filepath.Join(c.root, oldDir)
		if c.backups > 0 {
			bdir := filepath.Join(c.root, backupsDir)
			if err := os.MkdirAll(bdir, 0o755); err != nil {
				return err
			}
			prev = filepath.Join(bdir, c.now().UTC().Format(backupStamp))
		}
		os.RemoveAll(prev)
		if err := os.Rename(saves, prev); err != nil {
			return fmt.Errorf("move previous snapshot aside: %w", err)
		}
	}
	if err := os.Rename(tmp, saves); err != nil {
		if prev != "" {
			if rerr := os.Rename(prev, saves); rerr != nil {
				c.log.Error("restore previous snapshot failed",
					zap.String("from", prev),
					zap.Error(rerr))
			}
		}
		return fmt.Errorf("install snapshot: %w", err)
	}
	if err := syncDir(c.root); err != nil {
		return err
	}

	if prev == "" {
		return nil
	}
	if c.backups == 0 {
		if err := os.RemoveAll(prev); err != nil {
			c.log.Warn("remove previous snapshot", zap.Error(err))
		}
		return nil
	}
	c.prune()
	return nil
}

// prune keeps the newest backups and removes the rest. Failures are
// logged; they never fail a committed save.
func (c *committer) prune() {
	names, err := listBackups(c.root)
	if err != nil {
		c.log.Warn("list backups", zap.Error(err))
		return
	}
	for len(names) > c.backups {
		victim := filepath.Join(c.root, backupsDir, names[0])
		if err := os.RemoveAll(victim); err != nil {
			c.log.Warn("remove backup", zap.String("path", victim), zap.Error(err))
		}
		names = names[1:]
	}
}

// listBackups returns backup directory names, oldest first. The timestamp
// format sorts lexically.
func listBackups(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, backupsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// recoverInterrupted puts a snapshot back in place when a crash left it
// moved aside without a replacement: Saves.old first, else the newest backup.
func recoverInterrupted(root string, log *zap.Logger) error {
	saves := filepath.Join(root, savesDir)
	if exists(saves) {
		return nil
	}
	src := filepath.Join(root, oldDir)
	if !exists(src) {
		names, err := listBackups(root)
		if err != nil || len(names) == 0 {
			return err
		}
		src = filepath.Join(root, backupsDir, names[len(names)-1])
	}
	log.Warn("restoring snapshot left aside by an interrupted save", zap.String("path", src))
	return os.Rename(src, saves)
}
