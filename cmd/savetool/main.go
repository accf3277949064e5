// savetool inspects world snapshots offline, without starting the shard.
//
// Usage:
//
//	go run ./cmd/savetool <command> [-config path] [-dir path] [-n count]
//
// Commands: inspect, verify, history, backups
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/runeshard/server/internal/config"
	"github.com/runeshard/server/internal/persist"
)

type options struct {
	cfg   *config.Config
	dir   string
	limit int
}

func printUsage() {
	fmt.Println("Usage: savetool <command> [-config path] [-dir path] [-n count]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  inspect   Print the header of the current snapshot")
	fmt.Println("  verify    Recompute the snapshot checksum and compare it with the catalog")
	fmt.Println("  history   List the most recent saves recorded in the catalog")
	fmt.Println("  backups   List retained backup snapshots")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/server.toml", "server config file")
	dir := fs.String("dir", "", "save directory (default: persistence.dir from config)")
	limit := fs.Int("n", 10, "number of catalog rows for history")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	opts := options{cfg: cfg, dir: cfg.Persistence.Dir, limit: *limit}
	if *dir != "" {
		opts.dir = *dir
	}

	commands := map[string]func(context.Context, options) error{
		"inspect": inspect,
		"verify":  verify,
		"history": history,
		"backups": backups,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := fn(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func inspect(_ context.Context, o options) error {
	hdr, err := persist.ReadHeader(o.dir)
	if err != nil {
		return err
	}
	fmt.Printf("format         %d\n", hdr.Format)
	fmt.Printf("saved at       %s\n", hdr.SavedAt.Format(time.RFC3339))
	fmt.Printf("mobiles        %d (next serial %s)\n", hdr.Mobiles, hdr.MobileCounter)
	fmt.Printf("items          %d (next serial %s)\n", hdr.Items, hdr.ItemCounter)
	fmt.Printf("participants   %v\n", hdr.Participants)
	return nil
}

func openCatalog(ctx context.Context, cfg *config.Config) (*persist.Catalog, error) {
	if cfg.Catalog.Driver == "" {
		return nil, errors.New("no catalog configured")
	}
	db, err := persist.NewDB(ctx, cfg.Catalog, nil)
	if err != nil {
		return nil, err
	}
	cat, err := persist.OpenCatalog(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cat, nil
}

func verify(ctx context.Context, o options) error {
	sum, size, err := persist.Checksum(o.dir)
	if err != nil {
		return err
	}
	fmt.Printf("checksum  %s (%d bytes)\n", sum, size)

	cat, err := openCatalog(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer cat.Close()
	rec, ok, err := cat.Latest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("catalog has no saves")
	}
	if rec.Checksum != sum {
		return fmt.Errorf("snapshot does not match catalog save %d from %s (%s)",
			rec.ID, rec.SavedAt.Format(time.RFC3339), rec.Checksum)
	}
	fmt.Printf("matches catalog save %d from %s\n", rec.ID, rec.SavedAt.Format(time.RFC3339))
	return nil
}

func history(ctx context.Context, o options) error {
	cat, err := openCatalog(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer cat.Close()
	list, err := cat.List(ctx, o.limit)
	if err != nil {
		return err
	}
	for _, rec := range list {
		fmt.Printf("%5d  %s  mobiles=%-7d items=%-8d %8d bytes  %6s  %.12s\n",
			rec.ID, rec.SavedAt.Format(time.RFC3339), rec.Mobiles, rec.Items,
			rec.Bytes, rec.Duration.Round(time.Millisecond), rec.Checksum)
	}
	return nil
}

func backups(_ context.Context, o options) error {
	names, err := persist.Backups(o.dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no backups")
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}
