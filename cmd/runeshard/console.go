package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/runeshard/server/internal/accounts"
	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/system"
	"github.com/runeshard/server/internal/world"
)

type consoleDeps struct {
	world    *world.World
	accounts *accounts.Table
	autosave *system.AutosaveSystem
	stop     func()
	log      *zap.Logger
}

// runConsole reads operator commands from r and queues them onto the tick.
//
//	save                       save the world now
//	status                     log entity and account counts
//	account <name> <password>  create a player account
//	shutdown                   save and stop
func runConsole(r io.Reader, queue *coresys.CommandQueue, deps consoleDeps) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "save":
			queue.Enqueue(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if err := deps.autosave.SaveNow(ctx); err != nil {
					deps.log.Error("console save failed", zap.Error(err))
				}
			})
		case "status":
			queue.Enqueue(func() {
				deps.log.Info("status",
					zap.Int("mobiles", deps.world.Count(world.KindMobile)),
					zap.Int("items", deps.world.Count(world.KindItem)),
					zap.Int("accounts", deps.accounts.Len()),
					zap.Int64("queries", deps.world.QueryCount()))
			})
		case "account":
			if len(fields) != 3 {
				deps.log.Warn("usage: account <name> <password>")
				continue
			}
			name, pass := fields[1], fields[2]
			queue.Enqueue(func() {
				if _, err := deps.accounts.Create(name, pass, accounts.Player); err != nil {
					deps.log.Warn("create account", zap.String("name", name), zap.Error(err))
					return
				}
				deps.log.Info("account created", zap.String("name", name))
			})
		case "shutdown", "quit":
			deps.stop()
			return
		default:
			deps.log.Warn("unknown console command", zap.String("cmd", fields[0]))
		}
	}
}
