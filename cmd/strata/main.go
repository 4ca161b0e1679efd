package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/config"
	"github.com/oriumgames/strata/internal/storage"
	"github.com/oriumgames/strata/pile"
	"github.com/oriumgames/strata/world"
	"golang.org/x/time/rate"
)

const saveInterval = time.Minute

func main() {
	path := flag.String("config", "config.yml", "path of the configuration file")
	flag.Parse()

	conf, err := config.Load(*path)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	lvl, _ := conf.Log.SlogLevel()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	if err := run(conf, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(conf config.Config, log *slog.Logger) error {
	var reg block.Registry = block.DefaultTable()
	if conf.Blocks.Path != "" {
		t, err := block.ReadTableFile(conf.Blocks.Path)
		if err != nil {
			return err
		}
		reg = t
	}

	store, err := storage.Open(conf.World.Storage, conf.World.Dir, conf.World.Compression, log, reg)
	if err != nil {
		return err
	}
	gen, err := world.NewLayeredGenerator(reg, conf.Generator.Layers...)
	if err != nil {
		store.Close()
		return err
	}

	w := world.Config{
		Log:               log,
		Sources:           []world.Source{store, gen},
		Store:             store,
		Air:               block.Air(reg),
		UnloadAfter:       time.Duration(conf.World.UnloadAfter),
		MaxUnloadsPerTick: conf.World.MaxUnloadsPerTick,
	}.New()

	spawn := cube.Pos{0, 64, 0}
	if p, ok := store.(*pile.Provider); ok {
		spawn = p.Settings().Spawn
	}
	v := world.NewViewer(w, int32(conf.World.ViewDistance), rate.NewLimiter(rate.Limit(conf.World.ChunkRate), conf.World.ViewDistance*2+1))
	v.Move(spawn)

	log.Info("world started", "storage", conf.World.Storage, "dir", conf.World.Dir, "spawn", spawn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	tick(ctx, conf, log, w, v)
	v.Close()

	log.Info("saving world", "chunks", w.Len())
	if err := w.Close(); err != nil {
		return err
	}
	s := w.Stats()
	log.Info("world closed", "saved", s.Saved, "save_errors", s.SaveErrors)
	return nil
}

// tick runs the world's tick loop until ctx is done.
func tick(ctx context.Context, conf config.Config, log *slog.Logger, w *world.World, spawn *world.Viewer) {
	ticker := time.NewTicker(time.Second / time.Duration(conf.World.TickRate))
	defer ticker.Stop()
	lastSave := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// The spawn viewer keeps the chunks around spawn loaded.
			if _, _, err := spawn.Poll(); err != nil {
				log.Warn("spawn chunks failed to load", "error", err)
			}
			if n := w.Tick(now); n > 0 {
				log.Debug("evicted chunks", "n", n)
			}
			if updates := w.NeighbourUpdates(); len(updates) > 0 {
				log.Debug("neighbour updates", "n", len(updates))
			}
			if now.Sub(lastSave) >= saveInterval {
				lastSave = now
				w.SaveAll()
				s := w.Stats()
				log.Info("autosave", "cached", s.Cached, "loaded", s.Loaded, "failed", s.Failed, "evicted", s.Evicted)
			}
		}
	}
}
