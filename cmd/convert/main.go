package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/internal/storage"
)

func main() {
	blocks := flag.String("blocks", "", "blocks.json report to resolve block states with")
	compression := flag.String("compression", "", "compression of the output store")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: convert [flags] <kind:input> <kind:output>")
		fmt.Fprintln(os.Stderr, "Kinds: anvil:<dir>, pile:<file>, leveldb:<dir>")
		fmt.Fprintln(os.Stderr, "Example: convert anvil:world pile:lobby.pile")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := convert(log, *blocks, *compression, flag.Arg(0), flag.Arg(1)); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

func convert(log *slog.Logger, blocks, compression, in, out string) error {
	var reg block.Registry = block.DefaultTable()
	if blocks != "" {
		t, err := block.ReadTableFile(blocks)
		if err != nil {
			return err
		}
		reg = t
	}

	inKind, inPath, err := storage.ParseTarget(in)
	if err != nil {
		return err
	}
	outKind, outPath, err := storage.ParseTarget(out)
	if err != nil {
		return err
	}
	src, err := storage.Open(inKind, inPath, "", log, reg)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()
	dst, err := storage.Open(outKind, outPath, compression, log, reg)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	start := time.Now()
	n, err := storage.Copy(dst, src)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}
	log.Info("converted world", "chunks", n, "from", in, "to", out, "took", time.Since(start).Round(time.Millisecond))
	return nil
}
