// Package main imports parcel manifests from disk and mints operator tokens.
//
//	importer -config cfg.yaml -actor ops manifest1.txt manifest2.xlsx
//	importer token -config cfg.yaml -subject alice -roles operator
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"parcelsort/internal/app"
	"parcelsort/internal/config"
	appctx "parcelsort/internal/core/context"
	"parcelsort/internal/domain/parcel"
	"parcelsort/pkg/logger"
)

type fileResult struct {
	File   string               `json:"file"`
	Report *parcel.ImportReport `json:"report,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := config.LoadDotEnv(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := runToken(os.Args[2:], os.Stdout, logger.Default()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	configPath := flag.String("config", "", "path to YAML config")
	actor := flag.String("actor", parcel.SystemActor, "operator recorded as importer")
	migrate := flag.Bool("migrate", false, "apply the postgres schema before importing")
	flag.Parse()

	if flag.NArg() == 0 && !*migrate {
		fmt.Fprintln(os.Stderr, "usage: importer [-config cfg.yaml] [-actor name] [-migrate] file...\n       importer token [-config cfg.yaml] -subject id [-roles r1,r2]")
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	a, err := app.New(ctx, cfg, log, app.Options{Migrate: *migrate})
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer a.Close()

	ctx = appctx.WithActor(ctx, &appctx.Actor{ID: *actor})

	failed := false
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, path := range flag.Args() {
		res := importOne(ctx, a.Parcels, path)
		if res.Error != "" {
			failed = true
		}
		if err := enc.Encode(res); err != nil {
			log.Errorw("write report", "error", err)
		}
	}

	if failed {
		a.Close()
		os.Exit(1)
	}
}

func importOne(ctx context.Context, svc *parcel.Service, path string) fileResult {
	res := fileResult{File: path}

	f, err := os.Open(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	report, err := svc.ImportFile(ctx, filepath.Base(path), f)
	if err != nil {
		logger.Error(ctx, "import failed", "file", path, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Report = &report
	return res
}
