// Housekeeping over the listings table: reclassify stage1_new rows that
// match stop filters and archive terminal failures. Also owns schema
// creation via -init.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/PollyDrive/estate-sub000/internal/app"
	"github.com/PollyDrive/estate-sub000/internal/stage"
)

func main() {
	configPath := flag.String("config", app.EnvString("CONFIG_PATH", "config.toml"), "Config file path. Env: CONFIG_PATH")
	initSchema := flag.Bool("init", false, "Create tables and indexes, then exit")
	archiveLLM := flag.Bool("archive-llm-failed", false, "Also archive stage3_failed listings")
	archiveNoDesc := flag.Bool("archive-no-description", false, "Also archive no-description listings")
	flag.Parse()

	ctx := context.Background()
	a, err := app.Bootstrap(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(2)
	}
	defer a.Close()

	if *initSchema {
		if err := a.Store.Init(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(1)
		}
		fmt.Println("schema initialized")
		return
	}

	c := stage.NewCleanup(a.Store, a.Extractor(), a.Cfg.Filters)
	c.ArchiveLLMFailed = *archiveLLM
	c.ArchiveNoDescription = *archiveNoDesc
	res, err := c.Run(ctx)
	if err != nil {
		a.ReportError(ctx, "cleanup", err)
		fmt.Fprintln(os.Stderr, "cleanup:", err)
		os.Exit(1)
	}
	fmt.Printf("stage=cleanup reclassified=%d archived=%d\n", res.Reclassified, res.Archived)
}
