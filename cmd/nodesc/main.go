// Reprocess listings parked without a description: marketplace rows go
// back to stage 1, group rows get their title substituted and re-filtered.
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
	flag.Parse()

	ctx := context.Background()
	a, err := app.Bootstrap(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(2)
	}
	defer a.Close()

	s2 := stage.NewStage2(a.Store, a.DetailSource(), a.Extractor(), a.Criteria(), a.Cfg.Filters)
	res, err := stage.NewNoDescription(a.Store, s2).Run(ctx)
	if err != nil {
		a.ReportError(ctx, "no_description", err)
		fmt.Fprintln(os.Stderr, "no_description:", err)
		os.Exit(1)
	}
	fmt.Printf("stage=no_description processed=%d back_to_stage1=%d substituted=%d skipped=%d\n",
		res.Processed, res.BackToStage1, res.Substituted, res.Skipped)
}
