// Stage 1: pull raw scrape items, run the cheap title filter, insert new
// candidates.
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

	src, err := a.ItemSource()
	if err != nil {
		fmt.Fprintln(os.Stderr, "source:", err)
		os.Exit(2)
	}

	s1 := stage.NewStage1(a.Store, src, a.Extractor(), a.Criteria())
	res, err := s1.Run(ctx)
	if err != nil {
		a.ReportError(ctx, "stage1", err)
		fmt.Fprintln(os.Stderr, "stage1:", err)
		os.Exit(1)
	}

	fmt.Printf("stage=1 fetched=%d filtered=%d inserted=%d\n", res.Fetched, res.Filtered, res.Inserted)
}
