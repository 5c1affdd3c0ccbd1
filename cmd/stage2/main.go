// Stage 2: full-text extraction and the structured filter pass.
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
	res, err := s2.Run(ctx)
	if err != nil {
		a.ReportError(ctx, "stage2", err)
		fmt.Fprintln(os.Stderr, "stage2:", err)
		os.Exit(1)
	}

	fmt.Printf("stage=2 processed=%d passed=%d failed=%d no_description=%d back_to_stage1=%d\n",
		res.Processed, res.Passed, res.Failed, res.NoDescription, res.BackToStage1)
}
