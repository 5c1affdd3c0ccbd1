// Stage 3: model classification with deterministic pre-gates. A transport
// failure exits nonzero and leaves unprocessed rows at stage2.
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

	checker, err := a.Classifier()
	if err != nil {
		fmt.Fprintln(os.Stderr, "classifier:", err)
		os.Exit(2)
	}

	s3 := stage.NewStage3(a.Store, checker, a.Cfg.Filters, a.Cfg.LLM, a.MaxProfilePrice())
	res, err := s3.Run(ctx)
	if err != nil {
		a.ReportError(ctx, "stage3", err)
		fmt.Fprintln(os.Stderr, "stage3:", err)
		os.Exit(1)
	}

	fmt.Printf("stage=3 processed=%d passed=%d rejected=%d pre_gated=%d\n",
		res.Processed, res.Passed, res.Rejected, res.PreGated)
}
