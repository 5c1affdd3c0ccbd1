// All-in-one scheduler: runs every stage on its cron spec from one
// process instead of five crontab entries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/PollyDrive/estate-sub000/internal/app"
	"github.com/PollyDrive/estate-sub000/internal/stage"
)

func main() {
	configPath := flag.String("config", app.EnvString("CONFIG_PATH", "config.toml"), "Config file path. Env: CONFIG_PATH")
	archiveLLM := flag.Bool("archive-llm-failed", false, "Cleanup also archives stage3_failed listings")
	archiveNoDesc := flag.Bool("archive-no-description", false, "Cleanup also archives no-description listings")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(2)
	}
	defer a.Close()

	c := cron.New()
	specs := a.Cfg.Pipeline

	schedule(c, "stage1", specs.Stage1Spec, func() error {
		src, err := a.ItemSource()
		if err != nil {
			return err
		}
		res, err := stage.NewStage1(a.Store, src, a.Extractor(), a.Criteria()).Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("fetched", res.Fetched).Int("filtered", res.Filtered).Int("inserted", res.Inserted).Msg("stage1 done")
		return nil
	}, a)

	schedule(c, "stage2", specs.Stage2Spec, func() error {
		s2 := stage.NewStage2(a.Store, a.DetailSource(), a.Extractor(), a.Criteria(), a.Cfg.Filters)
		res, err := s2.Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("processed", res.Processed).Int("passed", res.Passed).Int("failed", res.Failed).Msg("stage2 done")
		return nil
	}, a)

	schedule(c, "stage3", specs.Stage3Spec, func() error {
		checker, err := a.Classifier()
		if err != nil {
			return err
		}
		res, err := stage.NewStage3(a.Store, checker, a.Cfg.Filters, a.Cfg.LLM, a.MaxProfilePrice()).Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("processed", res.Processed).Int("passed", res.Passed).Int("rejected", res.Rejected).Int("pre_gated", res.PreGated).Msg("stage3 done")
		return nil
	}, a)

	schedule(c, "stage4", specs.Stage4Spec, func() error {
		summarizer := a.Summarizer()
		for _, p := range a.Cfg.Profiles {
			res, err := stage.NewStage4(a.Store, summarizer, p).Run(ctx)
			if err != nil {
				return err
			}
			log.Info().Str("profile", p.Name).Int("evaluated", res.Evaluated).Int("passed", res.Passed).Msg("stage4 done")
		}
		return nil
	}, a)

	schedule(c, "stage5", specs.Stage5Spec, func() error {
		sender, err := a.Telegram()
		if err != nil {
			return err
		}
		for _, p := range a.Cfg.Profiles {
			s5, err := stage.NewStage5(a.Store, sender, p, a.Cfg.Telegram, a.Cfg.Filters.Stage5Guard)
			if err != nil {
				return err
			}
			res, err := s5.Run(ctx)
			if err != nil {
				return err
			}
			log.Info().Str("profile", p.Name).Bool("quiet", res.Quiet).Int("sent", res.Sent).Int("blocked", res.Blocked).Msg("stage5 done")
		}
		return nil
	}, a)

	schedule(c, "cleanup", specs.CleanupSpec, func() error {
		cl := stage.NewCleanup(a.Store, a.Extractor(), a.Cfg.Filters)
		cl.ArchiveLLMFailed = *archiveLLM
		cl.ArchiveNoDescription = *archiveNoDesc
		res, err := cl.Run(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("reclassified", res.Reclassified).Int("archived", res.Archived).Msg("cleanup done")
		return nil
	}, a)

	c.Start()
	log.Info().Msg("pipeline scheduler running")
	<-ctx.Done()
	<-c.Stop().Done()
}

// schedule registers one stage on its cron spec. A bad spec is a config
// error and aborts startup; a failed run is reported and waits for the
// next tick.
func schedule(c *cron.Cron, name, spec string, run func() error, a *app.App) {
	if spec == "" {
		log.Warn().Str("stage", name).Msg("no cron spec, stage disabled")
		return
	}
	_, err := c.AddFunc(spec, func() {
		if err := run(); err != nil {
			log.Error().Err(err).Str("stage", name).Msg("run failed")
			a.ReportError(context.Background(), name, err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cron spec for %s: %v\n", name, err)
		os.Exit(2)
	}
}
