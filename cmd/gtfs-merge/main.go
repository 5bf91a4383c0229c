package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/config"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/internal"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/merge"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/metrics"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/metrics/prompush"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/publish"
)

func main() {
	if err := run(os.Args[1:], os.Getenv); err != nil {
		log.Printf("✖︎ An error occurred: %v", err)
		internal.ActionError(os.Stdout, err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string) error {
	fs := flag.NewFlagSet("gtfs-merge", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to config.yml (default: search config.yml, ./config/config.yml)")
	dryRun := fs.Bool("dry-run", false, "merge and package but do not commit to GitHub")
	local := fs.String("local", "", "copy the archive here instead of committing it (implies -dry-run)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	cfg = cfg.ApplyEnv(getenv)
	if *local != "" {
		cfg.Publish.LocalDest = *local
		*dryRun = true
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	pub, err := publisher(cfg, *dryRun)
	if err != nil {
		return err
	}
	opts := []merge.Option{}
	if pub != nil {
		opts = append(opts, merge.WithPublisher(pub))
	}
	o := merge.New(cfg, cfg.Registry(), opts...)
	internal.InitLogging(o.RunID())

	if u := cfg.Metrics.PushgatewayURL; u != "" {
		b, err := prompush.NewBackend(cfg.Metrics.Job, u, o.RunID())
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := o.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("merged %d sources into %s (%d tables, %s)\n", res.Sources, res.Archive, len(res.Tables), res.Duration)
	return nil
}

// publisher picks the archive destination: GitHub when enabled and not a
// dry run, a local copy when configured, otherwise none.
func publisher(cfg config.AppConfig, dryRun bool) (publish.Publisher, error) {
	p := cfg.Publish
	if !dryRun && p.Enabled {
		return publish.NewGitHub(nil, p.Token, publish.GitHubOptions{
			Owner:          p.Owner,
			Repo:           p.Repo,
			Path:           p.Path,
			Branch:         p.Branch,
			CommitSHA:      p.CommitSHA,
			DefaultMessage: p.DefaultMessage,
		})
	}
	if p.LocalDest != "" {
		return publish.Local{Dest: cfg.Resolve(p.LocalDest)}, nil
	}
	return nil, nil
}
