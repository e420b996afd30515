// Command recall schedules spaced-repetition review over a directory (or
// git repository) of markdown notes and drives review sessions from the
// terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/recallkit/recall/internal/algorithm"
	"github.com/recallkit/recall/internal/cardstore"
	"github.com/recallkit/recall/internal/config"
	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/queue"
	"github.com/recallkit/recall/internal/resolver"
	"github.com/recallkit/recall/internal/session"
	"github.com/recallkit/recall/internal/storage"
)

func main() {
	flags := pflag.NewFlagSet("recall", pflag.ExitOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("storage.backend", "file", "storage backend: file or sqlite")
	flags.String("storage.dir", ".recall", "blob directory for the file backend")
	flags.String("storage.dsn", "recall.db", "database path for the sqlite backend")
	flags.String("corpus.root", ".", "corpus root directory")
	flags.String("corpus.git_url", "", "git repository to track as the corpus")
	flags.String("corpus.git_dir", ".recall/corpus", "checkout path for the git corpus")
	flags.String("log_level", "info", "log level: debug, info, warn or error")
	flags.Parse(os.Args[1:])

	if err := run(flags); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet) error {
	cfg, err := config.Load(flags, slog.Default())
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "sqlite":
		backend, err = storage.OpenSQLite(cfg.Storage.DSN)
	default:
		backend, err = storage.NewFileBackend(cfg.Storage.Dir)
	}
	if err != nil {
		return err
	}

	store := storage.New(backend, storage.Options{Logger: logger})
	if err := store.Load(ctx); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("final save failed", "error", err)
		}
	}()

	store.ApplySettings(cfg.Settings)

	adapter, err := algorithm.New(algorithm.Config{
		TargetRetention: cfg.Settings.TargetRetention,
		MaxIntervalDays: cfg.Settings.MaxIntervalDays,
		Fuzz:            cfg.Settings.Fuzz,
	})
	if err != nil {
		return err
	}

	cards := cardstore.New(store, adapter, logger)

	corpusRoot := cfg.Corpus.Root
	var res resolver.Resolver
	if cfg.Corpus.GitURL != "" {
		gr := resolver.NewGitResolver(cfg.Corpus.GitURL, cfg.Corpus.GitDir, logger)
		if err := gr.Refresh(ctx); err != nil {
			logger.Warn("corpus refresh failed, using existing checkout", "error", err)
		}
		res = gr
		corpusRoot = cfg.Corpus.GitDir
	} else {
		res = resolver.NewFSResolver(corpusRoot)
	}

	queues := queue.New(store, cards, adapter, res, logger)
	host := newTerminalHost(corpusRoot, os.Stdout)
	sessions := session.New(store, cards, queues, host, logger)

	ensureDefaultQueue(queues)

	switch flags.Arg(0) {
	case "", "review":
		return runReview(ctx, flags.Arg(1), adapter, cards, queues, sessions)
	case "sync":
		return runSync(ctx, queues)
	case "stats":
		return runStats(ctx, queues)
	default:
		return fmt.Errorf("unknown command %q (expected review, sync or stats)", flags.Arg(0))
	}
}

// ensureDefaultQueue creates a whole-corpus queue on first run.
func ensureDefaultQueue(queues *queue.Engine) {
	if len(queues.List()) > 0 {
		return
	}
	queues.Create("All items", domain.Criteria{
		Kind:    domain.CriteriaFolders,
		Folders: []string{""},
	}, domain.StrategyMixed)
}

func runSync(ctx context.Context, queues *queue.Engine) error {
	for _, q := range queues.List() {
		report, err := queues.Sync(ctx, q.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d added, %d no longer matching, %d unchanged\n",
			q.Name, len(report.Added), len(report.Removed), len(report.Unchanged))
	}
	return nil
}

func runStats(ctx context.Context, queues *queue.Engine) error {
	for _, q := range queues.List() {
		if _, err := queues.Sync(ctx, q.ID); err != nil {
			return err
		}
		stats, err := queues.Stats(q.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s total %4d  new %4d  due %4d  reviewed today %4d\n",
			q.Name, stats.Total, stats.New, stats.Due, stats.ReviewedToday)
	}
	return nil
}

func runReview(ctx context.Context, queueName string, adapter *algorithm.Adapter, cards *cardstore.Store, queues *queue.Engine, sessions *session.Engine) error {
	resumed, err := sessions.Resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		q, err := pickQueue(queues, queueName)
		if err != nil {
			return err
		}
		started, err := sessions.Start(ctx, q.ID)
		if err != nil {
			return err
		}
		if !started {
			return nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	for sessions.Active() {
		if ctx.Err() != nil {
			break
		}
		printPrompt(adapter, cards, sessions)
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}

		input := strings.TrimSpace(line)
		switch input {
		case "1", "2", "3", "4":
			rating := domain.Rating(input[0] - '0')
			if _, err := sessions.Rate(ctx, rating); err != nil {
				return err
			}
		case "s":
			sessions.Skip(ctx)
		case "b":
			sessions.GoBack(ctx)
		case "u":
			if _, err := sessions.Undo(ctx); err != nil {
				return err
			}
		case "o":
			sessions.BringBack(ctx)
		case "e":
			sessions.End(ctx)
		case "q":
			// Suspend: the persisted snapshot resumes this session later.
			fmt.Println("Session suspended; run review again to resume.")
			return nil
		default:
			fmt.Println("1-4 rate | s skip | b back | u undo | o bring back | e end | q suspend")
		}
	}
	return nil
}

func pickQueue(queues *queue.Engine, name string) (domain.Queue, error) {
	all := queues.List()
	if name == "" {
		return all[0], nil
	}
	for _, q := range all {
		if q.Name == name {
			return q, nil
		}
	}
	return domain.Queue{}, fmt.Errorf("no queue named %q", name)
}

func printPrompt(adapter *algorithm.Adapter, cards *cardstore.Store, sessions *session.Engine) {
	path, ok := sessions.Current()
	if !ok {
		return
	}
	snap, _ := sessions.Snapshot()
	sched, ok := cards.Schedule(path, snap.QueueID)
	if !ok {
		return
	}

	previews := adapter.Preview(sched, time.Now())
	fmt.Printf("[%d/%d] ", snap.CurrentIndex+1, len(snap.ReviewQueue))
	for _, r := range domain.Ratings {
		fmt.Printf("%d %s (%s)  ", int(r), r, previews[r].IntervalLabel)
	}
	fmt.Print("\n> ")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
