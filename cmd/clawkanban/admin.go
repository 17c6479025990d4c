package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	cfnats "github.com/Strob0t/clawkanban/internal/adapter/nats"
	"github.com/Strob0t/clawkanban/internal/config"
	"github.com/Strob0t/clawkanban/internal/domain/cost"
	"github.com/Strob0t/clawkanban/internal/logger"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
	"github.com/Strob0t/clawkanban/internal/port/messagequeue"
	"github.com/Strob0t/clawkanban/internal/service"
)

// runAdmin dispatches admin subcommands (backfill, costs, events).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "backfill":
		return runAdminBackfill(args[1:])
	case "costs":
		return runAdminCosts(args[1:], os.Stdout)
	case "events":
		return runAdminEvents(args[1:], os.Stdout)
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: clawkanban admin <command> [options]

Commands:
  backfill   Give every task without an identifier a unique one
  costs      Print the per-task cost split from the session logs
  events     Follow board events on the NATS mirror
  help       Show this help message

Options (all commands):
  --config, -c     path to YAML config file
  --data-dir       task store root directory
  --sessions-dir   agent session log directory

Examples:
  clawkanban admin backfill --data-dir ./data
  clawkanban admin costs --sessions-dir ~/.openclaw/agents/main/sessions
  NATS_URL=nats://localhost:4222 clawkanban admin events
`)
}

// loadAdminConfig loads configuration for an admin command and logs to stderr
// so table output stays clean.
func loadAdminConfig(args []string) (*config.Config, func(), error) {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, closer := logger.NewWithWriter(cfg.Logging, os.Stderr)
	slog.SetDefault(log)
	return cfg, closer.Close, nil
}

func runAdminBackfill(args []string) error {
	cfg, closeLog, err := loadAdminConfig(args)
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := newCore(context.Background(), cfg, nil, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// No live subscribers exist in an admin process.
	board := service.NewBoardService(c.store, c.costs, broadcast.Multi{}, cfg.Data.DefaultProject, nil)
	n, err := board.BackfillIdentifiers(context.Background())
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Assigned %d identifier(s)\n", n)
	return nil
}

func runAdminCosts(args []string, out io.Writer) error {
	cfg, closeLog, err := loadAdminConfig(args)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	// Reuse the server's mapping when it is shared over NATS.
	queue := connectNATS(ctx, cfg.NATS)
	if queue != nil {
		defer func() { _ = queue.Close() }()
	}
	c, err := newCore(ctx, cfg, queue, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	costs, err := c.costs.ScanAllSessionCosts(ctx)
	if err != nil {
		return fmt.Errorf("scan costs: %w", err)
	}
	board := service.NewBoardService(c.store, c.costs, broadcast.Multi{}, cfg.Data.DefaultProject, nil)
	tasks, err := board.ListAllTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Identifier + " " + t.Title
	}
	return printCosts(out, costs, titles)
}

// printCosts writes the cost split as a table, most expensive first.
func printCosts(out io.Writer, costs map[string]cost.TaskCost, titles map[string]string) error {
	if len(costs) == 0 {
		_, err := fmt.Fprintln(out, "No tagged sessions found.")
		return err
	}

	ids := make([]string, 0, len(costs))
	for id := range costs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(costs[b].Cost, costs[a].Cost); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK ID\tTASK\tCOST\tINPUT\tOUTPUT\tSESSIONS")
	var total float64
	for _, id := range ids {
		tc := costs[id]
		total += tc.Cost
		_, _ = fmt.Fprintf(w, "%s\t%s\t$%.2f\t%d\t%d\t%d\n",
			id, titles[id], tc.Cost, tc.InputTokens, tc.OutputTokens, tc.Sessions)
	}
	_, _ = fmt.Fprintf(w, "\t\t$%.2f\t\t\t\n", total)
	return w.Flush()
}

func runAdminEvents(args []string, out io.Writer) error {
	cfg, closeLog, err := loadAdminConfig(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if cfg.NATS.URL == "" {
		return errors.New("nats.url (or NATS_URL) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		return err
	}
	defer func() { _ = queue.Close() }()

	cancel, err := queue.Subscribe(ctx, messagequeue.Wildcard(cfg.NATS.SubjectPrefix),
		func(_ context.Context, subject string, data []byte) error {
			ev, err := messagequeue.Validate(subject, data)
			if err != nil {
				slog.Warn("invalid board event", "subject", subject, "error", err)
				return nil
			}
			_, err = fmt.Fprintf(out, "%s\t%s\n", ev.Event, ev.Data)
			return err
		})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer cancel()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl-C to stop)\n", messagequeue.Wildcard(cfg.NATS.SubjectPrefix))
	<-ctx.Done()
	return nil
}
