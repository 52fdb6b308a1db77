package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/godamri/helix-audit/audit"
	"github.com/godamri/helix-audit/config"
	"github.com/godamri/helix-audit/log"

	"github.com/spf13/cobra"
)

func ReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Send every event of a JSON Lines file",
		Long: `Read audit events, one JSON object per line, and send each of them.

Lines use the collector wire format. Any serviceName in the file is ignored:
events are always stamped with the configured service name.
Reads stdin when no file is given or the file is "-".

Deliveries run in fire-and-forget mode unless --wait is set. On exit,
in-flight deliveries get --drain-timeout to finish.

Examples:
  auditctl replay events.jsonl
  cat events.jsonl | auditctl replay --wait`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runReplay,
		SilenceUsage: true,
	}

	cmd.Flags().String("service-name", "", "Service name stamped on the events (overrides AUDIT_SERVICE_NAME)")
	cmd.Flags().String("endpoint", "", "Collector URL (overrides AUDIT_ENDPOINT)")
	cmd.Flags().String("api-key", "", "API key sent as x-api-key (overrides AUDIT_API_KEY)")
	cmd.Flags().Duration("timeout", 0, "HTTP timeout (overrides AUDIT_HTTP_TIMEOUT)")
	cmd.Flags().Bool("wait", false, "Wait for each delivery before reading the next line")
	cmd.Flags().Duration("drain-timeout", 10*time.Second, "How long to wait for in-flight deliveries on exit")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewLoader[audit.Config]("", configPath).Load(
		func(c *audit.Config) { applyOverrides(cmd, c) },
	)
	if err != nil {
		return err
	}

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger := log.NewWithWriter(cmd.ErrOrStderr(), log.Config{Level: level, Format: format})

	wait, _ := cmd.Flags().GetBool("wait")
	tally := &tally{}
	client, err := audit.NewFromConfig(*cfg,
		audit.WithFireAndForget(!wait),
		audit.WithObserver(audit.Observers(tally, audit.NewSlogObserver(logger))),
	)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	read, readErr := replayLines(ctx, in, client)

	drain, _ := cmd.Flags().GetDuration("drain-timeout")
	drainCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := client.Close(drainCtx); err != nil {
		logger.Warn("Replay exited before all deliveries finished", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Read %d events: %d delivered, %d failed\n",
		read, tally.delivered.Load(), tally.failed.Load())

	return readErr
}

// replayLines logs one entry per non-blank line until EOF or ctx is done.
func replayLines(ctx context.Context, in io.Reader, logger audit.Logger) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	read := 0
	for line := 1; scanner.Scan(); line++ {
		if ctx.Err() != nil {
			return read, ctx.Err()
		}

		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var ev audit.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return read, fmt.Errorf("line %d: invalid event: %w", line, err)
		}
		if ev.Action == "" || ev.ResourceType == "" {
			return read, fmt.Errorf("line %d: action and resourceType are required", line)
		}

		logger.Log(ctx, entryFromEvent(ev))
		read++
	}

	if err := scanner.Err(); err != nil {
		return read, fmt.Errorf("failed to read events: %w", err)
	}
	return read, nil
}

func entryFromEvent(ev audit.Event) audit.Entry {
	return audit.Entry{
		Timestamp:    ev.Timestamp,
		WorkspaceID:  ev.WorkspaceID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		ActorType:    ev.ActorType,
		ActorID:      ev.ActorID,
		IP:           ev.IP,
		UserAgent:    ev.UserAgent,
		RequestID:    ev.RequestID,
		Before:       ev.Before,
		After:        ev.After,
		Metadata:     ev.Metadata,
	}
}

type tally struct {
	delivered atomic.Int64
	failed    atomic.Int64
}

func (t *tally) Delivered(context.Context, audit.Event, int, time.Duration) { t.delivered.Add(1) }
func (t *tally) Failed(context.Context, audit.Event, error)                 { t.failed.Add(1) }
