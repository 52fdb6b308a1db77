package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/godamri/helix-audit/audit"
	"github.com/godamri/helix-audit/config"
	"github.com/godamri/helix-audit/log"

	"github.com/spf13/cobra"
)

func SendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one audit event and wait for the collector",
		Long: `Send one audit event to the configured collector.

Unlike services embedding the client, send always waits for the collector
and exits non-zero when the delivery fails.

Examples:
  auditctl send --action UPDATE --resource-type user --resource-id 42
  auditctl send --action LOGIN --resource-type session --actor-type user --actor-id 7 --actor-id-numeric
  auditctl send --action DELETE --resource-type invoice --before '{"total":10}' --meta reason=refund
  auditctl send --action CREATE --resource-type invoice --dry-run`,
		RunE:         runSend,
		SilenceUsage: true,
	}

	cmd.Flags().String("service-name", "", "Service name stamped on the event (overrides AUDIT_SERVICE_NAME)")
	cmd.Flags().String("endpoint", "", "Collector URL (overrides AUDIT_ENDPOINT)")
	cmd.Flags().String("api-key", "", "API key sent as x-api-key (overrides AUDIT_API_KEY)")
	cmd.Flags().Duration("timeout", 0, "HTTP timeout (overrides AUDIT_HTTP_TIMEOUT)")

	cmd.Flags().String("action", "", "Action performed, e.g. CREATE, UPDATE, DELETE, LOGIN")
	cmd.Flags().String("resource-type", "", "Type of the affected resource")
	cmd.Flags().String("resource-id", "", "Id of the affected resource")
	cmd.Flags().String("workspace-id", "", "Workspace / tenant id")
	cmd.Flags().String("actor-type", "", "Actor type: user or system")
	cmd.Flags().String("actor-id", "", "Actor id")
	cmd.Flags().Bool("actor-id-numeric", false, "Send --actor-id as a JSON number")
	cmd.Flags().String("ip", "", "Client IP")
	cmd.Flags().String("user-agent", "", "Client user agent")
	cmd.Flags().String("request-id", "", "Correlation id")
	cmd.Flags().String("timestamp", "", "ISO-8601 timestamp (default: now)")
	cmd.Flags().String("before", "", "JSON snapshot before the change")
	cmd.Flags().String("after", "", "JSON snapshot after the change")
	cmd.Flags().StringToString("meta", nil, "Metadata key=value pairs")
	cmd.Flags().Bool("dry-run", false, "Print the event instead of sending it")

	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("resource-type")

	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	entry, err := entryFromFlags(cmd)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewLoader[audit.Config]("", configPath).Load(
		func(c *audit.Config) { applyOverrides(cmd, c) },
	)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(audit.Normalize(entry, strings.TrimSpace(cfg.ServiceName), time.Now()))
	}

	if !cfg.Enabled {
		fmt.Fprintln(cmd.OutOrStdout(), "Auditing is disabled (AUDIT_ENABLED=false), nothing sent.")
		return nil
	}

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger := log.NewWithWriter(cmd.ErrOrStderr(), log.Config{Level: level, Format: format})

	result := &outcome{}
	client, err := audit.NewFromConfig(*cfg,
		audit.WithFireAndForget(false),
		audit.WithObserver(audit.Observers(result, audit.NewSlogObserver(logger))),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client.Log(ctx, entry)
	_ = client.Close(ctx)

	if result.err != nil {
		return fmt.Errorf("delivery failed: %w", result.err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %s %s to %s (status %d)\n", entry.Action, entry.ResourceType, cfg.Endpoint, result.status)
	return nil
}

func applyOverrides(cmd *cobra.Command, c *audit.Config) {
	flags := cmd.Flags()
	if flags.Changed("service-name") {
		c.ServiceName, _ = flags.GetString("service-name")
	}
	if flags.Changed("endpoint") {
		c.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("api-key") {
		c.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("timeout") {
		c.HTTPTimeout, _ = flags.GetDuration("timeout")
	}
}

func entryFromFlags(cmd *cobra.Command) (audit.Entry, error) {
	flags := cmd.Flags()
	str := func(name string) string {
		v, _ := flags.GetString(name)
		return v
	}

	entry := audit.Entry{
		Timestamp:    str("timestamp"),
		WorkspaceID:  str("workspace-id"),
		Action:       str("action"),
		ResourceType: str("resource-type"),
		ResourceID:   str("resource-id"),
		IP:           str("ip"),
		UserAgent:    str("user-agent"),
		RequestID:    str("request-id"),
	}

	switch actorType := audit.ActorType(str("actor-type")); actorType {
	case "", audit.ActorUser, audit.ActorSystem:
		entry.ActorType = actorType
	default:
		return audit.Entry{}, fmt.Errorf("actor-type must be %q or %q, got %q", audit.ActorUser, audit.ActorSystem, actorType)
	}

	if id := str("actor-id"); id != "" {
		numeric, _ := flags.GetBool("actor-id-numeric")
		if numeric {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return audit.Entry{}, fmt.Errorf("actor-id %q is not an integer: %w", id, err)
			}
			entry.ActorID = audit.IntActorID(n)
		} else {
			entry.ActorID = audit.StringActorID(id)
		}
	}

	for name, dst := range map[string]*any{"before": &entry.Before, "after": &entry.After} {
		raw := str(name)
		if raw == "" {
			continue
		}
		if !json.Valid([]byte(raw)) {
			return audit.Entry{}, fmt.Errorf("%s must be valid JSON", name)
		}
		*dst = json.RawMessage(raw)
	}

	meta, _ := flags.GetStringToString("meta")
	if len(meta) > 0 {
		entry.Metadata = make(map[string]any, len(meta))
		for k, v := range meta {
			entry.Metadata[k] = v
		}
	}

	return entry, nil
}

// outcome remembers the single delivery result of a synchronous send.
type outcome struct {
	status int
	err    error
}

func (o *outcome) Delivered(_ context.Context, _ audit.Event, status int, _ time.Duration) {
	o.status = status
}

func (o *outcome) Failed(_ context.Context, _ audit.Event, err error) {
	o.err = err
}
