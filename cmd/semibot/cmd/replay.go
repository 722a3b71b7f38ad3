package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/engine"
	"github.com/GoatGit/semibot/internal/rules"
	"github.com/GoatGit/semibot/internal/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay [event-id]",
	Short: "Re-run rule evaluation for stored events",
	Long: `Replay feeds stored events back through the rule engine without
re-persisting them. Pass a single event id, or select a batch with
--event-type and an optional --since lower bound.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("event-type", "", "replay all stored events of this type")
	replayCmd.Flags().String("since", "", "only replay events created after this RFC3339 time")
}

func runReplay(cmd *cobra.Command, args []string) error {
	eventType, _ := cmd.Flags().GetString("event-type")
	if len(args) == 0 && eventType == "" {
		return fmt.Errorf("pass an event id or --event-type")
	}
	if len(args) == 1 && eventType != "" {
		return fmt.Errorf("pass either an event id or --event-type, not both")
	}
	if len(args) == 1 {
		if _, err := types.ParseID(args[0]); err != nil {
			return fmt.Errorf("invalid event id %q: %w", args[0], err)
		}
	}

	var since time.Time
	if raw, _ := cmd.Flags().GetString("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid --since %q: %w", raw, err)
		}
		since = parsed
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(st, rules.NewLoader(cfg.RuleSource), cfg,
		engine.WithWebhookSecret(config.WebhookSecret()),
	)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.Close()

	ctx := context.Background()
	if len(args) == 1 {
		results, err := eng.ReplayEvent(ctx, args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	n, err := eng.ReplayByType(ctx, eventType, since)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
	return nil
}
