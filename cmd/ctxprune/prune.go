package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flemzord/ctxprune/internal/ttl"
	"github.com/flemzord/ctxprune/pkg/message"
)

// pruneInput is the JSON document read by the prune command. ToolCalls,
// when present, replaces the records loaded from the store.
type pruneInput struct {
	Messages  []message.PrunableMessage `json:"messages"`
	ToolCalls []ttl.ToolCall            `json:"tool_calls,omitempty"`
	Now       time.Time                 `json:"now"`
}

// pruneOutput is the JSON document printed by the prune command.
type pruneOutput struct {
	SessionID          string                    `json:"session_id,omitempty"`
	Messages           []message.PrunableMessage `json:"messages"`
	HardCleared        int                       `json:"hard_cleared"`
	ClearedToolCallIDs []string                  `json:"cleared_tool_call_ids"`
	SoftTrimmed        int                       `json:"soft_trimmed"`
	CharsRemoved       int                       `json:"chars_removed"`
	Expiring           []ttl.ToolCall            `json:"expiring"`
	TokensBefore       int                       `json:"tokens_before"`
	TokensAfter        int                       `json:"tokens_after"`
	CleanedUp          int                       `json:"cleaned_up"`
	Tracker            ttl.Stats                 `json:"tracker"`
}

func pruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune [file|-]",
		Short: "Run one pruning pass over a conversation history",
		Long: `Reads {"messages": [...], "tool_calls": [...], "now": "..."} and prints
the pruned history. Expired tool results are hard-cleared, messages older
than hard_clear.max_message_age are cleared, and oversized messages are
soft-trimmed. With a store, the session's TTL records are loaded before
the pass and saved after it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPrune,
	}
	f := cmd.Flags()
	f.String("session", "", "Session whose TTL records to use (generated when a store is set)")
	f.String("db", "", "Tool-call store path (overrides store.path)")
	return cmd
}

func runPrune(cmd *cobra.Command, args []string) (err error) {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	ctx := cmd.Context()

	in, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	var input pruneInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}
	if input.Messages == nil {
		return errors.New("input has no messages field")
	}

	session, _ := cmd.Flags().GetString("session")
	dbPath, _ := cmd.Flags().GetString("db")
	store, err := rt.openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		if session == "" {
			session = uuid.NewString()
			rt.logger.Info("no session given, starting a new one", "session", session)
		}
	}

	records := input.ToolCalls
	if records == nil && store != nil {
		if records, err = store.Load(ctx, session); err != nil {
			return err
		}
	}

	engine, err := rt.newEngine(records)
	if err != nil {
		return err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	res, err := engine.Prune(ctx, input.Messages, now)
	if err != nil {
		return err
	}
	cleaned := engine.Cleanup(now)

	if store != nil {
		if err := store.Save(ctx, session, engine.Records()); err != nil {
			return err
		}
	}

	for _, tc := range res.Expiring {
		rt.logger.Warn("tool call result about to expire",
			"tool_call_id", tc.ID,
			"tool", tc.ToolName,
			"called_at", tc.CalledAt,
		)
	}

	cleared := res.ClearedToolCallIDs
	if cleared == nil {
		cleared = []string{}
	}
	expiring := res.Expiring
	if expiring == nil {
		expiring = []ttl.ToolCall{}
	}
	return writeJSON(cmd, pruneOutput{
		SessionID:          session,
		Messages:           res.Messages,
		HardCleared:        res.HardCleared,
		ClearedToolCallIDs: cleared,
		SoftTrimmed:        res.SoftTrimmed,
		CharsRemoved:       res.CharsRemoved,
		Expiring:           expiring,
		TokensBefore:       res.TokensBefore,
		TokensAfter:        res.Budget.History,
		CleanedUp:          cleaned,
		Tracker:            engine.TrackerStats(),
	})
}
