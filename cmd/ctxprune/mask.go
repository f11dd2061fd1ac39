package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	ctxengine "github.com/flemzord/ctxprune/internal/context"
	"github.com/flemzord/ctxprune/internal/mask"
	"github.com/flemzord/ctxprune/internal/ttl"
)

// maskOutput is the JSON document printed by the mask command.
type maskOutput struct {
	SessionID    string                   `json:"session_id,omitempty"`
	Observations []mask.MaskedObservation `json:"observations"`
	Stats        mask.Stats               `json:"stats"`
}

func maskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask [file|-]",
		Short: "Mask a JSON array of tool observations",
		Long: `Reads a JSON array of tool observations and prints each one masked
under the configured token budget. Observations without an id get a
random one. Credentials are scrubbed from input and output first unless
redact.enabled is false. With --session and a store, the calls are
registered in the session's TTL records for later prune runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMask,
	}
	f := cmd.Flags()
	f.String("query", "", "Current task text used to score relevance")
	f.Int("window", 0, "Use the sliding window policy keeping this many recent observations in full")
	f.Int("first-index", 0, "History position of the first observation")
	f.String("session", "", "Session whose TTL records to update")
	f.String("db", "", "Tool-call store path (overrides store.path)")
	return cmd
}

func runMask(cmd *cobra.Command, args []string) (err error) {
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

	var observations []mask.Observation
	if err := json.NewDecoder(in).Decode(&observations); err != nil {
		return fmt.Errorf("decoding observations: %w", err)
	}
	for i := range observations {
		if observations[i].ID == "" {
			observations[i].ID = uuid.NewString()
		}
	}
	if rt.cfg.RedactEnabled() {
		if n := rt.redactor.Observations(observations); n > 0 {
			rt.logger.Info("redacted credentials from tool output", "observations", n)
		}
	}

	session, _ := cmd.Flags().GetString("session")
	dbPath, _ := cmd.Flags().GetString("db")
	store, err := rt.openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	var records []ttl.ToolCall
	if store != nil && session != "" {
		if records, err = store.Load(ctx, session); err != nil {
			return err
		}
	}

	engine, err := rt.newEngine(records)
	if err != nil {
		return err
	}
	if query, _ := cmd.Flags().GetString("query"); query != "" {
		engine.SetQuery(query)
	}

	firstIndex, _ := cmd.Flags().GetInt("first-index")
	window, _ := cmd.Flags().GetInt("window")

	var res ctxengine.IngestResult
	if cmd.Flags().Changed("window") {
		res, err = engine.IngestWindow(ctx, observations, firstIndex, window)
	} else {
		res, err = engine.Ingest(ctx, observations, firstIndex)
	}
	if err != nil {
		return err
	}

	if store != nil && session != "" {
		if err := store.Save(ctx, session, engine.Records()); err != nil {
			return err
		}
		rt.logger.Debug("tool calls registered", "session", session, "count", len(observations))
	}

	rt.logger.Info("observations masked",
		"count", res.Stats.TotalObservations,
		"masked", res.Stats.Masked,
		"tokens_saved", res.Stats.TokensSaved,
	)
	return writeJSON(cmd, maskOutput{
		SessionID:    session,
		Observations: res.Observations,
		Stats:        res.Stats,
	})
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
