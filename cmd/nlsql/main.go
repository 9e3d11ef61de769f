// Command nlsql answers one natural-language question against a
// configured database by driving the full schema -> plan -> synthesize
// -> execute workflow (internal/workflow).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms/openai"

	"nlsql/internal/adapter"
	"nlsql/internal/config"
	"nlsql/internal/planner"
	"nlsql/internal/synth"
	"nlsql/internal/workflow"
)

func main() {
	question := flag.String("question", "", "Natural-language question to answer (required)")
	configPath := flag.String("config", "", "Path to nlsql_config.json (optional; short search path is used otherwise)")
	sortOrder := flag.String("sort", string(planner.SortDefault), "Sort order: Default | Ascending | Descending")
	resultLimit := flag.Int("limit", 0, "Result limit (0 = planner/synthesizer default)")
	timeFilter := flag.String("time-filter", string(planner.TimeAllTime), "Time filter: All Time | Last 30 Days | Last 60 Days | Last 90 Days | Last Year")
	threadID := flag.String("thread", "", "Thread ID for this request's checkpoints (empty generates one); checkpoints are kept in memory only, so an ID from an earlier run is not resumed")
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "nlsql: -question is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("nlsql: loading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nnlsql: received interrupt signal, cancelling request...")
		cancel()
	}()

	db, err := adapter.NewAdapter(&cfg.DB)
	if err != nil {
		log.Fatalf("nlsql: constructing database adapter: %v", err)
	}
	if err := db.Connect(ctx); err != nil {
		log.Fatalf("nlsql: connecting to database: %v", err)
	}

	llm, err := openai.New(
		openai.WithModel(cfg.Planner.ModelName),
		openai.WithToken(cfg.Planner.Token),
		openai.WithBaseURL(cfg.Planner.BaseURL),
	)
	if err != nil {
		log.Fatalf("nlsql: constructing LM client: %v", err)
	}
	model := planner.NewModel(llm)

	dialect, err := dialectForDBType(cfg.DB.Type)
	if err != nil {
		log.Fatalf("nlsql: %v", err)
	}

	eng := workflow.New(db, model, workflow.Config{
		MaxRetries:     cfg.MaxRetries,
		MaxRefinements: cfg.MaxRefinements,
		Dialect:        dialect,
	}, nil, *threadID)

	prefs := planner.Preferences{
		SortOrder:   planner.SortOrder(*sortOrder),
		ResultLimit: *resultLimit,
		TimeFilter:  planner.TimeFilter(*timeFilter),
	}

	st, runErr := eng.Run(ctx, *threadID, *question, prefs)

	envelope := map[string]interface{}{
		"query": st.Query,
	}
	if len(st.CorrectionHistory) > 0 {
		envelope["corrected_query"] = st.Query
	}
	if runErr != nil {
		envelope["error_message"] = st.ErrorMessage
	} else {
		envelope["result"] = json.RawMessage(st.Result)
	}

	out, _ := json.MarshalIndent(envelope, "", "  ")
	fmt.Println(string(out))

	if runErr != nil {
		os.Exit(1)
	}
}

// dialectForDBType maps a configured database type onto the two
// dialects the synthesizer (C7) actually supports, matching the
// canonical system this pipeline is modeled on (SQL Server in
// production, SQLite in test-database mode; see SPEC_FULL.md §5.1).
// mysql/postgresql adapters are real and exercised for schema
// introspection (C1), but have no synthesizer dialect of their own, so
// they are explicitly rejected here rather than silently mis-routed to
// TSQL syntax they don't accept. internal/adapter has no SQL Server
// adapter, so adapter.NewAdapter rejects tsql/mssql/sqlserver before
// this function is reached; only sqlite runs end to end.
func dialectForDBType(dbType string) (synth.Dialect, error) {
	switch dbType {
	case "sqlite":
		return synth.SQLite, nil
	case "tsql", "mssql", "sqlserver":
		return synth.TSQL, nil
	default:
		return "", fmt.Errorf("database type %q has no supported SQL synthesizer dialect (only sqlite and tsql/mssql/sqlserver have one)", dbType)
	}
}
