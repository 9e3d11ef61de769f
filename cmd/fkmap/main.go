// Command fkmap drives the interactive foreign-key adjudication agent
// (internal/fkagent) from a terminal: it loads or creates a resumable
// audit file, surfaces each ambiguous candidate set to the operator, and
// persists every decision as it is made.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nlsql/internal/adapter"
	"nlsql/internal/config"
	"nlsql/internal/embedindex"
	"nlsql/internal/fkagent"
)

func main() {
	configPath := flag.String("config", "", "Path to nlsql_config.json (optional; short search path is used otherwise)")
	auditPath := flag.String("audit", "", "Path to the FK audit CSV file (defaults to the config's audit_file_path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fkmap: loading config: %v", err)
	}
	path := *auditPath
	if path == "" {
		path = cfg.AuditFilePath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nfkmap: received interrupt signal, saving progress and exiting...")
		cancel()
	}()

	db, err := adapter.NewAdapter(&cfg.DB)
	if err != nil {
		log.Fatalf("fkmap: constructing database adapter: %v", err)
	}
	if err := db.Connect(ctx); err != nil {
		log.Fatalf("fkmap: connecting to database: %v", err)
	}
	defer db.Close()

	embedder, err := config.NewEmbedder(cfg.Embedding)
	if err != nil {
		log.Fatalf("fkmap: constructing embedding client: %v", err)
	}

	audit, err := fkagent.OpenAuditFile(path)
	if err != nil {
		log.Fatalf("fkmap: opening audit file %s: %v", path, err)
	}

	agent := fkagent.New(db, nil, audit, fkagent.Config{
		AmbiguityThreshold: cfg.FKAmbiguityThreshold,
		CandidateCount:     5,
	}, "fkmap-session")

	s, err := agent.Initialize(ctx)
	if err != nil {
		log.Fatalf("fkmap: initializing audit file: %v", err)
	}

	idx, err := embedindex.Build(ctx, embedder, s)
	if err != nil {
		log.Fatalf("fkmap: building embedding index: %v", err)
	}
	agent.Idx = idx

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("fkmap: exiting, re-run to resume remaining rows.")
			return
		default:
		}

		interrupt, err := agent.Run(ctx)
		if err != nil {
			log.Fatalf("fkmap: %v", err)
		}
		if interrupt == nil {
			break
		}

		fmt.Println(interrupt.Prompt)
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		token := strings.TrimSpace(scanner.Text())

		quit, err := agent.Resume(ctx, token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fkmap: %v, try again\n", err)
			continue
		}
		if quit {
			break
		}
	}

	stats := agent.Finalize()
	fmt.Printf("fkmap: done. total=%d auto=%d manual=%d existing=%d skipped=%d\n",
		stats.Total, stats.Auto, stats.Manual, stats.Existing, stats.Skipped)
}
