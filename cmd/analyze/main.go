// Command analyze runs one screenplay through the full provider pipeline
// synchronously and prints the merged record:
//
//	go run ./cmd/analyze -file script.pdf -genre Thriller -budget 12000000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"screenplay-analyzer/internal/analyses"
	"screenplay-analyzer/internal/bootstrap"
	"screenplay-analyzer/internal/extract"
	"screenplay-analyzer/internal/orchestrator"
	"screenplay-analyzer/internal/providers"
	"screenplay-analyzer/internal/reconcile"
	"screenplay-analyzer/internal/shared/config"
	"screenplay-analyzer/internal/shared/telemetry"
	"screenplay-analyzer/internal/usage"
)

func main() {
	cfg := config.Load()

	path := flag.String("file", "", "Path to screenplay (.pdf, .docx or plain text)")
	title := flag.String("title", "", "Title (defaults to the file name)")
	genre := flag.String("genre", "", "Genre hint (optional)")
	budget := flag.Float64("budget", 0, "Production budget in USD (optional)")
	only := flag.String("only", "", "Comma-separated secondary providers to run (default all)")
	noSource := flag.Bool("no-source", false, "Skip source-material detection")
	outPath := flag.String("out", "", "Path to write the record JSON (optional)")
	timeout := flag.Duration("timeout", 20*time.Minute, "Overall timeout")
	flag.Parse()

	_ = telemetry.Init(telemetry.Config{Level: cfg.LogLevel, Encoding: "console", OutputPath: "stderr"})
	defer telemetry.Sync()

	if strings.TrimSpace(*path) == "" {
		exitErr("file path is required")
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		exitErr(fmt.Sprintf("read screenplay: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fileName := filepath.Base(*path)
	text, err := extract.ExtractText(ctx, data, fileName)
	if err != nil {
		exitErr(fmt.Sprintf("extract screenplay text: %v", err))
	}
	if strings.TrimSpace(*title) == "" {
		*title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	set := bootstrap.BuildProviders(cfg.Providers)
	secondaries, err := selectProviders(set.Secondaries, *only)
	if err != nil {
		exitErr(err.Error())
	}

	store := analyses.NewMemoryRepo()
	ledger := usage.NewMemoryLedger()
	orch := &orchestrator.Orchestrator{
		Primary:     set.Primary,
		Secondaries: secondaries,
		Store:       store,
		Usage:       usage.NewServiceWithLedger(ledger),
		Reconciler:  reconcile.New(),
	}
	if !*noSource {
		orch.Source = set.Source
	}

	sub := analyses.Submission{
		ID:         fmt.Sprintf("cli_%d", time.Now().UnixMilli()),
		UserID:     "cli",
		Title:      *title,
		Text:       text,
		Genre:      strings.TrimSpace(*genre),
		Source:     analyses.SourceText,
		FileName:   fileName,
		TextLength: len([]rune(text)),
		CreatedAt:  time.Now().UTC(),
	}
	if *budget > 0 {
		sub.Budget = budget
	}
	if err := store.Create(ctx, analyses.Analysis{Submission: sub, Status: analyses.StatusPending, UpdatedAt: sub.CreatedAt}); err != nil {
		exitErr(fmt.Sprintf("create analysis: %v", err))
	}

	if err := orch.Run(ctx, sub); err != nil {
		exitErr(fmt.Sprintf("analysis failed: %v", err))
	}
	result, err := store.Get(ctx, sub.ID)
	if err != nil || result.Record == nil {
		exitErr(fmt.Sprintf("load record: %v", err))
	}

	pretty, err := json.MarshalIndent(result.Record, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	fmt.Println(string(pretty))

	var total float64
	for _, rec := range ledger.Records() {
		total += rec.Cost
	}
	fmt.Fprintf(os.Stderr, "providers called: %d, total cost: $%.4f\n", len(ledger.Records()), total)
}

// selectProviders filters secondaries by a comma-separated name list. An empty
// list keeps them all; unknown names are an error.
func selectProviders(all []providers.Provider, only string) ([]providers.Provider, error) {
	if strings.TrimSpace(only) == "" {
		return all, nil
	}
	byName := make(map[string]providers.Provider, len(all))
	for _, p := range all {
		byName[p.Name()] = p
	}
	var out []providers.Provider
	for _, name := range strings.Split(only, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
