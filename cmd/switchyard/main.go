// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/switchyard-io/switchyard/pkg/compose"
	"github.com/switchyard-io/switchyard/pkg/config"
	"github.com/switchyard-io/switchyard/pkg/engine"
	"github.com/switchyard-io/switchyard/pkg/loader"
	"github.com/switchyard-io/switchyard/pkg/orchestrator"
	"github.com/switchyard-io/switchyard/pkg/policy"
	"github.com/switchyard-io/switchyard/pkg/registry"
	"github.com/switchyard-io/switchyard/pkg/stats"
	"github.com/switchyard-io/switchyard/pkg/telemetry"
)

const version = "dev"

type globalFlags struct {
	ConfigPath string
	Profile    string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage()
		return
	case "version":
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadWithProfile(global.ConfigPath, global.Profile)
	if err != nil {
		NewConfigError(err, global.ConfigPath).PrintError(global.JSON)
		os.Exit(1)
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("switchyard", version, cfg.Telemetry)
	if err != nil {
		fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		fatal(err)
	}
	defer orch.Close()

	switch cmd {
	case "adapters":
		runAdapters(ctx, global, orch, args[1:])
	case "tools":
		runTools(ctx, global, orch, args[1:])
	case "call":
		runCall(ctx, global, cfg, orch, args[1:])
	case "pipeline":
		runPipeline(ctx, global, orch, args[1:])
	case "auth":
		runAuth(global, orch, args[1:])
	case "health":
		ensureNoArgs(args[1:])
		runHealth(ctx, global, orch)
	case "stats":
		runStats(global, orch, args[1:])
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	reg, err := registry.New(cfg.Adapters)
	if err != nil {
		return nil, err
	}

	var store stats.Store
	switch cfg.Stats.Store {
	case "", "memory":
		store = stats.NewMemory()
	case "sqlite":
		s, err := stats.OpenSQLite(cfg.Stats.Path)
		if err != nil {
			return nil, fmt.Errorf("open stats store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown stats store %q", cfg.Stats.Store)
	}

	metrics, err := telemetry.NewInvocationMetrics()
	if err != nil {
		return nil, err
	}

	gate := policy.NewGate(config.EnvCredentials{}, nil)
	ld := loader.NewMulti(loader.NewStatic(), loader.NewMCP())

	engineOpts := []engine.Option{engine.WithMetrics(metrics)}
	if cfg.Defaults.Timeout > 0 {
		engineOpts = append(engineOpts, engine.WithDefaultTimeout(cfg.Defaults.Timeout))
	}

	return orchestrator.New(reg, gate, ld, store,
		orchestrator.WithEngineOptions(engineOpts...)), nil
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		ConfigPath: getenv("SWITCHYARD_CONFIG", ""),
		Timeout:    30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--profile":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --profile")
			}
			flags.Profile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--profile="):
			flags.Profile = strings.TrimPrefix(arg, "--profile=")
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func runAdapters(ctx context.Context, global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: switchyard adapters <list|categories> [args]"))
	}

	switch args[0] {
	case "list":
		runAdaptersList(ctx, global, orch, args[1:])
	case "categories":
		ensureNoArgs(args[1:])
		cats := orch.ListCategories()
		if global.JSON {
			printJSON(map[string]any{"categories": cats, "total": len(cats)})
			return
		}
		for _, c := range cats {
			fmt.Println(c)
		}
	default:
		fatal(fmt.Errorf("unknown adapters subcommand %q; use list or categories", args[0]))
	}
}

func runAdaptersList(ctx context.Context, global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	fs := flag.NewFlagSet("adapters list", flag.ExitOnError)
	category := fs.String("category", "", "Filter by category")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	listCtx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	infos := orch.ListAdapters(listCtx)
	if *category != "" {
		filtered := make([]orchestrator.AdapterInfo, 0)
		for _, info := range infos {
			if info.Category == *category {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	if global.JSON {
		printJSON(map[string]any{"adapters": infos, "total": len(infos)})
		return
	}

	if len(infos) == 0 {
		fmt.Println("No adapters found.")
		return
	}

	w := newTabWriter()
	writeRow(w, "ID", "CATEGORY", "LOCATION", "AVAILABLE", "AUTH")
	for _, info := range infos {
		auth := "none"
		if info.AuthRequired() {
			auth = string(info.Auth.Kind)
		}
		writeRow(w, info.ID, info.Category, info.Location,
			fmt.Sprintf("%t", info.Available), auth)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d adapters\n", len(infos))
}

func runTools(ctx context.Context, global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: switchyard tools <adapter-id>"))
	}

	loadCtx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	tools, err := orch.LoadTools(loadCtx, args[0])
	if err != nil {
		PrintResultError(err, global.JSON)
		os.Exit(1)
	}

	if global.JSON {
		printJSON(map[string]any{"adapter_id": args[0], "tools": tools, "total": len(tools)})
		return
	}

	w := newTabWriter()
	writeRow(w, "NAME", "DESCRIPTION")
	for _, tool := range tools {
		writeRow(w, tool.Name, truncateMessage(tool.Description, 72))
	}
	w.Flush()
}

func runCall(ctx context.Context, global globalFlags, cfg *config.Config, orch *orchestrator.Orchestrator, args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	paramsJSON := fs.String("params", "", "Tool parameters as a JSON object")
	timeout := fs.Duration("call-timeout", 0, "Per-attempt timeout override")
	retries := fs.Int("retries", cfg.Defaults.MaxRetries, "Retry budget after the first attempt")
	noRateLimit := fs.Bool("no-rate-limit", false, "Bypass the rate limiter for this call")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	rest := fs.Args()
	if len(rest) != 2 {
		fatal(fmt.Errorf("usage: switchyard call [flags] <adapter-id> <tool>"))
	}

	var params map[string]any
	if *paramsJSON != "" {
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			NewInvalidArgumentError("--params", err.Error()).PrintError(global.JSON)
			os.Exit(1)
		}
	}

	opts := &engine.Options{
		Timeout:       *timeout,
		MaxRetries:    *retries,
		SkipRateLimit: *noRateLimit,
	}
	res := orch.Execute(ctx, rest[0], rest[1], params, opts)

	if global.JSON {
		printJSON(res)
		if !res.Success {
			os.Exit(1)
		}
		return
	}

	if !res.Success {
		PrintResultError(res.Err, false)
		fmt.Fprintf(os.Stderr, "  attempts: %d, duration: %dms\n", res.Attempts, res.ExecutionTimeMs)
		os.Exit(1)
	}
	printJSON(res.Data)
	fmt.Fprintf(os.Stderr, "completed in %dms (%d attempt(s), request %s)\n",
		res.ExecutionTimeMs, res.Attempts, res.RequestID)
}

func runPipeline(ctx context.Context, global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	parallel := fs.Bool("parallel", false, "Run calls concurrently instead of in order")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fatal(fmt.Errorf("usage: switchyard pipeline [--parallel] <adapter:tool[:params-json]>..."))
	}

	calls := make([]compose.Call, 0, len(rest))
	for _, spec := range rest {
		call, err := parseCallSpec(spec)
		if err != nil {
			NewInvalidArgumentError(spec, err.Error()).PrintError(global.JSON)
			os.Exit(1)
		}
		calls = append(calls, call)
	}

	var results []engine.Result
	if *parallel {
		results = orch.ExecuteParallel(ctx, calls)
	} else {
		steps := make([]compose.Step, len(calls))
		for i, call := range calls {
			steps[i] = compose.Step{Call: call}
		}
		results = orch.ExecuteSequence(ctx, steps)
	}

	if global.JSON {
		printJSON(map[string]any{"results": results, "total": len(results)})
	} else {
		w := newTabWriter()
		writeRow(w, "ADAPTER", "TOOL", "SUCCESS", "CODE", "DURATION")
		for _, res := range results {
			code := ""
			if res.Err != nil {
				code = string(res.Err.Code)
			}
			writeRow(w, res.AdapterID, res.Tool, fmt.Sprintf("%t", res.Success),
				code, fmt.Sprintf("%dms", res.ExecutionTimeMs))
		}
		w.Flush()
	}

	for _, res := range results {
		if !res.Success {
			os.Exit(1)
		}
	}
}

// parseCallSpec parses "adapter:tool" or "adapter:tool:{json params}".
func parseCallSpec(spec string) (compose.Call, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return compose.Call{}, fmt.Errorf("expected adapter:tool[:params-json]")
	}
	call := compose.Call{AdapterID: parts[0], Tool: parts[1]}
	if len(parts) == 3 && parts[2] != "" {
		if err := json.Unmarshal([]byte(parts[2]), &call.Parameters); err != nil {
			return compose.Call{}, fmt.Errorf("invalid params: %w", err)
		}
	}
	return call, nil
}

func runAuth(global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: switchyard auth <adapter-id>"))
	}

	status, err := orch.CheckAuthentication(args[0])
	if err != nil {
		PrintResultError(err, global.JSON)
		os.Exit(1)
	}

	if global.JSON {
		printJSON(status)
		return
	}

	fmt.Printf("Adapter: %s\n", status.AdapterID)
	fmt.Printf("Auth required: %t\n", status.Required)
	fmt.Printf("Authenticated: %t\n", status.Authenticated)
	if len(status.MissingSources) > 0 {
		fmt.Printf("Missing: %s\n", strings.Join(status.MissingSources, ", "))
	}
}

func runHealth(ctx context.Context, global globalFlags, orch *orchestrator.Orchestrator) {
	healthCtx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	health := orch.HealthCheck(healthCtx)
	if global.JSON {
		printJSON(map[string]any{"adapters": health, "total": len(health)})
		return
	}

	w := newTabWriter()
	writeRow(w, "ID", "AVAILABLE", "AUTHENTICATED", "RATE LIMIT", "LAST USED")
	for _, h := range health {
		writeRow(w, h.AdapterID,
			fmt.Sprintf("%t", h.Available),
			fmt.Sprintf("%t", h.Authenticated),
			string(h.RateLimit),
			formatTime(h.LastUsedAt))
	}
	w.Flush()
}

func runStats(global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	if len(args) > 0 && args[0] == "reset" {
		runStatsReset(global, orch, args[1:])
		return
	}

	if len(args) == 1 {
		usage, ok := orch.UsageStats(args[0])
		if !ok {
			NewNotFoundError("usage stats", args[0]).PrintError(global.JSON)
			os.Exit(1)
		}
		if global.JSON {
			printJSON(map[string]any{"adapter_id": args[0], "usage": usage})
			return
		}
		printUsageRow(args[0], usage, newTabWriter())
		return
	}
	ensureNoArgs(args)

	all := orch.AllUsageStats()
	if global.JSON {
		printJSON(map[string]any{"usage": all, "total": len(all)})
		return
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := newTabWriter()
	writeRow(w, "ID", "TOTAL", "OK", "FAILED", "AVG MS", "LAST USED")
	for _, id := range ids {
		usage := all[id]
		writeRow(w, id,
			fmt.Sprintf("%d", usage.TotalRequests),
			fmt.Sprintf("%d", usage.SuccessfulRequests),
			fmt.Sprintf("%d", usage.FailedRequests),
			fmt.Sprintf("%.1f", usage.AverageExecutionTime),
			formatTime(usage.LastUsedAt))
	}
	w.Flush()
}

func printUsageRow(id string, usage stats.Usage, w *tabwriter.Writer) {
	writeRow(w, "ID", "TOTAL", "OK", "FAILED", "AVG MS", "LAST USED")
	writeRow(w, id,
		fmt.Sprintf("%d", usage.TotalRequests),
		fmt.Sprintf("%d", usage.SuccessfulRequests),
		fmt.Sprintf("%d", usage.FailedRequests),
		fmt.Sprintf("%.1f", usage.AverageExecutionTime),
		formatTime(usage.LastUsedAt))
	w.Flush()
}

func runStatsReset(global globalFlags, orch *orchestrator.Orchestrator, args []string) {
	switch len(args) {
	case 0:
		orch.ResetAllUsageStats()
		if !global.JSON {
			fmt.Println("All usage stats reset.")
		}
	case 1:
		orch.ResetUsageStats(args[0])
		if !global.JSON {
			fmt.Printf("Usage stats for %s reset.\n", args[0])
		}
	default:
		fatal(fmt.Errorf("usage: switchyard stats reset [adapter-id]"))
	}
	if global.JSON {
		printJSON(map[string]any{"reset": true})
	}
}

func printJSON(value any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fatal(err)
	}
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func printUsage() {
	fmt.Print(`Switchyard CLI

Usage:
  switchyard [global flags] <command> [args]

Global flags:
  --config <path>      Path to config.yaml (or SWITCHYARD_CONFIG)
  --profile <name>     Config profile overlay (config.<name>.yaml)
  --timeout <dur>      Probe/listing timeout (default 30s)
  --json               JSON output

Commands:
  adapters list [--category <name>]
  adapters categories
  tools <adapter-id>
  call [--params <json>] [--call-timeout <dur>] [--retries N] [--no-rate-limit] <adapter-id> <tool>
  pipeline [--parallel] <adapter:tool[:params-json]>...
  auth <adapter-id>
  health
  stats [adapter-id]
  stats reset [adapter-id]
  version
`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
