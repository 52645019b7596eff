package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbellard/chatseg/internal/config"
	"github.com/jbellard/chatseg/internal/feature"
	"github.com/jbellard/chatseg/internal/ingest"
	"github.com/jbellard/chatseg/internal/llm"
	chatsegmcp "github.com/jbellard/chatseg/internal/mcp"
	"github.com/jbellard/chatseg/internal/normalize"
	"github.com/jbellard/chatseg/internal/report"
	"github.com/jbellard/chatseg/internal/segment"
	"github.com/jbellard/chatseg/internal/store"
	"github.com/jbellard/chatseg/internal/summarize"
	"github.com/jbellard/chatseg/internal/validate"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "normalize":
		err = runNormalize(os.Args[2:])
	case "segment":
		err = runSegment(os.Args[2:])
	case "run":
		err = runPipeline(os.Args[2:])
	case "summarize":
		err = runSummarize(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("chatseg %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagSet is a minimal ordered flag scanner: --name value pairs plus
// positional arguments.
type flagSet struct {
	flags      map[string]string
	positional []string
}

func parseArgs(args []string, valueFlags map[string]string) (*flagSet, error) {
	fs := &flagSet{flags: map[string]string{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			fs.positional = append(fs.positional, arg)
			continue
		}
		name, ok := valueFlags[arg]
		if !ok {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("flag %s requires a value", arg)
		}
		i++
		fs.flags[name] = args[i]
	}
	return fs, nil
}

func (fs *flagSet) get(name string) string { return fs.flags[name] }

func runNormalize(args []string) error {
	fs, err := parseArgs(args, map[string]string{
		"-o": "output", "--output": "output",
		"--schema-version": "schema", "--device-id": "device",
		"--patterns": "patterns", "--config": "config",
	})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg normalize <input> [-o output.jsonl] [--schema-version v] [--device-id id]")
	}
	input := fs.positional[0]

	cfg, err := config.Resolve(config.Options{ConfigPath: fs.get("config"), CLIPatterns: fs.get("patterns")})
	if err != nil {
		return err
	}
	logger := cfg.Logger(version)

	output := fs.get("output")
	if output == "" {
		output = derivedPath(input, "_normalized.jsonl")
	}

	normalizer, err := buildNormalizer(cfg, fs.get("schema"), fs.get("device"))
	if err != nil {
		return err
	}

	raws, result, err := ingest.NewReader(logger).ReadFile(input)
	if err != nil {
		return err
	}

	records := make([]*normalize.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := normalizer.Normalize(raw)
		if err != nil {
			result.Skipped++
			logger.Warn().Err(err).Int("record", i).Msg("skipping record")
			continue
		}
		records = append(records, rec)
		if (i+1)%1000 == 0 {
			fmt.Printf("Processed %d records...\n", i+1)
		}
	}

	if err := writeJSONL(output, len(records), func(i int) any { return records[i] }); err != nil {
		return err
	}

	fmt.Printf("Processed %d records (%d skipped)\n", len(records), result.Skipped)
	fmt.Printf("Output written to %s\n", output)
	return nil
}

func runSegment(args []string) error {
	fs, err := parseArgs(args, map[string]string{
		"-o": "output", "--output": "output",
		"--window-hours": "window", "--config": "config",
	})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg segment <normalized.jsonl> [-o output.jsonl] [--window-hours n]")
	}
	input := fs.positional[0]

	cfg, err := config.Resolve(config.Options{ConfigPath: fs.get("config"), CLIWindow: fs.get("window")})
	if err != nil {
		return err
	}

	records, skipped, err := readNormalized(input)
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d invalid lines skipped\n", skipped)
	}

	segments := segment.NewSegmenter(cfg.Window()).Segment(records)

	output := fs.get("output")
	if output == "" {
		output = derivedPath(input, "_segments.jsonl")
	}
	if err := writeJSONL(output, len(segments), func(i int) any { return segments[i] }); err != nil {
		return err
	}

	fmt.Printf("Segmented %d messages into %d segments (window %.1fh)\n", len(records), len(segments), cfg.Window())
	fmt.Printf("Output written to %s\n", output)
	return nil
}

func runPipeline(args []string) error {
	fs, err := parseArgs(args, map[string]string{
		"--db": "db", "--window-hours": "window",
		"--schema-version": "schema", "--device-id": "device",
		"--patterns": "patterns", "--config": "config",
	})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg run <input> [--db path] [--window-hours n]")
	}
	input := fs.positional[0]

	cfg, err := config.Resolve(config.Options{
		ConfigPath:  fs.get("config"),
		CLIDBPath:   fs.get("db"),
		CLIWindow:   fs.get("window"),
		CLIPatterns: fs.get("patterns"),
	})
	if err != nil {
		return err
	}
	logger := cfg.Logger(version)

	normalizer, err := buildNormalizer(cfg, fs.get("schema"), fs.get("device"))
	if err != nil {
		return err
	}

	raws, result, err := ingest.NewReader(logger).ReadFile(input)
	if err != nil {
		return err
	}

	records := make([]*normalize.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := normalizer.Normalize(raw)
		if err != nil {
			result.Skipped++
			logger.Warn().Err(err).Int("record", i).Msg("skipping record")
			continue
		}
		records = append(records, rec)
		if (i+1)%1000 == 0 {
			fmt.Printf("Processed %d records...\n", i+1)
		}
	}

	segments := segment.NewSegmenter(cfg.Window()).Segment(records)

	normalizedOut := derivedPath(input, "_normalized.jsonl")
	segmentsOut := derivedPath(input, "_segments.jsonl")
	if err := writeJSONL(normalizedOut, len(records), func(i int) any { return records[i] }); err != nil {
		return err
	}
	if err := writeJSONL(segmentsOut, len(segments), func(i int) any { return segments[i] }); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(store.Config{DBPath: store.ExpandPath(cfg.DBPath.Value)})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	run := &store.Run{
		ID:        uuid.NewString(),
		InputPath: input,
		StartedAt: time.Now().UTC(),
		Records:   len(records),
		Errors:    result.Skipped,
		Segments:  len(segments),
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return err
	}
	inserted, err := st.AddMessages(ctx, run.ID, records)
	if err != nil {
		return err
	}
	if err := st.AddSegments(ctx, run.ID, segments); err != nil {
		return err
	}

	fmt.Printf("Run %s complete\n", run.ID)
	fmt.Printf("  Records: %d (%d skipped)\n", len(records), result.Skipped)
	fmt.Printf("  Segments: %d\n", len(segments))
	fmt.Printf("  Stored: %d new messages in %s\n", inserted, cfg.DBPath.Value)
	fmt.Printf("  Output: %s, %s\n", normalizedOut, segmentsOut)
	return nil
}

func runSummarize(args []string) error {
	fs, err := parseArgs(args, map[string]string{
		"--max-segments": "max", "--llm": "llm", "--db": "db", "--config": "config",
	})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg summarize <segments.jsonl> [--max-segments n] [--llm provider/model] [--db path]")
	}
	input := fs.positional[0]

	cfg, err := config.Resolve(config.Options{ConfigPath: fs.get("config"), CLILLM: fs.get("llm"), CLIDBPath: fs.get("db")})
	if err != nil {
		return err
	}

	maxSegments := 3
	if v := fs.get("max"); v != "" {
		maxSegments, err = strconv.Atoi(v)
		if err != nil || maxSegments <= 0 {
			return fmt.Errorf("invalid --max-segments value %q", v)
		}
	}

	segments, err := readSegments(input)
	if err != nil {
		return err
	}
	if len(segments) > maxSegments {
		segments = segments[:maxSegments]
	}

	summarizer := buildSummarizer(cfg)

	ctx := context.Background()
	summaries := make([]*summarize.Summary, 0, len(segments))
	for _, seg := range segments {
		sum, err := summarizer.Summarize(ctx, seg)
		if err != nil {
			return fmt.Errorf("summarizing %s: %w", seg.SegmentID, err)
		}
		summaries = append(summaries, sum)

		fmt.Printf("%s  %s\n", sum.Date, sum.Timeframe)
		fmt.Printf("  %s\n", sum.Summary)
	}

	output := derivedPath(input, "_summaries.jsonl")
	if err := writeJSONL(output, len(summaries), func(i int) any { return summaries[i] }); err != nil {
		return err
	}
	fmt.Printf("\nGenerated %d summaries -> %s\n", len(summaries), output)

	if err := persistSummaries(ctx, cfg, input, summaries); err != nil {
		return err
	}
	return nil
}

// persistSummaries records the produced summaries in the store under a
// fresh run id, so the stats command and MCP surface see them.
func persistSummaries(ctx context.Context, cfg *config.Config, input string, summaries []*summarize.Summary) error {
	st, err := store.Open(store.Config{DBPath: store.ExpandPath(cfg.DBPath.Value)})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	run := &store.Run{
		ID:        uuid.NewString(),
		InputPath: input,
		StartedAt: time.Now().UTC(),
		Segments:  len(summaries),
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return err
	}
	for _, sum := range summaries {
		if err := st.AddSummary(ctx, run.ID, sum); err != nil {
			return err
		}
	}
	fmt.Printf("Stored %d summaries in %s\n", len(summaries), cfg.DBPath.Value)
	return nil
}

// buildSummarizer picks the LLM-backed summarizer when a provider can be
// constructed, otherwise the deterministic template.
func buildSummarizer(cfg *config.Config) summarize.Summarizer {
	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider.Value,
		Model:    cfg.LLMModel.Value,
		APIKey:   cfg.LLMAPIKey.Value,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "No LLM provider configured (%v); using templated summaries\n", err)
		return summarize.TemplateSummarizer{}
	}
	fmt.Printf("Using %s for summaries\n", provider.Name())
	return summarize.NewLLMSummarizer(provider, 0)
}

func runValidate(args []string) error {
	fs, err := parseArgs(args, map[string]string{})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg validate <normalized.jsonl>")
	}

	f, err := os.Open(fs.positional[0])
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	rep, err := validate.File(f)
	if err != nil {
		return err
	}
	fmt.Print(rep.Format())
	if !rep.Valid() {
		return fmt.Errorf("%d validation errors", len(rep.Errors))
	}
	fmt.Println("\nAll records passed validation")
	return nil
}

func runStats(args []string) error {
	fs, err := parseArgs(args, map[string]string{})
	if err != nil {
		return err
	}
	if len(fs.positional) != 1 {
		return fmt.Errorf("usage: chatseg stats <segments.jsonl>")
	}

	segments, err := readSegments(fs.positional[0])
	if err != nil {
		return err
	}
	fmt.Print(report.Analyze(segments).Format())
	return nil
}

func runMCP(args []string) error {
	fs, err := parseArgs(args, map[string]string{"--db": "db", "--config": "config"})
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(config.Options{ConfigPath: fs.get("config"), CLIDBPath: fs.get("db")})
	if err != nil {
		return err
	}

	st, err := store.Open(store.Config{DBPath: store.ExpandPath(cfg.DBPath.Value)})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	return chatsegmcp.Serve(chatsegmcp.NewServer(chatsegmcp.ServerConfig{Store: st, Version: version}))
}

func runConfig(args []string) error {
	fs, err := parseArgs(args, map[string]string{"--config": "config"})
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(config.Options{ConfigPath: fs.get("config")})
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func buildNormalizer(cfg *config.Config, schemaFlag, deviceFlag string) (*normalize.Normalizer, error) {
	schemaVersion := schemaFlag
	if schemaVersion == "" {
		schemaVersion = cfg.SchemaVersion.Value
	}
	deviceID := deviceFlag
	if deviceID == "" {
		deviceID = cfg.SourceDeviceID.Value
	}

	var patterns *feature.Patterns
	if cfg.PatternsPath.Value != "" {
		var err error
		patterns, err = feature.LoadPatterns(cfg.PatternsPath.Value)
		if err != nil {
			return nil, err
		}
	}

	return normalize.New(normalize.Options{
		SchemaVersion:  schemaVersion,
		SourceDeviceID: deviceID,
		Patterns:       patterns,
	})
}

func readNormalized(path string) ([]*normalize.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()

	var records []*normalize.Record
	skipped := 0
	err = ingest.Lines(f, func(line string) error {
		rec := &normalize.Record{}
		if err := json.Unmarshal([]byte(line), rec); err != nil {
			skipped++
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, skipped, nil
}

func readSegments(path string) ([]*segment.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()

	var segments []*segment.Segment
	err = ingest.Lines(f, func(line string) error {
		seg := &segment.Segment{}
		if err := json.Unmarshal([]byte(line), seg); err != nil {
			return nil // skip unparseable lines, matching normalize-side behavior
		}
		segments = append(segments, seg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return segments, nil
}

// writeJSONL writes n items as one compact JSON object per line.
func writeJSONL(path string, n int, item func(i int) any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for i := 0; i < n; i++ {
		if err := enc.Encode(item(i)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func derivedPath(input, suffix string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}

func printUsage() {
	fmt.Printf(`chatseg %s - normalize, enrich, and segment exported message dumps

Usage:
  chatseg <command> [arguments]

Commands:
  normalize <input>        Normalize a raw export into canonical JSONL records
  segment <file.jsonl>     Group normalized records into conversation segments
  run <input>              Full pipeline: normalize, segment, persist to the store
  summarize <file.jsonl>   Generate summaries for the first N segments
  validate <file.jsonl>    Check normalized output for schema compliance
  stats <file.jsonl>       Aggregate statistics over produced segments
  mcp                      Serve stored output over the Model Context Protocol
  config                   Print the resolved configuration
  version                  Print version

Common Flags:
  -o, --output <path>      Output file (default: derived from input name)
  --window-hours <n>       Inactivity gap threshold for segmentation (default: 2)
  --schema-version <v>     Schema version stamped on normalized records
  --device-id <id>         Source device passthrough tag (default: unknown)
  --patterns <path>        YAML pattern table overriding the built-in detectors
  --llm <provider/model>   Summarization provider (openai, openrouter)
  --db <path>              SQLite store location
  --config <path>          Config file (default: ~/.chatseg/config.yaml)
`, version)
}
