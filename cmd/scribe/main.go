package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/OpenScribe/pkg/scribe"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Capture flags
	listen       string
	title        string
	docVersion   string
	timeout      int
	rateLimit    float64
	maxBody      int64
	stateFile    string
	noForms      bool
	skipTLS      bool
	syncCapture  bool
	specOutput   string
	harOutput    string

	// Export flags
	outputFile string
	format     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "openscribe",
		Short: "OpenScribe - API Documentation From Observed Traffic",
		Long: `OpenScribe - A capturing proxy that writes your API documentation for you.

Put it in front of an HTTP API, drive traffic through it, and read back an
OpenAPI-style description plus a lossless HAR traffic log. Schemas are
synthesized from real payloads, numeric path segments collapse into
templates, and authentication schemes are detected passively.`,
		Version: version,
	}

	captureCmd := &cobra.Command{
		Use:   "capture [target]",
		Short: "Run the capturing proxy in front of a target",
		Long: `Run the capturing proxy in front of a target origin.

While running, the generated outputs are served on the proxy itself:
  GET  /__scribe/openapi.json   current OpenAPI document (JSON)
  GET  /__scribe/openapi.yaml   current OpenAPI document (YAML)
  GET  /__scribe/archive.har    lossless traffic log
  GET  /__scribe/metrics        capture counters
  POST /__scribe/reset          discard everything observed so far`,
		Args: cobra.ExactArgs(1),
		RunE: runCapture,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Render documents from a saved state file",
		Long:  "Render the OpenAPI document or HAR archive from a previously saved state file, without forwarding any traffic.",
		RunE:  runExport,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Capture flags
	captureCmd.Flags().StringVarP(&listen, "listen", "l", "127.0.0.1:8085", "Proxy listen address")
	captureCmd.Flags().StringVar(&title, "title", "Observed API", "Document title")
	captureCmd.Flags().StringVar(&docVersion, "doc-version", "0.0.1", "Document version")
	captureCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Upstream timeout in seconds")
	captureCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 0, "Requests per second (0 = unlimited)")
	captureCmd.Flags().Int64Var(&maxBody, "max-body", 10*1024*1024, "Captured body size cap in bytes")
	captureCmd.Flags().StringVar(&stateFile, "state-file", "", "State file for persistence")
	captureCmd.Flags().BoolVar(&noForms, "no-forms", false, "Disable endpoint discovery from HTML forms")
	captureCmd.Flags().BoolVarP(&skipTLS, "insecure", "k", false, "Skip upstream TLS verification")
	captureCmd.Flags().BoolVar(&syncCapture, "sync", false, "Capture on the request path instead of asynchronously")
	captureCmd.Flags().StringVarP(&specOutput, "output", "o", "", "Write the OpenAPI document here on shutdown (.yaml/.yml for YAML)")
	captureCmd.Flags().StringVar(&harOutput, "har-output", "", "Write the HAR archive here on shutdown")

	// Export flags
	exportCmd.Flags().StringVar(&stateFile, "state-file", "", "State file to read")
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml, har)")
	exportCmd.MarkFlagRequired("state-file")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	target := args[0]

	config := scribe.DefaultConfig()

	// Load config file first so command-line flags take precedence.
	if configFile != "" {
		fileConfig, err := scribe.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	config.Target = target

	if cmd.Flags().Changed("listen") {
		config.Listen = listen
	}
	if cmd.Flags().Changed("title") {
		config.Title = title
	}
	if cmd.Flags().Changed("doc-version") {
		config.Version = docVersion
	}
	if cmd.Flags().Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if cmd.Flags().Changed("rate-limit") {
		config.RateLimit.RequestsPerSecond = rateLimit
	}
	if cmd.Flags().Changed("max-body") {
		config.MaxBodyBytes = maxBody
	}
	if stateFile != "" {
		config.State.Enabled = true
		config.State.FilePath = stateFile
	}

	config.FormDiscovery = !noForms
	config.SkipTLSVerify = skipTLS
	config.RecordAsync = !syncCapture
	config.Verbose = verbose
	config.Debug = debug

	s, err := scribe.New(scribe.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create capture engine: %w", err)
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start proxy: %w", err)
	}

	printBanner(target, config)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintf(os.Stderr, "\nStopping...\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	printSummary(s)

	if specOutput != "" {
		docFormat := "json"
		if ext := strings.ToLower(filepath.Ext(specOutput)); ext == ".yaml" || ext == ".yml" {
			docFormat = "yaml"
		}
		if err := writeRendered(specOutput, func() ([]byte, error) { return s.DocumentText(docFormat) }); err != nil {
			return err
		}
	}
	if harOutput != "" {
		if err := writeRendered(harOutput, s.ArchiveText); err != nil {
			return err
		}
	}
	return nil
}

func writeRendered(path string, render func() ([]byte, error)) error {
	text, err := render()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := os.WriteFile(path, text, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	// A syntactically valid placeholder target: export never forwards.
	s, err := scribe.New(
		scribe.WithTarget("http://localhost"),
		scribe.WithStateFile(stateFile),
		scribe.WithSyncRecording(),
	)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer s.Close()

	var text []byte
	switch format {
	case "har":
		text, err = s.ArchiveText()
	case "json", "yaml", "yml":
		text, err = s.DocumentText(format)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	if outputFile == "" {
		fmt.Println(string(text))
		return nil
	}
	if err := os.WriteFile(outputFile, text, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("Wrote %s\n", outputFile)
	return nil
}

func printBanner(target string, config *scribe.Config) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       OpenScribe v1.0                        ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Target:   %s\n", target)
	fmt.Printf("Listen:   %s\n", config.Listen)
	fmt.Printf("Document: http://%s/__scribe/openapi.json\n", config.Listen)
	fmt.Printf("Archive:  http://%s/__scribe/archive.har\n", config.Listen)
	if config.State.Enabled {
		fmt.Printf("State:    %s\n", config.State.FilePath)
	}
	fmt.Println()
	fmt.Println("Capturing... press Ctrl-C to stop.")
	fmt.Println()
}

func printSummary(s *scribe.Scribe) {
	snap := s.Metrics()
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      Capture Summary                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Exchanges Observed: %d\n", snap.Exchanges)
	fmt.Printf("Endpoints Found:    %d\n", snap.Endpoints)
	fmt.Printf("Schemas Merged:     %d\n", snap.SchemasMerged)
	fmt.Printf("Payloads Recovered: %d\n", snap.RecoveredPayloads)
	fmt.Printf("Archive Entries:    %d\n", snap.ArchiveEntries)
	fmt.Printf("Bytes Captured:     %d\n", snap.Bytes)
	fmt.Printf("Errors:             %d\n", snap.Errors)
	fmt.Println()
}
