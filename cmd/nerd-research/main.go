// Package main implements the researchNERD CLI - an autonomous research
// orchestrator that plans sub-queries, fans them out across retrievers and
// MCP servers, scrapes and ranks sources and writes a cited report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"researchnerd/internal/conductor"
	"researchnerd/internal/config"
	"researchnerd/internal/logging"
	"researchnerd/internal/mcp"
	"researchnerd/internal/report"
	"researchnerd/internal/stream"
	"researchnerd/internal/task"
)

var version = "1.0.0"

var (
	flagConfig     string
	flagReportType string
	flagSource     string
	flagTone       string
	flagOutput     string
	flagMCPConfig  string
	flagStrategy   string
	flagDomains    []string
	flagSourceURLs []string
	flagJSONEvents bool
)

var (
	logStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	costStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stageStyle = lipgloss.NewStyle().Bold(true)
)

func main() {
	root := &cobra.Command{
		Use:   "nerd-research",
		Short: "Autonomous research orchestrator",
		Long:  "researchNERD plans sub-queries, fans them out across search retrievers and MCP tool servers, scrapes and ranks the sources, and writes a cited markdown report.",
	}

	root.AddCommand(researchCmd(), probeCmd(), versionCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func researchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Run a research task and write the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd.Context(), strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to research.yaml")
	cmd.Flags().StringVarP(&flagReportType, "type", "t", string(task.ResearchReport), "report type")
	cmd.Flags().StringVarP(&flagSource, "source", "s", "", "report source (web|local|hybrid|...)")
	cmd.Flags().StringVar(&flagTone, "tone", string(task.ToneObjective), "report tone")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write the report to this file")
	cmd.Flags().StringVar(&flagMCPConfig, "mcp-config", "", "path to a JSON file with MCP server configs")
	cmd.Flags().StringVar(&flagStrategy, "mcp-strategy", "", "mcp strategy (fast|deep|disabled)")
	cmd.Flags().StringSliceVar(&flagDomains, "domains", nil, "restrict search to these domains")
	cmd.Flags().StringSliceVar(&flagSourceURLs, "urls", nil, "research these URLs directly")
	cmd.Flags().BoolVar(&flagJSONEvents, "json-events", false, "print stream events as JSON lines")
	return cmd
}

func runResearch(ctx context.Context, query string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	cwd, _ := os.Getwd()
	if err := logging.Initialize(cwd, cfg.DebugMode, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logging init: %v\n", err)
	}
	defer logging.Sync()

	opts := []task.Option{
		task.WithReportType(task.ReportType(flagReportType)),
		task.WithTone(task.Tone(flagTone)),
		task.WithQueryDomains(flagDomains),
	}
	source := cfg.ReportSource
	if flagSource != "" {
		source = flagSource
	}
	if source != "" {
		opts = append(opts, task.WithSource(task.ReportSource(source)))
	}
	if len(flagSourceURLs) > 0 {
		opts = append(opts, task.WithSourceURLs(flagSourceURLs, false))
	}
	if flagMCPConfig != "" {
		configs, err := loadMCPConfigs(flagMCPConfig)
		if err != nil {
			return err
		}
		opts = append(opts, task.WithMCP(configs, flagStrategy))
	} else if flagStrategy != "" {
		opts = append(opts, task.WithMCP(nil, flagStrategy))
	}

	t, err := task.New(query, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamer := stream.NewPublisher()
	engine, err := conductor.Assemble(t, cfg, streamer)
	if err != nil {
		return err
	}
	defer engine.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderEvents(streamer.Events())
	}()

	researchContext, err := engine.Conductor.ConductResearch(ctx)
	if err != nil && !errors.Is(err, conductor.ErrNoSources) {
		streamer.Close()
		wg.Wait()
		return err
	}

	reportText, err := engine.Generator.WriteReport(ctx, t, researchContext, report.WriteOptions{})
	if err != nil && !errors.Is(err, report.ErrEmptyContext) {
		streamer.Close()
		wg.Wait()
		return err
	}

	streamer.Close()
	wg.Wait()

	if flagOutput != "" {
		if err := os.WriteFile(flagOutput, []byte(reportText), 0644); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", flagOutput)
	} else {
		printReport(reportText)
	}

	fmt.Println()
	fmt.Println(stageStyle.Render("Research summary"))
	fmt.Printf("  visited urls: %d\n", len(engine.Conductor.VisitedURLs()))
	fmt.Printf("  images:       %d\n", len(engine.Conductor.Images(0)))
	fmt.Printf("  total cost:   $%.4f\n", engine.Conductor.Costs())
	return nil
}

// renderEvents prints stream events until the publisher closes.
func renderEvents(events <-chan stream.Event) {
	jsonMode := flagJSONEvents
	for ev := range events {
		if jsonMode {
			data, err := json.Marshal(ev)
			if err == nil {
				fmt.Println(string(data))
			}
			continue
		}
		switch ev.Kind {
		case stream.KindError:
			fmt.Fprintln(os.Stderr, errStyle.Render("✖ "+ev.Output))
		case stream.KindCost:
			fmt.Println(costStyle.Render("$ " + ev.Output))
		case stream.KindReport:
			// Tokens render with the final report; printing them twice is
			// noise in a terminal.
		case stream.KindProgress:
			fmt.Println(logStyle.Render("… " + ev.Output))
		default:
			fmt.Println(logStyle.Render("· " + ev.Output))
		}
	}
}

// printReport renders markdown via glamour on a TTY, raw otherwise.
func printReport(text string) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if rendered, err := renderer.Render(text); err == nil {
				fmt.Print(rendered)
				return
			}
		}
	}
	fmt.Println(text)
}

func loadMCPConfigs(path string) ([]mcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcp config %s: %w", path, err)
	}
	var configs []mcp.ServerConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse mcp config %s: %w", path, err)
	}
	return configs, nil
}

func probeCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check credentials for the enabled retrievers and providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if err := printProbe(cfg); err != nil && !watch {
				return err
			}
			if !watch {
				return nil
			}
			if flagConfig == "" {
				return fmt.Errorf("--watch requires --config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = config.Watch(ctx, flagConfig, func(fresh config.Config) {
				fmt.Println(stageStyle.Render("config changed, re-probing"))
				_ = printProbe(fresh)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to research.yaml")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-probe when the config file changes")
	return cmd
}

func printProbe(cfg config.Config) error {
	ready := true
	for _, result := range cfg.Probe() {
		if result.Ready {
			fmt.Printf("  ✔ %s\n", result.Name)
			continue
		}
		ready = false
		fmt.Printf("  ✖ %s (missing: %s)\n", result.Name, strings.Join(result.MissingKeys, ", "))
	}
	if !ready {
		return fmt.Errorf("some providers are not ready")
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("nerd-research " + version)
		},
	}
}
