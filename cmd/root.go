// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/config"
	"github.com/browserpilot/browserpilot/internal/observability"
	"github.com/browserpilot/browserpilot/internal/service"
	"github.com/browserpilot/browserpilot/internal/workspace"
)

const banner = `
   ___                                    _ __     __
  / _ )_______ _    _____ ___ _______    (_) /__  / /_
 / _  / __/ _ \ |/|/ (_-</ -_) __/ _ \  / / / _ \/ __/
/____/_/  \___/__,__/___/\__/_/  / .__/_/_/_/\___/\__/
                                /_/  |___/
`

var (
	envFile   string
	tasksFile string

	// Allows mocking os.Exit and the session assembly in tests.
	osExit          = os.Exit
	buildComponents = service.Build
)

// rootCmd is the single command: start the interactive session, or run a
// task file when --tasks is given.
var rootCmd = &cobra.Command{
	Use:     "browserpilot",
	Short:   "browserpilot turns free-text tasks into browser automation runs.",
	Long:    "An interactive command-line agent that drives a Chrome session from natural-language tasks,\nwith selectable LLM providers, optional side-actions, and structured result capture.",
	Version: Version,
	Args:    cobra.NoArgs,
	RunE:    runRoot,
	// Runtime errors are reported by Execute; usage spam helps nobody there.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Startup failures (configuration, registry,
// browser, provider) exit non-zero; a gracefully stopped session exits zero.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "browserpilot:", err)
		osExit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env)")
	rootCmd.Flags().StringVar(&tasksFile, "tasks", "", "run the tasks from this JSON file instead of the interactive prompt")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func runRoot(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Resolve(config.NewViper())
	if err != nil {
		return err
	}

	layout, err := workspace.Prepare(cfg)
	if err != nil {
		return err
	}

	observability.InitializeLogger(observability.Options{
		Level:       cfg.LogLevel,
		LogFile:     layout.LogFile(),
		ServiceName: "browserpilot",
	})
	log := observability.GetLogger()
	defer observability.Sync()
	log.Info("Starting browserpilot.",
		zap.String("version", Version),
		zap.String("provider", string(cfg.Provider)),
		zap.String("workspace", layout.Root()))

	ctx := cmd.Context()
	comps, err := buildComponents(ctx, service.Deps{
		Config: cfg,
		Layout: layout,
		Logger: log,
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	printConfigSummary(out, cfg, comps.LLM.Model(), comps.Enabled, layout)

	if tasksFile != "" {
		return comps.Loop.RunBatch(ctx, tasksFile)
	}
	return comps.Loop.Run(ctx)
}

// printConfigSummary reports the resolved startup configuration so the
// operator sees what the session will do before typing the first task.
func printConfigSummary(w io.Writer, cfg *schemas.Configuration, model string, enabled []schemas.ActionDescriptor, layout *workspace.Layout) {
	names := make([]string, len(enabled))
	for i, a := range enabled {
		names[i] = a.Name()
	}

	format := string(cfg.OutputFormat)
	if format == "" {
		format = "text"
	}

	fmt.Fprintf(w, "  version        %s\n", Version)
	fmt.Fprintf(w, "  provider       %s (%s)\n", cfg.Provider, model)
	fmt.Fprintf(w, "  system prompt  %s\n", cfg.SystemPrompt)
	fmt.Fprintf(w, "  output format  %s\n", format)
	fmt.Fprintf(w, "  vision         %s\n", onOff(cfg.UseVision))
	fmt.Fprintf(w, "  browser        %s\n", cfg.ConnectionMode())
	fmt.Fprintf(w, "  actions        %s\n", strings.Join(names, ", "))
	fmt.Fprintf(w, "  workspace      %s\n\n", layout.Root())
	fmt.Fprintln(w, `Type a task and press enter. "exit" or "quit" ends the session.`)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
