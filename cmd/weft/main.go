package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/bindings"
	"github.com/weftworks/weft/pkg/chain"
	"github.com/weftworks/weft/pkg/debugger"
	"github.com/weftworks/weft/pkg/diagram"
	"github.com/weftworks/weft/pkg/loader"
	"github.com/weftworks/weft/pkg/logging"
	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
	"github.com/weftworks/weft/pkg/serve"
	"github.com/weftworks/weft/pkg/statestore"
	"github.com/weftworks/weft/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbosity int
	logFile   string
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Remove surrounding quotes
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Low-code action chain runtime",
	Long:  "weft — runtime and tooling for declarative UI action chains: validate app bundles, trigger chains, serve them over HTTP, and step through them interactively.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbosity, logFile)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [app.yaml]",
	Short: "Validate an app bundle YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	app, errs := schema.ValidateFile(args[0])
	if len(errs) > 0 {
		var errors []*schema.ValidationError
		var warnings []*schema.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				errors = append(errors, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
			for i, e := range errors {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(errors))
		}
	}
	fmt.Printf("✓ %s is valid (%d screens)\n", app.Meta.Name, len(app.Screens))
	return nil
}

// --- trigger ---

var (
	triggerScreen    string
	triggerComponent string
	triggerEvent     string
	triggerMode      string
	triggerContext   []string
	triggerVars      []string
	triggerTrace     string
	triggerJSON      bool
	triggerYes       bool
	triggerRedisAddr string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [app.yaml]",
	Short: "Run the action chain bound to a component event",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrigger,
}

func runTrigger(cmd *cobra.Command, args []string) error {
	app, acts, err := loadChain(args[0], triggerScreen, triggerComponent, triggerEvent)
	if err != nil {
		return err
	}

	var confirmer providers.Confirmer = &providers.TerminalConfirmer{In: os.Stdin, Out: os.Stdout}
	if triggerYes {
		confirmer = providers.AutoConfirmer{Approve: true}
	}

	var tw *chain.TraceWriter
	if triggerTrace != "" {
		tw, err = chain.NewTraceWriter(triggerTrace)
		if err != nil {
			return err
		}
		defer tw.Close()
	}

	caps, router, err := buildCaps(triggerMode, triggerRedisAddr)
	if err != nil {
		return err
	}

	c := chain.New(chain.Config{
		Registry:  actions.Builtins(caps),
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Confirmer: confirmer,
		Logger:    logging.Component("chain"),
		Trace:     tw,
	})

	base, err := buildBase(app, triggerVars, triggerContext)
	if err != nil {
		return err
	}

	result := c.Compile(acts, base).Run(context.Background())

	if triggerJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Printf("\nChain %s: %s (%d/%d actions settled)\n",
			result.ChainID, result.Status, result.Settled, len(acts))
		for i, r := range result.Results {
			data, _ := json.Marshal(r)
			fmt.Printf("  [%d] %s\n", i, data)
		}
		if router != nil {
			for _, n := range router.History {
				fmt.Printf("  → navigate %s\n", n.URL)
			}
		}
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", result.Err)
		}
	}

	if result.Status == chain.StatusErrored {
		os.Exit(1)
	}
	return nil
}

// buildCaps assembles the capability providers for a run. Dry-run
// records everything in memory; live talks to the platform API named
// by WEFT_API_URL.
func buildCaps(mode, redisAddr string) (actions.Capabilities, *providers.MemoryRouter, error) {
	var state providers.StateStore = statestore.NewMemory()
	if redisAddr != "" {
		state = statestore.NewRedis(redisAddr, os.Getenv("WEFT_REDIS_PASSWORD"), 0)
	}

	router := providers.NewMemoryRouter(os.Getenv("WEFT_BASE_URL"))
	caps := actions.Capabilities{
		Router:    router,
		Auth:      &providers.MemoryAuth{},
		State:     state,
		Messenger: providers.NopMessenger{},
		Delegates: actions.NewDelegates(),
	}

	switch mode {
	case "dry-run":
		caps.Persistence = providers.NewMemoryPersistence()
	case "live":
		apiURL := os.Getenv("WEFT_API_URL")
		if apiURL == "" {
			return caps, nil, fmt.Errorf("live mode needs WEFT_API_URL (set it in the environment or a .env file)")
		}
		caps.Persistence = providers.NewAPIClient(apiURL, os.Getenv("WEFT_API_TOKEN"))
	default:
		return caps, nil, fmt.Errorf("unknown mode: %q", mode)
	}
	return caps, router, nil
}

// buildBase merges app vars, --var overrides and --context pairs into
// the chain's base context.
func buildBase(app *schema.App, vars, extra []string) (map[string]any, error) {
	base := make(map[string]any)
	for k, v := range app.Meta.Vars {
		base[k] = v
	}
	for _, v := range vars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		base[parts[0]] = parts[1]
	}
	for _, v := range extra {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --context %q: expected key=value", v)
		}
		base[parts[0]] = parts[1]
	}
	return base, nil
}

// loadChain validates the bundle and resolves the requested chain.
func loadChain(path, screen, component, event string) (*schema.App, []schema.Action, error) {
	app, errs := schema.ValidateFile(path)
	if hasValidationErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n", countValidationErrors(errs))
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return nil, nil, fmt.Errorf("app bundle validation failed")
	}
	printValidationWarnings(errs)

	acts, err := app.Chain(screen, component, event)
	if err != nil {
		return nil, nil, err
	}
	return app, acts, nil
}

// --- walkthrough ---

var (
	walkScreen    string
	walkComponent string
	walkEvent     string
	walkVars      []string
	walkContext   []string
)

var walkthroughCmd = &cobra.Command{
	Use:   "walkthrough [app.yaml]",
	Short: "Step through an action chain in a terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalkthrough,
}

func runWalkthrough(cmd *cobra.Command, args []string) error {
	app, acts, err := loadChain(args[0], walkScreen, walkComponent, walkEvent)
	if err != nil {
		return err
	}

	caps, _, err := buildCaps("dry-run", "")
	if err != nil {
		return err
	}

	// No Confirmer: the walkthrough settles gates itself.
	c := chain.New(chain.Config{
		Registry:  actions.Builtins(caps),
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Logger:    logging.Component("walkthrough"),
	})

	base, err := buildBase(app, walkVars, walkContext)
	if err != nil {
		return err
	}

	notes := ""
	if s := app.Screen(walkScreen); s != nil {
		if comp := s.Component(walkComponent); comp != nil {
			notes = comp.Notes
		}
	}

	return tui.Run(tui.Config{
		AppName:   app.Meta.Name,
		Screen:    walkScreen,
		Component: walkComponent,
		Event:     walkEvent,
		Notes:     notes,
		Actions:   acts,
		Compiler:  c,
		Base:      base,
	})
}

// --- debug ---

var (
	debugScreen    string
	debugComponent string
	debugEvent     string
	debugVars      []string
	debugContext   []string
)

var debugCmd = &cobra.Command{
	Use:   "debug [app.yaml]",
	Short: "Launch the interactive chain debugger",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	app, acts, err := loadChain(args[0], debugScreen, debugComponent, debugEvent)
	if err != nil {
		return err
	}

	caps, _, err := buildCaps("dry-run", "")
	if err != nil {
		return err
	}
	registry := actions.Builtins(caps)

	// No Confirmer: the debugger settles gates via approve/dismiss.
	c := chain.New(chain.Config{
		Registry:  registry,
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Logger:    logging.Component("debug"),
	})

	base, err := buildBase(app, debugVars, debugContext)
	if err != nil {
		return err
	}

	d := debugger.New(c, registry, acts, base)
	return d.Run(context.Background())
}

// --- serve ---

var (
	serveAddr      string
	serveApp       string
	serveRedisAddr string
	serveMode      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve app bundle chains over HTTP",
	Long: `Start the weft HTTP service: triggers run chains, confirmation gates
suspend into token-based settlement, and the bundle hot-reloads on
file change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	l, err := loader.New(serveApp)
	if err != nil {
		return err
	}
	stop, err := l.Watch()
	if err != nil {
		return err
	}
	defer stop()

	caps, _, err := buildCaps(serveMode, serveRedisAddr)
	if err != nil {
		return err
	}

	log := logging.Component("serve")

	// No Confirmer: suspensions surface as pending confirmations that
	// clients settle through the API.
	c := chain.New(chain.Config{
		Registry:  actions.Builtins(caps),
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Logger:    logging.Component("chain"),
	})

	srv := serve.New(serve.Config{
		Addr:     serveAddr,
		Loader:   l,
		Compiler: c,
		Logger:   log,
	})

	log.Info().Str("addr", serveAddr).Str("app", serveApp).Msg("starting")
	return srv.ListenAndServe(cmd.Context())
}

// --- diagram ---

var (
	diagramScreen string
	diagramFormat string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [app.yaml]",
	Short: "Render a screen's action chains as a diagram",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	app, errs := schema.ValidateFile(args[0])
	if hasValidationErrors(errs) {
		return fmt.Errorf("app bundle validation failed")
	}

	out, err := diagram.Generate(app, diagramScreen, diagram.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// --- kinds ---

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the built-in action kinds",
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range schema.BuiltinKinds {
			if schema.IsDelegate(k) {
				fmt.Printf("  %-22s component delegate\n", k)
			} else {
				fmt.Printf("  %s\n", k)
			}
		}
	},
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the app bundle JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	// Pretty-print the JSON
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		// fallback to raw
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weft %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	// trigger flags
	triggerCmd.Flags().StringVar(&triggerScreen, "screen", "", "Screen ID (required)")
	triggerCmd.Flags().StringVar(&triggerComponent, "component", "", "Component ID (required)")
	triggerCmd.Flags().StringVar(&triggerEvent, "event", "", "Event name (required)")
	triggerCmd.Flags().StringVar(&triggerMode, "mode", "dry-run", "Execution mode: live or dry-run")
	triggerCmd.Flags().StringArrayVar(&triggerContext, "context", nil, "Add a context value (key=value), repeatable")
	triggerCmd.Flags().StringArrayVar(&triggerVars, "var", nil, "Override an app variable (key=value), repeatable")
	triggerCmd.Flags().StringVar(&triggerTrace, "trace", "", "Append chain events to this JSONL trace file")
	triggerCmd.Flags().BoolVar(&triggerJSON, "json", false, "Output the run result as JSON")
	triggerCmd.Flags().BoolVar(&triggerYes, "yes", false, "Approve every confirmation gate without prompting")
	triggerCmd.Flags().StringVar(&triggerRedisAddr, "redis-addr", "", "Redis address for the state store (default: in-memory)")
	triggerCmd.MarkFlagRequired("screen")
	triggerCmd.MarkFlagRequired("component")
	triggerCmd.MarkFlagRequired("event")

	// walkthrough flags
	walkthroughCmd.Flags().StringVar(&walkScreen, "screen", "", "Screen ID (required)")
	walkthroughCmd.Flags().StringVar(&walkComponent, "component", "", "Component ID (required)")
	walkthroughCmd.Flags().StringVar(&walkEvent, "event", "", "Event name (required)")
	walkthroughCmd.Flags().StringArrayVar(&walkVars, "var", nil, "Override an app variable (key=value), repeatable")
	walkthroughCmd.Flags().StringArrayVar(&walkContext, "context", nil, "Add a context value (key=value), repeatable")
	walkthroughCmd.MarkFlagRequired("screen")
	walkthroughCmd.MarkFlagRequired("component")
	walkthroughCmd.MarkFlagRequired("event")

	// debug flags
	debugCmd.Flags().StringVar(&debugScreen, "screen", "", "Screen ID (required)")
	debugCmd.Flags().StringVar(&debugComponent, "component", "", "Component ID (required)")
	debugCmd.Flags().StringVar(&debugEvent, "event", "", "Event name (required)")
	debugCmd.Flags().StringArrayVar(&debugVars, "var", nil, "Override an app variable (key=value), repeatable")
	debugCmd.Flags().StringArrayVar(&debugContext, "context", nil, "Add a context value (key=value), repeatable")
	debugCmd.MarkFlagRequired("screen")
	debugCmd.MarkFlagRequired("component")
	debugCmd.MarkFlagRequired("event")

	// serve flags
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveApp, "app", "app.yaml", "Path to the app bundle")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis-addr", "", "Redis address for the state store (default: in-memory)")
	serveCmd.Flags().StringVar(&serveMode, "mode", "dry-run", "Execution mode: live or dry-run")

	// diagram flags
	diagramCmd.Flags().StringVar(&diagramScreen, "screen", "", "Screen ID (required)")
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
	diagramCmd.MarkFlagRequired("screen")

	// schema subcommands
	schemaCmd.AddCommand(schemaExportCmd)

	// root subcommands
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(walkthroughCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(kindsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// hasValidationErrors returns true if any error (non-warning) is present.
func hasValidationErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// countValidationErrors counts non-warning errors.
func countValidationErrors(errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

// printValidationWarnings prints any warnings to stderr.
func printValidationWarnings(errs []*schema.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
		}
	}
}
