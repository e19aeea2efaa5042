package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/skinroutine/internal/config"
	"github.com/dshills/skinroutine/internal/httpapi"
	"github.com/dshills/skinroutine/internal/llm"
	"github.com/dshills/skinroutine/internal/logger"
	"github.com/dshills/skinroutine/internal/orchestrator"
	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/quiz"
	"github.com/dshills/skinroutine/internal/render"
	"github.com/dshills/skinroutine/internal/routine"
	"github.com/dshills/skinroutine/internal/routinediff"
	"github.com/dshills/skinroutine/internal/rules"
	"github.com/dshills/skinroutine/internal/store"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// Exit codes.
const (
	exitInput       = 3
	exitProvider    = 4
	exitPersistence = 6
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags are shared by every command. Only flags the user set override
// the environment configuration.
type globalFlags struct {
	envFile     string
	user        string
	model       string
	store       string
	data        string
	redisURL    string
	timeout     time.Duration
	retries     int
	temperature float64
	maxTokens   int
	offline     bool
	verbose     bool
	debug       bool
}

// outputFlags control how a generated routine is written and saved.
type outputFlags struct {
	format      string
	out         string
	noSave      bool
	requireSave bool
	diff        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "skinroutine",
		Short:         "Build a personalized skincare routine from a short quiz",
		Long:          "skinroutine walks through a 15-question skin quiz, asks a language model for a morning and evening routine, and falls back to a rule-based routine whenever the model is unavailable.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := config.Default()
	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "Optional .env file loaded before reading the environment")
	pf.StringVar(&g.user, "user", "local", "User id routines are saved under")
	pf.StringVar(&g.model, "model", def.Model, "Model as provider:model (openai, anthropic or gemini); overrides SKINROUTINE_MODEL")
	pf.StringVar(&g.store, "store", def.Store, "Store engine: json, sqlite or redis")
	pf.StringVar(&g.data, "data", "", "Store file path (default depends on --store)")
	pf.StringVar(&g.redisURL, "redis-url", def.RedisURL, "Redis URL for --store redis")
	pf.DurationVar(&g.timeout, "timeout", def.Timeout, "Timeout for each model attempt")
	pf.IntVar(&g.retries, "retries", def.Retries, "Extra attempts after a transient model failure")
	pf.Float64Var(&g.temperature, "temperature", def.Temperature, "LLM temperature")
	pf.IntVar(&g.maxTokens, "max-tokens", def.MaxTokens, "Maximum response tokens")
	pf.BoolVar(&g.offline, "offline", false, "Skip the model and use only the rule-based routine")
	pf.BoolVar(&g.verbose, "verbose", false, "Print processing steps to stderr")
	pf.BoolVar(&g.debug, "debug", false, "Dump the redacted prompt to stderr")

	root.AddCommand(
		newQuestionsCmd(),
		newQuizCmd(&g),
		newGenerateCmd(&g),
		newShowCmd(&g),
		newServeCmd(&g),
	)
	return root
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "md", "Output format: json or md")
	f.StringVar(&o.out, "out", "", "Write output to file instead of stdout")
	f.BoolVar(&o.noSave, "no-save", false, "Do not save the profile and routine")
	f.BoolVar(&o.requireSave, "require-save", false, "Exit 6 if the routine could not be saved")
	f.BoolVar(&o.diff, "diff", false, "Print a diff against the previously saved routine to stderr")
}

func newQuestionsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Print the quiz questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printQuestions(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newQuizCmd(g *globalFlags) *cobra.Command {
	var o outputFlags
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Take the quiz interactively and generate a routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFlags(o); err != nil {
				return codeError(exitInput, "invalid flags: %s", err)
			}
			cfg, err := resolveConfig(cmd, g)
			if err != nil {
				return err
			}
			p, err := runInteractive(quiz.NewEngine(), cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return codeError(exitInput, "quiz: %s", err)
			}
			return runGenerate(cmd.Context(), p, cfg, g, o, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addOutputFlags(cmd, &o)
	return cmd
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var (
		o           outputFlags
		answersPath string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a routine from an answers file",
		Long:  "Generate reads a YAML or JSON mapping of question id to answer (see `skinroutine questions`), completes the quiz with it and generates a routine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFlags(o); err != nil {
				return codeError(exitInput, "invalid flags: %s", err)
			}
			cfg, err := resolveConfig(cmd, g)
			if err != nil {
				return err
			}
			logVerbose(g.verbose, cmd.ErrOrStderr(), "Loading answers: %s", answersPath)
			p, err := loadProfile(answersPath, cmd.InOrStdin())
			if err != nil {
				return codeError(exitInput, "%s", err)
			}
			return runGenerate(cmd.Context(), p, cfg, g, o, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", "Answers file (YAML or JSON); - reads stdin")
	_ = cmd.MarkFlagRequired("answers")
	addOutputFlags(cmd, &o)
	return cmd
}

func newShowCmd(g *globalFlags) *cobra.Command {
	var period, format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "md" {
				return codeError(exitInput, "invalid flags: --format must be json or md, got %q", format)
			}
			cfg, err := resolveConfig(cmd, g)
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), cfg, g.user, period, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "morning or evening (default both)")
	cmd.Flags().StringVar(&format, "format", "md", "Output format: json or md")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the quiz and routine generation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			return runServe(cmd.Context(), cfg, g)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.Default().Addr, "Listen address; overrides SKINROUTINE_ADDR")
	return cmd
}

// resolveConfig loads the environment configuration and applies every flag
// the user set explicitly.
func resolveConfig(cmd *cobra.Command, g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.envFile)
	if err != nil {
		return config.Config{}, codeError(exitInput, "config: %s", err)
	}
	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.Model = g.model
	}
	if changed("store") {
		cfg.Store = g.store
	}
	if changed("data") {
		cfg.DataPath = g.data
	}
	if changed("redis-url") {
		cfg.RedisURL = g.redisURL
	}
	if changed("timeout") {
		cfg.Timeout = g.timeout
	}
	if changed("retries") {
		cfg.Retries = g.retries
	}
	if changed("temperature") {
		cfg.Temperature = g.temperature
	}
	if changed("max-tokens") {
		cfg.MaxTokens = g.maxTokens
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, codeError(exitInput, "invalid configuration: %s", err)
	}
	return cfg, nil
}

func newLogger(verbose bool) *logger.Logger {
	if !verbose {
		return logger.Nop()
	}
	log, err := logger.New("dev")
	if err != nil {
		return logger.Nop()
	}
	return log
}

// loadProfile completes a fresh quiz with the answers in path.
func loadProfile(path string, stdin io.Reader) (*profile.Profile, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading answers: %w", err)
		}
		defer f.Close()
		r = f
	}
	answers, err := quiz.LoadAnswers(r)
	if err != nil {
		return nil, err
	}
	engine := quiz.NewEngine()
	if err := engine.Apply(answers); err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	return engine.Finish()
}

// newRequester builds the model client, or nil when offline.
func newRequester(cfg config.Config, g *globalFlags) (orchestrator.Requester, *llm.RoutineClient, error) {
	if g.offline {
		return nil, nil, nil
	}
	provider, err := llm.NewProvider(cfg.Model)
	if err != nil {
		return nil, nil, codeError(exitProvider, "creating LLM provider: %s", err)
	}
	rc := llm.NewRoutineClient(provider, nil)
	rc.Temperature = cfg.Temperature
	rc.MaxTokens = cfg.MaxTokens
	return rc, rc, nil
}

func runGenerate(ctx context.Context, p *profile.Profile, cfg config.Config, g *globalFlags, o outputFlags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(g.verbose)
	defer log.Sync()

	// --- Step 1: Model client ---
	requester, rc, err := newRequester(cfg, g)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}
	if g.debug {
		dbg := rc
		if dbg == nil {
			dbg = llm.NewRoutineClient(nil, nil)
		}
		req := dbg.BuildRequest(p)
		fmt.Fprintf(stderr, "=== DEBUG: redacted prompt ===\n")
		fmt.Fprintf(stderr, "[SYSTEM]\n%s\n\n[USER]\n%s\n", req.SystemPrompt, req.UserPrompt)
		fmt.Fprintf(stderr, "=== END DEBUG ===\n")
	}

	// --- Step 2: Store ---
	var gw *store.Gateway
	if !o.noSave || o.diff {
		path := cfg.ResolvedDataPath()
		logVerbose(g.verbose, stderr, "Opening %s store %s", cfg.Store, path)
		backend, err := store.NewByEngine(cfg.Store, path, cfg.RedisURL)
		if err != nil {
			if o.requireSave {
				return codeError(exitPersistence, "opening store: %s", err)
			}
			fmt.Fprintf(stderr, "WARN: routine will not be saved: %s\n", err)
		} else {
			defer backend.Close()
			gw = store.ForUser(backend, g.user)
		}
	}

	var previous routine.Routine
	var hasPrevious bool
	if o.diff && gw != nil {
		if prev, err := gw.LoadSaved(ctx); err == nil {
			previous, hasPrevious = prev, true
		} else if !errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(stderr, "WARN: loading saved routine for diff: %s\n", err)
		}
	}

	// --- Step 3: Generate ---
	if requester != nil {
		logVerbose(g.verbose, stderr, "Calling LLM: %s", cfg.Model)
	} else {
		logVerbose(g.verbose, stderr, "Offline: using the rule-based routine")
	}
	orch := orchestrator.New(requester, rules.New(nil), orchestrator.Options{
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		Logger:  log,
	})
	var save orchestrator.Persister
	if gw != nil && !o.noSave {
		save = gw
	}
	res, err := orch.GenerateFor(ctx, g.user, p, save)
	if err != nil {
		return codeError(exitInput, "%s", err)
	}
	if res.Status == orchestrator.StatusFallenBack && requester != nil {
		fmt.Fprintf(stderr, "WARN: model routine unavailable (%s), using the rule-based routine\n", res.CauseKind())
	}

	// --- Step 4: Diff ---
	if o.diff {
		switch d := routinediff.Diff(previous, res.Routine); {
		case !hasPrevious:
			fmt.Fprintln(stderr, "No saved routine to compare against.")
		case d == "":
			fmt.Fprintln(stderr, "Routine unchanged from the saved one.")
		default:
			added, removed := routinediff.Stats(d)
			fmt.Fprintf(stderr, "Changes from the saved routine (+%d -%d):\n%s", added, removed, d)
		}
	}

	// --- Step 5: Render ---
	logVerbose(g.verbose, stderr, "Rendering output (format: %s)", o.format)
	if err := writeDocument(render.FromResult(res), o.format, o.out, stdout); err != nil {
		return err
	}

	// --- Step 6: Wait for persistence ---
	if res.Persisted != nil {
		if perr := <-res.Persisted; perr != nil {
			if o.requireSave {
				return codeError(exitPersistence, "%s", perr)
			}
			fmt.Fprintf(stderr, "WARN: %s\n", perr)
		} else {
			logVerbose(g.verbose, stderr, "Saved routine for user %q", g.user)
		}
	}
	return nil
}

func runShow(ctx context.Context, cfg config.Config, user, period, format string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := store.NewByEngine(cfg.Store, cfg.ResolvedDataPath(), cfg.RedisURL)
	if err != nil {
		return codeError(exitPersistence, "opening store: %s", err)
	}
	defer backend.Close()
	gw := store.ForUser(backend, user)

	var r routine.Routine
	if period == "" {
		r, err = gw.LoadSaved(ctx)
	} else {
		var label string
		if label, err = store.ParseLabel(period); err != nil {
			return codeError(exitInput, "invalid flags: %s", err)
		}
		var steps []routine.Step
		steps, err = gw.LoadRoutine(ctx, label)
		if label == store.LabelMorning {
			r.Morning = steps
		} else {
			r.Evening = steps
		}
		if err == nil {
			var h store.Header
			if h, err = gw.LoadHeader(ctx); err == nil {
				h.Apply(&r)
			} else if errors.Is(err, store.ErrNotFound) {
				err = nil
			}
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return codeError(exitPersistence, "no saved routine for user %q", user)
	}
	if err != nil {
		return codeError(exitPersistence, "%s", err)
	}
	return writeDocument(render.FromSaved(r), format, "", stdout)
}

func runServe(ctx context.Context, cfg config.Config, g *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mode := cfg.LogMode
	if g.verbose {
		mode = "dev"
	}
	log, err := logger.New(mode)
	if err != nil {
		return codeError(exitInput, "logger: %s", err)
	}
	defer log.Sync()

	requester, rc, err := newRequester(cfg, g)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}
	backend, err := store.NewByEngine(cfg.Store, cfg.ResolvedDataPath(), cfg.RedisURL)
	if err != nil {
		return codeError(exitPersistence, "opening store: %s", err)
	}
	defer backend.Close()

	orch := orchestrator.New(requester, rules.New(nil), orchestrator.Options{
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		Logger:  log,
	})
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return httpapi.New(orch, backend, log).ListenAndServe(ctx, cfg.Addr)
}

func writeDocument(doc *render.Document, format, out string, stdout io.Writer) error {
	renderer, err := render.NewRenderer(format)
	if err != nil {
		return codeError(exitInput, "invalid format: %s", err)
	}
	outputBytes, err := renderer.Render(doc)
	if err != nil {
		return codeError(exitInput, "rendering output: %s", err)
	}
	if out != "" {
		if err := os.WriteFile(out, outputBytes, 0o644); err != nil {
			return codeError(exitInput, "writing output file: %s", err)
		}
		return nil
	}
	if _, err := stdout.Write(outputBytes); err != nil {
		return codeError(exitInput, "writing output: %s", err)
	}
	// Ensure output ends with a newline for terminal friendliness.
	if len(outputBytes) > 0 && outputBytes[len(outputBytes)-1] != '\n' {
		fmt.Fprintln(stdout)
	}
	return nil
}

// validateOutputFlags returns an error if any output flag value is invalid.
func validateOutputFlags(o outputFlags) error {
	switch o.format {
	case "json", "md":
	default:
		return fmt.Errorf("--format must be json or md, got %q", o.format)
	}
	if o.noSave && o.requireSave {
		return fmt.Errorf("--no-save and --require-save cannot be combined")
	}
	return nil
}

// logVerbose writes a message to w when verbose mode is enabled.
func logVerbose(verbose bool, w io.Writer, format string, args ...any) {
	if verbose {
		fmt.Fprintf(w, "INFO: "+format+"\n", args...)
	}
}
