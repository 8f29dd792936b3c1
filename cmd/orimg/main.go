package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkline/orimg/internal/catalog"
	"github.com/mkline/orimg/internal/display"
	"github.com/mkline/orimg/internal/image"
	"github.com/mkline/orimg/internal/keys"
	"github.com/mkline/orimg/internal/provider"
	"github.com/mkline/orimg/internal/provider/openrouter"
	"github.com/mkline/orimg/internal/request"
	"github.com/mkline/orimg/internal/security"
	"github.com/mkline/orimg/internal/session"
	"github.com/mkline/orimg/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagListModels    bool
	flagRefresh       bool
	flagOutput        string
	flagAspectRatio   string
	flagSize          string
	flagModel         string
	flagReferences    []string
	flagSession       string
	flagContinue      bool
	flagListSessions  bool
	flagDeleteSession string
	flagShow          bool
	flagAPIKey        string
)

// App carries the command's collaborators so tests can substitute them.
type App struct {
	Out          io.Writer
	Err          io.Writer
	GetEnv       func(string) string
	NewProvider  func(cfg *provider.Config) (provider.Provider, error)
	NewStore     func() (*session.Store, error)
	NewSaver     func() (*image.Saver, error)
	NewCache     func() (*catalog.Cache, error)
	NewDisplayer func(out io.Writer) *display.Displayer
}

func DefaultApp() *App {
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		GetEnv: os.Getenv,
		NewProvider: func(cfg *provider.Config) (provider.Provider, error) {
			return openrouter.New(cfg)
		},
		NewStore:     session.NewStore,
		NewSaver:     image.NewSaver,
		NewCache:     catalog.NewCache,
		NewDisplayer: display.New,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orimg [prompt]",
		Short: "Generate images via the OpenRouter API",
		Long: `orimg generates images through OpenRouter's chat completions API and
supports iterative refinement through named sessions.

Examples:
  orimg "a serene mountain landscape at sunset"
  orimg -a 16:9 -o landscape.png "mountain at sunset"
  orimg -a 1:1 -s 4K "high resolution portrait"
  orimg --session cover "album cover, art deco style"
  orimg --continue "make the title bigger"
  orimg --list-models`,
		Args:    cobra.MaximumNArgs(1),
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, args, app)
		},
	}

	cmd.Flags().BoolVarP(&flagListModels, "list-models", "l", false, "list models that support image output")
	cmd.Flags().BoolVar(&flagRefresh, "refresh", false, "bypass the model catalog cache")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename (default: auto-generated timestamp)")
	cmd.Flags().StringVarP(&flagAspectRatio, "aspect-ratio", "a", "", fmt.Sprintf("aspect ratio (%s)", strings.Join(models.ValidAspectRatios(), ", ")))
	cmd.Flags().StringVarP(&flagSize, "size", "s", "", fmt.Sprintf("image size, Gemini models only (%s)", strings.Join(models.ValidSizes(), ", ")))
	cmd.Flags().StringVarP(&flagModel, "model", "m", models.DefaultModel, "model to use")
	cmd.Flags().StringArrayVarP(&flagReferences, "reference", "r", nil, "reference image for style/content guidance (repeatable)")
	cmd.Flags().StringVar(&flagSession, "session", "", "create or continue a named session for iterative refinement")
	cmd.Flags().BoolVar(&flagContinue, "continue", false, "continue the most recent session")
	cmd.Flags().BoolVar(&flagListSessions, "list-sessions", false, "list all sessions")
	cmd.Flags().StringVar(&flagDeleteSession, "delete-session", "", "delete a session and its images")
	cmd.Flags().BoolVarP(&flagShow, "show", "S", false, "display the image inline (Kitty-compatible terminals)")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to "+keys.EnvVar+" or config file)")

	return cmd
}

func runRoot(_ *cobra.Command, args []string, app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case flagListSessions:
		return runListSessions(ctx, app)
	case flagDeleteSession != "":
		return runDeleteSession(ctx, app, flagDeleteSession)
	case flagListModels:
		return runListModels(ctx, app)
	}

	if len(args) == 0 {
		return fmt.Errorf("prompt is required unless using --list-models, --list-sessions, or --delete-session")
	}
	return runGenerate(ctx, app, args[0])
}

func runGenerate(ctx context.Context, app *App, prompt string) error {
	if flagSession != "" {
		if err := security.ValidateSessionName(flagSession); err != nil {
			return err
		}
	}

	apiKey, _, err := keys.Resolve(flagAPIKey, app.GetEnv)
	if err != nil {
		return err
	}

	// Resolve which session, if any, is active. --continue overrides an
	// explicit --session, matching how the flags read on the command line.
	var (
		store *session.Store
		sess  *session.Session
	)
	if flagContinue || flagSession != "" {
		store, err = app.NewStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if flagContinue {
			sess, err = store.LoadMostRecent(ctx)
			if errors.Is(err, session.ErrNoSessions) {
				return fmt.Errorf("no previous session to continue")
			}
			if err != nil {
				return err
			}
		} else {
			sess, err = store.Load(ctx, flagSession)
			if errors.Is(err, session.ErrSessionNotFound) {
				// New sessions stay in memory until the first turn commits.
				sess, err = session.NewSession(flagSession), nil
			}
			if err != nil {
				return err
			}
		}
	}

	refs, err := session.ResolveReferences(sess, flagReferences)
	if err != nil {
		return err
	}

	req, err := request.Assemble(request.Params{
		Prompt:      prompt,
		Model:       flagModel,
		AspectRatio: flagAspectRatio,
		Size:        flagSize,
	}, refs)
	if err != nil {
		return err
	}

	prov, err := app.NewProvider(&provider.Config{APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	printRequestSummary(app.Out, req, sess)

	resp, err := prov.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if resp.Text != "" {
		fmt.Fprintf(app.Out, "Model response: %s\n", resp.Text)
	}

	if len(resp.Images) == 0 {
		return fmt.Errorf("%w: the model may not support image generation, or the prompt was filtered", models.ErrEmptyResult)
	}

	saver, err := app.NewSaver()
	if err != nil {
		return err
	}

	nameOverride := flagOutput
	if nameOverride != "" && !strings.ContainsRune(nameOverride, os.PathSeparator) {
		nameOverride = security.SanitizeFilename(nameOverride)
	}

	paths, err := saver.SaveAll(ctx, resp, nameOverride)
	if err != nil {
		return err
	}

	if sess != nil {
		updater := session.NewUpdater(store)
		turn, err := updater.Commit(ctx, sess, prompt, paths[0], session.TurnParameters{
			Model:       req.Model,
			AspectRatio: req.AspectRatio,
			Size:        req.Size,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Session saved: %s (turn %d)\n", sess.Name, turn.Seq)
	}

	for _, path := range paths {
		fmt.Fprintf(app.Out, "Saved: %s\n", path)
	}

	if flagShow && display.IsTerminalSupported() {
		displayer := app.NewDisplayer(app.Out)
		if err := displayer.DisplayAll(ctx, resp); err != nil {
			fmt.Fprintf(app.Err, "Warning: %v\n", err)
		}
	}

	return nil
}

func printRequestSummary(out io.Writer, req *models.Request, sess *session.Session) {
	fmt.Fprintf(out, "Prompt: %s\n", req.Prompt)
	fmt.Fprintf(out, "Model: %s\n", req.Model)
	if req.AspectRatio != "" {
		dims, _ := models.AspectRatioDimensions(req.AspectRatio)
		fmt.Fprintf(out, "Aspect ratio: %s (%s)\n", req.AspectRatio, dims)
	}
	if req.Size != "" {
		fmt.Fprintf(out, "Image size: %s\n", req.Size)
	}
	if sess != nil && len(sess.Turns) > 0 {
		fmt.Fprintf(out, "Continuing session: %s (%d previous turns)\n", sess.Name, len(sess.Turns))
	}
	if len(req.References) > 0 {
		fmt.Fprintf(out, "Reference images: %d\n", len(req.References))
	}
}

func runListSessions(ctx context.Context, app *App) error {
	store, err := app.NewStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(ctx)
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Fprintln(app.Out, "No sessions found.")
		return nil
	}

	modelWidth := modelColumnWidth()
	fmt.Fprintf(app.Out, "%-24s %6s  %-*s %s\n", "SESSION", "TURNS", modelWidth, "MODEL", "UPDATED")
	for _, sum := range summaries {
		model := sum.LastModel
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(app.Out, "%-24s %6d  %-*s %s\n",
			truncate(sum.Name, 24), sum.TurnCount, modelWidth, truncate(model, modelWidth), humanize.Time(sum.UpdatedAt))
	}
	return nil
}

// modelColumnWidth sizes the model column to what the terminal leaves after
// the fixed columns.
func modelColumnWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 40
	}
	w := width - 52
	if w < 20 {
		return 20
	}
	if w > 60 {
		return 60
	}
	return w
}

func runDeleteSession(ctx context.Context, app *App, name string) error {
	store, err := app.NewStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Deleted session: %s\n", name)
	return nil
}

func runListModels(ctx context.Context, app *App) error {
	apiKey, _, err := keys.Resolve(flagAPIKey, app.GetEnv)
	if err != nil {
		return err
	}

	prov, err := app.NewProvider(&provider.Config{APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	cache, err := app.NewCache()
	if err != nil {
		return err
	}

	list, err := catalog.New(prov, cache).ImageModels(ctx, flagRefresh)
	if err != nil {
		return fmt.Errorf("failed to fetch models: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintln(app.Out, "No image generation models found.")
		return nil
	}

	fmt.Fprintf(app.Out, "Image generation models (%d available)\n\n", len(list))
	fmt.Fprintf(app.Out, "%-44s %-36s %10s  %s\n", "MODEL ID", "NAME", "CONTEXT", "PRICE/IMAGE")
	for _, info := range list {
		context := "-"
		if info.ContextLength > 0 {
			context = humanize.Comma(int64(info.ContextLength))
		}
		fmt.Fprintf(app.Out, "%-44s %-36s %10s  %s\n",
			truncate(info.ID, 44), truncate(info.Name, 36), context, catalog.FormatPrice(info))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
