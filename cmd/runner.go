package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/media"
	"github.com/desertthunder/tuneflow/internal/retry"
	"github.com/desertthunder/tuneflow/internal/services"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	preset     bool
	searcher   services.Searcher
	extractor  *media.Extractor
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Searcher and Extractor are built from the config on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Searcher   services.Searcher
	Extractor  *media.Extractor
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	preset := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		preset:     preset,
		searcher:   opts.Searcher,
		extractor:  opts.Extractor,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, searchCommand, probeCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load resolves the config file, the .env file and environment overrides before any command runs.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if !r.preset {
		config, err := shared.Resolve(r.configPath, cmd.String("env-file"))
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := r.config.Server.LogLevel
	if flag := cmd.String("log-level"); flag != "" {
		level = flag
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// Searcher returns the configured search provider.
func (r *Runner) Searcher() services.Searcher {
	if r.searcher == nil {
		yt := r.config.YouTube
		r.searcher = services.NewYouTubeService(services.YouTubeOpts{
			APIKey:     yt.APIKey,
			BaseURL:    yt.APIURL,
			MaxResults: yt.MaxResults,
			HTTPClient: r.httpClient,
			Retry:      retry.New(r.config.Retry.MaxAttempts, r.config.Retry.BaseDelay, r.logger),
			Logger:     shared.WithLogger(r.logger, "service", "youtube"),
		})
	}
	return r.searcher
}

// Extractor returns the configured media extractor.
func (r *Runner) Extractor() *media.Extractor {
	if r.extractor == nil {
		ex := r.config.Extractor
		r.extractor = media.NewExtractor(media.Options{
			Binary:            ex.Binary,
			SourceURL:         ex.SourceURL,
			StreamFormat:      ex.StreamFormat,
			StreamContentType: ex.StreamContentType,
			AudioFormat:       ex.AudioFormat,
			TempDir:           ex.TempDir,
			StderrLimit:       ex.StderrLimit,
			KillGrace:         ex.KillGrace,
			Gate:              media.NewGate(ex.MaxConcurrent),
			InfoRetry:         retry.New(r.config.Retry.MaxAttempts, r.config.Retry.InfoBaseDelay, r.logger),
			Logger:            shared.WithLogger(r.logger, "component", "extractor"),
		})
	}
	return r.extractor
}

// isTerminal reports whether output goes to an interactive terminal.
func (r *Runner) isTerminal() bool {
	f, ok := r.output.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
