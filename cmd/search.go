package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tuneflow/internal/formatter"
	"github.com/desertthunder/tuneflow/internal/media"
	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs a track search and prints or saves the results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	tracks, err := r.Searcher().Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	r.logger.Debug("search complete", "query", query, "results", len(tracks))

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(tracks, format, path); err != nil {
			return err
		}
		r.logger.Info("results written", "path", path, "format", format, "tracks", len(tracks))
		return nil
	}

	if format == formatter.FormatText && r.isTerminal() {
		return r.writePlain("%s", formatter.RenderTracks(query, tracks))
	}

	data, err := formatter.Export(tracks, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", strings.TrimRight(string(data), "\n"))
}

// Probe prints extractor metadata for a media id and the format a download would pick.
func (r *Runner) Probe(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	info, err := r.Extractor().Probe(ctx, id)
	if err != nil {
		var xerr *media.ExtractionError
		if errors.As(err, &xerr) && xerr.Stderr != "" {
			r.logger.Error("extractor output", "stderr", xerr.Stderr)
		}
		return fmt.Errorf("probe failed: %w", err)
	}

	var best *models.AudioFormat
	if f, err := media.BestAudioFormat(info.Formats); err == nil {
		best = &f
	}

	if cmd.Bool("json") {
		return r.writeJSON(ProbeResult{MediaInfo: info, Best: best}, cmd.Bool("pretty"))
	}
	if err := r.writePlain("%s", formatter.RenderMediaInfo(info, best)); err != nil {
		return err
	}
	if cmd.Bool("formats") {
		return r.writePlain("%s\n", formatter.RenderFormats(info.Formats))
	}
	return nil
}

// ProbeResult is the JSON output of the probe command.
type ProbeResult struct {
	*models.MediaInfo
	Best *models.AudioFormat `json:"best_audio,omitempty"`
}
