package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alnah/silence-remover/internal/config"
	"github.com/alnah/silence-remover/internal/format"
	"github.com/alnah/silence-remover/internal/remover"
)

// DetectCmd creates the detect command.
// The env parameter provides injectable dependencies for testing.
func DetectCmd(env *Env) *cobra.Command {
	var (
		flags  detectionFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show the audible segments without encoding",
		Long: `Run silence detection only and print the segments that process would
keep, with the total kept and removed durations.

Use it to tune --noise-tolerance, --min-segment-length and --padding
before a full run.`,
		Example: `  silence-remover detect -i talk.mp4
  silence-remover detect -i talk.mp4 --noise-tolerance -35 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd.Context(), env, flags.input, flags.overrides(cmd.Flags()), asJSON)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// runDetect analyzes the input and prints the audible intervals.
func runDetect(ctx context.Context, env *Env, input string, over config.Overrides, asJSON bool) error {
	if err := checkInput(input); err != nil {
		return err
	}

	cfg, err := resolveProject(ctx, env, input, "", over)
	if err != nil {
		return err
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx, cfg.FFmpegPath)
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, env.Stderr)
	fmt.Fprintln(env.Stderr, "Detecting silences...")

	r := env.RemoverFactory.NewRemover(cfg, ffmpegPath, remover.WithLogger(logger))
	a, err := r.Analyze(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		return writeAnalysisJSON(env.Stdout, cfg.InputFile, a)
	}
	return writeAnalysisTable(env.Stdout, a)
}

type intervalJSON struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

type analysisJSON struct {
	Input     string         `json:"input"`
	Duration  float64        `json:"duration"`
	Kept      float64        `json:"kept"`
	Removed   float64        `json:"removed"`
	Intervals []intervalJSON `json:"intervals"`
}

func writeAnalysisJSON(w io.Writer, input string, a remover.Analysis) error {
	out := analysisJSON{
		Input:     input,
		Duration:  a.Duration,
		Kept:      a.Kept(),
		Removed:   a.Removed(),
		Intervals: make([]intervalJSON, 0, len(a.Intervals)),
	}
	for _, iv := range a.Intervals {
		out.Intervals = append(out.Intervals, intervalJSON{Start: iv.Start, End: iv.End, Duration: iv.Duration()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeAnalysisTable(w io.Writer, a remover.Analysis) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tEND\tDURATION")
	for i, iv := range a.Intervals {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i,
			format.Timestamp(seconds(iv.Start)),
			format.Timestamp(seconds(iv.End)),
			format.DurationHuman(seconds(iv.Duration())))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d segments, kept %s of %s, removed %s\n",
		len(a.Intervals),
		format.DurationHuman(seconds(a.Kept())),
		format.DurationHuman(seconds(a.Duration)),
		format.DurationHuman(seconds(a.Removed())))
	return err
}
