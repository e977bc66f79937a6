package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmtexport/internal/batch"
	"pmtexport/internal/config"
	"pmtexport/internal/ledger"
	"pmtexport/internal/pipeline"
	"pmtexport/internal/query"
	"pmtexport/internal/store"
)

const combinePrompt = "Do you want to combine all the batch files? (Y/n) "

var errNoRedis = errors.New("REDIS_URL is not set")

var (
	combineFlag    string
	skipIncomplete bool
	compress       bool

	siteFlag   string
	fromFlag   string
	toFlag     string
	outputFlag string

	runsLimit int
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Export exploration coverage for participants listed in batch files",
	Long: `Reads the Answer.surveycode column of every file in the input directory
and writes each participant's explored cell count and coverage percentage.

Without --combine the command asks whether to merge all batches into one
timestamped file or write one output file per batch.`,
	Args: cobra.NoArgs,
	RunE: runCoverage,
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Export the full game table for a site and time window",
	Args:  cobra.NoArgs,
	RunE:  runGame,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent export runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	for _, cmd := range []*cobra.Command{coverageCmd, gameCmd} {
		cmd.Flags().BoolVar(&skipIncomplete, "skip-incomplete", false, "Skip participants without exploration data instead of failing")
		cmd.Flags().BoolVar(&compress, "compress", false, "Write zstd-compressed output (.csv.zst)")
	}
	coverageCmd.Flags().StringVar(&combineFlag, "combine", "", "Combine batch files: y or n (prompts when unset)")

	gameCmd.Flags().StringVar(&siteFlag, "site", "", "Site the sessions were played on (default from config)")
	gameCmd.Flags().StringVar(&fromFlag, "from", "", "Window start, inclusive (YYYY-MM-DD or RFC 3339)")
	gameCmd.Flags().StringVar(&toFlag, "to", "", "Window end, exclusive (YYYY-MM-DD or RFC 3339)")
	gameCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file name inside the output directory (default from config)")

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "Number of runs to show")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireMongo(); err != nil {
		return err
	}

	var combine bool
	if cmd.Flags().Changed("combine") {
		var err error
		if combine, err = parseCombine(combineFlag); err != nil {
			return err
		}
	} else {
		combine = promptCombine(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	files, err := batch.ListFiles(cfg.InputDir)
	if err != nil {
		return err
	}
	logger.Debug("batch files", zap.String("dir", cfg.InputDir), zap.Strings("files", files))

	ctx := cmd.Context()
	exporter, cleanup, err := buildExporter(ctx, exportOptions(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := exporter.ExportCoverage(ctx, files, combine)
	for _, run := range runs {
		fmt.Fprintln(cmd.OutOrStdout(), run.Output)
	}
	return err
}

func runGame(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireMongo(); err != nil {
		return err
	}
	window, err := resolveWindow(cmd, cfg)
	if err != nil {
		return err
	}
	output := cfg.GameOutput
	if outputFlag != "" {
		output = outputFlag
	}

	ctx := cmd.Context()
	exporter, cleanup, err := buildExporter(ctx, exportOptions(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := exporter.ExportGame(ctx, window, output)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), run.Output)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	if cfg.RedisURL == "" {
		return errNoRedis
	}
	l, err := ledger.NewRedisLedger(cfg.RedisURL, cfg.LedgerSize)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer l.Close()

	runs, err := l.Recent(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No export runs recorded.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
	return nil
}

// exportOptions places every output file, game and coverage alike, in the
// configured output directory.
func exportOptions(c config.Config) pipeline.Options {
	return pipeline.Options{
		OutputDir:      c.OutputDir,
		SkipIncomplete: skipIncomplete,
		Compress:       compress,
	}
}

// promptCombine asks on w and reads one answer from r. Anything other than
// "n" or "N", including no answer at all, means combine.
func promptCombine(r io.Reader, w io.Writer) bool {
	fmt.Fprint(w, combinePrompt)
	line, _ := bufio.NewReader(r).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer != "n" && answer != "N"
}

func parseCombine(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid --combine value %q (want y or n)", value)
}

// resolveWindow overlays the --site, --from and --to flags on the configured
// window.
func resolveWindow(cmd *cobra.Command, c config.Config) (query.Window, error) {
	window := query.Window{Site: c.Site, From: c.WindowFrom, To: c.WindowTo}
	if cmd.Flags().Changed("site") {
		window.Site = siteFlag
	}
	if cmd.Flags().Changed("from") {
		from, err := config.ParseDate(fromFlag)
		if err != nil {
			return query.Window{}, fmt.Errorf("--from: %w", err)
		}
		window.From = from
	}
	if cmd.Flags().Changed("to") {
		to, err := config.ParseDate(toFlag)
		if err != nil {
			return query.Window{}, fmt.Errorf("--to: %w", err)
		}
		window.To = to
	}
	if !window.From.Before(window.To) {
		return query.Window{}, fmt.Errorf("window start %s is not before end %s",
			window.From.Format(time.RFC3339), window.To.Format(time.RFC3339))
	}
	return window, nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderRuns(runs []store.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "PIPELINE", "SOURCE", "ROWS", "SKIPPED", "FINISHED", "OUTPUT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, run := range runs {
		output := run.Output
		if run.ObjectKey != "" {
			output += " (" + run.ObjectKey + ")"
		}
		t.Row(
			run.ID,
			run.Pipeline,
			run.Source,
			strconv.Itoa(run.Rows),
			strconv.Itoa(len(run.Skipped)),
			run.FinishedAt.UTC().Format(time.DateTime),
			output,
		)
	}
	return t.String()
}
