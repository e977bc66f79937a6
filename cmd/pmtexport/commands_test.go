package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pmtexport/internal/config"
	"pmtexport/internal/ledger"
	"pmtexport/internal/participant"
	"pmtexport/internal/pipeline"
	"pmtexport/internal/query"
	"pmtexport/internal/store"
)

func TestPromptCombine(t *testing.T) {
	cases := map[string]bool{
		"\n":       true,
		"y\n":      true,
		"Y\n":      true,
		"yes\n":    true,
		"n\n":      false,
		"N\n":      false,
		"  n  \n":  false,
		"no\n":     true,
		"":         true,
		"n":        false,
		"anything": true,
	}
	for input, want := range cases {
		var out bytes.Buffer
		got := promptCombine(strings.NewReader(input), &out)
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, combinePrompt, out.String())
	}
}

func TestParseCombine(t *testing.T) {
	for _, v := range []string{"y", "Y", "yes", "true"} {
		got, err := parseCombine(v)
		require.NoError(t, err)
		assert.True(t, got, v)
	}
	for _, v := range []string{"n", "N", "no", "false"} {
		got, err := parseCombine(v)
		require.NoError(t, err)
		assert.False(t, got, v)
	}
	_, err := parseCombine("maybe")
	assert.ErrorContains(t, err, "invalid --combine")
}

func gameFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "game"}
	cmd.Flags().StringVar(&siteFlag, "site", "", "")
	cmd.Flags().StringVar(&fromFlag, "from", "", "")
	cmd.Flags().StringVar(&toFlag, "to", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestResolveWindow(t *testing.T) {
	c := config.Config{
		Site:       "arlstrong-uml-034-prolific.herokuapp.com",
		WindowFrom: time.Date(2023, 4, 25, 0, 0, 0, 0, time.UTC),
		WindowTo:   time.Date(2023, 4, 28, 0, 0, 0, 0, time.UTC),
	}

	w, err := resolveWindow(gameFlags(t), c)
	require.NoError(t, err)
	assert.Equal(t, c.Site, w.Site)
	assert.Equal(t, c.WindowFrom, w.From)
	assert.Equal(t, c.WindowTo, w.To)

	w, err = resolveWindow(gameFlags(t, "--site", "other.example", "--to", "2023-05-01T12:00:00Z"), c)
	require.NoError(t, err)
	assert.Equal(t, "other.example", w.Site)
	assert.Equal(t, c.WindowFrom, w.From)
	assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), w.To)

	_, err = resolveWindow(gameFlags(t, "--from", "2023-04-30"), c)
	assert.ErrorContains(t, err, "is not before end")

	_, err = resolveWindow(gameFlags(t, "--from", "yesterday"), c)
	assert.ErrorContains(t, err, "--from")
}

func sampleRuns() []store.Run {
	finished := time.Date(2023, 4, 28, 10, 0, 2, 0, time.UTC)
	return []store.Run{
		{
			ID:         "run_b",
			Pipeline:   "game",
			Source:     "example.org",
			Output:     "Data_for_PTV_2.csv",
			ObjectKey:  "pmtexport/Data_for_PTV_2.csv",
			Rows:       40,
			StartedAt:  finished.Add(-2 * time.Second),
			FinishedAt: finished,
		},
		{
			ID:         "run_a",
			Pipeline:   "coverage",
			Source:     "Batch_1.csv",
			Output:     "batches/output/Data_for_Batch_1.csv",
			Rows:       12,
			Skipped:    []string{"p-9"},
			StartedAt:  finished.Add(-time.Minute),
			FinishedAt: finished.Add(-time.Minute + time.Second),
		},
	}
}

func TestRenderRuns(t *testing.T) {
	out := renderRuns(sampleRuns())
	for _, want := range []string{
		"PIPELINE",
		"run_b",
		"coverage",
		"Data_for_Batch_1.csv",
		"pmtexport/Data_for_PTV_2.csv",
		"2023-04-28 10:00:02",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "run_b"), strings.Index(out, "run_a"))
}

func TestRunsCommand(t *testing.T) {
	logger = zap.NewNop()
	s := miniredis.RunT(t)
	cfg = config.Config{RedisURL: "redis://" + s.Addr(), LedgerSize: 10}
	t.Cleanup(func() { cfg = config.Config{} })

	l, err := ledger.NewRedisLedger(cfg.RedisURL, cfg.LedgerSize)
	require.NoError(t, err)
	defer l.Close()
	runs := sampleRuns()
	require.NoError(t, l.Record(context.Background(), runs[1]))
	require.NoError(t, l.Record(context.Background(), runs[0]))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	runsLimit = 1
	t.Cleanup(func() { runsLimit = 10 })

	require.NoError(t, runRuns(cmd, nil))
	assert.Contains(t, out.String(), "run_b")
	assert.NotContains(t, out.String(), "run_a")
}

func TestRunsCommandEmptyLedger(t *testing.T) {
	s := miniredis.RunT(t)
	cfg = config.Config{RedisURL: "redis://" + s.Addr()}
	t.Cleanup(func() { cfg = config.Config{} })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	require.NoError(t, runRuns(cmd, nil))
	assert.Contains(t, out.String(), "No export runs recorded.")
}

func TestRunsCommandRequiresRedis(t *testing.T) {
	cfg = config.Config{}
	err := runRuns(&cobra.Command{}, nil)
	assert.ErrorIs(t, err, errNoRedis)
}

func TestCoverageRequiresMongo(t *testing.T) {
	cfg = config.Config{}
	err := runCoverage(coverageCmd, nil)
	assert.ErrorIs(t, err, config.ErrMissingMongoURI)
}

type staticSource struct{ docs []participant.Document }

func (s staticSource) Fetch(context.Context, query.Query) ([]participant.Document, error) {
	return s.docs, nil
}

func TestGameOutputLandsInOutputDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "batches", "output")
	c := config.Config{OutputDir: out, GameOutput: "Data_for_PTV_2.csv"}

	opts := exportOptions(c)
	assert.Equal(t, out, opts.OutputDir)

	e := pipeline.New(pipeline.Deps{Source: staticSource{docs: []participant.Document{{
		"uuid":     "p-1",
		"section2": map[string]any{"humanExplored": []any{"0_0", "0_1"}},
	}}}}, opts)
	window := query.Window{
		Site: "example.org",
		From: time.Date(2023, 4, 25, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2023, 4, 28, 0, 0, 0, 0, time.UTC),
	}

	run, err := e.ExportGame(context.Background(), window, c.GameOutput)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Data_for_PTV_2.csv"), run.Output)
	_, err = os.Stat(run.Output)
	assert.NoError(t, err)
}

type syncCountingCore struct {
	zapcore.Core
	syncs *int
}

func (c syncCountingCore) Sync() error {
	*c.syncs++
	return nil
}

func TestExecuteSyncsLoggerWhenCommandFails(t *testing.T) {
	prev := logger
	t.Cleanup(func() { logger = prev })

	syncs := 0
	boom := errors.New("export failed")
	cmd := &cobra.Command{
		Use:           "fail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			logger = zap.New(syncCountingCore{Core: zapcore.NewNopCore(), syncs: &syncs})
			return boom
		},
	}
	cmd.SetArgs([]string{})

	err := execute(context.Background(), cmd)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, syncs)
}
