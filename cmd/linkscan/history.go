package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/crawler"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/report"
	"github.com/spf13/cobra"
)

// errNotEnoughRuns is returned by --diff when fewer than two runs are archived.
var errNotEnoughRuns = errors.New("at least two archived crawls are needed to compare")

// historyFormat selects how history output is rendered.
type historyFormat int

const (
	formatText historyFormat = iota
	formatJSON
	formatMarkdown
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse archived crawls and compare them",
		Long: `History reads the crawl reports archived by 'linkscan crawl'.

Without flags it lists every seed that has been crawled. With --seed it lists
the runs of that seed, and with --diff it shows which links appeared or
disappeared between the two latest runs.

Examples:
  # List all crawled seeds
  linkscan history

  # List the runs of one seed
  linkscan history --seed https://example.com

  # Compare the latest two runs
  linkscan history --seed https://example.com --diff

  # Show an archived report
  linkscan history --id 12

  # Find the runs in which a link was seen
  linkscan history --link https://example.com/old-page`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("seed", "",
		"Seed URL whose runs are listed")
	cmd.Flags().BoolP("diff", "d", false,
		"Compare the latest two runs of --seed")
	cmd.Flags().Int64("id", 0,
		"Print the archived report of this run")
	cmd.Flags().String("link", "",
		"List the runs in which this link was discovered")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	seed   string
	diff   bool
	id     int64
	link   string
	dbDir  string
	format historyFormat
}

// parseHistoryFlags reads and checks the history command flags.
func parseHistoryFlags(cmd *cobra.Command) (*historyOptions, error) {
	opts := &historyOptions{}
	var err error

	if opts.seed, err = cmd.Flags().GetString("seed"); err != nil {
		return nil, err
	}
	if opts.diff, err = cmd.Flags().GetBool("diff"); err != nil {
		return nil, err
	}
	if opts.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return nil, err
	}
	if opts.link, err = cmd.Flags().GetString("link"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	switch {
	case jsonOutput && markdownOutput:
		return nil, config.ErrConflictingReportFormats
	case jsonOutput:
		opts.format = formatJSON
	case markdownOutput:
		opts.format = formatMarkdown
	}

	if opts.diff && opts.seed == "" {
		return nil, errors.New("--diff requires --seed")
	}

	// Runs are archived under the normalized seed.
	if opts.seed != "" {
		u, err := crawler.ParseSeed(opts.seed)
		if err != nil {
			return nil, err
		}
		opts.seed = u.String()
	}

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(out, "No crawl history found.")
			fmt.Fprintln(out, "\nUse 'linkscan crawl -u <url>' to crawl a website.")
			return nil
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.id != 0:
		return showArchivedReport(ctx, out, db, opts)
	case opts.link != "":
		return findLink(ctx, out, db, opts)
	case opts.diff:
		return diffLatestRuns(ctx, out, db, opts)
	case opts.seed != "":
		return listRuns(ctx, out, db, opts)
	default:
		return listSeeds(ctx, out, db, opts)
	}
}

// listSeeds lists every seed that has archived runs.
func listSeeds(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if opts.format == formatJSON {
		return writeJSON(out, seeds)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		fmt.Fprintln(out, "\nUse 'linkscan crawl -u <url>' to crawl a website.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'linkscan history --seed <url>' to see the runs of a seed.")
	return nil
}

// listRuns lists the archived runs of one seed, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	runs, err := db.GetHistory(ctx, opts.seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if opts.format == formatJSON {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", opts.seed)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", opts.seed, len(runs))
	writeRunTable(out, runs)
	fmt.Fprintln(out, "\nUse 'linkscan history --seed <url> --diff' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'linkscan history --id <id>' to show an archived report.")
	return nil
}

// findLink lists the runs in which a link was discovered.
func findLink(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	runs, err := db.FindLink(ctx, opts.link)
	if err != nil {
		return fmt.Errorf("failed to search link: %w", err)
	}

	if opts.format == formatJSON {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "%s was not found in any archived crawl.\n", opts.link)
		return nil
	}

	fmt.Fprintf(out, "%s was found in %d runs:\n\n", opts.link, len(runs))
	writeRunTable(out, runs)
	return nil
}

// writeRunTable writes one line per run.
func writeRunTable(out io.Writer, runs []database.RunMetadata) {
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-8s  %-8s  %s\n",
		"ID", "Date", "Pages", "Internal", "External", "Seed")
	fmt.Fprintf(out, "  %s\n", "--------------------------------------------------------------------------")
	for _, run := range runs {
		seed := run.Seed
		if run.Partial {
			seed += " (partial)"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %-8d  %-8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PagesFetched,
			run.InternalCount,
			run.ExternalCount,
			seed,
		)
	}
}

// diffLatestRuns compares the two latest runs of a seed.
func diffLatestRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	reports, err := db.GetLatestReports(ctx, opts.seed, 2)
	if err != nil {
		return fmt.Errorf("failed to get crawl reports: %w", err)
	}
	if len(reports) < 2 {
		return fmt.Errorf("%w: %s has %d", errNotEnoughRuns, opts.seed, len(reports))
	}

	diff := model.Diff(reports[1], reports[0])
	switch opts.format {
	case formatJSON:
		return report.WriteDiffJSON(out, diff)
	case formatMarkdown:
		return report.WriteDiffMarkdown(out, diff)
	default:
		return report.WriteDiffText(out, diff)
	}
}

// showArchivedReport prints an archived report with the crawl report writers.
func showArchivedReport(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	r, err := db.GetReportByID(ctx, opts.id)
	if err != nil {
		return err
	}

	wopts := []report.Option{report.WithVersion(getVersion())}
	var w report.Writer
	switch opts.format {
	case formatJSON:
		w = report.NewJSONWriter(out, append(wopts, report.WithPrettyPrint())...)
	case formatMarkdown:
		w = report.NewMarkdownWriter(out, wopts...)
	default:
		w = report.NewTextWriter(out, wopts...)
	}
	_, err = w.Write(r)
	return err
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
