// Package cmd defines and implements the CLI commands for the logocrawler executable.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/input"
	"github.com/yokurang/logo-crawler/internal/metrics"
	"github.com/yokurang/logo-crawler/internal/output"
)

// newCrawlCmd creates the 'crawl' subcommand. Domains are read from the
// files given as arguments, or from stdin when there are none.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [domains-file...]",
		Short: "Crawls a domain list and writes one logo record per domain",
		Long: `Reads newline-separated domains, fetches each home page with retries,
extracts the best logo candidate and writes the records in input order.
Interrupting the command still produces a record for every domain; the
unfinished ones are reported as canceled errors.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	state, err := resolveState(cmd.Context())
	if err != nil {
		return err
	}

	domains, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		state.logger.Warn("no domains to crawl")
	}

	writer, err := output.New(state.cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("init output: %w", err)
	}

	report, crawlErr := state.app.Crawl(cmd.Context(), domains)
	if crawlErr != nil {
		// The report still holds whatever was collected; write it before failing.
		state.logger.Error("crawl finished with errors", zap.Error(crawlErr))
	}

	if err := writeOutput(cmd.OutOrStdout(), state.cfg.Output.Path, writer, report.Records); err != nil {
		return err
	}
	state.logger.Info("records written",
		zap.Int("records", len(report.Records)),
		zap.String("format", state.cfg.Output.Format),
		zap.String("path", state.cfg.Output.Path),
	)

	if path := state.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			state.logger.Warn("write metrics textfile failed", zap.Error(err))
		}
	}
	return crawlErr
}

func readInput(stdin io.Reader, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return input.ReadDomains(stdin)
	}
	var domains []string
	for _, p := range paths {
		f, err := os.Open(p) //nolint:gosec // user-supplied input list
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		batch, err := input.ReadDomains(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		domains = append(domains, batch...)
	}
	return domains, nil
}

func writeOutput(stdout io.Writer, path string, writer output.Writer, records []crawler.Record) error {
	if path == "" {
		if err := writer.Write(stdout, records); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	f, err := os.Create(path) //nolint:gosec // operator-chosen output path
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writer.Write(f, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
