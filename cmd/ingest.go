package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/internal/ingest"
)

var (
	ingestFile    string
	ingestSeed    bool
	ingestRebuild bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build or update the knowledge base",
	Long: `Build or update the knowledge base.

Documents come from --file (one document per non-blank line; lines starting
with # are comments) or from the built-in seed corpus with --seed.
Document IDs derive from content hashes, so re-running an unchanged file
leaves the collection as it was. --rebuild clears the collection first.`,
	Example: `  nova ingest --seed
  nova ingest --file docs/faq.txt
  nova ingest --file docs/faq.txt --rebuild`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to a document file, one document per line")
	ingestCmd.Flags().BoolVar(&ingestSeed, "seed", false, "ingest the built-in seed corpus")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "clear the collection before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context) error {
	logger := initLogger(false)

	if err := checkRequiredEnv(); err != nil {
		return err
	}
	if ingestFile == "" && !ingestSeed {
		return fmt.Errorf("nothing to ingest: pass --file or --seed")
	}

	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}

	var sources []ingest.Source
	if ingestSeed {
		sources = append(sources, ingest.SeedSources()...)
	}
	if ingestFile != "" {
		fileSources, err := readSourcesFile(ingestFile)
		if err != nil {
			return err
		}
		sources = append(sources, fileSources...)
	}

	ingestLogger := logger.With("component", "ingest")
	var res ingest.Result
	if ingestRebuild {
		res, err = ingest.Rebuild(ctx, a.store, sources, ingestLogger)
	} else {
		res, err = ingest.Run(ctx, a.store, sources, ingestLogger)
	}
	if err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}

	count, countErr := a.store.Count(ctx)
	if countErr != nil {
		return countErr
	}
	fmt.Printf("Ingested %d documents (%d skipped, %d failed). Collection now holds %d.\n",
		res.Ingested, res.Skipped, res.Failed, count)
	return nil
}

// readSourcesFile parses a document file: one document per non-blank line,
// # marks a comment line.
func readSourcesFile(path string) ([]ingest.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document file: %w", err)
	}
	defer f.Close()

	var sources []ingest.Source
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, ingest.Source{
			Text:     line,
			Metadata: map[string]string{"source": path},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document file: %w", err)
	}
	return sources, nil
}
