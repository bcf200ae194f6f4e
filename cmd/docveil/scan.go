package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/anonymizer"
	"github.com/docveil/docveil/internal/engine"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [file]...",
		Short: "Detect and anonymize PII in text files",
		Long: `Scan reads text files, detects personally identifiable information,
and writes anonymized copies alongside a mapping artifact.

For each input file the command produces:
  <name>.redacted<ext>   the anonymized document
  <name>.mapping.json    token-to-original mapping (and .md with --markdown)

Examples:
  # Anonymize a single file next to the original
  docveil scan invoice.txt

  # Write outputs into a separate directory
  docveil scan -o ./redacted letter.md contract.md

  # Print the redacted text to stdout instead of writing files
  docveil scan --stdout note.txt

  # Detect only, printing an entity summary without writing anything
  docveil scan --dry-run report.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Output directory (default: next to each input)")
	cmd.Flags().StringP("language", "l", "", "Override document language (e.g. de, fr, it, en)")
	cmd.Flags().Bool("stdout", false, "Write redacted text to stdout, mapping is skipped")
	cmd.Flags().Bool("markdown", false, "Additionally write the mapping as Markdown")
	cmd.Flags().Bool("dry-run", false, "Detect only; print an entity summary")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	outputDir, _ := cmd.Flags().GetString("output")
	language, _ := cmd.Flags().GetString("language")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	withMarkdown, _ := cmd.Flags().GetBool("markdown")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	eng, err := engine.New(cfg, log)
	if err != nil {
		return fmt.Errorf("build detection engine: %w", err)
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng.Warm(ctx)

	for _, path := range args {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := scanFile(ctx, eng, log, path, outputDir, language, toStdout, withMarkdown, dryRun); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func scanFile(ctx context.Context, eng *engine.Engine, log *logger.Logger, path, outputDir, language string, toStdout, withMarkdown, dryRun bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(data)

	result := eng.Detect(ctx, content, "", language)

	if dryRun {
		printSummary(path, result)
		return nil
	}

	redacted, mapping := eng.Anonymize(filepath.Base(path), content, result.Entities)

	log.Info("Document anonymized",
		zap.String("file", path),
		zap.String("document_type", result.DocumentType),
		zap.Int("entities", len(result.Entities)),
		zap.Duration("duration", result.Duration),
	)

	if toStdout {
		_, err = io.WriteString(os.Stdout, redacted)
		return err
	}

	base := outputBase(path, outputDir)
	ext := filepath.Ext(path)
	if err := os.WriteFile(base+".redacted"+ext, []byte(redacted), 0o600); err != nil {
		return fmt.Errorf("write redacted file: %w", err)
	}

	if err := writeMapping(mapping, base+".mapping.json", (*anonymizer.Mapping).WriteJSON); err != nil {
		return err
	}
	if withMarkdown {
		if err := writeMapping(mapping, base+".mapping.md", (*anonymizer.Mapping).WriteMarkdown); err != nil {
			return err
		}
	}
	return nil
}

// outputBase returns the output path prefix without extension, honoring an
// optional output directory.
func outputBase(path, outputDir string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if outputDir != "" {
		return filepath.Join(outputDir, name)
	}
	return filepath.Join(filepath.Dir(path), name)
}

func writeMapping(m *anonymizer.Mapping, path string, write func(*anonymizer.Mapping, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	defer f.Close()
	if err := write(m, f); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return f.Close()
}

func printSummary(path string, result *pipeline.Result) {
	counts := make(map[string]int)
	for _, e := range result.Entities {
		counts[e.Type]++
	}

	fmt.Printf("%s (%s)\n", path, result.DocumentType)
	if len(counts) == 0 {
		fmt.Println("  no entities detected")
		return
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, counts[t])
	}
}
