// file: cmd/root.go
// version: 1.4.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jdfalk/epub-enricher/internal/confidence"
	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/decision"
	"github.com/jdfalk/epub-enricher/internal/epub"
	"github.com/jdfalk/epub-enricher/internal/finder"
	"github.com/jdfalk/epub-enricher/internal/format"
	"github.com/jdfalk/epub-enricher/internal/pipeline"
	"github.com/jdfalk/epub-enricher/internal/providers"
	"github.com/jdfalk/epub-enricher/internal/upload"
	"github.com/jdfalk/epub-enricher/internal/watcher"
)

var cfgFile string
var mode string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "epub-enricher",
	Short: "Enrich epub metadata from online book catalogs",
	Long: `Epub Enricher reads the metadata already inside your epub files,
searches Google Books and Open Library for a matching catalog record, and
writes the approved fields back into the book.

Matches are scored 0-100; how much of a match is applied is controlled by
the decision mode (--mode).`,
}

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <dir-or-file>",
	Short: "Enrich epub files and deliver them",
	Long: `Run the full pipeline on a directory of epubs (or a single file):
extract metadata, search catalogs, apply approved fields, convert for Kobo,
rename, and move the result to the output directory or Google Drive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if !info.IsDir() {
			res := p.ProcessFile(ctx, args[0])
			if res.Err != nil {
				return res.Err
			}
			fmt.Printf("Done: %s (updated=%v, confidence=%d)\n", res.OutputPath, res.Updated, res.Match.Confidence)
			return nil
		}

		results, err := p.ProcessDir(ctx, args[0])
		if err != nil {
			return err
		}
		summarize(results)
		return nil
	},
}

// findCmd represents the find command
var findCmd = &cobra.Command{
	Use:   "find <file.epub>",
	Short: "Search catalogs for a book without modifying it",
	Long: `Run the waterfall search for one epub and print the best match,
its confidence score and how the score was reached. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		book, err := epub.Open(args[0])
		if err != nil {
			return err
		}
		local := book.Metadata()

		printer := &format.Printer{High: cfg.ThresholdHigh, Medium: cfg.ThresholdMedium, FullOutput: cfg.FullOutput}
		printer.Metadata(local)

		f := finder.New(providers.ForSource(cfg))
		f.SetVerbose(cfg.Verbose)
		result := f.Find(ctx, local)

		var reasons []string
		if result.Found() {
			kind := confidence.KindText
			if strings.HasPrefix(result.Strategy, "ISBN") {
				kind = confidence.KindISBN
			}
			_, reasons = confidence.Score(kind, local, result.Book, result.TotalHits)
		}
		printer.SearchResult(result, reasons)
		return nil
	},
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.epub>",
	Short: "Dump the raw OPF metadata of an epub",
	Long:  `Print every metadata element found in the epub's OPF document.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		book, err := epub.Open(args[0])
		if err != nil {
			return err
		}
		printer := &format.Printer{High: cfg.ThresholdHigh, Medium: cfg.ThresholdMedium}
		printer.Metadata(book.Metadata())
		printer.RawMetadata(book.RawMetadata())
		return nil
	},
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch an intake directory and enrich new epubs",
	Long: `Watch a directory tree for incoming epub files and run the process
pipeline once each burst of file events has settled. Interactive decision
modes are not available here; the watcher forces automatic decisions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		// No terminal to answer prompts on a long-running watch.
		mode = "auto"
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}

		w := watcher.New(func(rootDir string) {
			results, err := p.ProcessDir(ctx, rootDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "watch run failed: %v\n", err)
				return
			}
			summarize(results)
		}, 0)
		if err := w.Start(args[0]); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", args[0])
		<-ctx.Done()
		return nil
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file with every option and its default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "epub-enricher.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteStarterFile(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

// loadConfig resolves the configuration and layers changed command-line
// flags on top, so flags beat both the config file and the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("output") {
		cfg.OutputDir, _ = flags.GetString("output")
	}
	return cfg, cfg.Validate()
}

// buildPipeline assembles the processing pipeline for the configured
// providers, decision mode and delivery target.
func buildPipeline(ctx context.Context, cfg config.Config) (*pipeline.Pipeline, error) {
	f := finder.New(providers.ForSource(cfg))
	f.SetVerbose(cfg.Verbose)

	policy, err := policyForMode(mode, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	uploader, err := upload.ForConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, f, policy, uploader), nil
}

// policyForMode maps the --mode flag to a decision policy.
func policyForMode(mode string, cfg config.Config, in io.Reader, out io.Writer) (decision.Policy, error) {
	switch mode {
	case "auto":
		return decision.Automatic{}, nil
	case "trust":
		return decision.Automatic{AlwaysTrust: true}, nil
	case "bulk":
		return decision.BulkConfirm{Approve: stdinApprover(in, out), Out: out}, nil
	case "review":
		return decision.FieldReview{Approve: stdinApprover(in, out)}, nil
	case "threshold", "":
		return decision.Threshold{AutoSave: cfg.AutoSave, Approve: stdinApprover(in, out), Out: out}, nil
	default:
		return nil, fmt.Errorf("unknown decision mode %q (auto, trust, bulk, review, threshold)", mode)
	}
}

// stdinApprover asks a yes/no question per approval request. A closed or
// unreadable input counts as a rejection via the returned error.
func stdinApprover(in io.Reader, out io.Writer) decision.Approver {
	scanner := bufio.NewScanner(in)
	return func(field, oldValue, newValue string) (bool, error) {
		if oldValue != "" {
			fmt.Fprintf(out, "Replace %s %q with %q? [y/N] ", field, oldValue, newValue)
		} else {
			fmt.Fprintf(out, "Set %s to %q? [y/N] ", field, newValue)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, err
			}
			return false, io.EOF
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}
}

func summarize(results []pipeline.Result) {
	var updated, failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		if res.Updated {
			updated++
		}
	}
	fmt.Printf("Processed %d books: %d updated, %d failed\n", len(results), updated, failed)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./epub-enricher.yaml)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "threshold", "decision mode: auto, trust, bulk, review or threshold")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every search attempt")
	rootCmd.PersistentFlags().String("source", "", "catalog source: all, google or openlibrary")
	rootCmd.PersistentFlags().String("output", "", "local output directory for finished books")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
