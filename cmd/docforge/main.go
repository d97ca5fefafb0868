package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docforge/internal/config"
	"docforge/internal/host"
)

var (
	// Global flags
	verbose    bool
	configPath string
	docPath    string
	docFlavor  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "docforge",
	Short: "docforge - lexical repair and idempotent block upserts for generated scripts",
	Long: `docforge takes untrusted generated script text, repairs the generation
defects that break parsing (smart quotes, markdown fences, post-ES5 syntax),
gates it for unsafe capabilities, and executes it against a document host
through an idempotent block-upsert facade.

Blocks are anchored, re-runnable regions: running the same script twice
replaces the block's content instead of appending a duplicate.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseFlavor(name string) (host.Flavor, error) {
	switch name {
	case "document", "":
		return host.FlavorDocument, nil
	case "spreadsheet":
		return host.FlavorSpreadsheet, nil
	case "presentation":
		return host.FlavorPresentation, nil
	}
	return host.FlavorDocument, fmt.Errorf("unknown flavor %q (use document, spreadsheet, or presentation)", name)
}

// loadDocument reads a plain-text document into an in-memory host. A
// missing file yields an empty document; hidden marker anchors written
// on a previous run survive the round trip as literal text.
func loadDocument(path string) (*host.MemDoc, error) {
	flavor, err := parseFlavor(docFlavor)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return host.NewMemDoc(flavor, path, ""), nil
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return host.NewMemDoc(flavor, path, string(data)), nil
}

func saveDocument(doc *host.MemDoc, path string) error {
	if err := os.WriteFile(path, []byte(doc.String()), 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// readSource reads the script payload from a file argument or stdin
// when the argument is "-".
func readSource(arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docforge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&docPath, "doc", "document.txt", "document file path")
	rootCmd.PersistentFlags().StringVar(&docFlavor, "flavor", "document", "host flavor: document, spreadsheet, presentation")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
