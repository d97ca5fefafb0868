package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docforge/internal/blocks"
	"docforge/internal/engine"
	"docforge/internal/guard"
)

var runCmd = &cobra.Command{
	Use:   "run [script-file]",
	Short: "Repair, gate, and execute a generated script against the document",
	Long: `Runs the full pipeline on one script payload: normalization, capability
gating, idempotent-envelope wrapping, and execution. Pass "-" to read the
script from stdin. The document file is written back after a successful run.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	doc, err := loadDocument(docPath)
	if err != nil {
		return err
	}

	var backups *blocks.BackupStore
	if cfg.Blocks.BackupDB != "" {
		backups, err = blocks.OpenBackupStore(cfg.Blocks.BackupDB)
		if err != nil {
			return fmt.Errorf("failed to open backup store: %w", err)
		}
		defer backups.Close()
	}

	// Ctrl-C flips the cooperative flag; the guard notices on the next
	// counted operation.
	cancel := &guard.Flag{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel.Cancel()
	}()

	exec := engine.New(logger, engine.Settings{
		Limits:       cfg.Guard,
		ChangeLog:    cfg.Blocks.ChangeLog,
		ForceMarkers: cfg.Blocks.ForceMarkers,
		AnchorEnd:    cfg.Blocks.Anchor == "end",
	}, cancel)

	res := exec.Execute(context.Background(), doc, backups, engine.Request{Source: source})

	for _, note := range res.Notes {
		fmt.Println("note:", note)
	}
	if !res.Success {
		logger.Warn("run failed",
			zap.String("error_kind", res.ErrorKind),
			zap.String("error_type", res.ErrorType),
			zap.Int("ops_used", res.OpsUsed))
		return fmt.Errorf("%s", res.Message)
	}

	if err := saveDocument(doc, docPath); err != nil {
		return err
	}
	if res.BlockID != "" {
		fmt.Println("block:", res.BlockID)
	}
	if res.Value != "" {
		fmt.Println("value:", res.Value)
	}
	fmt.Printf("ok (%d ops)\n", res.OpsUsed)
	return nil
}
