package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docforge/internal/audit"
	"docforge/internal/blocks"
	"docforge/internal/guard"
	"docforge/internal/host"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Inspect anchored blocks in the document",
}

var blocksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every anchored block with its kind and span",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := openManager(nil)
		if err != nil {
			return err
		}
		infos := mgr.List()
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no blocks")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s [%d,%d)\n",
				info.ID, info.Kind, info.Content.Start, info.Content.End)
		}
		return nil
	},
}

var blocksReadCmd = &cobra.Command{
	Use:   "read [block-id]",
	Short: "Print a block's current content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := openManager(nil)
		if err != nil {
			return err
		}
		content, err := mgr.Read(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback [block-id]",
	Short: "Restore a block's content from its last backup",
	Long: `Replaces the block's current content with the pre-image saved before
the most recent upsert. Fails when the block has no anchor in the
document or no backup on record.`,
	Args: cobra.ExactArgs(1),
	RunE: rollbackBlock,
}

func rollbackBlock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Blocks.BackupDB == "" {
		return fmt.Errorf("backups are disabled (blocks.backup_db is empty)")
	}
	backups, err := blocks.OpenBackupStore(cfg.Blocks.BackupDB)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}
	defer backups.Close()

	mgr, doc, err := openManager(backups)
	if err != nil {
		return err
	}
	if err := mgr.Rollback(args[0]); err != nil {
		return err
	}
	if err := saveDocument(doc, docPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "restored", args[0])
	return nil
}

// openManager loads the document and builds a block manager over it
// with default limits, for read-side commands and rollback.
func openManager(backups *blocks.BackupStore) (*blocks.Manager, *host.MemDoc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	doc, err := loadDocument(docPath)
	if err != nil {
		return nil, nil, err
	}
	rec := audit.NewRecorder(logger, audit.DefaultOpCap, audit.DefaultRingCap)
	g := guard.New(cfg.Guard, nil, rec)
	caps := host.Probe(doc)
	return blocks.NewManager(doc, caps, g, backups, rec, logger), doc, nil
}

func init() {
	blocksCmd.AddCommand(blocksListCmd)
	blocksCmd.AddCommand(blocksReadCmd)
}
