package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"seedharvest/pkg/config"
	"seedharvest/pkg/ledger"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/ui"
)

var showIDs int

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and edit the processed-item ledger",
	Long: `The ledger records every catalog item that has been handed to the
download consumer and the catalog page the next run starts from.`,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the ledger cursor and processed item count",
	Example: `  # Show the ledger with the 20 most recent ids
  seedharvest ledger show --ids 20`,
	Args: cobra.NoArgs,
	RunE: runLedgerShow,
}

var ledgerSetPageCmd = &cobra.Command{
	Use:   "set-page <page>",
	Short: "Move the next-page cursor",
	Long: `Move the cursor so the next run starts listing from the given page.
Processed ids are kept.`,
	Example: `  # Start over from the first page
  seedharvest ledger set-page 1`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerSetPage,
}

var ledgerBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the ledger file next to itself with a .backup suffix",
	Args:  cobra.NoArgs,
	RunE:  runLedgerBackup,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerSetPageCmd)
	ledgerCmd.AddCommand(ledgerBackupCmd)

	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "path of the ledger file")
	ledgerShowCmd.Flags().IntVar(&showIDs, "ids", 0, "also list this many of the highest processed ids")
}

func openLedger() (*ledger.Ledger, error) {
	flags := map[string]interface{}{}
	if ledgerPath != "" {
		flags["ledger"] = ledgerPath
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Ledger.Path, logger.GetLogger())
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	book, err := openLedger()
	if err != nil {
		return err
	}

	state := book.Snapshot()
	ui.PrintTable([]string{"PATH", "NEXT PAGE", "PROCESSED"}, [][]string{{
		book.Path(),
		strconv.Itoa(state.NextPage),
		strconv.Itoa(len(state.ProcessedIDs)),
	}})

	if showIDs > 0 && len(state.ProcessedIDs) > 0 {
		ids := state.ProcessedIDs
		if len(ids) > showIDs {
			ids = ids[len(ids)-showIDs:]
		}
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, strings.Join(ids, "\n"))
	}
	return nil
}

func runLedgerSetPage(cmd *cobra.Command, args []string) error {
	page, err := strconv.Atoi(args[0])
	if err != nil || page < 1 {
		return fmt.Errorf("page must be a positive integer, got %q", args[0])
	}

	book, err := openLedger()
	if err != nil {
		return err
	}

	previous := book.NextPage()
	book.SetNextPage(page)
	if err := book.Persist(); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Next page moved from %d to %d", previous, page))
	return nil
}

func runLedgerBackup(cmd *cobra.Command, args []string) error {
	book, err := openLedger()
	if err != nil {
		return err
	}

	path, err := book.Backup()
	if err != nil {
		return err
	}
	if path == "" {
		ui.PrintWarning("No ledger file yet", book.Path())
		return nil
	}
	ui.PrintSuccess("Ledger backed up to " + path)
	return nil
}
