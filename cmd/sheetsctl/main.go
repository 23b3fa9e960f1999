// sheetsctl is the operator companion to the back-office server. It
// talks straight to the spreadsheet: bootstrapping worksheets, running
// the customer column migration, and pulling an .xlsx snapshot.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"skycafe/backend/internal/config"
	"skycafe/backend/internal/logger"
	sheetstore "skycafe/backend/internal/store/sheets"
)

var (
	flagSpreadsheetID string
	flagTimeout       time.Duration
	flagOutputFile    string
)

var rootCmd = &cobra.Command{
	Use:   "sheetsctl",
	Short: "Administer the Sky Cafe back-office spreadsheet",
	Long: `sheetsctl manages the Google Sheets workbook that backs the Sky Cafe
back-office API: creating missing worksheets, migrating the customer
sheet to the current column layout, and exporting the workbook as an
Excel file.

Credentials are read from GOOGLE_APPLICATION_CREDENTIALS (path to a
service account key file) or GOOGLE_CREDENTIALS (inline JSON).`,
	SilenceUsage: true,
}

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create any missing worksheets with their header rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		fmt.Println("worksheets are up to date")
		return nil
	},
}

var migrateColumnsCmd = &cobra.Command{
	Use:   "migrate-columns",
	Short: "Add missing columns to the customer worksheet",
	Long: `Compares the customer worksheet header row against the current
layout and appends any missing columns, filling existing rows with
default values. Existing data is never moved or overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cancel()
		added, err := store.MigrateCustomerColumns(ctx)
		if err != nil {
			return fmt.Errorf("migrate customer columns: %w", err)
		}
		if len(added) == 0 {
			fmt.Println("customer worksheet already has all columns")
			return nil
		}
		for _, name := range added {
			fmt.Printf("added column: %s\n", name)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the workbook as an Excel file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, store, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cancel()
		data, err := store.ExportXLSX(ctx)
		if err != nil {
			return fmt.Errorf("export workbook: %w", err)
		}

		fileName := flagOutputFile
		if fileName == "" {
			fileName = "sky-cafe-" + time.Now().Format("20060102-150405") + ".xlsx"
		}
		if err := os.WriteFile(fileName, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", fileName, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", fileName, len(data))
		return nil
	},
}

func connect(parent context.Context) (context.Context, context.CancelFunc, *sheetstore.Service, error) {
	spreadsheetID := flagSpreadsheetID
	if spreadsheetID == "" {
		spreadsheetID = os.Getenv("SPREADSHEET_ID")
	}
	if spreadsheetID == "" {
		return nil, nil, nil, fmt.Errorf("spreadsheet id required: set --spreadsheet or SPREADSHEET_ID")
	}

	ctx, cancel := context.WithTimeout(parent, flagTimeout)
	store, err := sheetstore.New(ctx, spreadsheetID)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect to google sheets: %w", err)
	}
	return ctx, cancel, store, nil
}

func main() {
	// .env is optional, same lookup the server does.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Setup(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentFlags().StringVar(&flagSpreadsheetID, "spreadsheet", "", "spreadsheet ID (defaults to SPREADSHEET_ID)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 60*time.Second, "overall operation timeout")
	exportCmd.Flags().StringVarP(&flagOutputFile, "output", "o", "", "output file name (default sky-cafe-<timestamp>.xlsx)")

	rootCmd.AddCommand(initSchemaCmd, migrateColumnsCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
