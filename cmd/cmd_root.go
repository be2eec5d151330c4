// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/store"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "addrharvest",
	Short: "harvests and validates worldwide address data from OSM extracts",
	Long: `
addrharvest extracts candidate addresses from OpenStreetMap PBF files,
validates them against a geocoding service and keeps a deduplicated,
per-country address collection with quality scoring.
`,
}

var (
	dbPath        string
	referencePath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db-path",
		"db",
		"Directory holding the database",
	)
	rootCmd.PersistentFlags().StringVar(
		&referencePath,
		"reference",
		"",
		"JSON file with the country code reference table",
	)
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// openDatabase opens the shared DuckDB file, creating its directory when
// needed.
func openDatabase() (*sql.DB, error) {
	if err := os.MkdirAll(dbPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	return store.Open(filepath.Join(dbPath, "addrharvest.duckdb"))
}

type repositories struct {
	batches   store.BatchRepository
	countries store.CountryRepository
	addresses store.AddressRepository
}

// openRepositories opens the database and ensures every schema exists.
func openRepositories(db *sql.DB) (*repositories, error) {
	repos := &repositories{
		batches:   store.NewBatchRepository(db),
		countries: store.NewCountryRepository(db),
		addresses: store.NewAddressRepository(db),
	}

	if err := repos.batches.CreateSchema(); err != nil {
		return nil, fmt.Errorf("creating batches schema: %w", err)
	}

	if err := repos.countries.CreateSchema(); err != nil {
		return nil, fmt.Errorf("creating countries schema: %w", err)
	}

	if err := repos.addresses.CreateSchema(); err != nil {
		return nil, fmt.Errorf("creating addresses schema: %w", err)
	}

	return repos, nil
}
