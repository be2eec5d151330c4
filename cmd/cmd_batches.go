// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspects and repairs the batch queue",
}

var batchesStatusCmd = &cobra.Command{
	Use:   "status [country-code]",
	Short: "Shows per-status batch counts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		code := ""
		if len(args) > 0 {
			code = args[0]
		}

		counts, err := repos.batches.CountByStatus(code)
		if err != nil {
			return err
		}

		for _, status := range []string{store.BatchOrigin, store.BatchChecking, store.BatchChecked} {
			fmt.Printf("%-10s %d\n", status, counts[status])
		}

		return nil
	},
}

var batchesImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Imports batches from an extraction fallback log",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0]) // #nosec G304 - path is provided by admin
		if err != nil {
			return fmt.Errorf("opening fallback log: %w", err)
		}
		defer f.Close()

		var batches []*store.Batch

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var line struct {
				IDs         string `json:"ids"`
				CountryCode string `json:"country_code"`
				CountryName string `json:"country_name"`
			}

			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				return fmt.Errorf("parsing fallback log: %w", err)
			}

			batches = append(batches, &store.Batch{
				CountryCode: line.CountryCode,
				CountryName: line.CountryName,
				OSMIDs:      strings.Split(line.IDs, ","),
			})
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading fallback log: %w", err)
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		if err := repos.batches.InsertAll(batches); err != nil {
			return err
		}

		log.Printf("imported %d batches from %s", len(batches), args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchesCmd)
	batchesCmd.AddCommand(batchesStatusCmd)
	batchesCmd.AddCommand(batchesImportCmd)
}
