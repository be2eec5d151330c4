// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/report"
)

var reportOptions = struct {
	output    string
	threshold int
}{}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Quality reports over the harvested addresses",
}

var reportPenaltiesCmd = &cobra.Command{
	Use:   "penalties",
	Short: "Computes the per-country duplicate penalty",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		rep, err := report.Build(repos.addresses)
		if err != nil {
			return err
		}

		if reportOptions.output != "" {
			if err := rep.WriteFile(reportOptions.output); err != nil {
				return err
			}

			log.Printf("wrote report for %d countries to %s", len(rep), reportOptions.output)

			return nil
		}

		for country, summary := range rep {
			fmt.Printf("%-40s %6d addresses  penalty %.2f\n", country, summary.Addresses, summary.Penalty)
		}

		return nil
	},
}

var reportLowCoverageCmd = &cobra.Command{
	Use:   "low-coverage",
	Short: "Lists countries with too few addresses to trust",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		low, err := report.LowCoverage(repos.addresses, reportOptions.threshold)
		if err != nil {
			return err
		}

		for _, country := range low {
			fmt.Println(country)
		}

		return nil
	},
}

var reportBackfillCmd = &cobra.Command{
	Use:   "backfill-first-sections",
	Short: "Recomputes missing first sections on stored addresses",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := openRepositories(db)
		if err != nil {
			return err
		}

		n, err := repos.addresses.BackfillFirstSections()
		if err != nil {
			return err
		}

		log.Printf("backfilled %d addresses", n)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportPenaltiesCmd)
	reportCmd.AddCommand(reportLowCoverageCmd)
	reportCmd.AddCommand(reportBackfillCmd)
	reportPenaltiesCmd.Flags().StringVarP(
		&reportOptions.output,
		"output",
		"o",
		"",
		"Write the report as JSON to this file instead of stdout",
	)
	reportLowCoverageCmd.Flags().IntVar(
		&reportOptions.threshold,
		"threshold",
		report.DefaultLowCoverageThreshold,
		"Minimum address count a country needs",
	)
}
