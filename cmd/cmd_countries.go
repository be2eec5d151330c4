// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartobase/addrharvest/countries"
	"github.com/cartobase/addrharvest/store"
)

// loadResolver builds the country code resolver from the --reference file,
// falling back to the built-in alias table alone.
func loadResolver() (*countries.Resolver, error) {
	if referencePath == "" {
		return countries.NewResolver(nil), nil
	}

	return countries.LoadResolver(referencePath)
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Manages the per-country processing cursor",
}

var countriesSeedCmd = &cobra.Command{
	Use:   "seed <country.json>",
	Short: "Seeds the cursor from a JSON list of country names",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		names, err := countries.LoadNames(args[0])
		if err != nil {
			return err
		}

		resolver, err := loadResolver()
		if err != nil {
			return err
		}

		rows := make([]*store.CountryStatus, 0, len(names))
		unresolved := 0

		for _, name := range names {
			code, ok := resolver.Resolve(name)
			if !ok {
				unresolved++

				log.Printf("no code found for %q, seeding without one", name)
			}

			// Batches carry lowercase codes, so the cursor must too.
			rows = append(rows, &store.CountryStatus{Name: name, Code: strings.ToLower(code)})
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

		if err := repos.countries.Seed(rows); err != nil {
			return err
		}

		log.Printf("seeded %d countries (%d without a code)", len(rows), unresolved)

		return nil
	},
}

var countriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every country and its status",
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

		list, err := repos.countries.List()
		if err != nil {
			return err
		}

		for _, c := range list {
			code := c.Code
			if code == "" {
				code = "--"
			}

			fmt.Printf("%-2s  %-12s  %s\n", code, c.Status, c.Name)
		}

		return nil
	},
}

var countriesResetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Forces a country back to origin for a rerun",
	Args:  cobra.ExactArgs(1),
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

		if err := repos.countries.Reset(args[0]); err != nil {
			return err
		}

		log.Printf("reset %q to origin", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(countriesCmd)
	countriesCmd.AddCommand(countriesSeedCmd)
	countriesCmd.AddCommand(countriesListCmd)
	countriesCmd.AddCommand(countriesResetCmd)
}
