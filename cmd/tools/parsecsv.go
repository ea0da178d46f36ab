package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/importer"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
)

// runParseCSV pushes a CSV through the import pipeline and parser without
// touching the database. Useful for checking how a retailer export will land
// before uploading it.
func runParseCSV(args []string) error {
	fs := flag.NewFlagSet("parsecsv", flag.ExitOnError)
	in := fs.String("in", "", "Input CSV path")
	out := fs.String("out", "", "Output CSV path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("parsecsv: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, summary, err := importer.ParseCSV(f, "offline")
	if err != nil {
		return fmt.Errorf("failed to parse csv: %w", err)
	}

	dst := os.Stdout
	if *out != "" {
		dst, err = os.Create(*out)
		if err != nil {
			return err
		}
		defer dst.Close()
	}

	if err := importer.WriteCSV(dst, rows, parser.NewEngine()); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	log.Printf("Parsed %d rows (%d with existing ingredient text)", summary.Rows, summary.SkippedExisting)
	return nil
}
