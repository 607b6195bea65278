package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sqlvibe/svcomp/internal/config"
	"github.com/sqlvibe/svcomp/pkg/sqlvibe"
)

func main() {
	configFlag := flag.String("config", "", "Config file (.yaml or .json)")
	explainFlag := flag.Bool("explain", false, "Print the bytecode of every step")
	formatFlag := flag.String("format", "table", "Output format: table or csv")
	headerFlag := flag.Bool("header", true, "Print column headers")
	nullFlag := flag.String("null", "", "Text printed for NULL values")
	tablesFlag := flag.Bool("tables", false, "List tables and indexes after the run")
	verboseFlag := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: sv-check [flags] <script.yaml>...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	mode, ok := ParseOutputMode(*formatFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown output format %q\n", *formatFlag)
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configFlag != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}
	config.LoadFromEnv(cfg)

	exitCode := 0
	for _, path := range flag.Args() {
		script, err := LoadScript(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		if script.Name == "" {
			script.Name = path
		}

		db, err := sqlvibe.Open(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(2)
		}
		r := NewRunner(db, os.Stdout, mode)
		r.explain = *explainFlag
		r.verbose = *verboseFlag
		r.formatter.SetShowHeaders(*headerFlag)
		r.formatter.SetNullValue(*nullFlag)
		if *verboseFlag {
			db.SetTriggerHandler(func(_ context.Context, name string, row []interface{}) error {
				fmt.Printf("     trigger %s %s\n", name, cells(row))
				return nil
			})
		}

		if failed := r.Run(context.Background(), script); failed > 0 {
			fmt.Printf("%s: %d of %d steps failed\n", script.Name, failed, len(script.Steps))
			exitCode = 1
		} else {
			fmt.Printf("%s: ok\n", script.Name)
		}
		if *tablesFlag {
			printTables(db, *verboseFlag)
		}
		db.Close()
	}
	os.Exit(exitCode)
}

func printTables(db *sqlvibe.Database, verbose bool) {
	for _, t := range db.GetTables() {
		if verbose {
			fmt.Printf("%s (%s)\n", t.Name, t.Type)
		} else {
			fmt.Println(t.Name)
		}
		indexes, err := db.GetIndexes(t.Name)
		if err != nil {
			continue
		}
		for _, idx := range indexes {
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			fmt.Printf("  %s%s INDEX %s (%s)\n", unique, idx.Type, idx.Name, strings.Join(idx.Columns, ", "))
		}
	}
}
