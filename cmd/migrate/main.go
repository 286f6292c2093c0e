package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"variatio/internal/migration"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <database_url> [--print]")
		os.Exit(2)
	}

	runner := migration.NewRunner()
	if len(os.Args) > 2 && os.Args[2] == "--print" {
		for _, step := range runner.Steps() {
			fmt.Printf("-- %s\n%s;\n\n", step.Name, step.SQL)
		}
		return
	}

	db, err := sqlx.Connect("postgres", os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runner.Run(context.Background(), db); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema at version %s\n", runner.Version())
}
