// cmd/tools/index-admin/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"taas-es-processor/internal/common/config"
	"taas-es-processor/internal/common/database"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/pkg/indices"
)

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	viewCmd := flag.NewFlagSet("view", flag.ExitOnError)

	deleteYes := deleteCmd.Bool("yes", false, "Confirm deletion of every index")
	viewSize := viewCmd.Int("size", 100, "Maximum number of documents to print")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	defs, err := indices.Definitions(cfg.Indices)
	if err != nil {
		fmt.Printf("Error loading mappings: %v\n", err)
		os.Exit(1)
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		fmt.Printf("Error connecting to Elasticsearch: %v\n", err)
		os.Exit(1)
	}
	admin := indices.NewAdmin(es.Client, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		if err := admin.Create(ctx, defs); err != nil {
			fmt.Printf("Error creating indices: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Indices created.")

	case "delete":
		deleteCmd.Parse(os.Args[2:])
		if !*deleteYes {
			fmt.Println("Error: delete drops every index and its data; pass -yes to confirm.")
			os.Exit(1)
		}
		if err := admin.Delete(ctx, defs); err != nil {
			fmt.Printf("Error deleting indices: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Indices deleted.")

	case "view":
		viewCmd.Parse(os.Args[2:])
		if viewCmd.NArg() != 1 {
			fmt.Println("Error: you must specify a model name.")
			viewCmd.Usage()
			os.Exit(1)
		}
		def, err := indices.Lookup(defs, viewCmd.Arg(0))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		docs, err := admin.Dump(ctx, def.Index, *viewSize)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", def.Index, err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(out))

	case "help":
		fallthrough
	default:
		help()
	}
}

func help() {
	fmt.Println("Usage: index-admin <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  create               Create every index with its mapping")
	fmt.Println("  delete -yes          Delete every index")
	fmt.Println("  view [-size N] MODEL Print documents of one model")
	fmt.Println("")
	fmt.Printf("Models: %v\n", indices.Models())
}
