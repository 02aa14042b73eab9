package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "audit" {
		runAudit(cfg, os.Args[2:])
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// runAudit prints the audit trail of one account:
//
//	pwdself audit -limit 20 alice
func runAudit(cfg app.Config, args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of events")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pwdself audit [-limit N] <username>")
		os.Exit(2)
	}

	if err := app.PrintAuditTrail(context.Background(), cfg, os.Stdout, fs.Arg(0), *limit); err != nil {
		log.Fatalf("audit: %v", err)
	}
}
