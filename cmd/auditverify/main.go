// auditverify walks the audit log and recomputes the hash chain.
// Exit status is 0 when the chain is intact and 1 when any entry
// fails verification, so it can run from cron or a CI check.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"appliance-fieldops/authcore/internal/audit"
	auditrepo "appliance-fieldops/authcore/internal/audit/repository"
	"appliance-fieldops/authcore/internal/config"
	"appliance-fieldops/authcore/internal/db"
)

func main() {
	var (
		fromSeq = flag.Int64("from", 1, "first sequence number to verify")
		toSeq   = flag.Int64("to", 0, "last sequence number to verify (0 = chain head)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("auditverify: DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer database.Pool.Close()

	chain := audit.NewChain(auditrepo.NewPostgresRepository(database), nil)
	report, err := chain.Verify(ctx, *fromSeq, *toSeq)
	if err != nil {
		log.Fatalf("verify aborted: %v", err)
	}

	if report.OK {
		fmt.Printf("audit chain OK: %d entries verified\n", report.Checked)
		return
	}
	fmt.Printf("audit chain BROKEN after %d entries: %v\n", report.Checked, report.Err())
	os.Exit(1)
}
