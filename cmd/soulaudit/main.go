// Package main starts the soul audit HTTP service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	// Timezone validation must work on hosts without a system tzdata.
	_ "time/tzdata"

	soulauditcmd "github.com/louisbranch/euangelion/internal/cmd/soulaudit"
)

func main() {
	cfg, err := soulauditcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SOULAUDIT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := soulauditcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
