package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/xavierca1/prospect-agent/internal/app"
	"github.com/xavierca1/prospect-agent/internal/config"
)

func main() {
	configPath := flag.String("config", "", "run configuration file (default agent.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔄 Listing verified sending domains (%s)...\n", cfg.Delivery.Provider)

	domains, err := app.NewDeliveryProvider(cfg.Delivery).ListVerifiedDomains(ctx)
	if err != nil {
		log.Fatalf("❌ list domains: %v", err)
	}
	if len(domains) == 0 {
		fmt.Println("⚠️ No verified domain: dispatch will refuse to run.")
		return
	}

	for i, d := range domains {
		fmt.Printf("   %d. %s\n", i+1, d)
	}
	fmt.Printf("✅ %d domain(s) usable for dispatch\n", len(domains))
}
