// Command simulate drives the routing engine from the terminal against an
// in-memory store, so scoring and tier transitions can be exercised without
// Redis or a webhook provider.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	appconfig "github.com/palinopr/leadrouter/internal/config"
	"github.com/palinopr/leadrouter/internal/dedup"
	"github.com/palinopr/leadrouter/internal/engine"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/store"
	"github.com/palinopr/leadrouter/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	tuning, err := appconfig.LoadTuning(cfg.TuningFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tuning: %v\n", err)
		os.Exit(1)
	}
	machine, err := routing.NewMachine(tuning.Routing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("error") // keep the terminal readable
	eng, err := engine.New(
		store.NewMemoryStore(),
		dedup.NewMemoryGate(cfg.DedupWindow),
		machine,
		engine.WithScoringConfig(tuning.Scoring),
		engine.WithMergeSettings(tuning.Merge),
		engine.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	contactID := "sim-contact"
	if len(os.Args) > 1 {
		contactID = os.Args[1]
	}

	fmt.Println("leadrouter simulator")
	fmt.Printf("contact: %s (empty line or /quit to exit)\n\n", contactID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text == "/quit" {
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		outcome, err := eng.HandleInbound(ctx, engine.InboundMessage{
			ContactID: contactID,
			Text:      text,
			Timestamp: time.Now().UTC(),
		})
		cancel()
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			continue
		}

		fmt.Printf("  [%s score=%d", outcome.Tier, outcome.Score)
		if len(outcome.MissingMandatory) > 0 {
			fmt.Printf(" missing=%s", strings.Join(outcome.MissingMandatory, ","))
		}
		if outcome.Degraded {
			fmt.Print(" degraded")
		}
		fmt.Println("]")
		fmt.Printf("  bot: %s\n\n", outcome.Reply.Text)
	}

	fmt.Println("\nbye")
}
