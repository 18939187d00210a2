// Command gendata writes the deterministic synthetic fixtures the service
// seeds itself with: raw outage records as the collector would publish them,
// and the scored EJ county table. Events are run through the real domain
// transform so the printed stats match what the service will hold.
//
// Usage:
//
//	go run ./cmd/gendata \
//	  -seed 42 -n 10000 \
//	  -outage-out data/mock/outage_records.json \
//	  -ej-out data/mock/ej_table.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seed := flag.Uint64("seed", 42, "random seed for both generators")
	n := flag.Int("n", 10000, "number of outage records to generate")
	outageOut := flag.String("outage-out", "", "output path for raw outage records JSON")
	ejOut := flag.String("ej-out", "", "output path for the EJ table JSON")
	flag.Parse()

	if *outageOut == "" || *ejOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -outage-out, -ej-out")
	}
	if *n < 0 {
		return fmt.Errorf("-n must be non-negative, got %d", *n)
	}

	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	records := domain.GenerateOutageRecords(*seed, *n)
	ej := domain.EJTable(domain.GenerateEJIndicators(*seed))
	if err := ej.Validate(); err != nil {
		return fmt.Errorf("generated EJ table: %w", err)
	}

	events, err := transformAll(records)
	if err != nil {
		return err
	}

	if err := writeJSON(*outageOut, records); err != nil {
		return fmt.Errorf("writing outage records: %w", err)
	}
	log.Printf("wrote %d outage records: %s", len(records), *outageOut)

	if err := writeJSON(*ejOut, ej); err != nil {
		return fmt.Errorf("writing EJ table: %w", err)
	}
	log.Printf("wrote %d EJ counties: %s", ej.Len(), *ejOut)

	printStats(events, ej)
	return nil
}

func transformAll(records []domain.RawOutageRecord) ([]domain.OutageEvent, error) {
	events := make([]domain.OutageEvent, 0, len(records))
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record %d: %w", i, err)
		}
		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: raw})
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		events = append(events, domain.EnrichOutageEvent(parsed))
	}
	return events, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func printStats(events []domain.OutageEvent, ej domain.Table) {
	causes := map[string]int{}
	seasons := map[string]int{}
	counties := map[string]int{}
	var doe int
	for i := range events {
		e := &events[i]
		causes[e.Cause]++
		seasons[e.Season]++
		counties[e.County]++
		if e.MeetsDOE {
			doe++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Events: %d (DOE threshold: %d)\n", len(events), doe)
	fmt.Printf("By cause:")
	for _, c := range sortedCounts(causes) {
		fmt.Printf(" %s=%d", c.key, c.count)
	}
	fmt.Println()
	fmt.Printf("By season:")
	for _, s := range sortedCounts(seasons) {
		fmt.Printf(" %s=%d", s.key, s.count)
	}
	fmt.Println()

	top := sortedCounts(counties)
	fmt.Printf("Counties with events: %d\n", len(top))
	fmt.Println("Top counties:")
	for _, c := range top[:min(5, len(top))] {
		fmt.Printf("  %s=%d\n", c.key, c.count)
	}

	burdened := ej.SortedBy(domain.ColCompositeEJ, true)
	fmt.Printf("\nEJ counties: %d, mean composite: %.3f\n", ej.Len(), ej.Mean(domain.ColCompositeEJ))
	for i := 0; i < min(5, burdened.Len()); i++ {
		fmt.Printf("  %s=%.3f\n", burdened.KeyOf(i), burdened.Rows[i].Num(domain.ColCompositeEJ))
	}
}
