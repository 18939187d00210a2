// Command validate checks fixtures written by gendata: every raw outage
// record parses into a known county, the fixtures match what the generators
// produce for the same seed, the EJ table scores stay in range, and the two
// sources merge cleanly.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -seed 42 \
//	  -outage-json data/mock/outage_records.json \
//	  -ej-json data/mock/ej_table.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps per-phase error detail so a bad fixture stays readable.
const maxReported = 25

func main() {
	seed := flag.Uint64("seed", 42, "seed the fixtures were generated with")
	outageJSON := flag.String("outage-json", "", "path to raw outage records JSON")
	ejJSON := flag.String("ej-json", "", "path to EJ table JSON")
	flag.Parse()

	if *outageJSON == "" || *ejJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*seed, *outageJSON, *ejJSON))
}

func run(seed uint64, outagePath, ejPath string) int {
	fmt.Println("=== Outage Equity Fixture Validation ===")
	fmt.Println()

	records, err := loadJSON[[]domain.RawOutageRecord](outagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load outage JSON: %v\n", err)
		return 1
	}
	ej, err := loadJSON[domain.Table](ejPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load EJ JSON: %v\n", err)
		return 1
	}

	events, recordPhase := validateRecords(records)
	phases := []*phase{
		recordPhase,
		validateReproducible(seed, records, ej),
		validateEJTable(ej),
		validateMerge(events, ej),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d outage, %d EJ counties\n", len(records), ej.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

// ── Phase 1: Record integrity ──

var knownCauses = map[string]bool{
	domain.CauseWeather:    true,
	domain.CauseEquipment:  true,
	domain.CausePSPS:       true,
	domain.CauseVegetation: true,
	domain.CauseOther:      true,
}

func validateRecords(records []domain.RawOutageRecord) ([]domain.OutageEvent, *phase) {
	p := &phase{name: "Phase 1: Record Integrity"}
	events := make([]domain.OutageEvent, 0, len(records))
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			p.errorf("record %d: marshal: %v", i, err)
			continue
		}
		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: raw})
		if err != nil {
			p.errorf("record %d: %v", i, err)
			continue
		}
		e := domain.EnrichOutageEvent(parsed)
		events = append(events, e)

		if rec.EventID == "" {
			p.errorf("record %d: missing event_id", i)
		} else if prev, dup := seen[rec.EventID]; dup {
			p.errorf("record %d: event_id %q repeats record %d", i, rec.EventID, prev)
		} else {
			seen[rec.EventID] = i
		}
		if _, ok := domain.LookupCounty(e.County); !ok {
			p.errorf("record %d: county %q not in reference table", i, rec.County)
		}
		if e.State != domain.StateCA {
			p.errorf("record %d: state %q, expected %s", i, e.State, domain.StateCA)
		}
		if !knownCauses[e.Cause] {
			p.errorf("record %d: cause %q normalized to %q", i, rec.Cause, e.Cause)
		}
		if e.StartTime.IsZero() {
			p.errorf("record %d: start_time %q did not parse", i, rec.StartTime)
		}
		if e.DurationHours <= 0 {
			p.errorf("record %d: duration %q is not positive", i, rec.Duration)
		}
		if e.MaxCustomers <= 0 {
			p.errorf("record %d: max_customers %q is not positive", i, rec.MaxCustomers)
		}
	}
	return events, p
}

// ── Phase 2: Reproducibility ──

func validateReproducible(seed uint64, records []domain.RawOutageRecord, ej domain.Table) *phase {
	p := &phase{name: "Phase 2: Reproducible From Seed"}

	want := domain.GenerateOutageRecords(seed, len(records))
	if diff := cmp.Diff(want, records); diff != "" {
		p.errorf("outage records differ from seed %d (-generated +fixture):\n%s", seed, diff)
	}

	wantEJ := domain.EJTable(domain.GenerateEJIndicators(seed))
	if diff := cmp.Diff(wantEJ, ej); diff != "" {
		p.errorf("EJ table differs from seed %d (-generated +fixture):\n%s", seed, diff)
	}
	return p
}

// ── Phase 3: EJ table ──

type scoreRange struct {
	col    string
	lo, hi float64
}

var ejRanges = []scoreRange{
	{domain.ColCES, 0, 100},
	{domain.ColSVI, 0, 1},
	{domain.ColHealthBurden, 0, 100},
	{domain.ColFireRisk, 0, 100},
	{domain.ColCompositeEJ, 0, 1},
}

func validateEJTable(ej domain.Table) *phase {
	p := &phase{name: "Phase 3: EJ Table Scores"}

	if err := ej.Validate(); err != nil {
		p.errorf("%v", err)
	}
	for _, c := range domain.Counties() {
		if _, ok := ej.Find(c.Name); !ok {
			p.errorf("county %s missing from EJ table", c.Name)
		}
	}
	for i, row := range ej.Rows {
		for _, r := range ejRanges {
			if v := row.Num(r.col); v < r.lo || v > r.hi {
				p.errorf("%s: %s=%g outside [%g, %g]", ej.KeyOf(i), r.col, v, r.lo, r.hi)
			}
		}
		if row.Num(domain.ColPopulation) <= 0 {
			p.errorf("%s: population is not positive", ej.KeyOf(i))
		}
	}
	return p
}

// ── Phase 4: Merge ──

func validateMerge(events []domain.OutageEvent, ej domain.Table) *phase {
	p := &phase{name: "Phase 4: Outage/EJ Merge"}

	agg := domain.NewCountyAggregator()
	for _, e := range events {
		agg.Add(e)
	}
	outage := agg.Table()
	if err := outage.Validate(); err != nil {
		p.errorf("outage table: %v", err)
	}
	if got := outage.Sum(domain.ColEventCount); int(got) != len(events) {
		p.errorf("outage table counts %d events, expected %d", int(got), len(events))
	}
	for i := range outage.Rows {
		if _, ok := ej.Find(outage.KeyOf(i)); !ok {
			p.errorf("outage county %s has no EJ row", outage.KeyOf(i))
		}
	}

	merged := domain.Merge(ej, outage)
	if err := merged.Validate(); err != nil {
		p.errorf("merged table: %v", err)
	}
	if merged.Len() != ej.Len() {
		p.errorf("merged table has %d counties, EJ table has %d", merged.Len(), ej.Len())
	}
	c := domain.Correlate(merged)
	if len(c.MostVulnerable) == 0 || len(c.MostOutages) == 0 {
		p.errorf("correlation produced no ranked counties")
	}
	return p
}
