// Command query answers one free-text question against the county tables
// without starting the service. Tables are built from the same synthetic
// generators the service seeds with, or from gendata fixtures.
//
// Usage:
//
//	go run ./cmd/query -dataset outage top 5 counties by customers
//	go run ./cmd/query -dataset ej -ej-json data/mock/ej_table.json counties with high poverty
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/outage-equity-service/internal/analysis"
	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
	"github.com/couchcryptid/outage-equity-service/internal/pipeline"
	"github.com/couchcryptid/outage-equity-service/internal/query"
	"github.com/couchcryptid/outage-equity-service/internal/store"
)

type options struct {
	dataset    string
	seed       uint64
	n          int
	outageJSON string
	ejJSON     string
	asJSON     bool
	verbose    bool
}

func main() {
	var o options
	flag.StringVar(&o.dataset, "dataset", analysis.DatasetOutage, "dataset to query: outage, ej, or merged")
	flag.Uint64Var(&o.seed, "seed", 42, "seed for generated tables")
	flag.IntVar(&o.n, "n", 10000, "number of generated outage records")
	flag.StringVar(&o.outageJSON, "outage-json", "", "raw outage records JSON to load instead of generating")
	flag.StringVar(&o.ejJSON, "ej-json", "", "EJ table JSON to load instead of generating")
	flag.BoolVar(&o.asJSON, "json", false, "print the result as JSON")
	flag.BoolVar(&o.verbose, "v", false, "log to stderr")
	flag.Parse()

	q := strings.Join(flag.Args(), " ")
	if err := run(context.Background(), o, q, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, q string, out io.Writer) error {
	var handler slog.Handler = slog.DiscardHandler
	if o.verbose {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	metrics := observability.NewMetrics()

	st := store.New(logger, metrics)
	if err := loadTables(ctx, o, st, logger); err != nil {
		return err
	}

	svc := analysis.New(st, nil, logger, metrics)
	res, err := svc.Query(ctx, o.dataset, q)
	if err != nil {
		return err
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResult(out, res)
}

func loadTables(ctx context.Context, o options, st *store.Store, logger *slog.Logger) error {
	ej := domain.EJTable(domain.GenerateEJIndicators(o.seed))
	if o.ejJSON != "" {
		loaded, err := readJSON[domain.Table](o.ejJSON)
		if err != nil {
			return fmt.Errorf("load EJ table: %w", err)
		}
		ej = loaded
	}
	if err := st.SetEJ(ej); err != nil {
		return err
	}

	var records []domain.RawOutageRecord
	if o.outageJSON != "" {
		loaded, err := readJSON[[]domain.RawOutageRecord](o.outageJSON)
		if err != nil {
			return fmt.Errorf("load outage records: %w", err)
		}
		records = loaded
	} else {
		records = domain.GenerateOutageRecords(o.seed, o.n)
	}

	_, err := pipeline.Seed(ctx, records, pipeline.NewTransformer(nil, logger), st, 0)
	return err
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

func printResult(out io.Writer, res query.Result) error {
	fmt.Fprintf(out, "[%s] %s\n\n", res.Intent, res.Explanation)
	if res.Table.Len() == 0 {
		fmt.Fprintln(out, "(no rows)")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Table.Columns, "\t"))
	for _, row := range res.Table.Rows {
		cells := make([]string, len(res.Table.Columns))
		for i, col := range res.Table.Columns {
			if s, ok := row.Text[col]; ok {
				cells[i] = s
			} else {
				cells[i] = strconv.FormatFloat(row.Num(col), 'f', -1, 64)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
