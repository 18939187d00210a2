// Package query answers free-text questions about a county Record Table.
//
// A Dispatcher classifies the question into one Intent by walking an ordered
// list of rules; the first rule whose trigger matches and whose handler
// accepts the question produces the Result. A handler may decline (a missing
// column, no numeric literal, too few counties named) and the walk continues.
// When nothing accepts, the full table comes back with an explanation quoting
// the question. Dispatching never fails, never mutates the input table, and
// performs no I/O, so one table may be queried concurrently.
package query

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// Intent names what a query was understood to ask for.
type Intent string

const (
	RankTop      Intent = "rank_top"
	RankBottom   Intent = "rank_bottom"
	GreaterThan  Intent = "greater_than"
	LessThan     Intent = "less_than"
	Between      Intent = "between"
	RegionFilter Intent = "region_filter"
	SectorFilter Intent = "sector_filter"
	Summary      Intent = "summary"
	Average      Intent = "average"
	Total        Intent = "total"
	Compare      Intent = "compare"
	CountyLookup Intent = "county_lookup"
	Unmatched    Intent = "unmatched"
)

// defaultLimit is N for top/bottom queries that name no usable count.
const defaultLimit = 10

var (
	averageWords = []string{"average", "mean", "avg"}
	totalWords   = []string{"total", "sum"}
	compareWords = []string{"compare", "vs", "versus"}
)

// Result is the answer to one query. Table holds rows of the input table,
// except for Summary where it is a metric/value aggregate. Value is set for
// Average and Total.
type Result struct {
	Intent      Intent       `json:"intent"`
	Column      string       `json:"column,omitempty"`
	Value       *float64     `json:"value,omitempty"`
	Table       domain.Table `json:"table"`
	Explanation string       `json:"explanation"`
}

// request is the per-call state handed to every rule.
type request struct {
	q     text
	table domain.Table
	vocab Vocabulary
}

type rule struct {
	intent  Intent
	matches func(*request) bool
	handle  func(*request) (Result, bool)
}

// Dispatcher routes queries for one dataset vocabulary. It holds no mutable
// state and is safe for concurrent use.
type Dispatcher struct {
	vocab Vocabulary
	rules []rule
}

// New returns a Dispatcher for the given vocabulary.
func New(vocab Vocabulary) *Dispatcher {
	return &Dispatcher{
		vocab: vocab,
		rules: []rule{
			{RankTop, triggeredBy("top"), rankTop},
			{RankBottom, triggeredBy("bottom", "lowest", "least"), rankBottom},
			{GreaterThan, comparison([]string{"more than", "greater than", "over", "above"}, ">"), greaterThan},
			{LessThan, comparison([]string{"less than", "fewer than", "under", "below"}, "<"), lessThan},
			{Between, triggeredBy("between"), between},
			{RegionFilter, always, regionFilter},
			{SectorFilter, always, sectorFilter},
			{Summary, triggeredBy("summary", "stats", "statistics", "overview"), summary},
			{Average, triggeredBy(averageWords...), average},
			{Total, triggeredBy(totalWords...), total},
			{Compare, triggeredBy(compareWords...), compare},
			{CountyLookup, always, lookup},
		},
	}
}

// Vocabulary returns the vocabulary the dispatcher was built with.
func (d *Dispatcher) Vocabulary() Vocabulary { return d.vocab }

// Dispatch answers query against table.
func (d *Dispatcher) Dispatch(query string, table domain.Table) Result {
	req := &request{q: parse(query), table: table, vocab: d.vocab}
	for _, r := range d.rules {
		if !r.matches(req) {
			continue
		}
		if res, ok := r.handle(req); ok {
			res.Intent = r.intent
			return res
		}
	}
	return Result{
		Intent:      Unmatched,
		Table:       table,
		Explanation: fmt.Sprintf("No specific question recognized in \"%s\"; showing all %d counties", req.q.raw, table.Len()),
	}
}

func always(*request) bool { return true }

func triggeredBy(words ...string) func(*request) bool {
	return func(r *request) bool { return r.q.hasWord(words...) }
}

func comparison(words []string, symbol string) func(*request) bool {
	return func(r *request) bool { return r.q.hasWord(words...) || r.q.hasSymbol(symbol) }
}

// --- ranking ---

func rankTop(r *request) (Result, bool) {
	return rank(r, true, "top")
}

func rankBottom(r *request) (Result, bool) {
	return rank(r, false, "bottom", "lowest", "least")
}

func rank(r *request, descending bool, triggers ...string) (Result, bool) {
	col := r.vocab.column(r.q, r.vocab.Rank)
	if !r.table.HasColumn(col) {
		return Result{}, false
	}
	n, ok := r.q.literalAfter(triggers...)
	if !ok || n <= 0 {
		n = defaultLimit
	}
	sorted := r.table.SortedBy(col, descending)
	if n < sorted.Len() {
		sorted = sorted.Select(indexes(n))
	}

	word := "Top"
	if !descending {
		word = "Bottom"
	}
	return Result{
		Column:      col,
		Table:       sorted,
		Explanation: fmt.Sprintf("%s %d counties by %s", word, sorted.Len(), label(col)),
	}, true
}

func indexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// --- thresholds ---

func greaterThan(r *request) (Result, bool) {
	return threshold(r, r.vocab.Greater, "greater than", func(v, k float64) bool { return v > k })
}

func lessThan(r *request) (Result, bool) {
	return threshold(r, r.vocab.Less, "less than", func(v, k float64) bool { return v < k })
}

func threshold(r *request, keywords []Keyword, phrase string, keep func(v, k float64) bool) (Result, bool) {
	lits := r.q.literals()
	if len(lits) == 0 {
		return Result{}, false
	}
	col := r.vocab.column(r.q, keywords)
	if !r.table.HasColumn(col) {
		return Result{}, false
	}
	k := float64(lits[0])
	out := r.table.Filter(func(row domain.Row) bool { return keep(row.Num(col), k) })
	return Result{
		Column:      col,
		Table:       out,
		Explanation: fmt.Sprintf("%d counties with %s %s %d", out.Len(), label(col), phrase, lits[0]),
	}, true
}

func between(r *request) (Result, bool) {
	lits := r.q.literals()
	if len(lits) < 2 {
		return Result{}, false
	}
	col := r.vocab.column(r.q, r.vocab.Greater)
	if !r.table.HasColumn(col) {
		return Result{}, false
	}
	lo, hi := lits[0], lits[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	out := r.table.Filter(func(row domain.Row) bool {
		v := row.Num(col)
		return v >= float64(lo) && v <= float64(hi)
	})
	return Result{
		Column:      col,
		Table:       out,
		Explanation: fmt.Sprintf("%d counties with %s between %d and %d", out.Len(), label(col), lo, hi),
	}, true
}

// --- filters ---

func regionFilter(r *request) (Result, bool) {
	for _, reg := range regions {
		for _, alias := range reg.aliases {
			if !strings.Contains(r.q.lower, alias) {
				continue
			}
			out := r.table.Filter(func(row domain.Row) bool { return inRegion(r.table, row, reg.label) })
			return Result{
				Column:      domain.ColRegion,
				Table:       out,
				Explanation: fmt.Sprintf("%d counties in %s", out.Len(), reg.label),
			}, true
		}
	}
	return Result{}, false
}

// inRegion uses the table's region column when it has one and the county
// reference otherwise.
func inRegion(t domain.Table, row domain.Row, region string) bool {
	if t.HasColumn(domain.ColRegion) {
		return row.Str(domain.ColRegion) == region
	}
	c, ok := domain.LookupCounty(row.Str(t.Key))
	return ok && c.Region == region
}

// sectorFilter declines for aggregate and compare questions, whose column
// words ("fire", "industrial") would otherwise read as a sector.
func sectorFilter(r *request) (Result, bool) {
	if r.q.hasWord(averageWords...) || r.q.hasWord(totalWords...) || r.q.hasWord(compareWords...) {
		return Result{}, false
	}
	for _, s := range r.vocab.Sectors {
		if !r.q.mentionsAny(s.Terms) {
			continue
		}
		if !r.table.HasColumn(s.Column) {
			return Result{}, false
		}
		out := r.table.Filter(func(row domain.Row) bool { return s.Op.holds(row.Num(s.Column), s.Threshold) })
		return Result{
			Column:      s.Column,
			Table:       out,
			Explanation: fmt.Sprintf("%s: %d", s.describe(), out.Len()),
		}, true
	}
	return Result{}, false
}

// --- aggregates ---

func summary(r *request) (Result, bool) {
	if r.vocab.Summary == nil {
		return Result{}, false
	}
	return Result{
		Table:       r.vocab.Summary(r.table),
		Explanation: fmt.Sprintf("Summary statistics across %d counties", r.table.Len()),
	}, true
}

func average(r *request) (Result, bool) {
	return aggregate(r, "Average", r.table.Mean)
}

func total(r *request) (Result, bool) {
	return aggregate(r, "Total", r.table.Sum)
}

func aggregate(r *request, word string, fn func(string) float64) (Result, bool) {
	col := r.vocab.column(r.q, r.vocab.Rank)
	if !r.table.HasColumn(col) {
		return Result{}, false
	}
	v := fn(col)
	return Result{
		Column:      col,
		Value:       &v,
		Table:       r.table,
		Explanation: fmt.Sprintf("%s %s across %d counties: %s", word, label(col), r.table.Len(), formatValue(v)),
	}, true
}

// --- entities ---

func compare(r *request) (Result, bool) {
	var idx []int
	for i := range r.table.Rows {
		key := strings.ToLower(r.table.KeyOf(i))
		if key != "" && strings.Contains(r.q.lower, key) {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return Result{}, false
	}
	out := r.table.Select(idx)
	names := make([]string, out.Len())
	for i := range names {
		names[i] = out.KeyOf(i)
	}
	return Result{
		Table:       out,
		Explanation: "Comparing " + strings.Join(names, ", "),
	}, true
}

func lookup(r *request) (Result, bool) {
	i, ok := findKey(r.q, r.table)
	if !ok {
		return Result{}, false
	}
	return Result{
		Table:       r.table.Select([]int{i}),
		Explanation: "Details for " + r.table.KeyOf(i),
	}, true
}

// findKey resolves a query to one row: an exact key match first, then the
// longest key contained in the query, then a key containing any query word
// longer than three characters.
func findKey(q text, t domain.Table) (int, bool) {
	if i, ok := t.Find(q.raw); ok && q.raw != "" {
		return i, true
	}

	best, bestLen := -1, 0
	for i := range t.Rows {
		key := strings.ToLower(t.KeyOf(i))
		if key != "" && len(key) > bestLen && strings.Contains(q.lower, key) {
			best, bestLen = i, len(key)
		}
	}
	if best >= 0 {
		return best, true
	}

	for _, w := range q.words {
		if len(w) <= 3 {
			continue
		}
		for i := range t.Rows {
			if strings.Contains(strings.ToLower(t.KeyOf(i)), w) {
				return i, true
			}
		}
	}
	return -1, false
}

func label(col string) string {
	return strings.ReplaceAll(col, "_", " ")
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
