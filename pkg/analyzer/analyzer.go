package analyzer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vlehtola/docmind/internal/models"
)

type AnalyzerConfig struct {
	AnomalyZScore     float64
	AnomalyMinSamples int
	CorrelationFloor  float64
	TrendMinSamples   int
}

type Analyzer struct {
	config AnalyzerConfig
}

func NewWithConfig(config AnalyzerConfig) Analyzer {
	if config.AnomalyZScore == 0 {
		config.AnomalyZScore = 2.0
	}
	if config.AnomalyMinSamples == 0 {
		config.AnomalyMinSamples = 4
	}
	if config.CorrelationFloor == 0 {
		config.CorrelationFloor = 0.5
	}
	if config.TrendMinSamples == 0 {
		config.TrendMinSamples = 3
	}
	return Analyzer{config: config}
}

// column is one table column with whatever numeric values parsed out of it,
// kept in row order alongside their row indexes.
type column struct {
	index    int
	name     string
	category KPICategory
	values   []float64
	rows     []int
}

// Analyze turns one table into an ordered sequence of analytic signals:
// period-over-period growth for KPI columns, trend direction and anomalies
// for every numeric column, and Pearson correlation for material column
// pairs. Insufficient data for any given signal is a silent skip, never an
// error; an entirely non-numeric table yields zero signals.
func (a *Analyzer) Analyze(table models.Table) []models.AnalyticSignal {
	cols := numericColumns(table)
	axis := findPeriodAxis(table)

	var signals []models.AnalyticSignal
	for _, col := range cols {
		if kpiCategory(col.category) && axis != nil {
			signals = append(signals, a.growthSignals(col, axis)...)
		}
		if s, ok := a.trendSignal(col, axis); ok {
			signals = append(signals, s)
		}
		signals = append(signals, a.anomalySignals(col, axis)...)
	}
	signals = append(signals, a.correlationSignals(cols)...)
	return signals
}

func (a *Analyzer) growthSignals(col column, axis *periodAxis) []models.AnalyticSignal {
	var signals []models.AnalyticSignal
	for k := 1; k < len(col.values); k++ {
		prev, cur := col.values[k-1], col.values[k]
		if prev == 0 {
			continue
		}
		pct := (cur - prev) / math.Abs(prev) * 100

		from := axis.label(col.rows[k-1])
		to := axis.label(col.rows[k])
		verb := "held flat at " + formatNumber(cur)
		if pct > 0 {
			verb = fmt.Sprintf("rose %.1f%%", pct)
		} else if pct < 0 {
			verb = fmt.Sprintf("fell %.1f%%", -pct)
		}

		signals = append(signals, models.AnalyticSignal{
			MetricName: col.name,
			ColumnRef:  col.name,
			Type:       models.SignalGrowthRate,
			Value:      pct,
			Support:    fmt.Sprintf("%s to %s", from, to),
			Narrative: fmt.Sprintf("%s %s from %s to %s (%s to %s).",
				col.name, verb, from, to, formatNumber(prev), formatNumber(cur)),
		})
	}
	return signals
}

func (a *Analyzer) trendSignal(col column, axis *periodAxis) (models.AnalyticSignal, bool) {
	n := len(col.values)
	if n < a.config.TrendMinSamples {
		return models.AnalyticSignal{}, false
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, col.values, nil, false)
	sd := stat.StdDev(col.values, nil)

	direction := "stable"
	if math.Abs(slope) > sd*0.1 {
		if slope > 0 {
			direction = "rising"
		} else {
			direction = "falling"
		}
	}

	first, last := col.values[0], col.values[n-1]
	change := ""
	if first != 0 {
		change = fmt.Sprintf(", %+.1f%% overall", (last-first)/math.Abs(first)*100)
	}

	window := fmt.Sprintf("%d rows", n)
	if axis != nil {
		window = fmt.Sprintf("%s to %s", axis.label(col.rows[0]), axis.label(col.rows[n-1]))
	}

	return models.AnalyticSignal{
		MetricName: col.name,
		ColumnRef:  col.name,
		Type:       models.SignalTrend,
		Value:      slope,
		Support:    window,
		Narrative: fmt.Sprintf("%s shows a %s trend over %s (%s to %s%s).",
			col.name, direction, window, formatNumber(first), formatNumber(last), change),
	}, true
}

func (a *Analyzer) anomalySignals(col column, axis *periodAxis) []models.AnalyticSignal {
	if len(col.values) < a.config.AnomalyMinSamples {
		return nil
	}
	mean := stat.Mean(col.values, nil)
	sd := stat.StdDev(col.values, nil)
	if sd == 0 {
		// constant column, nothing can deviate
		return nil
	}

	var signals []models.AnalyticSignal
	for i, v := range col.values {
		z := math.Abs(v-mean) / sd
		if z <= a.config.AnomalyZScore {
			continue
		}
		where := fmt.Sprintf("row %d", col.rows[i]+1)
		if axis != nil {
			where = axis.label(col.rows[i])
		}
		signals = append(signals, models.AnalyticSignal{
			MetricName: col.name,
			ColumnRef:  col.name,
			Type:       models.SignalAnomaly,
			Value:      z,
			Support:    where,
			Narrative: fmt.Sprintf("%s has an unusual value %s at %s, %.1f standard deviations from its mean of %s.",
				col.name, formatNumber(v), where, z, formatNumber(mean)),
		})
	}
	return signals
}

func (a *Analyzer) correlationSignals(cols []column) []models.AnalyticSignal {
	var signals []models.AnalyticSignal
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			xs, ys := alignColumns(cols[i], cols[j])
			if len(xs) < 4 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) || math.Abs(r) <= a.config.CorrelationFloor {
				continue
			}

			strength := "moderately"
			if math.Abs(r) > 0.8 {
				strength = "strongly"
			}
			direction := "positively"
			if r < 0 {
				direction = "negatively"
			}

			pair := fmt.Sprintf("%s and %s", cols[i].name, cols[j].name)
			signals = append(signals, models.AnalyticSignal{
				MetricName: pair,
				ColumnRef:  pair,
				Type:       models.SignalCorrelation,
				Value:      r,
				Support:    pair,
				Narrative: fmt.Sprintf("%s are %s %s correlated (r=%.2f) across %d rows.",
					pair, strength, direction, r, len(xs)),
			})
		}
	}
	return signals
}

// SheetSummary renders a structural overview of the table with descriptive
// statistics for every KPI-classified column. Ingestion indexes it as an
// analytic-summary passage so structural questions are answerable too.
func (a *Analyzer) SheetSummary(table models.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet %s has %d rows and %d columns: %s.",
		table.Sheet, len(table.Rows), len(table.Headers), strings.Join(table.Headers, ", "))

	for _, col := range numericColumns(table) {
		if !kpiCategory(col.category) {
			continue
		}
		sum := 0.0
		min, max := col.values[0], col.values[0]
		for _, v := range col.values {
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		fmt.Fprintf(&b, " %s (%s): total %s, mean %s, range %s to %s.",
			col.name, col.category, formatNumber(sum),
			formatNumber(stat.Mean(col.values, nil)), formatNumber(min), formatNumber(max))
	}
	return b.String()
}

// numericColumns extracts the columns where at least half the populated
// cells parse as numbers and at least two do.
func numericColumns(table models.Table) []column {
	var cols []column
	for i, header := range table.Headers {
		category := Classify(header)
		if category == CategoryPeriod {
			continue
		}

		col := column{index: i, name: header, category: category}
		populated := 0
		for r, row := range table.Rows {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			populated++
			if v, ok := parseNumber(row[i]); ok {
				col.values = append(col.values, v)
				col.rows = append(col.rows, r)
			}
		}
		if len(col.values) >= 2 && len(col.values)*2 >= populated {
			cols = append(cols, col)
		}
	}
	return cols
}

// alignColumns restricts two columns to the rows where both have a numeric
// value.
func alignColumns(a, b column) ([]float64, []float64) {
	byRow := make(map[int]float64, len(b.values))
	for i, r := range b.rows {
		byRow[r] = b.values[i]
	}
	var xs, ys []float64
	for i, r := range a.rows {
		if v, ok := byRow[r]; ok {
			xs = append(xs, a.values[i])
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// periodAxis is the column that orders the table in time, with one label per
// row.
type periodAxis struct {
	name   string
	labels []string
}

func (p *periodAxis) label(row int) string {
	if row < len(p.labels) && strings.TrimSpace(p.labels[row]) != "" {
		return p.labels[row]
	}
	return fmt.Sprintf("row %d", row+1)
}

var (
	monthRe = regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|tammi|helmi|maalis|huhti|touko|kesä|heinä|elo|syys|loka|marras|joulu)`)
	yearRe  = regexp.MustCompile(`^(19|20)\d{2}$`)
	qtrRe   = regexp.MustCompile(`(?i)^q[1-4]\b`)
)

var dateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006", "2006-01", "01/2006"}

// findPeriodAxis locates the column that orders the sheet in time: by
// header vocabulary first, then by value shape (month names, quarters,
// years, parseable dates, or a strictly sequential integer column). Returns
// nil when the table has no detectable period axis; trend and growth signals
// that need one are then skipped.
func findPeriodAxis(table models.Table) *periodAxis {
	best := -1
	for i, header := range table.Headers {
		if Classify(header) == CategoryPeriod {
			best = i
			break
		}
	}

	if best < 0 {
		for i := range table.Headers {
			if columnLooksPeriodic(table, i) {
				best = i
				break
			}
		}
	}
	if best < 0 {
		return nil
	}

	labels := make([]string, len(table.Rows))
	populated := 0
	for r, row := range table.Rows {
		if best < len(row) {
			labels[r] = strings.TrimSpace(row[best])
			if labels[r] != "" {
				populated++
			}
		}
	}
	if populated < 2 {
		return nil
	}
	return &periodAxis{name: table.Headers[best], labels: labels}
}

func columnLooksPeriodic(table models.Table, i int) bool {
	dateLike := 0
	total := 0
	var seq []float64

	for _, row := range table.Rows {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			continue
		}
		cell := strings.TrimSpace(row[i])
		total++
		if isDateLike(cell) {
			dateLike++
		}
		if v, ok := parseNumber(cell); ok {
			seq = append(seq, v)
		}
	}

	if total < 2 {
		return false
	}
	if dateLike == total {
		return true
	}
	// a strictly increasing integer column reads as a sequence axis
	if len(seq) == total {
		for k := range seq {
			if seq[k] != math.Trunc(seq[k]) {
				return false
			}
			if k > 0 && seq[k] != seq[k-1]+1 {
				return false
			}
		}
		return true
	}
	return false
}

func isDateLike(s string) bool {
	if monthRe.MatchString(s) || yearRe.MatchString(s) || qtrRe.MatchString(s) {
		return true
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// parseNumber handles the cell formats spreadsheets actually contain:
// currency symbols, percent signs, space or comma thousands separators, and
// European decimal commas.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.', r == ',':
			b.WriteRune(r)
		case r == ' ', r == ' ', r == '€', r == '$', r == '£', r == '%':
			// formatting only
		default:
			return 0, false
		}
	}
	t := b.String()
	if t == "" || t == "-" || t == "+" {
		return 0, false
	}

	if strings.Contains(t, ",") {
		switch {
		case strings.Contains(t, "."), strings.Count(t, ",") > 1:
			t = strings.ReplaceAll(t, ",", "")
		case len(t)-strings.Index(t, ",") == 4:
			// single comma followed by three digits: thousands separator
			t = strings.ReplaceAll(t, ",", "")
		default:
			t = strings.ReplaceAll(t, ",", ".")
		}
	}

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
