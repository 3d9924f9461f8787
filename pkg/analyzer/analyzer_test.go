package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlehtola/docmind/internal/models"
)

func monthlyRevenue() models.Table {
	return models.Table{
		Sheet:   "Sales",
		Headers: []string{"Month", "Revenue"},
		Rows: [][]string{
			{"Jan", "100"},
			{"Feb", "120"},
			{"Mar", "90"},
		},
	}
}

func ofType(signals []models.AnalyticSignal, typ models.SignalType) []models.AnalyticSignal {
	var out []models.AnalyticSignal
	for _, s := range signals {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

func TestAnalyzeMonthlyRevenue(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	signals := a.Analyze(monthlyRevenue())
	require.Len(t, signals, 3)

	growth := ofType(signals, models.SignalGrowthRate)
	require.Len(t, growth, 2)

	assert.Equal(t, "Revenue", growth[0].MetricName)
	assert.InDelta(t, 20.0, growth[0].Value, 1e-9)
	assert.Equal(t, "Jan to Feb", growth[0].Support)
	assert.Contains(t, growth[0].Narrative, "rose 20.0%")
	assert.Contains(t, growth[0].Narrative, "100 to 120")

	assert.InDelta(t, -25.0, growth[1].Value, 1e-9)
	assert.Equal(t, "Feb to Mar", growth[1].Support)
	assert.Contains(t, growth[1].Narrative, "fell 25.0%")

	trend := ofType(signals, models.SignalTrend)
	require.Len(t, trend, 1)
	assert.Contains(t, trend[0].Narrative, "falling")
	assert.Equal(t, "Jan to Mar", trend[0].Support)
	assert.Negative(t, trend[0].Value)
}

func TestAnalyzeNonNumericTable(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	signals := a.Analyze(models.Table{
		Sheet:   "People",
		Headers: []string{"Name", "City"},
		Rows: [][]string{
			{"Anna", "Helsinki"},
			{"Bo", "Oslo"},
			{"Cleo", "Tallinn"},
		},
	})
	assert.Empty(t, signals)
}

func TestAnalyzeConstantColumn(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	signals := a.Analyze(models.Table{
		Sheet:   "Flat",
		Headers: []string{"Month", "Units"},
		Rows: [][]string{
			{"Jan", "5"}, {"Feb", "5"}, {"Mar", "5"}, {"Apr", "5"}, {"May", "5"},
		},
	})

	assert.Empty(t, ofType(signals, models.SignalAnomaly))

	trend := ofType(signals, models.SignalTrend)
	require.Len(t, trend, 1)
	assert.Contains(t, trend[0].Narrative, "stable")

	for _, g := range ofType(signals, models.SignalGrowthRate) {
		assert.Zero(t, g.Value)
	}
}

func TestAnalyzeTooFewRowsForTrend(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	signals := a.Analyze(models.Table{
		Sheet:   "Short",
		Headers: []string{"Month", "Revenue"},
		Rows:    [][]string{{"Jan", "100"}, {"Feb", "110"}},
	})

	assert.Empty(t, ofType(signals, models.SignalTrend))
	require.Len(t, ofType(signals, models.SignalGrowthRate), 1)
}

func TestAnalyzeNoPeriodAxisSkipsGrowth(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	signals := a.Analyze(models.Table{
		Sheet:   "Regions",
		Headers: []string{"Region", "Revenue"},
		Rows: [][]string{
			{"North", "100"}, {"South", "120"}, {"East", "90"},
		},
	})

	assert.Empty(t, ofType(signals, models.SignalGrowthRate))

	trend := ofType(signals, models.SignalTrend)
	require.Len(t, trend, 1)
	assert.Equal(t, "3 rows", trend[0].Support)
}

func TestAnalyzeAnomaly(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	rows := [][]string{
		{"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"100"},
	}
	signals := a.Analyze(models.Table{Sheet: "Spike", Headers: []string{"Units"}, Rows: rows})

	anomalies := ofType(signals, models.SignalAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "Units", anomalies[0].MetricName)
	assert.Equal(t, "row 8", anomalies[0].Support)
	assert.Greater(t, anomalies[0].Value, 2.0)
	assert.Contains(t, anomalies[0].Narrative, "unusual value 100")
}

func TestAnalyzeAnomalyBelowMinSamples(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{AnomalyMinSamples: 10})

	rows := [][]string{
		{"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"10"}, {"100"},
	}
	signals := a.Analyze(models.Table{Sheet: "Spike", Headers: []string{"Units"}, Rows: rows})
	assert.Empty(t, ofType(signals, models.SignalAnomaly))
}

func TestAnalyzeCorrelation(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	table := models.Table{
		Sheet:   "Market",
		Headers: []string{"Price", "Demand", "Supply"},
		Rows: [][]string{
			{"10", "20", "80"},
			{"12", "24", "76"},
			{"15", "30", "70"},
			{"11", "22", "78"},
			{"18", "36", "64"},
			{"13", "26", "74"},
		},
	}

	correlations := ofType(a.Analyze(table), models.SignalCorrelation)
	require.Len(t, correlations, 3)

	byPair := make(map[string]models.AnalyticSignal)
	for _, s := range correlations {
		byPair[s.MetricName] = s
	}

	pd := byPair["Price and Demand"]
	assert.InDelta(t, 1.0, pd.Value, 1e-9)
	assert.Contains(t, pd.Narrative, "strongly positively")

	ps := byPair["Price and Supply"]
	assert.InDelta(t, -1.0, ps.Value, 1e-9)
	assert.Contains(t, ps.Narrative, "strongly negatively")

	// opposite signs, same strength
	assert.InDelta(t, pd.Value, -ps.Value, 1e-9)
}

func TestAnalyzeCorrelationBelowFloor(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{CorrelationFloor: 0.99})

	table := models.Table{
		Sheet:   "Noise",
		Headers: []string{"A", "B"},
		Rows: [][]string{
			{"10", "3"}, {"12", "9"}, {"15", "4"}, {"11", "8"}, {"18", "6"},
		},
	}
	assert.Empty(t, ofType(a.Analyze(table), models.SignalCorrelation))
}

func TestSheetSummary(t *testing.T) {
	a := NewWithConfig(AnalyzerConfig{})

	summary := a.SheetSummary(monthlyRevenue())
	assert.Contains(t, summary, "Sheet Sales has 3 rows and 2 columns: Month, Revenue.")
	assert.Contains(t, summary, "Revenue (revenue): total 310, mean 103.33, range 90 to 120.")
}

func TestFindPeriodAxisByValueShape(t *testing.T) {
	table := models.Table{
		Sheet:   "Untitled",
		Headers: []string{"When", "Revenue"},
		Rows: [][]string{
			{"Jan", "100"}, {"Feb", "120"}, {"Mar", "90"},
		},
	}
	axis := findPeriodAxis(table)
	require.NotNil(t, axis)
	assert.Equal(t, "When", axis.name)
	assert.Equal(t, "Feb", axis.label(1))
}

func TestFindPeriodAxisSequentialIntegers(t *testing.T) {
	table := models.Table{
		Sheet:   "Steps",
		Headers: []string{"Step", "Value"},
		Rows: [][]string{
			{"1", "10"}, {"2", "14"}, {"3", "12"},
		},
	}
	axis := findPeriodAxis(table)
	require.NotNil(t, axis)
	assert.Equal(t, "Step", axis.name)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{"100", 100, true},
		{"-5", -5, true},
		{"3,14", 3.14, true},
		{"1,234", 1234, true},
		{"1,234,567", 1234567, true},
		{"1 234,56", 1234.56, true},
		{"€1,5", 1.5, true},
		{"$1,000", 1000, true},
		{"12.5%", 12.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"Jan", 0, false},
		{"-", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, v, 1e-9)
			}
		})
	}
}
