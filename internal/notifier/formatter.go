package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PriceProphet/internal/model"
	"PriceProphet/internal/pipeline"
	"PriceProphet/internal/recorder"
)

// Formatter renders forecasts for Telegram (HTML) or a terminal (plain).
type Formatter struct {
	HTML bool
}

var (
	HTML  = Formatter{HTML: true}
	Plain = Formatter{}
)

func (f Formatter) bold(s string) string {
	if f.HTML {
		return "<b>" + s + "</b>"
	}
	return s
}

func (f Formatter) esc(s string) string {
	if f.HTML {
		return html.EscapeString(s)
	}
	return s
}

func (f Formatter) pre(s string) string {
	if f.HTML {
		return "<pre>" + s + "</pre>"
	}
	return s
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func signedPct(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

func trendIcon(t model.Trend) string {
	if t == model.TrendBullish {
		return "📈"
	}
	return "📉"
}

// FormatForecast renders the summary and forecast table for one result.
// ind may be nil.
func (f Formatter) FormatForecast(res *model.ForecastResult, ind *model.Indicators) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s | %s\n\n", trendIcon(res.Trend), f.bold(f.esc(res.Symbol)), res.GeneratedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Current Price: %s\n", price(res.CurrentPrice)))
	b.WriteString(fmt.Sprintf("%d-day Trend: %s\n", len(res.Forecast), res.Trend))
	b.WriteString(fmt.Sprintf("Confidence: %s%%\n", decimal.NewFromFloat(res.Confidence).StringFixed(1)))
	b.WriteString(fmt.Sprintf("Expected Change: %s\n\n", signedPct(res.PriceChangePct)))

	var t strings.Builder
	t.WriteString(fmt.Sprintf("%-10s %10s %10s %10s\n", "date", "yhat", "lower", "upper"))
	for _, p := range res.Forecast {
		t.WriteString(fmt.Sprintf("%-10s %10s %10s %10s\n",
			p.Time.Format("2006-01-02"), price(p.Estimate), price(p.Lower), price(p.Upper)))
	}
	b.WriteString(f.pre(strings.TrimRight(t.String(), "\n")))
	b.WriteString("\n")

	if ind != nil {
		b.WriteString("\n")
		b.WriteString(f.FormatIndicators(res.CurrentPrice, ind))
	}
	return b.String()
}

// FormatIndicators renders the moving averages, RSI and 52-week range.
func (f Formatter) FormatIndicators(current float64, ind *model.Indicators) string {
	var b strings.Builder
	b.WriteString(f.bold("Indicators") + "\n")
	ma200Dev := 0.0
	if ind.MA200 > 0 {
		ma200Dev = (current - ind.MA200) / ind.MA200 * 100
	}
	b.WriteString(fmt.Sprintf("MA50: %s | MA200: %s (%s)\n", price(ind.MA50), price(ind.MA200), signedPct(ma200Dev)))
	b.WriteString(fmt.Sprintf("RSI14: %.0f\n", ind.RSI14))
	b.WriteString(fmt.Sprintf("52w: %s - %s (position %.0f%%)\n", price(ind.Low52w), price(ind.High52w), ind.Position52w*100))
	return b.String()
}

// FormatFailure renders a diagnostic naming the symbol and the failed stage.
func (f Formatter) FormatFailure(symbol string, stage model.Stage, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("❌ %s: forecast failed at %s stage: %s", f.bold(f.esc(symbol)), stage, f.esc(msg))
}

// FormatOutcome renders a success or failure for one pipeline outcome.
func (f Formatter) FormatOutcome(o pipeline.Outcome) string {
	if o.OK() {
		return f.FormatForecast(o.Result, o.Indicators)
	}
	return f.FormatFailure(o.Symbol, o.Stage, o.Err)
}

// FormatBatchReport renders a compact one-line-per-symbol report.
func (f Formatter) FormatBatchReport(outcomes []pipeline.Outcome, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔮 %s | %s\n\n", f.bold("PriceProphet batch"), now.Format("2006-01-02")))

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
			b.WriteString(fmt.Sprintf("⚠️ %s: no forecast (%s)\n", f.esc(o.Symbol), o.Stage))
			continue
		}
		r := o.Result
		b.WriteString(fmt.Sprintf("%s %s %s → %s (%s, conf %s%%)\n",
			trendIcon(r.Trend), f.esc(o.Symbol), price(r.CurrentPrice), price(r.Final().Estimate),
			signedPct(r.PriceChangePct), decimal.NewFromFloat(r.Confidence).StringFixed(0)))
	}
	b.WriteString(fmt.Sprintf("\n%d/%d forecasts succeeded", len(outcomes)-failed, len(outcomes)))
	return b.String()
}

// FormatHistory renders stored runs for one symbol, newest first.
func (f Formatter) FormatHistory(symbol string, runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return fmt.Sprintf("No stored forecasts for %s", f.esc(symbol))
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 %s\n\n", f.bold("History "+f.esc(symbol))))
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s %s %s → %s (%s)\n",
			r.GeneratedAt.Format("2006-01-02"), r.Trend, price(r.CurrentPrice),
			price(r.FinalEstimate), signedPct(r.PriceChangePct)))
	}
	return b.String()
}
