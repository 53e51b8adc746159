package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"PriceProphet/internal/model"
)

// DefaultMOEXBaseURL is the Moscow Exchange ISS host.
const DefaultMOEXBaseURL = "https://iss.moex.com"

const (
	// moexDailyInterval is the ISS candle interval code for one day.
	moexDailyInterval = 24
	// moexPageSize is the most candles ISS returns per request.
	moexPageSize = 500
	moexMaxPages = 20
)

// MOEXFetcher implements Fetcher using the MOEX ISS candles endpoint.
type MOEXFetcher struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
}

// NewMOEXFetcher creates a new MOEX ISS fetcher.
func NewMOEXFetcher(baseURL, proxyURL string, timeout time.Duration) *MOEXFetcher {
	if baseURL == "" {
		baseURL = DefaultMOEXBaseURL
	}
	return &MOEXFetcher{
		BaseURL: baseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		Now:     time.Now,
	}
}

func (f *MOEXFetcher) Name() string { return "moex" }

// moexTable is the ISS columns/data table layout.
type moexTable struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

func (t moexTable) index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// FetchDailyBars pages through ISS candles covering [now-lookback, now].
// ISS returns candles oldest first, so every page is needed to reach the latest bar.
func (f *MOEXFetcher) FetchDailyBars(ctx context.Context, symbol string, lookback time.Duration) ([]model.OHLCV, error) {
	now := f.Now()
	q := url.Values{}
	q.Set("from", now.Add(-lookback).Format("2006-01-02"))
	q.Set("till", now.Format("2006-01-02"))
	q.Set("interval", strconv.Itoa(moexDailyInterval))
	q.Set("iss.meta", "off")
	base := fmt.Sprintf("%s/iss/engines/stock/markets/shares/securities/%s/candles.json",
		f.BaseURL, url.PathEscape(strings.ToUpper(symbol)))

	var bars []model.OHLCV
	rows := 0
	for page := 0; page < moexMaxPages; page++ {
		q.Set("start", strconv.Itoa(rows))
		got, n, err := f.fetchPage(ctx, base+"?"+q.Encode())
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 && len(got) > 0 && !got[len(got)-1].Time.After(bars[len(bars)-1].Time) {
			return nil, fmt.Errorf("moex: page at start=%d did not advance", rows)
		}
		bars = append(bars, got...)
		rows += n
		if n < moexPageSize {
			sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
			return bars, nil
		}
	}
	return nil, fmt.Errorf("moex: more than %d pages for %s", moexMaxPages, symbol)
}

// fetchPage returns the parsed bars and the raw row count of one ISS page.
func (f *MOEXFetcher) fetchPage(ctx context.Context, u string) ([]model.OHLCV, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("moex fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("moex read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("moex: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Candles *moexTable `json:"candles"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, 0, fmt.Errorf("moex decode: %w", err)
	}
	if result.Candles == nil {
		return nil, 0, fmt.Errorf("moex: candles data not found in response")
	}

	t := result.Candles
	iBegin, iOpen, iClose := t.index("begin"), t.index("open"), t.index("close")
	iHigh, iLow, iVolume := t.index("high"), t.index("low"), t.index("volume")
	if iBegin < 0 || iClose < 0 {
		return nil, 0, fmt.Errorf("moex: missing begin/close columns")
	}

	cell := func(row []interface{}, i int) (float64, bool) {
		if i < 0 || i >= len(row) {
			return 0, false
		}
		return toFloat(row[i])
	}

	bars := make([]model.OHLCV, 0, len(t.Data))
	for _, row := range t.Data {
		if iBegin >= len(row) {
			continue
		}
		s, ok := row[iBegin].(string)
		if !ok {
			continue
		}
		ts, err := time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			continue
		}
		c, ok := cell(row, iClose)
		if !ok {
			continue
		}
		o, _ := cell(row, iOpen)
		h, _ := cell(row, iHigh)
		l, _ := cell(row, iLow)
		v, _ := cell(row, iVolume)
		bars = append(bars, model.OHLCV{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return bars, len(t.Data), nil
}
