package provider

import (
	"context"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"pricebars/internal/credentials"
	"pricebars/internal/domain"
)

// BarchartProvider is Provider B: cookie-authenticated, and requires two
// upstream calls per sub-interval fetch — one unadjusted series and one
// split/dividend-adjusted series — joined on date into one Bar per day.
type BarchartProvider struct {
	client  *resty.Client
	baseURL string
	retry   RetryPolicy
}

// NewBarchartProvider creates a BarchartProvider that talks to baseURL
// (e.g. https://www.barchart.com) with the given per-request timeout and
// retry policy.
func NewBarchartProvider(baseURL string, timeout time.Duration, retry RetryPolicy) *BarchartProvider {
	return &BarchartProvider{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
		retry:   retry,
	}
}

func (p *BarchartProvider) ID() domain.ProviderID { return domain.ProviderBarchart }

func (p *BarchartProvider) ProbeCredentials(bundle credentials.Bundle) error {
	if !bundle.HasCookies() {
		return &domain.CredentialMissingError{
			Provider: domain.ProviderBarchart,
			Field:    "barchart_cookies",
			Path:     "barchart_cookies.json",
		}
	}
	return nil
}

// Fetch issues the unadjusted call and the adjusted call back to back with
// no pacing between them (the engine's rate limiter only governs
// transitions between symbols, not this intrinsic pair), and joins the two
// series on date.
func (p *BarchartProvider) Fetch(ctx context.Context, symbol string, freq domain.Frequency, start, end time.Time, bundle credentials.Bundle) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := p.ProbeCredentials(bundle); err != nil {
		return nil, err
	}

	unadjusted, err := p.fetchSeries(ctx, symbol, start, end, false, bundle)
	if err != nil {
		return nil, err
	}

	adjusted, err := p.fetchSeries(ctx, symbol, start, end, true, bundle)
	if err != nil {
		return nil, err
	}

	return joinSeries(symbol, freq, domain.ProviderBarchart, unadjusted, adjusted), nil
}

// barchartRow is one day of one series (adjusted or unadjusted) as
// barchart's history endpoint reports it.
type barchartRow struct {
	Date   string   `json:"tradingDay"`
	Open   *float64 `json:"openPrice"`
	High   *float64 `json:"highPrice"`
	Low    *float64 `json:"lowPrice"`
	Close  *float64 `json:"lastPrice"`
	Volume *float64 `json:"volume"`
}

type barchartHistoryResponse struct {
	Results []barchartRow `json:"results"`
}

func (p *BarchartProvider) fetchSeries(ctx context.Context, symbol string, start, end time.Time, adjusted bool, bundle credentials.Bundle) (map[string]barchartRow, error) {
	adjustment := "raw"
	if adjusted {
		adjustment = "split"
	}

	var parsed barchartHistoryResponse
	resp, err := doWithRetry(ctx, p.retry, func() (*resty.Response, error) {
		return p.client.R().
			SetContext(ctx).
			SetHeader("Cookie", bundle.Cookies.CookieString).
			SetHeader("X-XSRF-TOKEN", bundle.Cookies.XSRFToken).
			SetHeader("User-Agent", bundle.Cookies.UserAgent).
			SetQueryParams(map[string]string{
				"symbol":      symbol,
				"type":        "daily",
				"startDate":   start.Format("2006-01-02"),
				"endDate":     end.Format("2006-01-02"),
				"priceAdjust": adjustment,
			}).
			SetResult(&parsed).
			Get(p.baseURL + "/proxies/timeseries/historical/queryeod.ashx")
	})
	if err != nil {
		return nil, &domain.ProviderFailureError{Provider: domain.ProviderBarchart, Body: err.Error()}
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return nil, &domain.CredentialStaleError{Provider: domain.ProviderBarchart}
	}
	if transientStatuses[resp.StatusCode()] || resp.StatusCode() >= 400 {
		return nil, classifyFailure(domain.ProviderBarchart, resp)
	}
	if resp.Result() == nil {
		return nil, &domain.ParseFailureError{Provider: domain.ProviderBarchart, Diagnostic: "response body did not decode into the expected shape"}
	}

	byDate := make(map[string]barchartRow, len(parsed.Results))
	for _, row := range parsed.Results {
		byDate[row.Date] = row
	}
	return byDate, nil
}

func joinSeries(symbol string, freq domain.Frequency, providerID domain.ProviderID, unadjusted, adjusted map[string]barchartRow) []domain.Bar {
	dates := make(map[string]bool, len(unadjusted)+len(adjusted))
	for d := range unadjusted {
		dates[d] = true
	}
	for d := range adjusted {
		dates[d] = true
	}

	bars := make([]domain.Bar, 0, len(dates))
	for dateStr := range dates {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		u := unadjusted[dateStr]
		a := adjusted[dateStr]
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Date:      date,
			Frequency: freq,
			Provider:  providerID,
			Open:      u.Open,
			High:      u.High,
			Low:       u.Low,
			Close:     u.Close,
			Volume:    u.Volume,
			AdjOpen:   a.Open,
			AdjHigh:   a.High,
			AdjLow:    a.Low,
			AdjClose:  a.Close,
			AdjVolume: a.Volume,
			FetchedAt: time.Now().UTC(),
		})
	}
	sortBarsByDate(bars)
	return bars
}

func sortBarsByDate(bars []domain.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}
