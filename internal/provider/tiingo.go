package provider

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"pricebars/internal/credentials"
	"pricebars/internal/domain"
)

// TiingoProvider is Provider T: token-authenticated, and returns both
// adjusted and unadjusted fields from a single upstream call per
// sub-interval.
type TiingoProvider struct {
	client  *resty.Client
	baseURL string
	retry   RetryPolicy
}

// NewTiingoProvider creates a TiingoProvider against baseURL (e.g.
// https://api.tiingo.com) with the given per-request timeout and retry
// policy.
func NewTiingoProvider(baseURL string, timeout time.Duration, retry RetryPolicy) *TiingoProvider {
	return &TiingoProvider{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
		retry:   retry,
	}
}

func (p *TiingoProvider) ID() domain.ProviderID { return domain.ProviderTiingo }

func (p *TiingoProvider) ProbeCredentials(bundle credentials.Bundle) error {
	if !bundle.HasTiingo() {
		return &domain.CredentialMissingError{
			Provider: domain.ProviderTiingo,
			Field:    "tiingo_api_key",
			Path:     "credentials.json",
		}
	}
	return nil
}

// tiingoRow mirrors tiingo's /tiingo/daily/<symbol>/prices response shape.
type tiingoRow struct {
	Date      string   `json:"date"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
	AdjOpen   *float64 `json:"adjOpen"`
	AdjHigh   *float64 `json:"adjHigh"`
	AdjLow    *float64 `json:"adjLow"`
	AdjClose  *float64 `json:"adjClose"`
	AdjVolume *float64 `json:"adjVolume"`
}

func (p *TiingoProvider) Fetch(ctx context.Context, symbol string, freq domain.Frequency, start, end time.Time, bundle credentials.Bundle) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := p.ProbeCredentials(bundle); err != nil {
		return nil, err
	}

	var rows []tiingoRow
	resp, err := doWithRetry(ctx, p.retry, func() (*resty.Response, error) {
		return p.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"token":     bundle.TiingoAPIKey,
				"startDate": start.Format("2006-01-02"),
				"endDate":   end.Format("2006-01-02"),
				"format":    "json",
			}).
			SetResult(&rows).
			Get(p.baseURL + "/tiingo/daily/" + symbol + "/prices")
	})
	if err != nil {
		return nil, &domain.ProviderFailureError{Provider: domain.ProviderTiingo, Body: err.Error()}
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return nil, &domain.CredentialStaleError{Provider: domain.ProviderTiingo}
	}
	if transientStatuses[resp.StatusCode()] || resp.StatusCode() >= 400 {
		return nil, classifyFailure(domain.ProviderTiingo, resp)
	}
	if resp.Result() == nil {
		return nil, &domain.ParseFailureError{Provider: domain.ProviderTiingo, Diagnostic: "response body did not decode into the expected shape"}
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		date, parseErr := time.Parse(time.RFC3339, row.Date)
		if parseErr != nil {
			date, parseErr = time.Parse("2006-01-02", row.Date)
			if parseErr != nil {
				return nil, &domain.ParseFailureError{Provider: domain.ProviderTiingo, Diagnostic: "unparsable date " + row.Date}
			}
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Date:      domain.NormalizeDate(date),
			Frequency: freq,
			Provider:  domain.ProviderTiingo,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
			AdjOpen:   row.AdjOpen,
			AdjHigh:   row.AdjHigh,
			AdjLow:    row.AdjLow,
			AdjClose:  row.AdjClose,
			AdjVolume: row.AdjVolume,
			FetchedAt: time.Now().UTC(),
		})
	}
	sortBarsByDate(bars)
	return bars, nil
}
