package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DebtorRecord is one debtor as the external record system reports it.
// Amounts are centavos.
type DebtorRecord struct {
	ExternalID string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Document   string    `json:"document"`
	DebtAmount int64     `json:"debtAmount"`
	DebtDate   time.Time `json:"debtDate"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	return &Client{http: c}
}

// PullDebtors fetches debtor records updated inside [from, to]. The
// importer re-applies the filters locally; this range only bounds the
// pull.
func (c *Client) PullDebtors(ctx context.Context, from, to time.Time) ([]DebtorRecord, error) {
	var out struct {
		Records []DebtorRecord `json:"records"`
	}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("endDate", to.Format(time.RFC3339)).
		SetResult(&out)
	if !from.IsZero() {
		req.SetQueryParam("startDate", from.Format(time.RFC3339))
	}
	resp, err := req.Get("/debtors")
	if err != nil {
		return nil, fmt.Errorf("crm pull request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("crm pull error: status %s, body: %s", resp.Status(), resp.String())
	}
	return out.Records, nil
}
