package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const CassoID = "casso"

// CassoClient queries the Casso open API
type CassoClient struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCassoClient creates a Casso portal client
func NewCassoClient(logger *slog.Logger, baseURL, apiKey string, timeout time.Duration) *CassoClient {
	return &CassoClient{
		logger:  logger,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *CassoClient) ID() string { return CassoID }

type cassoTransaction struct {
	ID           int64   `json:"id"`
	TID          string  `json:"tid"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	CusumBalance float64 `json:"cusum_balance"`
	When         string  `json:"when"`
}

type cassoResponse struct {
	Error int               `json:"error"`
	Data  *cassoTransaction `json:"data"`
}

// FetchTransaction retrieves one transaction by Casso's record id
func (c *CassoClient) FetchTransaction(ctx context.Context, portalTransactionID string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s", c.baseURL, url.PathEscape(portalTransactionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build casso request: %w", err)
	}
	req.Header.Set("Authorization", "Apikey "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call casso: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Casso returned unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("casso returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read casso response: %w", err)
	}

	var parsed cassoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode casso response: %w", err)
	}
	if parsed.Error != 0 || parsed.Data == nil {
		return nil, ErrTransactionNotFound
	}

	occurredAt, err := time.Parse(time.RFC3339, parsed.Data.When)
	if err != nil {
		occurredAt = time.Time{}
	}

	return &Transaction{
		PortalID:            CassoID,
		PortalTransactionID: fmt.Sprintf("%d", parsed.Data.ID),
		Amount:              int64(parsed.Data.Amount),
		BalanceAfter:        int64(parsed.Data.CusumBalance),
		Description:         parsed.Data.Description,
		OccurredAt:          occurredAt,
		Raw:                 string(body),
	}, nil
}
