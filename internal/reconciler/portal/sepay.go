package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const SepayID = "sepay"

// SepayClient queries the SePay user API. SePay indexes transactions by memo
// content, so it also serves as the alternate order-id lookup channel.
type SepayClient struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSepayClient creates a SePay portal client
func NewSepayClient(logger *slog.Logger, baseURL, apiKey string, timeout time.Duration) *SepayClient {
	return &SepayClient{
		logger:  logger,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *SepayClient) ID() string { return SepayID }

// sepayTransaction mirrors the SePay wire format; monetary fields arrive as
// decimal strings.
type sepayTransaction struct {
	ID                 string `json:"id"`
	TransactionDate    string `json:"transaction_date"`
	AccountNumber      string `json:"account_number"`
	AmountIn           string `json:"amount_in"`
	AmountOut          string `json:"amount_out"`
	Accumulated        string `json:"accumulated"`
	TransactionContent string `json:"transaction_content"`
	ReferenceNumber    string `json:"reference_number"`
}

type sepayDetailResponse struct {
	Status      int               `json:"status"`
	Transaction *sepayTransaction `json:"transaction"`
}

type sepayListResponse struct {
	Status       int                `json:"status"`
	Transactions []sepayTransaction `json:"transactions"`
}

// FetchTransaction retrieves one transaction by SePay's own id
func (c *SepayClient) FetchTransaction(ctx context.Context, portalTransactionID string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transactions/details/%s", c.baseURL, url.PathEscape(portalTransactionID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp sepayDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sepay response: %w", err)
	}
	if resp.Transaction == nil {
		return nil, ErrTransactionNotFound
	}

	return c.normalize(resp.Transaction, body)
}

// FindByOrderID resolves a transaction whose memo carries the order id
func (c *SepayClient) FindByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transactions/list?transaction_content=%s&limit=1", c.baseURL, url.QueryEscape(orderID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp sepayListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sepay response: %w", err)
	}
	if len(resp.Transactions) == 0 {
		return nil, ErrTransactionNotFound
	}

	return c.normalize(&resp.Transactions[0], body)
}

func (c *SepayClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sepay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sepay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Sepay returned unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("sepay returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sepay response: %w", err)
	}
	return body, nil
}

func (c *SepayClient) normalize(tx *sepayTransaction, raw []byte) (*Transaction, error) {
	amountIn, err := sepayAmount(tx.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sepay amount_in: %w", err)
	}
	amountOut, err := sepayAmount(tx.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sepay amount_out: %w", err)
	}
	balance, err := sepayAmount(tx.Accumulated)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sepay accumulated: %w", err)
	}

	occurredAt, err := time.Parse("2006-01-02 15:04:05", tx.TransactionDate)
	if err != nil {
		occurredAt = time.Time{}
	}

	return &Transaction{
		PortalID:            SepayID,
		PortalTransactionID: tx.ID,
		Amount:              amountIn - amountOut,
		BalanceAfter:        balance,
		Description:         tx.TransactionContent,
		OccurredAt:          occurredAt,
		Raw:                 string(raw),
	}, nil
}

func sepayAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
