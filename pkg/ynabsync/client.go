package ynabsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.ynab.com/v1"

// Client creates transactions through the YNAB REST API.
type Client struct {
	baseURL     string
	budgetID    string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, budgetID, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		budgetID:    budgetID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: time.Minute},
	}
}

func (c *Client) CreateTransactions(ctx context.Context, transactions []Transaction) (*CreateTransactionsResponse, error) {
	body, err := json.Marshal(transactionsRequest{Transactions: transactions})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transactions: %w", err)
	}

	url := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, c.budgetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	rs, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error creating transactions: %w", err)
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading create transactions response: %w", err)
	}

	if rs.StatusCode < 200 || rs.StatusCode >= 300 {
		return nil, responseError(rs.StatusCode, bodyBytes)
	}

	response := CreateTransactionsResponse{}
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return nil, fmt.Errorf("error parsing create transactions response: %w", err)
	}

	return &response, nil
}

func responseError(status int, body []byte) error {
	errResponse := errorResponse{}
	if err := json.Unmarshal(body, &errResponse); err == nil && errResponse.Error.Detail != "" {
		return fmt.Errorf("ynab returned %d %s: %s", status, errResponse.Error.Name, errResponse.Error.Detail)
	}
	return fmt.Errorf("ynab returned %d: %s", status, strings.TrimSpace(string(body)))
}
