package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Executor struct {
	client          *http.Client
	baseURL         string
	instanceAddress string
}

func New(baseURL, instanceAddress string) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				MaxConnsPerHost:     100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:         baseURL,
		instanceAddress: instanceAddress,
	}
}

type commandResult struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

func (e *Executor) submit(ctx context.Context, action, source, sourceIdempk string, payload interface{}) (*commandResult, error) {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"action":           action,
		"instance_address": e.instanceAddress,
		"source":           source,
		"source_idempk":    sourceIdempk,
		"payload":          json.RawMessage(rawPayload),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	respBody, err := e.post(ctx, "/v1/commands", body)
	if err != nil {
		return nil, err
	}

	var result commandResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse command response: %w", err)
	}
	return &result, nil
}

// CreateAccount issues a create_account command. idempk uniquely identifies
// this account-open request so replays under load don't open duplicates.
func (e *Executor) CreateAccount(ctx context.Context, address, accountType, currency, idempk string) error {
	payload := map[string]interface{}{
		"address":        address,
		"type":           accountType,
		"currency":       currency,
		"allow_negative": accountType == "liability" || accountType == "equity",
	}
	_, err := e.submit(ctx, "create_account", "loadtest", idempk, payload)
	return err
}

// CreateTransaction posts a balanced two-entry transaction between two
// accounts, the load-test analog of a deposit/withdraw/transfer.
func (e *Executor) CreateTransaction(ctx context.Context, debitAccount, creditAccount string, amount int64, idempk string) error {
	payload := map[string]interface{}{
		"entries": []map[string]interface{}{
			{"account_address": debitAccount, "entry_type": "debit", "amount": amount},
			{"account_address": creditAccount, "entry_type": "credit", "amount": amount},
		},
	}
	_, err := e.submit(ctx, "create_transaction", "loadtest", idempk, payload)
	return err
}

type accountSnapshot struct {
	Available int64 `json:"available"`
	Posted    int64 `json:"posted"`
	Pending   int64 `json:"pending"`
}

func (e *Executor) GetBalance(ctx context.Context, accountAddress string) (int64, error) {
	path := fmt.Sprintf("/v1/instances/%s/accounts/%s", e.instanceAddress, accountAddress)
	resp, err := e.get(ctx, path)
	if err != nil {
		return 0, err
	}

	var snap accountSnapshot
	if err := json.Unmarshal(resp, &snap); err != nil {
		return 0, fmt.Errorf("parse account response: %w", err)
	}
	return snap.Available, nil
}

func (e *Executor) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Load-Test", "true")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}

func (e *Executor) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Load-Test", "true")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}
