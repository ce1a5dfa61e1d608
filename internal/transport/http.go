// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/corevault-io/core/models"
)

// HTTPConfig configures NewHTTPTransport.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

type httpTransport struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPTransport builds a SyncTransport backed by a resty client, the
// same HTTP client library the teacher uses for its own server adapter.
func NewHTTPTransport(cfg HTTPConfig) SyncTransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)
	return &httpTransport{client: cli}
}

func (h *httpTransport) SetBearerToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpTransport) bearerToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpTransport) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.bearerToken(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func (h *httpTransport) Sync(ctx context.Context, req models.SyncRequest) (models.SyncResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/items/sync")
	if err != nil {
		return models.SyncResponse{}, fmt.Errorf("sync request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SyncResponse{}, err
	}

	var sr models.SyncResponse
	if err = json.Unmarshal(resp.Body(), &sr); err != nil {
		return models.SyncResponse{}, fmt.Errorf("decode sync response: %w", err)
	}
	return sr, nil
}

func (h *httpTransport) RequestKeyParams(ctx context.Context, identifier string) (models.KeyParams, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("identifier", identifier).
		Get("/auth/params")
	if err != nil {
		return models.KeyParams{}, fmt.Errorf("key params request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.KeyParams{}, err
	}

	var params models.KeyParams
	if err = json.Unmarshal(resp.Body(), &params); err != nil {
		return models.KeyParams{}, fmt.Errorf("decode key params response: %w", err)
	}
	return params, nil
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, body)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, body)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body)
	case http.StatusBadGateway:
		return fmt.Errorf("%w: %s", ErrBadGateway, body)
	case http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrInternalServerError, body)
	default:
		return errors.New("http " + resp.Status() + ": " + body)
	}
}
