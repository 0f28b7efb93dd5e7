// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/leapmux/leapmux-go/wire"
)

// HistoryConfig holds configuration for creating a HistoryClient.
type HistoryConfig struct {
	// BaseURL is the hub root, e.g. "https://hub.leapmux.dev".
	BaseURL string

	// Tokens supplies the bearer token attached to each request.
	// Required.
	Tokens wire.TokenSource

	// HTTPClient is used for all requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// HistoryClient fetches agent message history pages over HTTP.
type HistoryClient struct {
	baseURL    string
	tokens     wire.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHistoryClient creates a HistoryClient from the given configuration.
func NewHistoryClient(config HistoryConfig) (*HistoryClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("transport: HistoryConfig.BaseURL is required")
	}
	if config.Tokens == nil {
		return nil, fmt.Errorf("transport: HistoryConfig.Tokens is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		tokens:     config.Tokens,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// AgentMessages fetches one history page per the request's cursor.
func (c *HistoryClient) AgentMessages(ctx context.Context, request wire.HistoryRequest) (*wire.HistoryPage, error) {
	if request.AgentID == "" {
		return nil, fmt.Errorf("transport: history request needs an agent id")
	}

	query := url.Values{}
	if request.Limit > 0 {
		query.Set("limit", strconv.Itoa(request.Limit))
	}
	if request.BeforeSeq != 0 {
		query.Set("before_seq", strconv.FormatInt(request.BeforeSeq, 10))
	}
	if request.AfterSeq != 0 {
		query.Set("after_seq", strconv.FormatInt(request.AfterSeq, 10))
	}
	endpoint := fmt.Sprintf("%s/api/v1/agents/%s/messages", c.baseURL, url.PathEscape(request.AgentID))
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build history request: %w", err)
	}
	if token := c.tokens.Token(); token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("transport: fetch history: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, hubErrorFromResponse(response)
	}

	var page wire.HistoryPage
	if err := json.NewDecoder(response.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("transport: decode history page: %w", err)
	}
	return &page, nil
}

// hubErrorFromResponse decodes a structured hub error body, falling
// back to a synthesized error when the body is not the expected shape.
func hubErrorFromResponse(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	var hubErr wire.HubError
	if err := json.Unmarshal(body, &hubErr); err == nil && hubErr.Code != "" {
		hubErr.StatusCode = response.StatusCode
		return &hubErr
	}
	return &wire.HubError{
		Code:       wire.ErrCodeInternal,
		Message:    fmt.Sprintf("unexpected response: %s", strings.TrimSpace(string(body))),
		StatusCode: response.StatusCode,
	}
}
