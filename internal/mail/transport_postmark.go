// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendTimeout bounds a single Postmark call so a hung request cannot stall the scheduler.
const SendTimeout = 15 * time.Second

// PostmarkTransport sends mail through the Postmark HTTP API.
type PostmarkTransport struct {
	endpoint    string
	serverToken string
	client      *http.Client
}

// NewPostmarkTransport creates a Postmark transport.
func NewPostmarkTransport(endpoint, serverToken string) *PostmarkTransport {
	return &PostmarkTransport{
		endpoint:    endpoint,
		serverToken: serverToken,
		client:      &http.Client{Timeout: SendTimeout},
	}
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkRequest struct {
	From     string            `json:"From"`
	To       string            `json:"To"`
	Subject  string            `json:"Subject"`
	HTMLBody string            `json:"HtmlBody"`
	TextBody string            `json:"TextBody"`
	Tag      string            `json:"Tag,omitempty"`
	Headers  []postmarkHeader  `json:"Headers,omitempty"`
	Metadata map[string]string `json:"Metadata,omitempty"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

/*
Send posts message to Postmark.

Returns:
  - error: Transport failures, non-2xx statuses and non-zero Postmark ErrorCodes
*/
func (transport *PostmarkTransport) Send(context context.Context, message Message) error {
	payload, err := json.Marshal(postmarkRequest{
		From:     message.From,
		To:       message.To,
		Subject:  message.Subject,
		HTMLBody: message.HTML,
		TextBody: message.Text,
		Tag:      message.Tag,
		Headers:  []postmarkHeader{{Name: "Message-ID", Value: message.MessageID}},
		Metadata: message.Metadata,
	})
	if err != nil {
		return fmt.Errorf("postmark: encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost, transport.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("postmark: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Postmark-Server-Token", transport.serverToken)

	response, err := transport.client.Do(request)
	if err != nil {
		return fmt.Errorf("postmark: send: %w", err)
	}
	defer response.Body.Close()

	var result postmarkResponse
	body, _ := io.ReadAll(io.LimitReader(response.Body, 64<<10))
	_ = json.Unmarshal(body, &result)

	if response.StatusCode/100 != 2 || result.ErrorCode != 0 {
		return fmt.Errorf("postmark: status %d, error code %d: %s", response.StatusCode, result.ErrorCode, result.Message)
	}
	return nil
}
