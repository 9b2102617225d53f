// services/line_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/koratarata807/misenabiai/utils"
)

const linePushEndpoint = "https://api.line.me/v2/bot/message/push"

// LineClient pushes messages through the LINE Messaging API.
type LineClient struct {
	http     *http.Client
	endpoint string
}

func NewLineClient() *LineClient {
	return &LineClient{http: utils.HTTPClient, endpoint: linePushEndpoint}
}

// PushText sends a single text message.
func (l *LineClient) PushText(ctx context.Context, token, to, text string) error {
	return l.push(ctx, token, to, []any{
		map[string]any{"type": "text", "text": text},
	})
}

// PushImage sends a text message followed by a full-size image.
func (l *LineClient) PushImage(ctx context.Context, token, to, text, imageURL string) error {
	return l.push(ctx, token, to, []any{
		map[string]any{"type": "text", "text": text},
		map[string]any{"type": "image", "originalContentUrl": imageURL, "previewImageUrl": imageURL},
	})
}

// PushFlex sends a coupon bubble whose hero image opens couponURL —
// normally a tracking link wrapping the real coupon destination.
func (l *LineClient) PushFlex(ctx context.Context, token, to, text, imageURL, couponURL string) error {
	return l.push(ctx, token, to, []any{
		map[string]any{
			"type":    "flex",
			"altText": text,
			"contents": map[string]any{
				"type": "bubble",
				"hero": map[string]any{
					"type":        "image",
					"url":         imageURL,
					"size":        "full",
					"aspectRatio": "20:13",
					"aspectMode":  "cover",
					"action":      map[string]any{"type": "uri", "label": "クーポンを開く", "uri": couponURL},
				},
				"body": map[string]any{
					"type":   "box",
					"layout": "vertical",
					"contents": []any{
						map[string]any{"type": "text", "text": text, "wrap": true},
					},
				},
			},
		},
	})
}

func (l *LineClient) push(ctx context.Context, token, to string, messages []any) error {
	payload, err := json.Marshal(map[string]any{"to": to, "messages": messages})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("LINE push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LINE push failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
