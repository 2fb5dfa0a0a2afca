// Package messenger talks to the Messenger platform: the Graph API send
// client, the webhook endpoint and the event payload types.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// QuickReply is one tappable reply chip under a message.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// TextQuickReply builds a text quick reply.
func TextQuickReply(title, payload string) QuickReply {
	return QuickReply{ContentType: "text", Title: title, Payload: payload}
}

// Profile is the slice of a user profile the bot reads.
type Profile struct {
	FirstName string `json:"first_name"`
	Locale    string `json:"locale"`
}

// Client sends messages and reads profiles through the Graph API.
type Client struct {
	client      *http.Client
	baseURL     string
	accessToken string
}

// ClientConfig configures the Graph API client.
type ClientConfig struct {
	BaseURL     string // e.g. https://graph.facebook.com/v21.0
	AccessToken string
	Timeout     time.Duration
}

// NewClient creates a Graph API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client:      &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
	}
}

type sendRequest struct {
	Recipient    recipient    `json:"recipient"`
	Message      *sendMessage `json:"message,omitempty"`
	SenderAction string       `json:"sender_action,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// SendText delivers a text message, optionally with quick replies.
func (c *Client) SendText(ctx context.Context, psid, text string, quickReplies []QuickReply) error {
	return c.post(ctx, "/me/messages", sendRequest{
		Recipient: recipient{ID: psid},
		Message:   &sendMessage{Text: text, QuickReplies: quickReplies},
	})
}

// SendTyping toggles the typing indicator.
func (c *Client) SendTyping(ctx context.Context, psid string, on bool) error {
	action := "typing_off"
	if on {
		action = "typing_on"
	}
	return c.post(ctx, "/me/messages", sendRequest{
		Recipient:    recipient{ID: psid},
		SenderAction: action,
	})
}

// GetProfile reads a user's name and locale.
func (c *Client) GetProfile(ctx context.Context, psid string) (*Profile, error) {
	u := fmt.Sprintf("%s/%s?fields=first_name,locale&access_token=%s",
		c.baseURL, url.PathEscape(psid), url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile fetch returned status %d: %s", resp.StatusCode, raw)
	}

	p := &Profile{}
	if err := json.NewDecoder(resp.Body).Decode(p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}

// SetupProfile installs the Get Started button and the persistent menu.
func (c *Client) SetupProfile(ctx context.Context) error {
	return c.post(ctx, "/me/messenger_profile", map[string]any{
		"get_started": map[string]string{"payload": PayloadGetStarted},
		"persistent_menu": []map[string]any{{
			"locale":                  "default",
			"composer_input_disabled": false,
			"call_to_actions": []map[string]string{
				{"type": "postback", "title": "Daily quiz reminder", "payload": PayloadSetDailyReminder},
			},
		}},
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	u := fmt.Sprintf("%s%s?access_token=%s", c.baseURL, path, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send returned status %d: %s", resp.StatusCode, raw)
	}
	return nil
}
