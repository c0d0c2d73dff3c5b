package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c != nil && c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// Invitation describes a group gift invitation for someone without an
// account.
type Invitation struct {
	To           string
	InviterName  string
	GroupTitle   string
	Occasion     string
	Contribution float64
	Currency     string
	ShareToken   string
}

// SendGroupInvitation emails a share link for the group.
func (c *Client) SendGroupInvitation(ctx context.Context, inv Invitation) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	inviter := inv.InviterName
	if inviter == "" {
		inviter = "A friend"
	}
	subject := fmt.Sprintf("%s invited you to chip in for %s", inviter, inv.GroupTitle)
	link := fmt.Sprintf("%s/shared/groups/%s", c.baseURL, inv.ShareToken)
	share := fmt.Sprintf("%.2f %s", inv.Contribution, inv.Currency)

	textBody := fmt.Sprintf(
		"%s is organising a group gift: %s (%s).\n\nYour share would be %s.\n\nSee the group and respond here:\n%s",
		inviter, inv.GroupTitle, inv.Occasion, share, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s is organising a group gift: <strong>%s</strong> (%s).</p><p>Your share would be %s.</p><p><a href="%s">See the group and respond</a></p>`,
		html.EscapeString(inviter), html.EscapeString(inv.GroupTitle), html.EscapeString(inv.Occasion),
		html.EscapeString(share), html.EscapeString(link),
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       inv.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "group-invitation",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
