// Package twitch contains the Helix calls needed to resolve broadcasters and
// poll their live status, authenticated with an app access token.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultBaseURL = "https://api.twitch.tv"

	// maxBatch is the most user_id parameters /helix/streams accepts.
	maxBatch = 100
)

var (
	ErrNotFound = errors.New("twitch user not found")
	ErrFetch    = errors.New("twitch fetch failed")
)

// User is a Twitch account as returned by /helix/users.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Client is a minimal Helix client.
type Client struct {
	ClientID    string
	Credentials CredentialProvider
	HTTPClient  *http.Client
	BaseURL     string
}

func NewClient(clientID string, creds CredentialProvider) *Client {
	return &Client{
		ClientID:    clientID,
		Credentials: creds,
		BaseURL:     DefaultBaseURL,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("helix returned %d: %s", e.code, e.body)
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// get issues an authenticated GET and decodes the JSON body into out.
// A 401 drops the cached token and the request is retried once.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, path, query, out)
		var se *statusError
		if attempt == 0 && errors.As(err, &se) && se.code == http.StatusUnauthorized {
			slog.Debug("twitch token rejected, refreshing")
			c.Credentials.Invalidate()
			continue
		}
		return err
	}
}

func (c *Client) do(ctx context.Context, path string, query url.Values, out any) error {
	tok, err := c.Credentials.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) user(ctx context.Context, key, value string) (*User, error) {
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.get(ctx, "/helix/users", url.Values{key: {value}}, &body); err != nil {
		return nil, fmt.Errorf("%w: %s=%s: %v", ErrNotFound, key, value, err)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: %s=%s", ErrNotFound, key, value)
	}
	return &body.Data[0], nil
}

// UserByLogin resolves a login name. Logins are case-insensitive.
func (c *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return nil, fmt.Errorf("%w: login empty", ErrNotFound)
	}
	return c.user(ctx, "login", login)
}

// UserByID looks up a broadcaster by numeric id.
func (c *Client) UserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id empty", ErrNotFound)
	}
	return c.user(ctx, "id", id)
}

// BatchSize is the largest id slice FetchStates accepts.
func (c *Client) BatchSize() int { return maxBatch }

// FetchStates reports for every given user id whether it is live right now.
// Ids missing from the streams response are offline.
func (c *Client) FetchStates(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) > maxBatch {
		return nil, fmt.Errorf("%w: %d ids exceeds batch size %d", ErrFetch, len(userIDs), maxBatch)
	}
	states := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return states, nil
	}

	query := url.Values{
		"user_id": userIDs,
		"first":   {strconv.Itoa(maxBatch)},
	}
	var body struct {
		Data []struct {
			UserID string `json:"user_id"`
			Type   string `json:"type"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/helix/streams", query, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	for _, id := range userIDs {
		states[id] = false
	}
	for _, s := range body.Data {
		if _, ok := states[s.UserID]; ok {
			states[s.UserID] = true
		}
	}
	return states, nil
}

// ChannelURL is the public link to a broadcaster's channel.
func ChannelURL(login string) string {
	return "https://www.twitch.tv/" + login
}
