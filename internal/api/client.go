package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"localmart/internal/store"
)

// Client talks to the localmart REST backend. Authenticated endpoints send
// the session token as a bearer credential; SetToken/ClearToken follow the
// session lifecycle. One attempt per call, no retry policy.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do runs one request and returns the raw body and status. A transport-level
// failure comes back wrapped; HTTP status handling is the caller's job via
// checkStatus.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if err := checkStatus(status, body); err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if err := checkStatus(status, body); err != nil {
		return err
	}
	return decode(body, out)
}

// checkStatus maps non-2xx responses to the error taxonomy, preferring the
// server's message field when the body carries one.
func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &APIError{Status: status, Message: payload.Message}
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ===== Auth =====

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  store.UserProfile `json:"user"`
}

// Login exchanges credentials for a token and profile. A 401 maps to
// ErrInvalidCredentials rather than ErrUnauthorized: the caller had no
// session to lose.
func (c *Client) Login(ctx context.Context, email, password string) (string, *store.UserProfile, error) {
	var resp loginResponse
	err := c.sendJSON(ctx, http.MethodPost, "/users/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Error())
		}
		return "", nil, err
	}
	return resp.Token, &resp.User, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.sendJSON(ctx, http.MethodPost, "/users/register", registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (*store.UserProfile, error) {
	var profile store.UserProfile
	if err := c.getJSON(ctx, "/api/users/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ===== Location =====

type locationUpdateRequest struct {
	// GeoJSON order: longitude first.
	Coordinates [2]float64 `json:"coordinates"`
}

func (c *Client) UpdateLocation(ctx context.Context, userID string, coords store.Coordinates) error {
	payload := locationUpdateRequest{Coordinates: [2]float64{coords.Longitude, coords.Latitude}}
	return c.sendJSON(ctx, http.MethodPut, "/users/location/"+url.PathEscape(userID), payload, nil)
}

// ===== Stores =====

func (c *Client) NearbyStores(ctx context.Context, coords store.Coordinates) ([]store.StoreListing, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))

	var listings []store.StoreListing
	if err := c.getJSON(ctx, "/stores/nearby?"+q.Encode(), &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// StoreRegistration is the multipart payload for /stores/register. The
// social links travel as one JSON-serialized text field.
type StoreRegistration struct {
	StoreName   string
	Description string
	Place       string
	Phone       string
	Category    string
	SocialMedia SocialMedia

	ImageName        string
	ImageContentType string
	Image            io.Reader
}

type SocialMedia struct {
	Whatsapp  string `json:"whatsapp"`
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	Website   string `json:"website"`
}

type storeRegisterResponse struct {
	Message string `json:"message"`
	Store   struct {
		ID string `json:"_id"`
	} `json:"store"`
}

// RegisterStore submits the seller registration form. It returns the new
// store ID when the backend provides one.
func (c *Client) RegisterStore(ctx context.Context, reg StoreRegistration) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profileImage"; filename="%s"`, reg.ImageName))
	contentType := reg.ImageContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := io.Copy(part, reg.Image); err != nil {
		return "", fmt.Errorf("failed to write image part: %w", err)
	}

	fields := map[string]string{
		"storeName":   reg.StoreName,
		"description": reg.Description,
		"place":       reg.Place,
		"phone":       reg.Phone,
		"category":    reg.Category,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	social, err := json.Marshal(reg.SocialMedia)
	if err != nil {
		return "", fmt.Errorf("failed to encode social media: %w", err)
	}
	if err := w.WriteField("socialMedia", string(social)); err != nil {
		return "", fmt.Errorf("failed to write socialMedia field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stores/register", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if err := checkStatus(status, body); err != nil {
		return "", err
	}
	var resp storeRegisterResponse
	if err := decode(body, &resp); err != nil {
		return "", err
	}
	return resp.Store.ID, nil
}

// ===== Messaging =====

type conversationsResponse struct {
	Conversations []store.Conversation `json:"conversations"`
}

func (c *Client) Conversations(ctx context.Context) ([]store.Conversation, error) {
	var resp conversationsResponse
	if err := c.getJSON(ctx, "/api/messages/conversations", &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

type messagesResponse struct {
	Messages []store.Message `json:"messages"`
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var resp messagesResponse
	if err := c.getJSON(ctx, "/api/messages/conversations/"+url.PathEscape(conversationID), &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

type sendMessageRequest struct {
	ReceiverID     string `json:"receiverId"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

type sendMessageResponse struct {
	Data store.Message `json:"data"`
}

func (c *Client) SendMessage(ctx context.Context, receiverID, text, conversationID string) (*store.Message, error) {
	var resp sendMessageResponse
	err := c.sendJSON(ctx, http.MethodPost, "/api/messages/send", sendMessageRequest{
		ReceiverID:     receiverID,
		Text:           text,
		ConversationID: conversationID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type usersResponse struct {
	Users []store.UserSummary `json:"users"`
}

func (c *Client) Users(ctx context.Context) ([]store.UserSummary, error) {
	var resp usersResponse
	if err := c.getJSON(ctx, "/api/users/all", &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

type createConversationRequest struct {
	ReceiverID string `json:"receiverId"`
}

type createConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

func (c *Client) CreateConversation(ctx context.Context, receiverID string) (string, error) {
	var resp createConversationResponse
	err := c.sendJSON(ctx, http.MethodPost, "/api/messages/conversations", createConversationRequest{ReceiverID: receiverID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}
