package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	id "eligo/pkg/domain"
	"eligo/pkg/platform/circuit"
	"eligo/pkg/platform/sentinel"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCooldown = 30 * time.Second
	maxErrorBody    = 4 << 10
)

// GoTrueConfig configures the admin API client.
type GoTrueConfig struct {
	BaseURL string
	// ServiceKey is the service-role key. Never log it.
	ServiceKey       string
	Timeout          time.Duration
	FailureThreshold int
	// Cooldown is how long calls fail fast after the breaker opens.
	Cooldown   time.Duration
	HTTPClient *http.Client
}

// GoTrue provisions identities through the GoTrue admin API.
type GoTrue struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	breaker    *circuit.Breaker
	cooldown   time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	openedAt time.Time
	now      func() time.Time
}

func NewGoTrue(cfg GoTrueConfig, logger *slog.Logger) (*GoTrue, error) {
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("gotrue: base URL and service key are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}
	return &GoTrue{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
		breaker:    circuit.New("gotrue", circuit.WithFailureThreshold(cfg.FailureThreshold)),
		cooldown:   cooldown,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type createUserRequest struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	EmailConfirm bool              `json:"email_confirm"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

type errorResponse struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (g *GoTrue) Create(ctx context.Context, req NewIdentity) (id.IdentityRef, error) {
	body, err := json.Marshal(createUserRequest{
		Email:        req.Email,
		Password:     req.Password,
		EmailConfirm: true,
		UserMetadata: req.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("encode create user: %w", err)
	}

	var user userResponse
	status, err := g.do(ctx, http.MethodPost, "/admin/users", body, &user)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("create user: unexpected status %d", status)
	}
	if user.ID == "" {
		return "", fmt.Errorf("create user: response without id")
	}
	return id.IdentityRef(user.ID), nil
}

// FindByEmail searches the admin user list. The filter is a substring match
// on the provider side, so the email is compared exactly here.
func (g *GoTrue) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	query := url.Values{"filter": {email}, "per_page": {"50"}}
	var list listUsersResponse
	status, err := g.do(ctx, http.MethodGet, "/admin/users?"+query.Encode(), nil, &list)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list users: unexpected status %d", status)
	}
	for _, u := range list.Users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		metadata := make(map[string]string, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			if s, ok := v.(string); ok {
				metadata[k] = s
			}
		}
		return &Identity{Ref: id.IdentityRef(u.ID), Email: u.Email, Metadata: metadata}, nil
	}
	return nil, sentinel.ErrNotFound
}

func (g *GoTrue) Delete(ctx context.Context, ref id.IdentityRef) error {
	status, err := g.do(ctx, http.MethodDelete, "/admin/users/"+ref.String(), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("delete user: unexpected status %d", status)
	}
	return nil
}

// do sends one admin request. 4xx responses are returned as a status for the
// caller to interpret; transport errors and 5xx count against the breaker.
func (g *GoTrue) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	if g.failFast() {
		return 0, ErrUnavailable
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.serviceKey)
	req.Header.Set("apikey", g.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.recordFailure(ctx)
		return 0, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		g.recordFailure(ctx)
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	}
	g.recordSuccess(ctx)

	if resp.StatusCode >= 400 {
		return resp.StatusCode, g.clientError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (g *GoTrue) clientError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e errorResponse
	_ = json.Unmarshal(raw, &e)
	msg := strings.ToLower(e.Msg + " " + e.Message + " " + e.ErrorCode)
	taken := resp.StatusCode == http.StatusConflict ||
		e.ErrorCode == "email_exists" ||
		(resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(msg, "already"))
	if taken {
		return ErrEmailTaken
	}
	return fmt.Errorf("identity request rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(msg))
}

func (g *GoTrue) failFast() bool {
	if !g.breaker.IsOpen() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Sub(g.openedAt) < g.cooldown
}

func (g *GoTrue) recordFailure(ctx context.Context) {
	open, change := g.breaker.RecordFailure()
	if open {
		g.mu.Lock()
		g.openedAt = g.now()
		g.mu.Unlock()
	}
	if change.Opened {
		g.logger.WarnContext(ctx, "identity provider circuit opened", "breaker", g.breaker.Name())
	}
}

func (g *GoTrue) recordSuccess(ctx context.Context) {
	_, change := g.breaker.RecordSuccess()
	if change.Closed {
		g.logger.InfoContext(ctx, "identity provider circuit closed", "breaker", g.breaker.Name())
	}
}
