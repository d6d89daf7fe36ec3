package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/netx"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type errorBody struct {
	Detail            string `json:"detail"`
	RemainingAttempts *int   `json:"remaining_attempts"`
}

func (c *HTTPClient) call(ctx context.Context, method, path string, header http.Header, in, out any) error {
	resp, err := netx.DoJSON(ctx, c.http, method, c.baseURL+path, header, in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.Status < 200 || resp.Status > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *netx.Response) error {
	apiErr := &APIError{
		Status:     resp.Status,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	var eb errorBody
	if err := json.Unmarshal(resp.Body, &eb); err == nil {
		apiErr.Detail = eb.Detail
		apiErr.RemainingAttempts = eb.RemainingAttempts
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(resp.Body))
	}
	return apiErr
}

func (c *HTTPClient) Register(ctx context.Context, email string, password []byte) (*Message, error) {
	var out Message
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", nil, credentials{email, string(password)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyRegister(ctx context.Context, email, code string) (*Token, error) {
	var out Token
	if err := c.call(ctx, http.MethodPost, "/api/auth/verify-register", nil, codeRequest{email, code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (*Message, error) {
	var out Message
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", nil, credentials{email, string(password)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyLogin(ctx context.Context, email, code string) (*Token, error) {
	var out Token
	if err := c.call(ctx, http.MethodPost, "/api/auth/verify-login", nil, codeRequest{email, code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ResendCode(ctx context.Context, email string, password []byte) (*Message, error) {
	var out Message
	if err := c.call(ctx, http.MethodPost, "/api/auth/resend-code", nil, credentials{email, string(password)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*User, error) {
	header := http.Header{}
	header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	var out User
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", header, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// parseRetryAfter reads a Retry-After value given in seconds.
func parseRetryAfter(v string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
