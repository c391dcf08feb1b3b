// Package zabbix downloads rendered graph images from a Zabbix frontend.
package zabbix

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/apierr"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
)

const (
	rpcPath   = "/api_jsonrpc.php"
	chartPath = "/chart2.php"

	// DefaultContentType is assumed when the chart response has no Content-Type.
	DefaultContentType = "image/png"
)

// ErrNoCredentials is returned when neither a token nor a user/password pair is configured.
var ErrNoCredentials = errors.New("provide --zabbix-token or --zabbix-user/--zabbix-password to download the graph")

// AuthError is returned when the JSON-RPC login is rejected.
type AuthError struct {
	Payload string
}

func (e *AuthError) Error() string {
	return "zabbix login failed: " + e.Payload
}

// Config holds the Zabbix connection settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Insecure bool
	Token    string
	User     string
	Password string
}

// Query describes the chart to render.
type Query struct {
	GraphID string
	Period  int
	Width   int
	Height  int
	// STime is the optional start time, YYYYMMDDHHMMSS.
	STime string
}

// Graph is a downloaded chart image.
type Graph struct {
	Data        []byte
	ContentType string
}

type authMode int

const (
	unauthenticated authMode = iota
	bearerAuth
	legacyAuth
)

// authState is resolved once per Fetcher. In bearer mode the token travels in
// the Authorization header, in legacy mode as the auth query parameter.
type authState struct {
	mode  authMode
	token string
}

// Fetcher retrieves graphs, authenticating lazily on first use.
type Fetcher struct {
	baseURL  string
	token    string
	user     string
	password string
	client   *resty.Client
	auth     authState
	logf     logger.Logf
}

// NewFetcher creates a new Fetcher. No request is made until Prepare or FetchGraph.
func NewFetcher(cfg Config, logf logger.Logf) *Fetcher {
	logf = logger.OrDiscard(logf)

	client := resty.New()
	client.SetLogger(logf)
	client.SetTimeout(cfg.Timeout)
	if cfg.Insecure {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) // #nosec G402
	}

	return &Fetcher{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		user:     cfg.User,
		password: cfg.Password,
		client:   client,
		logf:     logf,
	}
}

// Prepare resolves the authentication mode. A static token always wins over
// user/password. It is a no-op once authenticated.
func (f *Fetcher) Prepare(ctx context.Context) error {
	if f.auth.mode != unauthenticated {
		return nil
	}

	switch {
	case f.token != "":
		f.client.SetAuthToken(f.token)
		f.auth = authState{mode: bearerAuth, token: f.token}
		f.logf("Using Zabbix API token for authentication.")
		return nil
	case f.user != "" && f.password != "":
		token, err := f.login(ctx)
		if err != nil {
			return err
		}
		f.auth = authState{mode: legacyAuth, token: token}
		f.logf("Zabbix session token obtained.")
		return nil
	default:
		return ErrNoCredentials
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type loginParams struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func (f *Fetcher) login(ctx context.Context) (string, error) {
	f.logf("Logging in to the Zabbix API to obtain a session token...")

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{
			JSONRPC: "2.0",
			Method:  "user.login",
			Params:  loginParams{User: f.user, Password: f.password},
			ID:      1,
		}).
		Post(f.baseURL + rpcPath)
	if err != nil {
		return "", fmt.Errorf("zabbix login request failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return "", apierr.New("zabbix login", resp.StatusCode(), resp.String())
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return "", fmt.Errorf("failed to decode zabbix login response: %w", err)
	}
	if payload, ok := envelope["error"]; ok {
		return "", &AuthError{Payload: string(payload)}
	}

	var token string
	if err := json.Unmarshal(envelope["result"], &token); err != nil || token == "" {
		return "", fmt.Errorf("zabbix login response has no session token: %s", apierr.Truncate(resp.String(), apierr.MaxBodyExcerpt))
	}
	return token, nil
}

// FetchGraph authenticates if needed and downloads the chart described by q.
func (f *Fetcher) FetchGraph(ctx context.Context, q Query) (*Graph, error) {
	if err := f.Prepare(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"graphid": q.GraphID,
		"period":  strconv.Itoa(q.Period),
		"width":   strconv.Itoa(q.Width),
		"height":  strconv.Itoa(q.Height),
	}
	if q.STime != "" {
		params["stime"] = q.STime
	}
	if f.auth.mode == legacyAuth {
		params["auth"] = f.auth.token
	}

	f.logf("Fetching Zabbix graph: graph_id=%s period=%d width=%d height=%d", q.GraphID, q.Period, q.Width, q.Height)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(f.baseURL + chartPath)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return nil, apierr.New("graph download", resp.StatusCode(), resp.String())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &Graph{Data: resp.Body(), ContentType: contentType}, nil
}
