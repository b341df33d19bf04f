// Package client implements the dashboard's auth core: the Gateway is the
// only component that talks to the authentication REST endpoints, and the
// session store it mutates is the single source of truth for authentication
// state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"plexman/api"
	"plexman/client/session"
)

const totpCodeLen = 6

// Gateway mediates between the UI and the authentication backend. It is the
// sole owner of session mutation: the store changes only when the server
// explicitly reports success.
type Gateway struct {
	baseURL string
	http    *http.Client
	store   *session.Store
	// loginBusy enforces at most one in-flight login per Gateway.
	loginBusy atomic.Bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// New creates a Gateway for the backend at baseURL (including the /api
// prefix), mutating the given session store.
func New(baseURL string, store *session.Store, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginResult reports the outcome of a login attempt.
type LoginResult struct {
	// Success means a session was established and the store updated.
	Success bool
	// MFARequired means the account needs a TOTP code: call Login again
	// with the same credentials and the code filled in.
	MFARequired bool
}

// Login authenticates with the backend. code is the optional six-digit TOTP
// code; non-digits are stripped before submission. The session store is
// mutated if and only if the server responds with status "success"; any
// other outcome leaves prior session state untouched.
//
// At most one login may be in flight per Gateway; concurrent calls get
// ErrLoginInFlight.
func (g *Gateway) Login(ctx context.Context, username, password, code string) (LoginResult, error) {
	if !g.loginBusy.CompareAndSwap(false, true) {
		return LoginResult{}, ErrLoginInFlight
	}
	defer g.loginBusy.Store(false)

	if username == "" || password == "" {
		return LoginResult{}, &ValidationError{Msg: "username and password are required"}
	}

	var resp api.LoginResponse
	err := g.postJSON(ctx, "/auth/login", api.LoginRequest{
		Username: username,
		Password: password,
		Token:    SanitizeCode(code),
	}, &resp)
	if err != nil {
		return LoginResult{}, err
	}

	switch resp.Status {
	case api.StatusMFARequired:
		return LoginResult{MFARequired: true}, nil
	case api.StatusSuccess:
		if resp.Token == "" || resp.Username == "" {
			return LoginResult{}, &TransportError{Err: fmt.Errorf("malformed login response: missing token or username")}
		}
		if err := g.store.Set(resp.Token, resp.Username); err != nil {
			return LoginResult{}, fmt.Errorf("persisting session: %w", err)
		}
		return LoginResult{Success: true}, nil
	default:
		return LoginResult{}, &TransportError{Err: fmt.Errorf("malformed login response: status %q", resp.Status)}
	}
}

// Enrollment is the second-factor setup material returned by Register. It is
// ephemeral: hold it only while the user scans the QR code, then discard.
type Enrollment struct {
	TOTPSecret string
	QRCode     string
}

// Register creates a new account and returns its TOTP enrollment material.
// No session is established; the account must complete VerifyTOTP and then
// log in explicitly.
func (g *Gateway) Register(ctx context.Context, username, password string) (Enrollment, error) {
	if username == "" {
		return Enrollment{}, &ValidationError{Msg: "username is required"}
	}
	if len(password) < 8 {
		return Enrollment{}, &ValidationError{Msg: "password must be at least 8 characters"}
	}

	var resp api.RegisterResponse
	err := g.postJSON(ctx, "/auth/register", api.RegisterRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return Enrollment{}, err
	}
	if resp.TOTPSecret == "" || resp.QRCode == "" {
		return Enrollment{}, &TransportError{Err: fmt.Errorf("malformed register response")}
	}
	return Enrollment{TOTPSecret: resp.TOTPSecret, QRCode: resp.QRCode}, nil
}

// VerifyTOTP submits the six-digit enrollment code. Success finalizes the
// account as second-factor-enabled but does not log the user in.
func (g *Gateway) VerifyTOTP(ctx context.Context, username, code string) error {
	code = SanitizeCode(code)
	if len(code) != totpCodeLen {
		return &ValidationError{Msg: "enter the 6-digit code from your authenticator app"}
	}

	var resp api.StatusResponse
	err := g.postJSON(ctx, "/auth/verify-totp", api.VerifyTOTPRequest{
		Username: username,
		Token:    code,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Status != api.StatusSuccess {
		return &TransportError{Err: fmt.Errorf("malformed verify-totp response: status %q", resp.Status)}
	}
	return nil
}

// ResetIssued is the outcome of RequestReset. ResetToken is populated only
// by development backends; treat it as a single-use credential and never
// write it to any persistent log.
type ResetIssued struct {
	Message    string
	ResetToken string
}

// RequestReset asks the backend to issue a password reset token for username.
func (g *Gateway) RequestReset(ctx context.Context, username string) (ResetIssued, error) {
	if username == "" {
		return ResetIssued{}, &ValidationError{Msg: "username is required"}
	}

	var resp api.RequestResetResponse
	err := g.postJSON(ctx, "/auth/request-reset", api.RequestResetRequest{Username: username}, &resp)
	if err != nil {
		return ResetIssued{}, err
	}
	return ResetIssued{Message: resp.Message, ResetToken: resp.ResetToken}, nil
}

// ConfirmReset sets a new password using a reset token. The token is single
// use; a second call with the same token is rejected by the server. Success
// does not log the user in.
func (g *Gateway) ConfirmReset(ctx context.Context, token, newPassword string) (string, error) {
	if token == "" {
		return "", &ValidationError{Msg: "reset token is missing"}
	}
	if len(newPassword) < 8 {
		return "", &ValidationError{Msg: "password must be at least 8 characters"}
	}

	var resp api.MessageResponse
	err := g.postJSON(ctx, "/auth/reset-password", api.ResetPasswordRequest{
		Token:    token,
		Password: newPassword,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Verify validates the hydrated session token against the backend. Called
// once at startup, before any protected view renders. A valid token
// populates the username; an invalid token, or any failure to check it,
// clears the session — a persisted-but-invalid token must never leave the
// client believing it is authenticated. Stale sessions resolve silently to
// the logged-out state rather than surfacing an error.
func (g *Gateway) Verify(ctx context.Context) session.Snapshot {
	snapshot := g.store.Get()
	if snapshot.Token == "" {
		return snapshot
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/auth/verify", nil)
	if err != nil {
		_ = g.store.Clear()
		return g.store.Get()
	}
	req.Header.Set("Authorization", "Bearer "+snapshot.Token)

	httpResp, err := g.http.Do(req)
	if err != nil {
		_ = g.store.Clear()
		return g.store.Get()
	}
	defer httpResp.Body.Close()

	var resp api.VerifyResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxResponseSize)).Decode(&resp); err != nil ||
		!resp.Valid || resp.Username == "" {
		_ = g.store.Clear()
		return g.store.Get()
	}

	if err := g.store.Set(snapshot.Token, resp.Username); err != nil {
		_ = g.store.Clear()
	}
	return g.store.Get()
}

// Logout clears the client session unconditionally. The server is not
// informed and the token is not revoked server-side, so a captured token
// stays valid until its own expiry — a known limitation of the backend
// contract, to revisit if revocation becomes available.
func (g *Gateway) Logout() error {
	return g.store.Clear()
}

const maxResponseSize = 1 << 20

// postJSON posts body to path and decodes a success response into out.
// Server rejections surface as *AuthError with the server's message
// verbatim; connectivity problems and malformed bodies surface as
// *TransportError.
func (g *Gateway) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			return &AuthError{Message: errResp.Error}
		}
		return &TransportError{Err: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// SanitizeCode strips non-digit characters from a second-factor code and
// truncates it to six digits, mirroring the input constraint the dashboard
// applies before submission.
func SanitizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == totpCodeLen {
				break
			}
		}
	}
	return b.String()
}
