package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// minPasswordLen is the minimum password length accepted at registration and
// password reset. Matches the dashboard's client-side validation.
const minPasswordLen = 8

// Login handles POST /auth/login.
//
// Accounts with TOTP enabled get {"status":"mfa_required"} when no code is
// supplied; the client re-submits the same credentials with the code filled
// in. A session token is only issued when password (and code, if required)
// both verify.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if blocked, retryAfter := a.limiter.check(req.Username); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited",
			slog.String("username", req.Username))
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "too many failed attempts; try again later")
		return
	}

	record, err := a.users.load(req.Username)
	if err != nil {
		a.limiter.recordFailure(req.Username)
		a.audit.logFailure(AuditLoginFailure, r, "account not found",
			slog.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if !a.users.verifyPassword(record, req.Password) {
		a.limiter.recordFailure(req.Username)
		a.audit.logFailure(AuditLoginFailure, r, "invalid password",
			slog.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if record.TOTPEnabled {
		if req.Token == "" {
			a.audit.logEvent(AuditLoginMFARequired, r, req.Username)
			writeJSON(w, http.StatusOK, LoginResponse{Status: StatusMFARequired})
			return
		}
		if !verifyTOTPCode(record.TOTPSecret, req.Token, time.Now()) {
			a.limiter.recordFailure(req.Username)
			a.audit.logFailure(AuditLoginFailure, r, "invalid totp code",
				slog.String("username", req.Username))
			writeError(w, http.StatusUnauthorized, "invalid authentication code")
			return
		}
	}

	token, err := a.tokens.issue(record.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	a.limiter.recordSuccess(req.Username)
	a.audit.logEvent(AuditLoginSuccess, r, record.Username)
	writeJSON(w, http.StatusOK, LoginResponse{
		Status:   StatusSuccess,
		Token:    token,
		Username: record.Username,
	})
}

// Register handles POST /auth/register. Creates the account and returns the
// TOTP enrollment secret plus a scannable QR image. No session is issued;
// the user must verify a code and then log in explicitly.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	record, err := a.users.create(req.Username, req.Password)
	if err != nil {
		if a.users.exists(req.Username) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	qr, err := qrDataURI(provisioningURL(record.TOTPSecret, record.Username))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate enrollment qr code")
		return
	}

	a.audit.logEvent(AuditRegister, r, record.Username)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		TOTPSecret: record.TOTPSecret,
		QRCode:     qr,
	})
}

// VerifyTOTP handles POST /auth/verify-totp. A valid code finalizes
// enrollment by enabling TOTP on the account. It does not log the user in.
func (a *API) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[VerifyTOTPRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	record, err := a.users.load(req.Username)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !verifyTOTPCode(record.TOTPSecret, req.Token, time.Now()) {
		a.audit.logFailure(AuditTOTPFailure, r, "invalid totp code",
			slog.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid authentication code")
		return
	}

	record.TOTPEnabled = true
	if err := a.users.save(record); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enable two-factor authentication")
		return
	}

	a.audit.logEvent(AuditTOTPEnabled, r, record.Username)
	writeJSON(w, http.StatusOK, StatusResponse{Status: StatusSuccess})
}

// Verify handles GET /auth/verify. The dashboard calls it once at startup to
// validate a persisted token. An invalid token yields {"valid":false} with
// HTTP 200, not an error.
func (a *API) Verify(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}
	username, err := a.tokens.verify(token)
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, Username: username})
}

// RequestReset handles POST /auth/request-reset. The reset token is returned
// in the response body only in development deployments; it is never written
// to logs in either mode.
func (a *API) RequestReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RequestResetRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	token, err := a.users.issueResetToken(req.Username)
	if err != nil {
		// Same response shape whether or not the account exists, so the
		// endpoint cannot be used to enumerate usernames.
		writeJSON(w, http.StatusOK, RequestResetResponse{
			Message: "If the account exists, a reset token has been issued.",
		})
		return
	}

	a.audit.logEvent(AuditResetRequested, r, req.Username)
	resp := RequestResetResponse{Message: "If the account exists, a reset token has been issued."}
	if a.devMode {
		resp.ResetToken = token
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPassword handles POST /auth/reset-password. The token is single use:
// it is cleared from the account record as part of the same update that
// writes the new password hash.
func (a *API) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ResetPasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "reset token is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	if err := a.users.consumeResetToken(req.Token, req.Password); err != nil {
		a.audit.logFailure(AuditResetFailure, r, "invalid or expired reset token")
		writeError(w, http.StatusUnauthorized, "invalid or expired reset token")
		return
	}

	a.audit.logEvent(AuditResetCompleted, r, "")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset. You can now log in."})
}

// Me handles GET /auth/me for authenticated callers.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MeResponse{Username: UsernameFromContext(r.Context())})
}
