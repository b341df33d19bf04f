package api

// Login and registration statuses returned in response bodies.
const (
	StatusSuccess     = "success"
	StatusMFARequired = "mfa_required"
)

// LoginRequest is the JSON body for POST /auth/login. Token carries the
// six-digit TOTP code and is absent on the first attempt.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token,omitempty"`
}

// LoginResponse is returned from POST /auth/login. Token and Username are
// only present when Status is "success".
type LoginResponse struct {
	Status   string `json:"status"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is returned from POST /auth/register. QRCode is a PNG
// data URI of the otpauth:// provisioning URL. No session is issued at
// registration; the account must complete TOTP verification and then log in.
type RegisterResponse struct {
	TOTPSecret string `json:"totp_secret"`
	QRCode     string `json:"qr_code"`
}

// VerifyTOTPRequest is the JSON body for POST /auth/verify-totp.
type VerifyTOTPRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// StatusResponse is returned from POST /auth/verify-totp.
type StatusResponse struct {
	Status string `json:"status"`
}

// VerifyResponse is returned from GET /auth/verify.
type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

// RequestResetRequest is the JSON body for POST /auth/request-reset.
type RequestResetRequest struct {
	Username string `json:"username"`
}

// RequestResetResponse is returned from POST /auth/request-reset. ResetToken
// is populated only in non-production deployments, where no email channel
// exists to deliver it.
type RequestResetResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// ResetPasswordRequest is the JSON body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// MessageResponse is returned from POST /auth/reset-password.
type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse is returned from GET /auth/me.
type MeResponse struct {
	Username string `json:"username"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
