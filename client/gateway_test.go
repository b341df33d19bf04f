package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexman/api"
	"plexman/client/session"
	"plexman/storage"
	"plexman/storage/memory"
)

// testBackend runs a real authentication backend over in-memory storage and
// wires a Gateway plus its session store against it.
type testBackend struct {
	srv      *httptest.Server
	gateway  *Gateway
	store    *session.Store
	repo     *memory.Repository
	enrolled map[string]string // username -> TOTP secret
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := api.New(memory.NewRepository(), "test-signing-secret",
		api.WithLogger(logger), api.WithDevMode(true))
	r := chi.NewRouter()
	r.Mount("/api", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	repo := memory.NewRepository()
	store := session.New(repo)
	return &testBackend{
		srv:      srv,
		gateway:  New(srv.URL+"/api", store),
		store:    store,
		repo:     repo,
		enrolled: map[string]string{},
	}
}

// register creates an account without finalizing second-factor enrollment.
func (b *testBackend) register(t *testing.T, username, password string) Enrollment {
	t.Helper()
	enr, err := b.gateway.Register(context.Background(), username, password)
	require.NoError(t, err)
	b.enrolled[username] = enr.TOTPSecret
	return enr
}

func TestLoginSuccessMutatesStore(t *testing.T) {
	b := newTestBackend(t)
	b.register(t, "alice", "correcthorse")

	res, err := b.gateway.Login(context.Background(), "alice", "correcthorse", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.MFARequired)

	snap := b.store.Get()
	assert.True(t, snap.IsAuthenticated())
	assert.Equal(t, "alice", snap.Username)
	assert.NotEmpty(t, snap.Token)
}

func TestLoginFailureLeavesStoreUntouched(t *testing.T) {
	b := newTestBackend(t)
	b.register(t, "alice", "correcthorse")

	_, err := b.gateway.Login(context.Background(), "alice", "wrongpassword", "")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.NotEmpty(t, authErr.Message)

	assert.Equal(t, session.Snapshot{}, b.store.Get())
	_, err = b.repo.Get("session", "authToken")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoginMFARequiredLeavesStoreUntouched(t *testing.T) {
	b := newTestBackend(t)
	enr := b.register(t, "alice", "correcthorse")
	requireEnrolled(t, b, "alice", enr.TOTPSecret)

	res, err := b.gateway.Login(context.Background(), "alice", "correcthorse", "")
	require.NoError(t, err)
	assert.True(t, res.MFARequired)
	assert.False(t, res.Success)

	assert.Equal(t, session.Snapshot{}, b.store.Get())
}

// requireEnrolled finalizes second-factor enrollment by computing the current
// code from the shared secret, the same way an authenticator app would.
func requireEnrolled(t *testing.T, b *testBackend, username, secret string) {
	t.Helper()
	code := currentTOTPCode(t, secret)
	require.NoError(t, b.gateway.VerifyTOTP(context.Background(), username, code))
}

// currentTOTPCode derives the current six-digit code from a base32 shared
// secret per RFC 6238 (SHA-1, 30-second steps).
func currentTOTPCode(t *testing.T, secret string) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	require.NoError(t, err)

	counter := uint64(time.Now().Unix()) / 30
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%06d", code%1_000_000)
}

func TestLoginValidation(t *testing.T) {
	b := newTestBackend(t)

	var valErr *ValidationError
	_, err := b.gateway.Login(context.Background(), "", "correcthorse", "")
	assert.ErrorAs(t, err, &valErr)
	_, err = b.gateway.Login(context.Background(), "alice", "", "")
	assert.ErrorAs(t, err, &valErr)
}

func TestLoginSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		json.NewEncoder(w).Encode(api.LoginResponse{
			Status: api.StatusSuccess, Token: "tok", Username: "alice",
		})
	}))
	defer stub.Close()

	g := New(stub.URL, session.New(memory.NewRepository()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := g.Login(context.Background(), "alice", "correcthorse", "")
		assert.NoError(t, err)
	}()

	// Once the stub has the first request, the slot is held and a second
	// login must be refused.
	<-started
	_, err := g.Login(context.Background(), "alice", "correcthorse", "")
	assert.ErrorIs(t, err, ErrLoginInFlight)

	close(release)
	wg.Wait()

	// Slot is released after completion.
	res, err := g.Login(context.Background(), "alice", "correcthorse", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLoginMalformedResponse(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoginResponse{Status: api.StatusSuccess}) // no token
	}))
	defer stub.Close()

	store := session.New(memory.NewRepository())
	g := New(stub.URL, store)

	_, err := g.Login(context.Background(), "alice", "correcthorse", "")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "failed to connect to server", err.Error())
	assert.Equal(t, session.Snapshot{}, store.Get())
}

func TestLoginUnreachableServer(t *testing.T) {
	g := New("http://127.0.0.1:1", session.New(memory.NewRepository()),
		WithHTTPClient(&http.Client{Timeout: 500 * time.Millisecond}))

	_, err := g.Login(context.Background(), "alice", "correcthorse", "")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.NotNil(t, transportErr.Unwrap())
}

func TestRegisterValidation(t *testing.T) {
	b := newTestBackend(t)

	var valErr *ValidationError
	_, err := b.gateway.Register(context.Background(), "", "correcthorse")
	assert.ErrorAs(t, err, &valErr)
	_, err = b.gateway.Register(context.Background(), "alice", "short")
	assert.ErrorAs(t, err, &valErr)
}

func TestRegisterReturnsEnrollment(t *testing.T) {
	b := newTestBackend(t)

	enr := b.register(t, "alice", "correcthorse")
	assert.NotEmpty(t, enr.TOTPSecret)
	assert.True(t, strings.HasPrefix(enr.QRCode, "data:image/png;base64,"))

	// Registration never authenticates.
	assert.Equal(t, session.Snapshot{}, b.store.Get())
}

func TestVerifyTOTPNeverAuthenticates(t *testing.T) {
	b := newTestBackend(t)
	enr := b.register(t, "alice", "correcthorse")

	requireEnrolled(t, b, "alice", enr.TOTPSecret)
	assert.Equal(t, session.Snapshot{}, b.store.Get())
}

func TestVerifyTOTPCodeValidation(t *testing.T) {
	b := newTestBackend(t)

	var valErr *ValidationError
	err := b.gateway.VerifyTOTP(context.Background(), "alice", "123")
	assert.ErrorAs(t, err, &valErr)
	err = b.gateway.VerifyTOTP(context.Background(), "alice", "abc")
	assert.ErrorAs(t, err, &valErr)
}

func TestConfirmResetValidatesBeforeNetwork(t *testing.T) {
	// No server at all: validation failures must not attempt a request.
	g := New("http://127.0.0.1:1", session.New(memory.NewRepository()))

	var valErr *ValidationError
	_, err := g.ConfirmReset(context.Background(), "", "newpassword1")
	assert.ErrorAs(t, err, &valErr)
	_, err = g.ConfirmReset(context.Background(), "sometoken", "short")
	assert.ErrorAs(t, err, &valErr)
}

func TestResetFlowEndToEnd(t *testing.T) {
	b := newTestBackend(t)
	b.register(t, "alice", "correcthorse")

	issued, err := b.gateway.RequestReset(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ResetToken)

	msg, err := b.gateway.ConfirmReset(context.Background(), issued.ResetToken, "newpassword1")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	// The token is single use.
	_, err = b.gateway.ConfirmReset(context.Background(), issued.ResetToken, "anotherpassword")
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)

	// Reset does not log the user in.
	assert.Equal(t, session.Snapshot{}, b.store.Get())

	res, err := b.gateway.Login(context.Background(), "alice", "newpassword1", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestVerifyPopulatesUsernameForValidToken(t *testing.T) {
	b := newTestBackend(t)
	b.register(t, "alice", "correcthorse")

	res, err := b.gateway.Login(context.Background(), "alice", "correcthorse", "")
	require.NoError(t, err)
	require.True(t, res.Success)
	token := b.store.Get().Token

	// Simulate a restart: fresh store over the same durable storage.
	store := session.New(b.repo)
	require.NoError(t, store.Hydrate())
	require.False(t, store.Get().IsAuthenticated())

	g := New(b.srv.URL+"/api", store)
	snap := g.Verify(context.Background())
	assert.True(t, snap.IsAuthenticated())
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, token, snap.Token)
}

func TestVerifyClearsInvalidToken(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.store.Set("not-a-real-token", "alice"))
	snap := b.gateway.Verify(context.Background())
	assert.Equal(t, session.Snapshot{}, snap)

	// The durable record is gone too.
	_, err := b.repo.Get("session", "authToken")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVerifyClearsOnUnreachableServer(t *testing.T) {
	repo := memory.NewRepository()
	store := session.New(repo)
	require.NoError(t, store.Set("tok", "alice"))

	g := New("http://127.0.0.1:1", store,
		WithHTTPClient(&http.Client{Timeout: 500 * time.Millisecond}))
	snap := g.Verify(context.Background())
	assert.Equal(t, session.Snapshot{}, snap)
}

func TestVerifyWithNoToken(t *testing.T) {
	b := newTestBackend(t)
	snap := b.gateway.Verify(context.Background())
	assert.Equal(t, session.Snapshot{}, snap)
}

func TestLogoutClearsDurableRecord(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.store.Set("tok", "alice"))

	require.NoError(t, b.gateway.Logout())
	assert.Equal(t, session.Snapshot{}, b.store.Get())
	_, err := b.repo.Get("session", "authToken")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Logging out while already logged out is fine.
	assert.NoError(t, b.gateway.Logout())
}

func TestSanitizeCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123456", "123456"},
		{"123 456", "123456"},
		{"12-34-56", "123456"},
		{"1234567890", "123456"},
		{"abc", ""},
		{"", ""},
		{"１２３abc456789", "456789"}, // full-width digits are not ASCII digits
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeCode(tc.in), "input %q", tc.in)
	}
}
