package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/marketplace-auth-server/auth"
	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/internal/utils"
	"github.com/jrsteele09/marketplace-auth-server/server/authflowrepo"
	"github.com/jrsteele09/marketplace-auth-server/server/loginsession"
	"github.com/jrsteele09/marketplace-auth-server/upstream"
	"github.com/jrsteele09/marketplace-auth-server/upstream/upstreamfake"
	"github.com/jrsteele09/marketplace-auth-server/users"
	"github.com/stretchr/testify/require"
)

const testCode = "4/0AfJohXkTestAuthorizationCode"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakySessionRepo injects store failures in front of a working repo.
type flakySessionRepo struct {
	loginsession.Repo
	createErr error
	updateErr error
	deleteErr error
}

func (r *flakySessionRepo) Create(ctx context.Context, s loginsession.Session) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.Repo.Create(ctx, s)
}

func (r *flakySessionRepo) Update(ctx context.Context, id string, fn func(*loginsession.Session) error) (loginsession.Session, error) {
	if r.updateErr != nil {
		if _, err := r.Repo.Get(ctx, id); err != nil {
			return loginsession.Session{}, err
		}
		return loginsession.Session{}, r.updateErr
	}
	return r.Repo.Update(ctx, id, fn)
}

func (r *flakySessionRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Repo.Delete(ctx, id)
}

// testFixture holds all test dependencies
type testFixture struct {
	clock    *fakeClock
	pending  *authflowrepo.InMemoryRepo
	sessions *flakySessionRepo
	provider *upstreamfake.FakeProvider
	service  *auth.AuthorizationService
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	pending := authflowrepo.NewInMemoryRepo(authflowrepo.WithNowTime(clock.Now))
	sessions := &flakySessionRepo{Repo: loginsession.NewInMemoryLoginSessionRepo(loginsession.WithNowTime(clock.Now))}
	provider := upstreamfake.New()

	var seq atomic.Int32
	service, err := auth.NewAuthorizationService(
		auth.Repos{PendingAuthorizations: pending, Sessions: sessions},
		provider,
		auth.WithNowTime(clock.Now),
		auth.WithSessionIDGenerator(func() string { return fmt.Sprintf("session-%d", seq.Add(1)) }),
	)
	require.NoError(t, err)

	return &testFixture{
		clock:    clock,
		pending:  pending,
		sessions: sessions,
		provider: provider,
		service:  service,
	}
}

// begin starts an authorization and returns the state and challenge sent to the provider.
func (f *testFixture) begin(t *testing.T) (state, challenge string) {
	t.Helper()
	authURL, err := f.service.BeginAuthorization(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state = u.Query().Get("state")
	challenge = u.Query().Get("code_challenge")
	require.NotEmpty(t, state)
	require.NotEmpty(t, challenge)
	return state, challenge
}

// signIn runs a full successful sign-in and returns the new session.
func (f *testFixture) signIn(t *testing.T) loginsession.Session {
	t.Helper()
	state, _ := f.begin(t)
	session, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
	return session
}

func requireFlowError(t *testing.T, err error, code string) {
	t.Helper()
	var flowErr *auth.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, code, flowErr.Code)
}

func TestNewAuthorizationService_RequiresDependencies(t *testing.T) {
	pending := authflowrepo.NewInMemoryRepo()
	sessions := loginsession.NewInMemoryLoginSessionRepo()
	provider := upstreamfake.New()

	_, err := auth.NewAuthorizationService(auth.Repos{Sessions: sessions}, provider)
	require.Error(t, err)
	_, err = auth.NewAuthorizationService(auth.Repos{PendingAuthorizations: pending}, provider)
	require.Error(t, err)
	_, err = auth.NewAuthorizationService(auth.Repos{PendingAuthorizations: pending, Sessions: sessions}, nil)
	require.Error(t, err)
}

func TestBeginAuthorization(t *testing.T) {
	f := setupTestFixture(t)

	state, challenge := f.begin(t)
	require.Equal(t, 1, f.pending.Len())

	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)

	verifiers := f.provider.ExchangedVerifiers()
	require.Len(t, verifiers, 1)
	verifier := verifiers[0]
	require.Len(t, verifier, 43)
	require.Equal(t, auth.CodeChallengeS256(verifier), challenge)
	require.NotEqual(t, verifier, challenge)
}

func TestBeginAuthorization_VerifierNeverInURL(t *testing.T) {
	f := setupTestFixture(t)

	authURL, err := f.service.BeginAuthorization(context.Background())
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	_, err = f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: u.Query().Get("state")})
	require.NoError(t, err)

	verifier := f.provider.ExchangedVerifiers()[0]
	require.NotContains(t, authURL, verifier)
	require.Equal(t, "S256", u.Query().Get("code_challenge_method"))
}

func TestBeginAuthorization_StatesAreUnique(t *testing.T) {
	f := setupTestFixture(t)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		state, _ := f.begin(t)
		_, dup := seen[state]
		require.False(t, dup, "duplicate state %s", state)
		seen[state] = struct{}{}
	}
	require.Equal(t, 200, f.pending.Len())
}

func TestBeginAuthorization_SweepsExpired(t *testing.T) {
	f := setupTestFixture(t)

	f.begin(t)
	f.begin(t)
	f.clock.Advance(authflowrepo.DefaultTTL + time.Minute)

	f.begin(t)
	require.Equal(t, 1, f.pending.Len())
}

func TestCompleteAuthorization_Success(t *testing.T) {
	f := setupTestFixture(t)

	session := f.signIn(t)
	require.Equal(t, "session-1", session.ID)
	require.Equal(t, f.provider.Identity.ID, session.User.ID)
	require.Equal(t, f.provider.Identity.Email, session.User.Email)
	require.Equal(t, f.provider.Identity.Name, session.User.Name)
	require.Equal(t, f.provider.Identity.Picture, session.User.Picture)
	require.True(t, session.User.EmailVerified)
	require.Nil(t, session.User.Role)
	require.Equal(t, "fake-access-token", session.Tokens.AccessToken)
	require.Equal(t, "fake-refresh-token", session.Tokens.RefreshToken)
	require.Equal(t, f.clock.Now().Add(loginsession.DefaultMaxAge), session.ExpiresAt)
	require.Equal(t, []string{testCode}, f.provider.ExchangedCodes())

	stored, err := f.sessions.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, session.User, stored.User)
}

func TestCompleteAuthorization_StateIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, _ := f.begin(t)
	params := auth.CallbackParams{Code: testCode, State: state}

	_, err := f.service.CompleteAuthorization(ctx, params)
	require.NoError(t, err)

	_, err = f.service.CompleteAuthorization(ctx, params)
	requireFlowError(t, err, auth.CodeInvalidState)
	require.Len(t, f.provider.ExchangedCodes(), 1)
}

func TestCompleteAuthorization_ConcurrentReplayHasOneWinner(t *testing.T) {
	f := setupTestFixture(t)
	state, _ := f.begin(t)

	const callers = 16
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireFlowError(t, err, auth.CodeInvalidState)
	}
	require.Equal(t, 1, wins)
}

func TestCompleteAuthorization_ExpiredState(t *testing.T) {
	f := setupTestFixture(t)

	state, _ := f.begin(t)
	f.clock.Advance(authflowrepo.DefaultTTL + time.Second)

	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	requireFlowError(t, err, auth.CodeInvalidState)
	require.ErrorIs(t, err, apperrors.ErrPendingAuthorizationExpired)
	require.Empty(t, f.provider.ExchangedCodes())
}

func TestCompleteAuthorization_ProviderErrorShortCircuits(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, _ := f.begin(t)

	_, err := f.service.CompleteAuthorization(ctx, auth.CallbackParams{Code: testCode, State: state, Error: "access_denied"})
	requireFlowError(t, err, "access_denied")

	// the state was not looked up, so it is still redeemable
	_, err = f.service.CompleteAuthorization(ctx, auth.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
}

func TestCompleteAuthorization_MissingParams(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for _, params := range []auth.CallbackParams{
		{},
		{Code: testCode},
		{State: "some-state"},
	} {
		_, err := f.service.CompleteAuthorization(ctx, params)
		requireFlowError(t, err, auth.CodeInvalidCallback)
	}
}

func TestCompleteAuthorization_UnknownState(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: "forged"})
	requireFlowError(t, err, auth.CodeInvalidState)
}

func TestCompleteAuthorization_ExchangeFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.ExchangeErr = fmt.Errorf("%w: invalid_grant", apperrors.ErrTokenExchange)

	state, _ := f.begin(t)
	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	requireFlowError(t, err, auth.CodeTokenExchangeFailed)
}

func TestCompleteAuthorization_TimeoutIsExchangeFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.ExchangeErr = context.DeadlineExceeded

	state, _ := f.begin(t)
	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	requireFlowError(t, err, auth.CodeTokenExchangeFailed)
}

func TestCompleteAuthorization_VerificationFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.VerifyErr = fmt.Errorf("%w: audience mismatch", apperrors.ErrIDTokenVerification)

	state, _ := f.begin(t)
	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	requireFlowError(t, err, auth.CodeTokenExchangeFailed)
	require.ErrorIs(t, err, apperrors.ErrIDTokenVerification)
}

func TestCompleteAuthorization_SessionFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.sessions.createErr = errors.New("store unavailable")

	state, _ := f.begin(t)
	_, err := f.service.CompleteAuthorization(context.Background(), auth.CallbackParams{Code: testCode, State: state})
	requireFlowError(t, err, auth.CodeSessionError)
}

func TestCompleteAuthorization_IgnoresCancelledRequest(t *testing.T) {
	f := setupTestFixture(t)
	state, _ := f.begin(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.CompleteAuthorization(ctx, auth.CallbackParams{Code: testCode, State: state})
	require.NoError(t, err)
}

func TestCurrentUserAndProfileStatus(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.CurrentUser(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	require.Equal(t, users.ProfileUnauthenticated, f.service.ProfileStatus(ctx, ""))
	require.Equal(t, users.ProfileUnauthenticated, f.service.ProfileStatus(ctx, "missing"))

	session := f.signIn(t)
	require.Equal(t, users.ProfilePending, f.service.ProfileStatus(ctx, session.ID))

	_, err = f.service.CompleteProfile(ctx, session.ID, "customer")
	require.NoError(t, err)
	require.Equal(t, users.ProfileComplete, f.service.ProfileStatus(ctx, session.ID))
}

func TestCompleteProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.CompleteProfile(ctx, "missing", "customer")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("no session wins over invalid role", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.CompleteProfile(ctx, "missing", "admin")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("invalid role leaves role unset", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)

		for _, role := range []string{"admin", "", "Customer"} {
			_, err := f.service.CompleteProfile(ctx, session.ID, role)
			require.ErrorIs(t, err, apperrors.ErrInvalidRole)
		}

		u, err := f.service.CurrentUser(ctx, session.ID)
		require.NoError(t, err)
		require.Nil(t, u.Role)
	})

	t.Run("every valid role is accepted idempotently", func(t *testing.T) {
		for _, role := range users.Roles() {
			f := setupTestFixture(t)
			session := f.signIn(t)

			for i := 0; i < 2; i++ {
				u, err := f.service.CompleteProfile(ctx, session.ID, string(role))
				require.NoError(t, err)
				require.Equal(t, role, utils.Value(u.Role))
			}
		}
	})

	t.Run("role can be changed", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)

		_, err := f.service.CompleteProfile(ctx, session.ID, "customer")
		require.NoError(t, err)
		u, err := f.service.CompleteProfile(ctx, session.ID, "wholesaler")
		require.NoError(t, err)
		require.Equal(t, users.RoleWholesaler, utils.Value(u.Role))
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)
		f.sessions.updateErr = errors.New("store unavailable")

		_, err := f.service.CompleteProfile(ctx, session.ID, "retailer")
		require.ErrorIs(t, err, apperrors.ErrSessionPersistence)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t)
		require.ErrorIs(t, f.service.Refresh(ctx, "missing"), apperrors.ErrSessionNotFound)
		require.ErrorIs(t, f.service.Refresh(ctx, ""), apperrors.ErrSessionNotFound)
	})

	t.Run("no refresh token leaves session untouched", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.ExchangeTokens.RefreshToken = ""
		session := f.signIn(t)

		require.ErrorIs(t, f.service.Refresh(ctx, session.ID), apperrors.ErrNoRefreshToken)
		require.Empty(t, f.provider.RefreshCalls())

		stored, err := f.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, session.Tokens, stored.Tokens)
	})

	t.Run("keeps refresh token when not rotated", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)

		require.NoError(t, f.service.Refresh(ctx, session.ID))
		require.Equal(t, []string{"fake-refresh-token"}, f.provider.RefreshCalls())

		stored, err := f.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, "fake-access-token-refreshed", stored.Tokens.AccessToken)
		require.Equal(t, "fake-refresh-token", stored.Tokens.RefreshToken)
		require.Equal(t, f.provider.RefreshResult.ExpiresAt, stored.Tokens.ExpiryDate)
	})

	t.Run("stores rotated refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.RefreshResult = upstream.Tokens{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    f.clock.Now().Add(time.Hour),
		}
		session := f.signIn(t)

		require.NoError(t, f.service.Refresh(ctx, session.ID))

		stored, err := f.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, "access-2", stored.Tokens.AccessToken)
		require.Equal(t, "refresh-2", stored.Tokens.RefreshToken)
	})

	t.Run("provider rejection does not destroy session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.RefreshErr = fmt.Errorf("%w: invalid_grant", apperrors.ErrTokenRefresh)
		session := f.signIn(t)

		require.ErrorIs(t, f.service.Refresh(ctx, session.ID), apperrors.ErrTokenRefresh)

		stored, err := f.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, session.Tokens, stored.Tokens)
	})

	t.Run("unclassified provider error is a refresh failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.RefreshErr = context.DeadlineExceeded
		session := f.signIn(t)

		require.ErrorIs(t, f.service.Refresh(ctx, session.ID), apperrors.ErrTokenRefresh)
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)
		f.sessions.updateErr = errors.New("store unavailable")

		require.ErrorIs(t, f.service.Refresh(ctx, session.ID), apperrors.ErrSessionPersistence)
	})

	t.Run("concurrent refreshes share one provider call", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.RefreshDelay = 300 * time.Millisecond
		session := f.signIn(t)

		const callers = 5
		var ready, done sync.WaitGroup
		ready.Add(callers)
		done.Add(callers)
		start := make(chan struct{})
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			go func() {
				defer done.Done()
				ready.Done()
				<-start
				errs <- f.service.Refresh(ctx, session.ID)
			}()
		}
		ready.Wait()
		close(start)
		done.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		require.Len(t, f.provider.RefreshCalls(), 1)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes access token and destroys session", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)

		require.NoError(t, f.service.Logout(ctx, session.ID))
		require.Equal(t, []string{"fake-access-token"}, f.provider.RevokedTokens())

		_, err := f.sessions.Get(ctx, session.ID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("revocation failure is swallowed", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.RevokeErr = fmt.Errorf("%w: status 503", apperrors.ErrTokenRevocation)
		session := f.signIn(t)

		require.NoError(t, f.service.Logout(ctx, session.ID))

		_, err := f.sessions.Get(ctx, session.ID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("no session is a no-op", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Logout(ctx, ""))
		require.NoError(t, f.service.Logout(ctx, "missing"))
		require.Empty(t, f.provider.RevokedTokens())
	})

	t.Run("destroy failure is reported", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)
		f.sessions.deleteErr = errors.New("store unavailable")

		require.ErrorIs(t, f.service.Logout(ctx, session.ID), apperrors.ErrSessionPersistence)
	})

	t.Run("discard does not revoke", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.signIn(t)

		require.NoError(t, f.service.DiscardSession(ctx, session.ID))
		require.Empty(t, f.provider.RevokedTokens())

		_, err := f.sessions.Get(ctx, session.ID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

func TestPKCE(t *testing.T) {
	// RFC 7636 appendix B
	require.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		auth.CodeChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)

	verifier, err := auth.NewCodeVerifier()
	require.NoError(t, err)
	require.Len(t, verifier, 43)
	require.Regexp(t, `^[A-Za-z0-9_-]+$`, verifier)

	state, err := auth.NewState()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(state), 22) // >= 16 bytes of entropy
	require.NotEqual(t, verifier, state)
}
