package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/dbtest"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/drive"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testRedirect = "http://localhost:8080/api/google-oauth/callback"
)

type handshakeFixture struct {
	handshake   *Handshake
	creds       *db.CredentialStore
	prefs       *db.PreferenceStore
	user        *models.User
	tokenBody   string
	driveFails  atomic.Bool
	createCalls atomic.Int32
}

func newHandshakeFixture(t *testing.T, configured bool) *handshakeFixture {
	t.Helper()
	ctx := context.Background()
	database := dbtest.New(t)
	f := &handshakeFixture{
		creds:     db.NewCredentialStore(database),
		prefs:     db.NewPreferenceStore(database),
		user:      &models.User{Username: "alice", PasswordHash: "h"},
		tokenBody: `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3599,"scope":"https://www.googleapis.com/auth/drive"}`,
	}
	require.NoError(t, f.prefs.Setup(ctx, &models.SystemPreference{SystemName: "Drive"}, &models.User{Username: "admin", PasswordHash: "h"}))
	users := db.NewUserStore(database)
	require.NoError(t, users.Create(ctx, f.user))
	if configured {
		_, err := f.prefs.SetOAuthClient(ctx, "client-id", "client-secret")
		require.NoError(t, err)
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, f.tokenBody)
	}))
	t.Cleanup(tokenSrv.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if f.driveFails.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500,"message":"backend error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
	})
	mux.HandleFunc("POST /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		f.createCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"root-folder-id"}`)
	})
	driveSrv := httptest.NewServer(mux)
	t.Cleanup(driveSrv.Close)

	cfg := NewClientConfig(f.prefs, testRedirect, &oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/auth",
		TokenURL:  tokenSrv.URL,
		AuthStyle: oauth2.AuthStyleInParams,
	})
	f.handshake = NewHandshake(cfg, users, f.creds,
		drive.NewFactory(option.WithEndpoint(driveSrv.URL+"/drive/v3/")),
		HandshakeOptions{StateSecret: testSecret})
	return f
}

func (f *handshakeFixture) state(t *testing.T, name string) string {
	t.Helper()
	raw, err := f.handshake.AuthorizeURL(context.Background(), f.user.ID, name)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestAuthorizeURL(t *testing.T) {
	f := newHandshakeFixture(t, true)

	raw, err := f.handshake.AuthorizeURL(context.Background(), f.user.ID, "")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, testRedirect, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, DriveScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))

	state, err := f.handshake.state.decode(q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, state.UserID)
	assert.Equal(t, models.DefaultConnectionName, state.ConnectionName)
}

func TestAuthorizeURL_NotConfigured(t *testing.T) {
	f := newHandshakeFixture(t, false)
	_, err := f.handshake.AuthorizeURL(context.Background(), f.user.ID, "Work")
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)
}

func TestComplete_FirstConnectionBecomesActive(t *testing.T) {
	ctx := context.Background()
	f := newHandshakeFixture(t, true)

	dest, err := f.handshake.Complete(ctx, CallbackParams{Code: "good-code", State: f.state(t, "My Drive")})
	require.NoError(t, err)
	assert.Equal(t, RedirectSuccess, dest)

	creds, err := f.creds.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.True(t, creds[0].IsActive)
	assert.Equal(t, "My Drive", creds[0].ConnectionName)
	assert.Equal(t, "root-folder-id", creds[0].DriveRootFolderID)
	assert.Equal(t, "access-1", creds[0].AccessToken)
	assert.Equal(t, "refresh-1", creds[0].RefreshToken)
	assert.Equal(t, DriveScope, creds[0].Scope)
	assert.WithinDuration(t, time.Now().Add(time.Hour), creds[0].ExpiresAt, time.Minute)

	// A second, differently named connection is stored inactive.
	dest, err = f.handshake.Complete(ctx, CallbackParams{Code: "good-code", State: f.state(t, "Work")})
	require.NoError(t, err)
	assert.Equal(t, RedirectSuccess, dest)

	work, err := f.creds.FindByUserAndName(ctx, f.user.ID, "Work")
	require.NoError(t, err)
	assert.False(t, work.IsActive)
}

func TestComplete_RootFolderFailureStillStoresCredential(t *testing.T) {
	ctx := context.Background()
	f := newHandshakeFixture(t, true)

	require.NoError(t, f.creds.Create(ctx, &models.Credential{
		UserID: f.user.ID, ConnectionName: "Work", AccessToken: "old", RefreshToken: "old",
		DriveRootFolderID: "existing-root",
	}))
	f.driveFails.Store(true)

	dest, err := f.handshake.Complete(ctx, CallbackParams{Code: "good-code", State: f.state(t, "Work")})
	require.NoError(t, err)
	assert.Equal(t, RedirectSuccess, dest)

	work, err := f.creds.FindByUserAndName(ctx, f.user.ID, "Work")
	require.NoError(t, err)
	assert.Equal(t, "access-1", work.AccessToken)
	assert.Equal(t, "existing-root", work.DriveRootFolderID, "unresolved root leaves the stored one")
	assert.Zero(t, f.createCalls.Load())
}

func TestComplete_TerminalStatesWriteNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		params   func(f *handshakeFixture, t *testing.T) CallbackParams
		tokenRes string
		wantDest string
		wantErr  error
	}{
		{
			name:     "denied",
			params:   func(f *handshakeFixture, t *testing.T) CallbackParams { return CallbackParams{Error: "access_denied"} },
			wantDest: RedirectDenied,
		},
		{
			name:    "missing code",
			params:  func(f *handshakeFixture, t *testing.T) CallbackParams { return CallbackParams{State: f.state(t, "")} },
			wantErr: apperr.ErrBadRequest,
		},
		{
			name: "forged state",
			params: func(f *handshakeFixture, t *testing.T) CallbackParams {
				forged, err := stateCodec{secret: []byte("another-secret-another-secret-xx"), now: time.Now}.encode(f.user.ID, "My Drive")
				require.NoError(t, err)
				return CallbackParams{Code: "good-code", State: forged}
			},
			wantErr: apperr.ErrBadRequest,
		},
		{
			name: "unknown user",
			params: func(f *handshakeFixture, t *testing.T) CallbackParams {
				s, err := f.handshake.state.encode("ghost", "My Drive")
				require.NoError(t, err)
				return CallbackParams{Code: "good-code", State: s}
			},
			wantErr: apperr.ErrNotFound,
		},
		{
			name:     "exchange rejected",
			params:   func(f *handshakeFixture, t *testing.T) CallbackParams { return CallbackParams{Code: "bad-code", State: f.state(t, "")} },
			wantDest: RedirectFailed,
		},
		{
			name:     "no refresh token",
			params:   func(f *handshakeFixture, t *testing.T) CallbackParams { return CallbackParams{Code: "good-code", State: f.state(t, "")} },
			tokenRes: `{"access_token":"access-1","token_type":"Bearer","expires_in":3599}`,
			wantDest: RedirectFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandshakeFixture(t, true)
			if tt.tokenRes != "" {
				f.tokenBody = tt.tokenRes
			}

			dest, err := f.handshake.Complete(ctx, tt.params(f, t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantDest, dest)
			}

			count, err := f.creds.CountByUser(ctx, f.user.ID)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestStateCodec_Expires(t *testing.T) {
	now := time.Now()
	codec := stateCodec{secret: []byte(testSecret), now: func() time.Time { return now }}
	raw, err := codec.encode("u1", "Work")
	require.NoError(t, err)

	later := stateCodec{secret: []byte(testSecret), now: func() time.Time { return now.Add(stateTTL + time.Minute) }}
	_, err = later.decode(raw)
	assert.ErrorIs(t, err, errInvalidState)

	state, err := codec.decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Work", state.ConnectionName)
}
