package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/pysugar/unified-drive/internal/auth/google"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/auth/token"
	"github.com/pysugar/unified-drive/internal/broker"
	"github.com/pysugar/unified-drive/internal/db"
	"github.com/pysugar/unified-drive/internal/db/dbtest"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/drive"
)

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	testBaseURL = "http://localhost:8080"
)

type apiFixture struct {
	router http.Handler
	creds  *db.CredentialStore
	prefs  *db.PreferenceStore
	users  *db.UserStore
}

type envelopeBody struct {
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
}

func newAPIFixture(t *testing.T, maxUpload int64) *apiFixture {
	t.Helper()
	database := dbtest.New(t)
	f := &apiFixture{
		creds: db.NewCredentialStore(database),
		prefs: db.NewPreferenceStore(database),
		users: db.NewUserStore(database),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Form.Get("grant_type") == "refresh_token":
			fmt.Fprint(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
		case r.Form.Get("code") == "good-code":
			fmt.Fprint(w, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
		}
	}))
	t.Cleanup(tokenSrv.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("q"), "mimeType=") {
			fmt.Fprint(w, `{"files":[]}`)
			return
		}
		fmt.Fprint(w, `{"files":[{"id":"f1","name":"notes.txt","mimeType":"text/plain"}]}`)
	})
	mux.HandleFunc("POST /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": fmt.Sprintf("new-%v", body["name"]), "name": body["name"], "mimeType": body["mimeType"]})
	})
	mux.HandleFunc("POST /upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"uploaded","name":"hello.txt","mimeType":"text/plain"}`)
	})
	mux.HandleFunc("GET /drive/v3/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "f1" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"File not found"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"f1","name":"notes.txt","mimeType":"text/plain","size":"12","webContentLink":"https://drive.example/f1"}`)
	})
	driveSrv := httptest.NewServer(mux)
	t.Cleanup(driveSrv.Close)

	cfg := google.NewClientConfig(f.prefs, testBaseURL+"/api/google-oauth/callback", &oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/auth",
		TokenURL:  tokenSrv.URL,
		AuthStyle: oauth2.AuthStyleInParams,
	})
	factory := drive.NewFactory(option.WithEndpoint(driveSrv.URL + "/drive/v3/"))
	guard := token.NewGuard(f.creds, cfg, log, nil)
	sessions := session.NewManager(testSecret, time.Hour, false)

	f.router = NewRouter(Deps{
		Log:      log,
		Users:    f.users,
		Prefs:    f.prefs,
		Creds:    f.creds,
		Sessions: sessions,
		Handshake: google.NewHandshake(cfg, f.users, f.creds, factory, google.HandshakeOptions{
			StateSecret: testSecret,
			Logger:      log,
		}),
		Broker: broker.New(broker.NewResolver(f.creds), cfg, guard, factory,
			drive.NewNegotiator(guard, nil, driveSrv.URL+"/upload/drive/v3/files"), log),
		BaseURL:        testBaseURL,
		MaxUploadBytes: maxUpload,
	})
	return f
}

func (f *apiFixture) do(t *testing.T, req *http.Request, bearer string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body envelopeBody
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func (f *apiFixture) call(t *testing.T, method, path string, payload any, bearer string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req, bearer)
}

// setup runs first-run setup and returns an admin session token.
func (f *apiFixture) setup(t *testing.T, allowRegistration bool) string {
	t.Helper()
	rec, _ := f.call(t, http.MethodPost, "/api/setup", map[string]any{
		"systemName":        "Unified Drive",
		"allowRegistration": allowRegistration,
		"adminUsername":     "admin",
		"adminPassword":     "admin-pass",
		"adminFullName":     "Admin",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return f.login(t, "admin", "admin-pass")
}

func (f *apiFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	rec, body := f.call(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (f *apiFixture) adminID(t *testing.T) string {
	t.Helper()
	admin, err := f.users.FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	return admin.ID
}

func (f *apiFixture) configureClient(t *testing.T, adminToken string) {
	t.Helper()
	rec, _ := f.call(t, http.MethodPost, "/api/google-oauth-client",
		map[string]string{"clientId": "client-id", "clientSecret": "client-secret"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f *apiFixture) seedCredential(t *testing.T, userID, name string) *models.Credential {
	t.Helper()
	cred := &models.Credential{
		UserID:            userID,
		AccessToken:       "access-" + name,
		RefreshToken:      "refresh-" + name,
		ExpiresAt:         time.Now().Add(time.Hour),
		DriveRootFolderID: "root-" + name,
		ConnectionName:    name,
	}
	require.NoError(t, f.creds.Create(context.Background(), cred))
	return cred
}

func TestSetupFlow(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	rec, body := f.call(t, http.MethodGet, "/api/setup/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isSetupComplete":false,"systemPreference":null}`, string(body.Data))

	rec, body = f.call(t, http.MethodPost, "/api/setup", map[string]any{"systemName": "X"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Allow registration must be a boolean", body.Message)

	f.setup(t, false)

	rec, body = f.call(t, http.MethodGet, "/api/setup/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isSetupComplete":true,"systemPreference":{"systemName":"Unified Drive","allowRegistration":false}}`, string(body.Data))

	rec, body = f.call(t, http.MethodPost, "/api/setup", map[string]any{
		"systemName": "Again", "allowRegistration": true,
		"adminUsername": "other", "adminPassword": "p", "adminFullName": "O",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "System is already set up", body.Message)
}

func TestAccounts(t *testing.T) {
	t.Run("registration disabled", func(t *testing.T) {
		f := newAPIFixture(t, 1<<20)
		f.setup(t, false)
		rec, body := f.call(t, http.MethodPost, "/api/auth/register",
			map[string]string{"username": "bob", "password": "pw", "fullName": "Bob"}, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Registration is not allowed", body.Message)
	})

	t.Run("register login me", func(t *testing.T) {
		f := newAPIFixture(t, 1<<20)
		f.setup(t, true)

		rec, body := f.call(t, http.MethodPost, "/api/auth/register",
			map[string]string{"username": "bob", "password": "bob-pass", "fullName": "Bob"}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Registration successful", body.Message)

		rec, body = f.call(t, http.MethodPost, "/api/auth/register",
			map[string]string{"username": "bob", "password": "x", "fullName": "Bob"}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already exists", body.Message)

		rec, _ = f.call(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		tok := f.login(t, "bob", "bob-pass")
		rec, body = f.call(t, http.MethodGet, "/api/auth/me", nil, tok)
		require.Equal(t, http.StatusOK, rec.Code)
		var me struct {
			User userView `json:"user"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &me))
		assert.Equal(t, "bob", me.User.Username)
		assert.Equal(t, models.RoleReader, me.User.Role)

		rec, _ = f.call(t, http.MethodGet, "/api/auth/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login sets cookie and logout clears it", func(t *testing.T) {
		f := newAPIFixture(t, 1<<20)
		f.setup(t, false)

		rec, _ := f.call(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "admin-pass"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == session.CookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(cookie)
		rec, _ = f.do(t, req, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = f.call(t, http.MethodPost, "/api/auth/logout", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Result().Cookies())
		assert.Less(t, rec.Result().Cookies()[0].MaxAge, 0)
	})
}

func TestOAuthClientAdmin(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	adminTok := f.setup(t, true)

	rec, _ := f.call(t, http.MethodPost, "/api/auth/register",
		map[string]string{"username": "reader", "password": "pw", "fullName": "R"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	readerTok := f.login(t, "reader", "pw")

	rec, body := f.call(t, http.MethodGet, "/api/google-oauth-client", nil, readerTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"reason":"forbidden"}`, string(body.Data))

	rec, body = f.call(t, http.MethodGet, "/api/google-oauth-client", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientId":null,"isConfigured":false}`, string(body.Data))

	rec, body = f.call(t, http.MethodPost, "/api/google-oauth-client", map[string]string{"clientId": "only-id"}, adminTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Client ID and Client Secret are required", body.Message)

	f.configureClient(t, adminTok)
	rec, body = f.call(t, http.MethodGet, "/api/google-oauth-client", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientId":"client-id","isConfigured":true}`, string(body.Data))

	rec, _ = f.call(t, http.MethodDelete, "/api/google-oauth-client", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = f.call(t, http.MethodGet, "/api/google-oauth-client", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientId":null,"isConfigured":false}`, string(body.Data))
}

func TestConnectFlow(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	tok := f.setup(t, false)

	rec, body := f.call(t, http.MethodGet, "/api/google-oauth/authorize", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"reason":"not_configured"}`, string(body.Data))

	f.configureClient(t, tok)

	rec, _ = f.call(t, http.MethodGet, "/api/google-oauth/authorize?connectionName=Work", nil, tok)
	require.Equal(t, http.StatusFound, rec.Code)
	consent, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", consent.Host)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	rec, _ = f.call(t, http.MethodGet, "/api/google-oauth/callback?code=good-code&state="+url.QueryEscape(state), nil, "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testBaseURL+google.RedirectSuccess, rec.Header().Get("Location"))

	rec, body = f.call(t, http.MethodGet, "/api/google-oauth/status", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		IsConnected       bool             `json:"isConnected"`
		IsOAuthConfigured bool             `json:"isOAuthConfigured"`
		DriveRootFolderID *string          `json:"driveRootFolderId"`
		ConnectionName    string           `json:"connectionName"`
		Connections       []connectionView `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.True(t, status.IsConnected)
	assert.True(t, status.IsOAuthConfigured)
	assert.Equal(t, "Work", status.ConnectionName)
	require.NotNil(t, status.DriveRootFolderID)
	assert.Equal(t, "new-Unified Drive", *status.DriveRootFolderID)
	require.Len(t, status.Connections, 1)
	assert.True(t, status.Connections[0].IsActive)

	rec, _ = f.call(t, http.MethodGet, "/api/google-oauth/callback?error=access_denied", nil, "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testBaseURL+google.RedirectDenied, rec.Header().Get("Location"))

	rec, body = f.call(t, http.MethodGet, "/api/google-oauth/callback?code=good-code", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManageConnections(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	tok := f.setup(t, false)
	userID := f.adminID(t)
	ctx := context.Background()

	a := f.seedCredential(t, userID, "A")
	b := f.seedCredential(t, userID, "B")
	c := f.seedCredential(t, userID, "C")

	rec, body := f.call(t, http.MethodPost, "/api/google-oauth/switch-connection", map[string]string{}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Connection ID is required", body.Message)

	rec, body = f.call(t, http.MethodPost, "/api/google-oauth/switch-connection", map[string]string{"connectionId": "nope"}, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Connection not found", body.Message)

	rec, _ = f.call(t, http.MethodPost, "/api/google-oauth/switch-connection", map[string]string{"connectionId": b.ID}, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := f.creds.FindByIDAndUser(ctx, b.ID, userID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	rec, body = f.call(t, http.MethodPut, "/api/google-oauth/connection-name",
		map[string]string{"connectionId": c.ID, "connectionName": "A"}, tok)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "A connection with this name already exists", body.Message)

	rec, body = f.call(t, http.MethodPut, "/api/google-oauth/connection-name",
		map[string]string{"connectionId": c.ID, "connectionName": strings.Repeat("x", 51)}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.call(t, http.MethodPut, "/api/google-oauth/connection-name",
		map[string]string{"connectionId": c.ID, "connectionName": "  Personal  "}, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connectionName":"Personal"}`, string(body.Data))

	// Deleting the active connection promotes the oldest remaining one.
	rec, body = f.call(t, http.MethodDelete, "/api/google-oauth/status?connectionId="+b.ID, nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Connection deleted successfully", body.Message)
	got, err = f.creds.FindByIDAndUser(ctx, a.ID, userID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	rec, _ = f.call(t, http.MethodDelete, "/api/google-oauth/status?connectionId="+b.ID, nil, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.call(t, http.MethodDelete, "/api/google-oauth/status", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All connections deleted successfully", body.Message)
	n, err := f.creds.CountByUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFiles(t *testing.T) {
	f := newAPIFixture(t, 1024)
	tok := f.setup(t, false)
	userID := f.adminID(t)

	rec, _ := f.call(t, http.MethodGet, "/api/files", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := f.call(t, http.MethodGet, "/api/files", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"reason":"not_connected"}`, string(body.Data))

	cred := f.seedCredential(t, userID, "Main")

	rec, body = f.call(t, http.MethodGet, "/api/files", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"reason":"not_configured"}`, string(body.Data))

	f.configureClient(t, tok)

	t.Run("list", func(t *testing.T) {
		rec, body := f.call(t, http.MethodGet, "/api/files?connectionId="+cred.ID, nil, tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var files []drive.FileInfo
		require.NoError(t, json.Unmarshal(body.Data, &files))
		require.Len(t, files, 1)
		assert.Equal(t, "notes.txt", files[0].Name)
	})

	t.Run("foreign connection", func(t *testing.T) {
		rec, body := f.call(t, http.MethodGet, "/api/files?connectionId=someone-else", nil, tok)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Connection not found", body.Message)
	})

	t.Run("search requires query", func(t *testing.T) {
		rec, body := f.call(t, http.MethodGet, "/api/files/search", nil, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Search query is required", body.Message)
	})

	t.Run("create folder", func(t *testing.T) {
		rec, body := f.call(t, http.MethodPost, "/api/files/folders", map[string]string{"name": "Reports"}, tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var folder drive.FileInfo
		require.NoError(t, json.Unmarshal(body.Data, &folder))
		assert.Equal(t, "new-Reports", folder.ID)
	})

	t.Run("rename requires fields", func(t *testing.T) {
		rec, body := f.call(t, http.MethodPut, "/api/files/rename", map[string]string{"fileId": "f1"}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File ID and new name are required", body.Message)
	})

	t.Run("download descriptor", func(t *testing.T) {
		rec, body := f.call(t, http.MethodGet, "/api/files/download/f1", nil, tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"downloadUrl":"https://drive.example/f1","fileName":"notes.txt","mimeType":"text/plain","size":12}`, string(body.Data))

		rec, body = f.call(t, http.MethodGet, "/api/files/download/missing", nil, tok)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "File or folder not found", body.Message)
	})

	t.Run("upload token", func(t *testing.T) {
		rec, body := f.call(t, http.MethodPost, "/api/files/upload-token", map[string]any{"fileName": "a.txt"}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File name and mime type are required", body.Message)

		rec, body = f.call(t, http.MethodPost, "/api/files/upload-token",
			map[string]any{"fileName": "a.txt", "mimeType": "text/plain", "fileSize": 100}, tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var inst drive.UploadInstruction
		require.NoError(t, json.Unmarshal(body.Data, &inst))
		assert.Equal(t, drive.UploadSimple, inst.UploadType)
		assert.Equal(t, "access-Main", inst.AccessToken)
		require.NotNil(t, inst.Metadata)
		assert.Equal(t, []string{"root-Main"}, inst.Metadata.Parents)
	})

	t.Run("relay upload", func(t *testing.T) {
		rec, body := f.do(t, multipartUpload(t, "hello.txt", []byte("hello")), tok)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var file drive.FileInfo
		require.NoError(t, json.Unmarshal(body.Data, &file))
		assert.Equal(t, "uploaded", file.ID)

		rec, _ = f.do(t, multipartUpload(t, "big.bin", bytes.Repeat([]byte("x"), 4096)), tok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("share validation", func(t *testing.T) {
		rec, body := f.call(t, http.MethodPost, "/api/files/f1/share", map[string]string{"type": "user", "role": "reader"}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "emailAddress is required for user and group shares", body.Message)
	})
}

func multipartUpload(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, 1024)
	rec, body := f.call(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), `"status":"ok"`)
}
