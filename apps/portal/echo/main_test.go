package echoportal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
	apisvc "github.com/trezcool/cems/services/api"
	"github.com/trezcool/cems/storage/tokenstore/memstore"
	"github.com/trezcool/cems/tests"
)

type testPortal struct {
	t       *testing.T
	api     *testutil.Backend
	records *memstore.Records
	logger  *testutil.Logger
	srv     *server
}

func newTestPortal(t *testing.T, transport ...http.RoundTripper) *testPortal {
	t.Helper()
	api := testutil.NewBackend(t)
	conf := api.Config()
	logger := testutil.NewLogger()

	httpClient := &http.Client{Timeout: conf.API.Timeout}
	if len(transport) > 0 {
		httpClient.Transport = transport[0]
	}
	records := memstore.NewRecords()
	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Backend:        apisvc.NewClient(conf, httpClient, logger),
		Stores:         MemoryStores(records, logger),
		DisableReqLogs: true,
	}).(*server)
	t.Cleanup(func() { _ = srv.Close() })

	return &testPortal{t: t, api: api, records: records, logger: logger, srv: srv}
}

// browser keeps the session cookie between requests.
type browser struct {
	p      *testPortal
	cookie *http.Cookie
}

func (p *testPortal) browser() *browser {
	return &browser{p: p}
}

func (b *browser) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	t := b.p.t
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.p.srv.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == defaultSessionCookie {
			b.cookie = cookie
		}
	}
	return rec
}

func (b *browser) session() *session {
	b.p.t.Helper()
	require.NotNil(b.p.t, b.cookie, "no session cookie yet")
	return b.p.srv.sessions.get(b.cookie.Value)
}

// settle waits for the session's background identity refresh.
func (b *browser) settle() error {
	task := b.session().manager.Background()
	if task == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func (b *browser) login(username, password string, from ...string) *httptest.ResponseRecorder {
	b.p.t.Helper()
	form := echo.Map{"username": username, "password": password}
	if len(from) > 0 {
		form["from"] = from[0]
	}
	rec := b.do(http.MethodPost, auth.PathLogin, form)
	require.Equal(b.p.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.NoError(b.p.t, b.settle())
	return rec
}

type renderedPage struct {
	Path          string                   `json:"path"`
	Identity      *auth.Identity           `json:"identity"`
	Loading       bool                     `json:"loading"`
	DashboardPath string                   `json:"dashboardPath"`
	Notifications []dashboard.Notification `json:"notifications"`
	Data          json.RawMessage          `json:"data"`
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) renderedPage {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page renderedPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	if data != nil {
		require.NoError(t, json.Unmarshal(page.Data, data))
	}
	return page
}

func location(rec *httptest.ResponseRecorder) string {
	return rec.Header().Get(echo.HeaderLocation)
}
