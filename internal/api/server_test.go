package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
)

type stubService struct {
	contextResult reconcile.Context
	actionsResult reconcile.PendingActions
	statusResult  Status

	savedPaths   []string
	savedReply   bool
	notices      []string
	bootstrapErr error
	installErr   error
}

func (s *stubService) ProjectContext(context.Context) reconcile.Context {
	return s.contextResult
}

func (s *stubService) Prerequisites(context.Context) reconcile.Prerequisites {
	return reconcile.Prerequisites{BuildToolsAvailable: true, PackageAvailable: true}
}

func (s *stubService) PendingActions(context.Context) reconcile.PendingActions {
	return s.actionsResult
}

func (s *stubService) Options(context.Context) interp.Options {
	return interp.DefaultOptions()
}

func (s *stubService) Status(context.Context) Status {
	return s.statusResult
}

func (s *stubService) NotifySaved(_ context.Context, path string) bool {
	s.savedPaths = append(s.savedPaths, path)
	return s.savedReply
}

func (s *stubService) ActionNotice(_ context.Context, project, action string, running bool) {
	s.notices = append(s.notices, action)
}

func (s *stubService) Bootstrap(context.Context, bool) error {
	return s.bootstrapErr
}

func (s *stubService) InstallManager(context.Context) error {
	return s.installErr
}

func newTestServer(svc Service) *httptest.Server {
	server := NewServer(svc, slog.New(slog.DiscardHandler))
	return httptest.NewServer(server.Handler())
}

func TestServer_Context(t *testing.T) {
	svc := &stubService{
		contextResult: reconcile.Context{Available: true, Applicable: true, Packified: true, ModeOn: true},
	}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/context")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got reconcile.Context
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, svc.contextResult, got)
}

func TestServer_Actions(t *testing.T) {
	svc := &stubService{
		actionsResult: reconcile.PendingActions{
			SnapshotActions: []interp.Action{{"type": "add", "package": "jsonlite"}},
		},
	}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/actions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got reconcile.PendingActions
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.SnapshotActions, 1)
	require.Equal(t, "jsonlite", got.SnapshotActions[0]["package"])
}

func TestServer_SavedRequiresPath(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/saved", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.savedPaths)
}

func TestServer_SavedReportsRelevance(t *testing.T) {
	svc := &stubService{savedReply: true}
	ts := newTestServer(svc)
	defer ts.Close()

	body := strings.NewReader(`{"path": "/proj/packrat/packrat.lock"}`)
	resp, err := http.Post(ts.URL+"/api/saved", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.True(t, got["relevant"])
	require.Equal(t, []string{"/proj/packrat/packrat.lock"}, svc.savedPaths)
}

func TestServer_ActionNotice(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(svc)
	defer ts.Close()

	body := strings.NewReader(`{"project": "/proj", "action": "restore", "running": true}`)
	resp, err := http.Post(ts.URL+"/api/action-notice", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"restore"}, svc.notices)
}

func TestServer_BootstrapErrorMapsToStatus(t *testing.T) {
	svc := &stubService{
		bootstrapErr: ferrors.InterpError("interpreter not found").Build(),
	}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/bootstrap", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(&stubService{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
