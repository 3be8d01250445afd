package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/interaction-tracker/internal/api/http/handlers"
	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/config"
	"github.com/spec-kit/interaction-tracker/internal/domain"
	"github.com/spec-kit/interaction-tracker/internal/events"
	"github.com/spec-kit/interaction-tracker/internal/flash"
	"github.com/spec-kit/interaction-tracker/internal/observability"
	"github.com/spec-kit/interaction-tracker/internal/persistence"
	"github.com/spec-kit/interaction-tracker/internal/repository/memory"
	"github.com/spec-kit/interaction-tracker/internal/service"
)

type testServer struct {
	app   *fiber.App
	store *memory.Store
	chief *domain.User
	agent *domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	authCfg := config.AuthConfig{CookieName: "session", SessionTTLMinutes: 60, RememberTTLHours: 24}

	policy := auth.NewPolicy(true)
	hasher := auth.NewPasswordHasher(4)
	tokens := auth.NewTokenManager("test-secret", authCfg.SessionTTL())
	revoked := auth.NewMemoryRevocationList()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, config.NotificationConfig{}).RegisterHandlers()

	authService := service.NewAuthService(service.AuthDependencies{
		Users:       store.Users(),
		Hasher:      hasher,
		Tokens:      tokens,
		Revoked:     revoked,
		SessionTTL:  authCfg.SessionTTL(),
		RememberTTL: authCfg.RememberTTL(),
	})
	interactionService := service.NewInteractionService(service.InteractionDependencies{
		Tx:             store,
		Interactions:   store.Interactions(),
		Clients:        store.Clients(),
		History:        store.History(),
		Dispatcher:     dispatcher,
		Policy:         policy,
		HistoryEnabled: true,
		Location:       time.UTC,
	})
	clientService := service.NewClientService(store.Clients())
	userService := service.NewUserService(store.Users(), hasher, policy, dispatcher)
	reportService := service.NewReportService(service.ReportDependencies{
		Reports:      store.Reports(),
		Users:        store.Users(),
		Interactions: store.Interactions(),
		Policy:       policy,
		Location:     time.UTC,
	})

	metrics := observability.NewMetrics()
	flashes := handlers.NewFlashes(flash.NewMemoryStore(), logger, false)
	app := NewServer("test", MiddlewareConfig{
		Logger:  logger,
		Metrics: metrics,
		Flashes: flashes,
		Timeout: 5 * time.Second,
	}, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Auth:           handlers.NewAuthHandler(authService, flashes, authCfg),
		Interactions:   handlers.NewInteractionsHandler(interactionService, clientService, flashes),
		Admin:          handlers.NewAdminHandler(interactionService, reportService, userService, flashes),
		Clients:        handlers.NewClientsHandler(clientService, flashes),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), revoked, authCfg.CookieName),
		Policy:         policy,
	})

	ctx := context.Background()
	agent, err := authService.Register(ctx, "ana", "x", "x")
	require.NoError(t, err)
	chief, err := authService.CreateAdmin(ctx, "chief", "z", "z")
	require.NoError(t, err)
	return &testServer{app: app, store: store, chief: chief, agent: agent}
}

// client keeps cookies between requests like a browser would.
type client struct {
	t       *testing.T
	srv     *testServer
	cookies map[string]*nethttp.Cookie
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, srv: s, cookies: map[string]*nethttp.Cookie{}}
}

func (c *client) do(method, path string, form url.Values) *nethttp.Response {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	resp, err := c.srv.app.Test(req, 5000)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Value == "" || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now())) {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return resp
}

func (c *client) json(method, path string, form url.Values) (int, map[string]any) {
	c.t.Helper()
	resp := c.do(method, path, form)
	defer resp.Body.Close()
	var payload map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func (c *client) login(username, password string) {
	c.t.Helper()
	resp := c.do(fiber.MethodPost, "/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(c.t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(c.t, "/index", resp.Header.Get("Location"))
	require.Contains(c.t, c.cookies, "session")
}

func flashTexts(payload map[string]any) []string {
	var out []string
	items, _ := payload["flashes"].([]any)
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m["message"].(string))
		}
	}
	return out
}

func interactionForm(status string) url.Values {
	return url.Values{
		"client_name":        {"Maria"},
		"client_phone":       {"5511999990000"},
		"channel":            {"WhatsApp"},
		"category":           {"Suporte"},
		"description":        {"printer offline"},
		"status":             {status},
		"had_remote_session": {"on"},
	}
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	resp := c.do(fiber.MethodGet, "/index", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	status, page := c.json(fiber.MethodGet, "/login", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"please log in to access this page"}, flashTexts(page))

	// flashes are shown once
	_, page = c.json(fiber.MethodGet, "/login", nil)
	assert.Empty(t, flashTexts(page))
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	resp := c.do(fiber.MethodPost, "/login", url.Values{"username": {"ana"}, "password": {"wrong"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	_, page := c.json(fiber.MethodGet, "/login", nil)
	assert.Equal(t, []string{service.MsgInvalidCredentials}, flashTexts(page))

	c.login("ana", "x")
	status, page := c.json(fiber.MethodGet, "/index", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"login successful"}, flashTexts(page))
	assert.NotNil(t, page["choices"])

	// signed-in users skip the login page
	resp = c.do(fiber.MethodGet, "/login", nil)
	assert.Equal(t, "/index", resp.Header.Get("Location"))

	resp = c.do(fiber.MethodGet, "/logout", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	resp = c.do(fiber.MethodGet, "/index", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogoutRevokesBearerToken(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login("ana", "x")
	token := c.cookies["session"].Value

	c.do(fiber.MethodGet, "/logout", nil)

	req := httptest.NewRequest(fiber.MethodGet, "/index", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	status, body := c.json(fiber.MethodPost, "/register", url.Values{"username": {"ana"}, "password": {"x"}, "password2": {"x"}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	assert.Equal(t, service.MsgUsernameTaken, errBody["details"].(map[string]any)["username"])

	status, body = c.json(fiber.MethodPost, "/register", url.Values{"username": {"carla"}, "password": {"x"}, "password2": {"y"}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"].(map[string]any)["details"], "password2")

	resp := c.do(fiber.MethodPost, "/register", url.Values{"username": {"carla"}, "password": {"x"}, "password2": {"x"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	c.login("carla", "x")
}

func TestInteractionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	agent := srv.client(t)
	agent.login("ana", "x")
	agent.json(fiber.MethodGet, "/index", nil)

	resp := agent.do(fiber.MethodPost, "/index", interactionForm("Aberto"))
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/index", resp.Header.Get("Location"))

	_, page := agent.json(fiber.MethodGet, "/index", nil)
	assert.Equal(t, []string{"interaction logged"}, flashTexts(page))
	items := page["interactions"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "Maria", first["client_name"])
	assert.Equal(t, true, first["had_remote_session"])
	id := int64(first["id"].(float64))
	base := "/interaction/" + itoa(id)

	status, view := agent.json(fiber.MethodGet, base+"/view", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, view["history_visible"])
	assert.NotContains(t, view, "history")

	resp = agent.do(fiber.MethodPost, base+"/edit", interactionForm("Resolvido"))
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	// resolved interactions are locked for agents
	resp = agent.do(fiber.MethodGet, base+"/edit", nil)
	assert.Equal(t, "/index", resp.Header.Get("Location"))
	_, page = agent.json(fiber.MethodGet, "/index", nil)
	assert.Contains(t, flashTexts(page), auth.MsgResolvedLocked)

	chief := srv.client(t)
	chief.login("chief", "z")
	status, view = chief.json(fiber.MethodGet, base+"/view", nil)
	assert.Equal(t, fiber.StatusOK, status)
	history := view["history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "N/A", history[0].(map[string]any)["old_value"])
	assert.Equal(t, "Resolvido", history[1].(map[string]any)["new_value"])

	resp = agent.do(fiber.MethodPost, base+"/delete", nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	status, _ = chief.json(fiber.MethodGet, base+"/view", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestInteractionValidationAndNotFound(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login("ana", "x")

	form := interactionForm("Fechado")
	form.Set("description", " ")
	status, body := c.json(fiber.MethodPost, "/index", form)
	assert.Equal(t, fiber.StatusBadRequest, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "status")
	assert.Contains(t, details, "description")

	status, _ = c.json(fiber.MethodGet, "/interaction/abc/view", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = c.json(fiber.MethodGet, "/interaction/999/view", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestInvalidSearchDateFallsBackToToday(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login("ana", "x")
	c.json(fiber.MethodGet, "/index", nil)

	status, page := c.json(fiber.MethodGet, "/index?search_date=10/05/2024", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"invalid date format"}, flashTexts(page))
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), page["date"])
}

func TestAdminAreaIsSoftDenied(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login("ana", "x")
	c.json(fiber.MethodGet, "/index", nil)

	for _, path := range []string{"/admin/dashboard", "/admin/users", "/admin/reports", "/admin/all_interactions"} {
		resp := c.do(fiber.MethodGet, path, nil)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/index", resp.Header.Get("Location"), path)
	}
	_, page := c.json(fiber.MethodGet, "/index", nil)
	assert.Contains(t, flashTexts(page), auth.MsgSupervisorOnly)
}

func TestSupervisorPages(t *testing.T) {
	srv := newTestServer(t)
	agent := srv.client(t)
	agent.login("ana", "x")
	agent.do(fiber.MethodPost, "/index", interactionForm("Aberto"))

	chief := srv.client(t)
	chief.login("chief", "z")

	status, dash := chief.json(fiber.MethodGet, "/admin/dashboard", nil)
	assert.Equal(t, fiber.StatusOK, status)
	chart := dash["status_chart"].(map[string]any)
	assert.Len(t, chart["labels"], 4)
	assert.Equal(t, "Aberto", chart["labels"].([]any)[0])
	assert.Equal(t, float64(1), dash["total"])

	status, reports := chief.json(fiber.MethodGet, "/admin/reports", nil)
	assert.Equal(t, fiber.StatusOK, status)
	agents := reports["agent_counts"].([]any)
	require.Len(t, agents, 1)
	assert.Equal(t, "ana", agents[0].(map[string]any)["label"])

	status, stats := chief.json(fiber.MethodGet, "/admin/user/"+itoa(srv.agent.ID), nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), stats["total"])

	status, all := chief.json(fiber.MethodGet, "/admin/all_interactions", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, all["interactions"], 1)
}

func TestUserManagementRoutes(t *testing.T) {
	srv := newTestServer(t)
	chief := srv.client(t)
	chief.login("chief", "z")
	chief.json(fiber.MethodGet, "/index", nil)

	resp := chief.do(fiber.MethodPost, "/admin/user/add", url.Values{
		"username": {"dora"}, "password": {"p"}, "password2": {"p"}, "is_supervisor": {"y"},
	})
	assert.Equal(t, "/admin/users", resp.Header.Get("Location"))

	status, users := chief.json(fiber.MethodGet, "/admin/users", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, users["users"], 3)
	assert.Equal(t, []string{"user dora created"}, flashTexts(users))

	self := "/admin/user/" + itoa(srv.chief.ID)
	resp = chief.do(fiber.MethodPost, self+"/delete", nil)
	assert.Equal(t, "/index", resp.Header.Get("Location"))
	resp = chief.do(fiber.MethodPost, self+"/toggle_admin", nil)
	assert.Equal(t, "/index", resp.Header.Get("Location"))
	_, page := chief.json(fiber.MethodGet, "/index", nil)
	assert.Equal(t, []string{auth.MsgCannotDeleteSelf, auth.MsgCannotDemoteSelf}, flashTexts(page))

	agentPath := "/admin/user/" + itoa(srv.agent.ID)
	resp = chief.do(fiber.MethodPost, agentPath+"/edit", url.Values{"username": {"ana.silva"}})
	assert.Equal(t, "/admin/users", resp.Header.Get("Location"))
	status, edit := chief.json(fiber.MethodGet, agentPath+"/edit", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ana.silva", edit["user"].(map[string]any)["username"])

	resp = chief.do(fiber.MethodPost, agentPath+"/toggle_admin", nil)
	assert.Equal(t, "/admin/users", resp.Header.Get("Location"))

	resp = chief.do(fiber.MethodPost, agentPath+"/delete", nil)
	assert.Equal(t, "/admin/users", resp.Header.Get("Location"))
	status, _ = chief.json(fiber.MethodGet, agentPath, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestClientRoutes(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login("ana", "x")
	c.json(fiber.MethodGet, "/index", nil)

	resp := c.do(fiber.MethodPost, "/clients", url.Values{"name": {"Joao"}, "phone": {"5511888880000"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(location, "/index?new_client_id="), location)

	_, page := c.json(fiber.MethodGet, location, nil)
	assert.Equal(t, "Joao", page["selected_client"].(map[string]any)["name"])

	resp = c.do(fiber.MethodPost, "/clients", url.Values{"name": {"Other"}, "phone": {"5511888880000"}})
	assert.Equal(t, "/index", resp.Header.Get("Location"))
	_, page = c.json(fiber.MethodGet, "/clients", nil)
	assert.Equal(t, []string{service.MsgPhoneTaken}, flashTexts(page))
	assert.Len(t, page["clients"], 1)
}

func TestHealthProbes(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	status, live := c.json(fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", live["status"])

	status, ready := c.json(fiber.MethodGet, "/health/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)
	deps := ready["dependencies"].(map[string]any)
	assert.Equal(t, "memory", deps["postgres"])
	assert.NotEmpty(t, c.do(fiber.MethodGet, "/health/live", nil).Header.Get(fiber.HeaderXRequestID))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
