package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/commitment"
	"github.com/proquint-registry/backend/internal/config"
	"github.com/proquint-registry/backend/internal/events"
	apihttp "github.com/proquint-registry/backend/internal/http"
	"github.com/proquint-registry/backend/internal/http/handlers"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/proquint-registry/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const alice = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

// stub serves every handler interface; err, when set, is returned by all calls.
type stub struct {
	err      error
	prepared services.PrepareRequest
	caller   common.Address
}

func (s *stub) Lookup(_ context.Context, input string) (*services.NameView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.NameView{Proquint: input}, nil
}

func (s *stub) Quote(input string, years int) (*services.QuoteView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.QuoteView{Proquint: input, Years: years}, nil
}

func (s *stub) PredictInbox(_ context.Context, receiver common.Address) (*services.InboxPrediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.InboxPrediction{Receiver: strings.ToLower(receiver.Hex()), Days: 42}, nil
}

func (s *stub) RefundQuote(_ context.Context, input string, role services.RefundRole) (*services.RefundView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.RefundView{Proquint: input, Role: role}, nil
}

func (s *stub) Stats(context.Context) (*services.RegistryStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.RegistryStats{TotalSupply: "3"}, nil
}

func (s *stub) action(name, input string) (*services.ActionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.ActionResult{Proquint: input, Action: name}, nil
}

func (s *stub) Renew(_ context.Context, input string, _ int) (*services.ActionResult, error) {
	return s.action("renew", input)
}

func (s *stub) AcceptInbox(_ context.Context, input string, caller common.Address) (*services.ActionResult, error) {
	s.caller = caller
	return s.action("accept", input)
}

func (s *stub) RejectInbox(_ context.Context, input string, caller common.Address) (*services.ActionResult, error) {
	s.caller = caller
	return s.action("reject", input)
}

func (s *stub) CleanInbox(_ context.Context, input string) (*services.ActionResult, error) {
	return s.action("clean", input)
}

func (s *stub) Shelve(_ context.Context, input string, caller common.Address) (*services.ActionResult, error) {
	s.caller = caller
	return s.action("shelve", input)
}

func (s *stub) Transfer(_ context.Context, input string, _, _ common.Address) (*services.ActionResult, error) {
	return s.action("transfer", input)
}

func (s *stub) Events(context.Context, string, int) ([]models.ChainEvent, error) {
	return []models.ChainEvent{}, s.err
}

func (s *stub) NameEvents(context.Context, string, int) ([]models.ChainEvent, error) {
	return []models.ChainEvent{}, s.err
}

func (s *stub) Prepare(_ context.Context, req services.PrepareRequest) (*services.PrepareResult, error) {
	s.prepared = req
	if s.err != nil {
		return nil, s.err
	}
	return &services.PrepareResult{Commitment: &models.Commitment{Hash: "0x01"}}, nil
}

func (s *stub) Status(_ context.Context, hash string) (*services.CommitmentStatusView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.CommitmentStatusView{State: "ready", Commitment: hiddenRecord(hash)}, nil
}

func (s *stub) Reveal(_ context.Context, hash string) (*services.RevealResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.RevealResult{Commitment: &models.Commitment{Hash: hash}}, nil
}

func (s *stub) ListByCaller(context.Context, common.Address, int) ([]models.Commitment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Commitment{*hiddenRecord("0xabc")}, nil
}

// hiddenRecord is a committed record whose name must not reach clients.
func hiddenRecord(hash string) *models.Commitment {
	return &models.Commitment{
		Hash:     hash,
		Data:     "0x0100010002424242",
		NameID:   "0x00010002",
		Proquint: "dabab-fabab",
		Status:   models.CommitmentStatusCommitted,
	}
}

type countingLimiter struct{ n int64 }

func (c *countingLimiter) Incr(context.Context, string, time.Duration) (int64, error) {
	c.n++
	return c.n, nil
}

func newTestApp(s *stub, rc apihttp.RouterConfig) *fiber.App {
	log := zap.NewNop()
	app := fiber.New()
	apihttp.SetupRouter(app, rc, log,
		handlers.NewMetaHandler(&config.Config{ChainID: 31337}),
		handlers.NewNameHandler(s, s, s, log),
		handlers.NewCommitmentHandler(s, log),
		handlers.NewWSHub(events.NewMemoryBus(), log),
	)
	return app
}

type envelope struct {
	OK         bool            `json:"ok"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	RequestID  string          `json:"request_id"`
	RetryAfter int64           `json:"retry_after"`
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestRoutes_OK(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{})

	tests := []struct {
		method, path, body string
		want               int
	}{
		{"GET", "/health", "", fiber.StatusOK},
		{"GET", "/api/v1/meta/constants", "", fiber.StatusOK},
		{"GET", "/api/v1/stats", "", fiber.StatusOK},
		{"GET", "/api/v1/names/dabab-fabab", "", fiber.StatusOK},
		{"GET", "/api/v1/names/dabab-fabab/quote?years=3", "", fiber.StatusOK},
		{"GET", "/api/v1/names/dabab-fabab/refund?as=burner", "", fiber.StatusOK},
		{"GET", "/api/v1/names/dabab-fabab/events", "", fiber.StatusOK},
		{"GET", "/api/v1/inbox/" + alice + "/prediction", "", fiber.StatusOK},
		{"GET", "/api/v1/accounts/" + alice + "/events", "", fiber.StatusOK},
		{"GET", "/api/v1/accounts/" + alice + "/commitments", "", fiber.StatusOK},
		{"GET", "/api/v1/commitments/0xabc", "", fiber.StatusOK},
		{"POST", "/api/v1/commitments/0xabc/reveal", "", fiber.StatusOK},
		{"POST", "/api/v1/commitments", `{"name":"dabab-fabab","years":1,"caller":"` + alice + `"}`, fiber.StatusCreated},
		{"POST", "/api/v1/names/dabab-fabab/tx/renew", `{"years":2}`, fiber.StatusOK},
		{"POST", "/api/v1/names/dabab-fabab/tx/accept", `{"caller":"` + alice + `"}`, fiber.StatusOK},
		{"POST", "/api/v1/names/dabab-fabab/tx/reject", `{"caller":"` + alice + `"}`, fiber.StatusOK},
		{"POST", "/api/v1/names/dabab-fabab/tx/shelve", `{"caller":"` + alice + `"}`, fiber.StatusOK},
		{"POST", "/api/v1/names/dabab-fabab/tx/clean", `{}`, fiber.StatusOK},
		{"POST", "/api/v1/names/dabab-fabab/tx/transfer", `{"from":"` + alice + `","to":"` + alice + `"}`, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, _ := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestConstants(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{})

	_, env := do(t, app, "GET", "/api/v1/meta/constants", "")
	var c struct {
		ChainID  int64  `json:"chain_id"`
		MaxYears int    `json:"max_years"`
		PerYear  string `json:"price_per_year_wei"`
		MaxInbox int    `json:"max_inbox"`
		MaxAge   int64  `json:"max_commitment_age_seconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, int64(31337), c.ChainID)
	assert.Equal(t, 12, c.MaxYears)
	assert.Equal(t, "240000000000000", c.PerYear)
	assert.Equal(t, 255, c.MaxInbox)
	assert.Equal(t, int64(900), c.MaxAge)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		path   string
		method string
		want   int
	}{
		{"bad proquint", proquint.ErrInvalidLength, "/api/v1/names/dabab", "GET", fiber.StatusBadRequest},
		{"years", pricing.ErrYearsOutOfRange, "/api/v1/names/dabab-fabab/quote?years=13", "GET", fiber.StatusBadRequest},
		{"unknown commitment", services.ErrNotFound, "/api/v1/commitments/0xabc", "GET", fiber.StatusNotFound},
		{"expired", commitment.ErrExpired, "/api/v1/commitments/0xabc/reveal", "POST", fiber.StatusConflict},
		{"not committed", services.ErrNotCommitted, "/api/v1/commitments/0xabc/reveal", "POST", fiber.StatusConflict},
		{"not allowed", services.ErrActionNotAllowed, "/api/v1/names/dabab-fabab/tx/clean", "POST", fiber.StatusConflict},
		{"unexpected", errors.New("boom"), "/api/v1/names/dabab-fabab", "GET", fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&stub{err: tt.err}, apihttp.RouterConfig{})
			status, env := do(t, app, tt.method, tt.path, "")
			assert.Equal(t, tt.want, status)
			assert.False(t, env.OK)
			assert.NotEmpty(t, env.RequestID)
			if tt.want == fiber.StatusInternalServerError {
				assert.Equal(t, "internal error", env.Error)
			}
		})
	}
}

func TestReveal_NotReadyCarriesRetryAfter(t *testing.T) {
	app := newTestApp(&stub{err: &commitment.NotReadyError{Remaining: 2500 * time.Millisecond}}, apihttp.RouterConfig{})

	status, env := do(t, app, "POST", "/api/v1/commitments/0xabc/reveal", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, int64(3), env.RetryAfter)
}

func TestPrepare_Validation(t *testing.T) {
	s := &stub{}
	app := newTestApp(s, apihttp.RouterConfig{})

	status, _ := do(t, app, "POST", "/api/v1/commitments", `{"name":"dabab-fabab","years":1,"caller":"nope"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/api/v1/commitments", `{"years":1,"caller":"`+alice+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/api/v1/commitments", `{"name":"dabab-fabab","years":1,"caller":"`+alice+`","receiver":"0x1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/api/v1/commitments", `{"name":"dabab-fabab","years":4,"caller":"`+alice+`"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, common.HexToAddress(alice), s.prepared.Caller)
	assert.Equal(t, common.Address{}, s.prepared.Receiver)
	assert.Equal(t, 4, s.prepared.Years)
}

func TestQuote_BadYears(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{})
	status, _ := do(t, app, "GET", "/api/v1/names/dabab-fabab/quote?years=abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{RateLimiter: &countingLimiter{}, RateLimitPerMinute: 1})

	status, _ := do(t, app, "GET", "/api/v1/stats", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = do(t, app, "GET", "/api/v1/stats", "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)

	// meta is registered ahead of the limiter
	status, _ = do(t, app, "GET", "/api/v1/meta/constants", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestWS_RequiresUpgrade(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{})
	resp, err := app.Test(httptest.NewRequest("GET", "/ws?address="+alice, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestCommitmentResponses_OmitName(t *testing.T) {
	app := newTestApp(&stub{}, apihttp.RouterConfig{})

	for _, path := range []string{
		"/api/v1/commitments/0xabc",
		"/api/v1/accounts/" + alice + "/commitments",
	} {
		t.Run(path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			body := string(raw)
			assert.Contains(t, body, `"hash":"0xabc"`)
			for _, leak := range []string{"dabab-fabab", "0x00010002", "0x0100010002424242", `"proquint"`, `"name_id"`, `"data":"0x`} {
				assert.NotContains(t, body, leak)
			}
		})
	}
}
