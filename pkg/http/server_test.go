package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "FlipDesk/pkg/logger"
)

type quoteRequest struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Risk   string  `json:"risk" default:"medium" validate:"oneof=low medium high"`
	Limit  int     `query:"limit" default:"20" validate:"gte=1,lte=200"`
	Budget float64 `json:"budget" validate:"gte=0"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.POST("/quote", func(c echo.Context) error {
		var req quoteRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		if req.ItemID == 404 {
			return AppErrorResponse(c, NotFoundError("item not found").WithError(errors.New("no row")))
		}
		if req.ItemID == 500 {
			return AppErrorResponse(c, errors.New("boom"))
		}
		return SuccessResponse(c, req)
	})
	e.GET("/panic", func(echo.Context) error { panic("kaboom") })
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderOrigin, "https://desk.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var out APIResponse
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestValidationUsesWireNamesAndDefaults(t *testing.T) {
	s := NewServer(applogger.NewNop(), routes{})

	_, out := do(t, s, http.MethodPost, "/quote", `{"item_id": 0, "risk": "yolo"}`)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	raw, _ := json.Marshal(out.Data)
	var errs []ValidationError
	require.NoError(t, json.Unmarshal(raw, &errs))
	require.Len(t, errs, 2)
	assert.Equal(t, "item_id", errs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "risk", errs[1].Field)
	assert.Equal(t, "risk must be one of: low, medium, high", errs[1].Message)

	_, out = do(t, s, http.MethodPost, "/quote", `{"item_id": 2}`)
	assert.Equal(t, http.StatusOK, out.Status)
	got := out.Data.(map[string]interface{})
	assert.Equal(t, "medium", got["risk"])
	assert.Equal(t, float64(20), got["Limit"])
}

func TestBindFailureIsReported(t *testing.T) {
	s := NewServer(applogger.NewNop(), routes{})
	_, out := do(t, s, http.MethodPost, "/quote", `{"item_id": "two"`)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.Contains(t, out.Data.([]interface{})[0].(map[string]interface{})["code"], "ERR_BIND")
}

func TestAppErrorEnvelope(t *testing.T) {
	s := NewServer(applogger.NewNop(), routes{})

	rec, out := do(t, s, http.MethodPost, "/quote", `{"item_id": 404}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.NotContains(t, rec.Body.String(), "no row")

	_, out = do(t, s, http.MethodPost, "/quote", `{"item_id": 500}`)
	assert.Equal(t, http.StatusInternalServerError, out.Status)
}

func TestCORSOnlyWhenOriginsConfigured(t *testing.T) {
	on := NewServer(applogger.NewNop(), routes{}, WithAllowOrigins("*"))
	rec, _ := do(t, on, http.MethodPost, "/quote", `{"item_id": 2}`)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	off := NewServer(applogger.NewNop(), routes{})
	rec, _ = do(t, off, http.MethodPost, "/quote", `{"item_id": 2}`)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestPanicIsRecovered(t *testing.T) {
	s := NewServer(applogger.NewNop(), routes{})
	rec, _ := do(t, s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(applogger.NewNop(), routes{})
	do(t, s, http.MethodPost, "/quote", `{"item_id": 2}`)
	rec, _ := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
