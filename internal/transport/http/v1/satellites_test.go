package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/domain"
)

func postJSON(e *echo.Echo, path string, body any) (*httptest.ResponseRecorder, echo.Context) {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestCreateAndListLeads(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/leads", map[string]string{
		"lead_type": "dealer",
		"name":      "Asha",
	})
	require.NoError(t, h.CreateLead(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var lead domain.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.NotEmpty(t, lead.LeadID)
	assert.Equal(t, "Asha", lead.Name)

	req := httptest.NewRequest(http.MethodGet, "/analytics/leads", nil)
	listRec := httptest.NewRecorder()
	require.NoError(t, h.ListLeads(e.NewContext(req, listRec)))
	require.Equal(t, http.StatusOK, listRec.Code)

	var resp struct {
		Total int64         `json:"total"`
		Leads []domain.Lead `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Leads, 1)
}

func TestCreateLeadRequiresName(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/leads", map[string]string{"lead_type": "dealer"})
	require.NoError(t, h.CreateLead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandoverLifecycle(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/human_handover", map[string]any{
		"user_id":    "u1",
		"session_id": "s1",
		"issues":     []string{"billing"},
	})
	require.NoError(t, h.CreateHandover(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.HandoverRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.HandoverStatusPending, created.Status)
	require.NotZero(t, created.HandoverID)

	resolveRec, resolveC := postJSON(e, "/analytics/human_handover/1/resolve", nil)
	resolveC.SetParamNames("handover_id")
	resolveC.SetParamValues("1")
	require.NoError(t, h.ResolveHandover(resolveC))
	require.Equal(t, http.StatusOK, resolveRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/analytics/human_handover", nil)
	listRec := httptest.NewRecorder()
	require.NoError(t, h.ListHandovers(e.NewContext(req, listRec)))

	var resp struct {
		Total     int64                    `json:"total"`
		Handovers []domain.HandoverRequest `json:"handovers"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &resp))
	require.Len(t, resp.Handovers, 1)
	assert.Equal(t, domain.HandoverStatusResolved, resp.Handovers[0].Status)
}

func TestCreateHandoverRequiresIDs(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/human_handover", map[string]string{"user_id": "u1"})
	require.NoError(t, h.CreateHandover(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveHandoverBadID(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/human_handover/nope/resolve", nil)
	c.SetParamNames("handover_id")
	c.SetParamValues("nope")
	require.NoError(t, h.ResolveHandover(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCloseEvent(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/chatbot_close", map[string]any{
		"user_id":            "u1",
		"session_id":         "s1",
		"time_spent_seconds": 42.5,
		"last_user_message":  "thanks",
	})
	require.NoError(t, h.CreateCloseEvent(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "recorded"))
}
