package assignment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/platform/httpkit"
	"brokerage_backoffice/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture, actor uuid.UUID) *gin.Engine {
	r := gin.New()
	rg := r.Group("/assignments", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, actor)
		c.Set(httpkit.ContextRolesKey, []string{httpkit.RoleAdmin})
		c.Next()
	})
	NewHandler(f.svc, validator.New()).RegisterRoutes(rg)
	return r
}

func doRequest(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	f := newFixture(t)
	f.leads.add(2, f.actor, domain.StatusInterested)
	r := newTestRouter(f, f.actor)

	w := doRequest(r, http.MethodGet, "/assignments/check-availability?status=INTERESTED", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"count":2}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/assignments/check-availability", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"status is required"}`, w.Body.String())
}

func TestBulkAssignEndpoint(t *testing.T) {
	f := newFixture(t)
	f.leads.add(1, f.actor, domain.StatusNew)
	r := newTestRouter(f, f.actor)

	w := doRequest(r, http.MethodPost, "/assignments/bulk-assign", `{"limit":5,"assignTo":"`+f.assignee.String()+`","status":"NEW"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp BulkAssignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, "Requested 5 leads, found 1, assigning 1", resp.Message)

	w = doRequest(r, http.MethodPost, "/assignments/bulk-assign", `{"assignTo":"`+f.assignee.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/assignments/bulk-assign", `{"limit":5,"assignTo":"`+f.assignee.String()+`","status":"LOST"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevertEndpointStatuses(t *testing.T) {
	f := newFixture(t)
	batchID := uuid.NewString()
	f.ledger.seedBatch(batchID, f.actor, f.assignee, f.leads.add(1, f.actor, domain.StatusNew), f.now.Add(-25*time.Hour))

	w := doRequest(newTestRouter(f, uuid.New()), http.MethodPost, "/assignments/revert-assign", `{"batchId":"`+batchID+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := newTestRouter(f, f.actor)
	w = doRequest(r, http.MethodPost, "/assignments/revert-assign", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/assignments/revert-assign", `{"batchId":"`+batchID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "revert window")
}

func TestDownloadReportEndpoint(t *testing.T) {
	f := newFixture(t)
	batchID := uuid.NewString()
	f.ledger.seedBatch(batchID, f.actor, f.assignee, f.leads.add(1, f.actor, domain.StatusNew), f.now)
	r := newTestRouter(f, f.actor)

	w := doRequest(r, http.MethodGet, "/assignments/download-batch-report?batchId="+batchID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ReportContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "batch-"+batchID+".xlsx")
	assert.Len(t, readReport(t, w.Body.Bytes()), 2)

	w = doRequest(r, http.MethodGet, "/assignments/download-batch-report", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
