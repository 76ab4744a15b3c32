package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/evidence"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"
	"fieldcheck/internal/service"
	"fieldcheck/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const safetyJSON = `{
  "id": "tpl-safety",
  "title": "Daily safety walk",
  "groups": [{"id": "safety", "title": "Safety", "order": 1, "questionIds": ["q1", "q2", "q3"]}],
  "questions": [
    {"id": "q1", "text": "Are walkways clear?", "responseType": "yes_no", "order": 1, "isRequired": true, "groupId": "safety", "weight": 2},
    {"id": "q2", "text": "Which walkway?", "responseType": "text", "order": 2, "groupId": "safety", "parentId": "q1", "conditionValue": "yes"},
    {"id": "q3", "text": "Extinguisher pressure", "responseType": "numeric", "order": 3, "groupId": "safety", "complianceRule": "value >= 2.0"}
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rules, err := checklist.NewRuleEvaluator()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	templates := service.NewTemplateService(repository.NewMemoryTemplateRepo(), nil, rules, m, logger)
	inspections := service.NewInspectionService(templates, repository.NewMemoryExecutionRepo(), nil, evidence.NewMemoryStore(), rules, m, logger)
	hub := ws.NewHub(logger)
	t.Cleanup(hub.Close)
	inspections.SetBroadcaster(hub)
	inspections.SetReportService(service.NewReportService(repository.NewMemoryReportRepo(), rules, logger))

	srv := httptest.NewServer(NewRouter(&Container{
		TemplateService:   templates,
		InspectionService: inspections,
		WSHub:             hub,
		Metrics:           m,
		Logger:            logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/health", "", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest("OPTIONS", srv.URL+"/v1/templates", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_TemplateLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created model.Template
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/templates", safetyJSON, &created))
	assert.Equal(t, model.TemplateDraft, created.Status)

	var dup handlerError
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", "/v1/templates", safetyJSON, &dup))

	var list struct {
		Templates []model.TemplateSummary `json:"templates"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/templates", "", &list))
	require.Len(t, list.Templates, 1)
	assert.Equal(t, 3, list.Templates[0].Questions)

	var published model.Template
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/v1/templates/tpl-safety/publish", "", &published))
	assert.Equal(t, "0.1.0", published.Version)

	var versions struct {
		Versions []string `json:"versions"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/templates/tpl-safety/versions", "", &versions))
	assert.Equal(t, []string{"0.1.0"}, versions.Versions)

	var snapshot model.Template
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/templates/tpl-safety/versions/0.1.0", "", &snapshot))
	assert.Equal(t, published.Fingerprint, snapshot.Fingerprint)

	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/v1/templates/missing", "", nil))
}

type handlerError struct {
	Error      string                `json:"error"`
	QuestionID string                `json:"questionId"`
	Violations []checklist.Violation `json:"violations"`
	Cycle      []string              `json:"cycle"`
}

func TestRouter_ValidateAndPublishInvalid(t *testing.T) {
	srv := newTestServer(t)
	cyclic := strings.Replace(safetyJSON,
		`"order": 1, "isRequired": true, "groupId": "safety", "weight": 2}`,
		`"order": 1, "isRequired": true, "groupId": "safety", "weight": 2, "parentId": "q2", "conditionValue": "x"}`, 1)

	var res struct {
		Valid      bool                  `json:"valid"`
		Violations []checklist.Violation `json:"violations"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/v1/templates/validate", cyclic, &res))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Violations)

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/v1/templates/validate", safetyJSON, &res))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Violations)

	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/templates", cyclic, nil))
	var herr handlerError
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, "POST", "/v1/templates/tpl-safety/publish", "", &herr))
	assert.NotEmpty(t, herr.Violations)

	assert.Equal(t, http.StatusNotFound,
		do(t, srv, "POST", "/v1/inspections", `{"templateId":"tpl-safety"}`, nil), "never published")
}

func TestRouter_InspectionFlow(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/templates", safetyJSON, nil))
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/v1/templates/tpl-safety/publish", "", nil))

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/v1/inspections", `{}`, nil))

	var e model.Execution
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/inspections", `{"templateId":"tpl-safety"}`, &e))
	base := "/v1/inspections/" + e.ID

	var listed struct {
		Inspections []model.Execution `json:"inspections"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/templates/tpl-safety/inspections", "", &listed))
	require.Len(t, listed.Inspections, 1)
	assert.Equal(t, e.ID, listed.Inspections[0].ID)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/v1/templates/nope/inspections", "", nil))

	var herr handlerError
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", base+"/answers", `{"questionId":"q2","value":"North"}`, &herr))
	assert.Equal(t, "q2", herr.QuestionID)

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, "POST", base+"/answers", `{"questionId":"q3","value":"high"}`, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, "POST", base+"/answers", `{"questionId":"zz","value":"yes"}`, nil))

	var resp model.SubmitAnswerResponse
	require.Equal(t, http.StatusOK, do(t, srv, "POST", base+"/answers", `{"questionId":"q1","value":"yes"}`, &resp))
	assert.Equal(t, []string{"q2"}, resp.Activated)

	require.Equal(t, http.StatusOK, do(t, srv, "POST", base+"/answers", `{"questionId":"q3","value":1.5}`, &resp))
	assert.Equal(t, 2, resp.Progress.Answered)
	// q1 (weight 2) passes, q3 (weight 1) fails its rule
	assert.InDelta(t, 200.0/3, resp.Progress.CompliancePct, 1e-9)

	var questions struct {
		Questions []model.QuestionView `json:"questions"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "GET", base+"/questions", "", &questions))
	require.Len(t, questions.Questions, 3)
	assert.Equal(t, "Safety", questions.Questions[0].GroupTitle)

	var p model.Progress
	require.Equal(t, http.StatusOK, do(t, srv, "GET", base+"/progress", "", &p))
	assert.Equal(t, []string{"q2"}, p.Pending)

	var done struct {
		Inspection model.Execution `json:"inspection"`
		Progress   model.Progress  `json:"progress"`
	}
	assert.Equal(t, http.StatusConflict, do(t, srv, "GET", base+"/report", "", nil))
	require.Equal(t, http.StatusOK, do(t, srv, "POST", base+"/complete", "", &done))
	assert.Equal(t, model.ExecutionCompleted, done.Inspection.Status)
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", base+"/answers", `{"questionId":"q2","value":"North"}`, nil))

	var report model.InspectionReport
	require.Equal(t, http.StatusOK, do(t, srv, "GET", base+"/report", "", &report))
	assert.Equal(t, done.Inspection.ID, report.ExecutionID)
	assert.Equal(t, done.Progress.CompliancePct, report.Progress.CompliancePct)

	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/v1/inspections/nope/progress", "", nil))

	metricsResp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	text, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `fieldcheck_answer_submissions_total{outcome="accepted"} 2`)
	assert.Contains(t, string(text), "fieldcheck_inspections_completed_total 1")
}

func TestRouter_EvidenceUpload(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/templates", safetyJSON, nil))
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/v1/templates/tpl-safety/publish", "", nil))
	var e model.Execution
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/v1/inspections", `{"templateId":"tpl-safety"}`, &e))

	resp, err := srv.Client().Post(srv.URL+"/v1/inspections/"+e.ID+"/evidence", "image/png", bytes.NewReader([]byte("png bytes")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, evidence.Ref([]byte("png bytes")), out["ref"])

	empty, err := srv.Client().Post(srv.URL+"/v1/inspections/"+e.ID+"/evidence", "image/png", bytes.NewReader(nil))
	require.NoError(t, err)
	empty.Body.Close()
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
}
