package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/middleware"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/queue"
	"github.com/estudioia/videos-api/internal/service"
	"github.com/estudioia/videos-api/internal/store"
	"github.com/estudioia/videos-api/pkg/response"
)

const (
	owner   = "user-1"
	project = "5b0f8a52-7c4e-4d8b-9a61-1f2e3d4c5b6a"
	deckID  = "5b0f8a52-7c4e-4d8b-9a61-00000000000d"
)

type testAPI struct {
	app   *fiber.App
	store *store.MemoryStore
	queue *queue.MemoryQueue
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.Discard()
	st := store.NewMemoryStore()
	st.AddCollaborator(project, owner)
	if err := st.SavePresentation(testContext(t), &model.Presentation{
		ID:        deckID,
		OwnerID:   owner,
		ProjectID: project,
		Model:     model.SlideModel{Slides: []model.Slide{{Number: 1, Duration: 20}}},
	}); err != nil {
		t.Fatal(err)
	}
	q := queue.NewMemoryQueue()

	jobs := service.NewJobService(service.JobServiceDeps{
		Jobs:          st,
		Presentations: st,
		Directory:     st,
		Dispatcher:    q,
	}, log)
	presentations := service.NewPresentationService(st, st, client.NewMemoryStorage("https://cdn.test"), 5, log)

	v := NewValidator()
	jh := NewJobHandler(jobs, v, log)
	ph := NewPresentationHandler(presentations, v, 5, log)

	app := fiber.New()
	api := app.Group("/api", middleware.GatewayAuthMiddleware())
	api.Post("/presentations", ph.Upload)
	api.Get("/presentations/:id", ph.Get)
	api.Post("/jobs", jh.Submit)
	api.Get("/jobs", jh.List)
	api.Get("/jobs/:jobId", jh.Status)
	api.Patch("/jobs/:jobId/pause", jh.Pause)
	api.Patch("/jobs/:jobId/resume", jh.Resume)
	api.Patch("/jobs/:jobId/cancel", jh.Cancel)
	api.Post("/jobs/:jobId/retry", jh.Retry)
	api.Delete("/jobs/:jobId", jh.Delete)
	api.Get("/queue/stats", jh.QueueStats)

	return &testAPI{app: app, store: st, queue: q}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (a *testAPI) json(t *testing.T, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return a.do(t, method, path, user, r, fiber.MIMEApplicationJSON)
}

const submitBody = `{
  "projectId": "` + project + `",
  "presentationId": "` + deckID + `",
  "priority": "high",
  "settings": {"resolution": "1080p", "fps": 30, "codec": "h264", "format": "mp4", "quality": "good"}
}`

func errorCode(t *testing.T, body []byte) (string, map[string]interface{}) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return env.Error.Code, env.Error.Details
}

func submit(t *testing.T, a *testAPI) model.SubmitJobResponse {
	t.Helper()
	resp, body := a.json(t, "POST", "/api/jobs", owner, submitBody)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("submit status = %d: %s", resp.StatusCode, body)
	}
	var out model.SubmitJobResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSubmitAndConflict(t *testing.T) {
	a := newTestAPI(t)
	first := submit(t, a)
	if first.Status != model.JobStatusQueued || first.Priority != model.PriorityHigh || first.EstimatedDuration != 30 {
		t.Errorf("submit = %+v", first)
	}

	resp, body := a.json(t, "POST", "/api/jobs", owner, submitBody)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("second submit status = %d", resp.StatusCode)
	}
	code, details := errorCode(t, body)
	if code != response.CodeConflict || details["activeJobId"] != first.JobID {
		t.Errorf("conflict body = %s", body)
	}
}

func TestSubmitValidation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown field", strings.Replace(submitBody, `"priority"`, `"colour": "red", "priority"`, 1), "body"},
		{"bad fps", strings.Replace(submitBody, `"fps": 30`, `"fps": 25`, 1), "settings.fps"},
		{"bad priority", strings.Replace(submitBody, `"high"`, `"urgent"`, 1), "priority"},
		{"missing project", strings.Replace(submitBody, project, "", 1), "projectId"},
		{"codec container", strings.Replace(submitBody, `"mp4"`, `"webm"`, 1), "settings.codec"},
		{"malformed", `{"projectId":`, "body"},
	}
	for _, tt := range tests {
		resp, body := a.json(t, "POST", "/api/jobs", owner, tt.body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s: status = %d", tt.name, resp.StatusCode)
			continue
		}
		code, details := errorCode(t, body)
		if code != response.CodeValidationError {
			t.Errorf("%s: code = %s", tt.name, code)
		}
		if _, ok := details[tt.field]; !ok {
			t.Errorf("%s: details %v missing %s", tt.name, details, tt.field)
		}
	}
	if a.queue.Len() != 0 {
		t.Errorf("invalid requests reached the queue")
	}
}

func TestSubmitQueueDown(t *testing.T) {
	a := newTestAPI(t)
	a.queue.Err = errors.New("connection refused")

	resp, body := a.json(t, "POST", "/api/jobs", owner, submitBody)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if code, _ := errorCode(t, body); code != response.CodeUnavailable {
		t.Errorf("code = %s", code)
	}
	if strings.Contains(string(body), "connection refused") {
		t.Errorf("internal cause leaked: %s", body)
	}
}

func TestJobLifecycleEndpoints(t *testing.T) {
	a := newTestAPI(t)
	job := submit(t, a)
	path := "/api/jobs/" + job.JobID

	resp, body := a.json(t, "GET", path, owner, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view model.JobView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if view.Status != model.JobStatusQueued || view.Progress != 0 {
		t.Errorf("view = %+v", view)
	}

	resp, body = a.json(t, "PATCH", path+"/pause", owner, "")
	var ctl model.ControlResponse
	_ = json.Unmarshal(body, &ctl)
	if resp.StatusCode != fiber.StatusOK || ctl.Changed || ctl.Status != model.JobStatusQueued {
		t.Errorf("pause queued: %d %s", resp.StatusCode, body)
	}

	resp, _ = a.json(t, "DELETE", path, owner, "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("delete active: status = %d", resp.StatusCode)
	}

	resp, _ = a.json(t, "POST", path+"/retry", owner, "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("retry active: status = %d", resp.StatusCode)
	}

	resp, body = a.json(t, "PATCH", path+"/cancel", owner, "")
	_ = json.Unmarshal(body, &ctl)
	if resp.StatusCode != fiber.StatusOK || !ctl.Changed || ctl.Status != model.JobStatusCancelled {
		t.Errorf("cancel: %d %s", resp.StatusCode, body)
	}

	resp, body = a.json(t, "POST", path+"/retry", owner, "")
	if resp.StatusCode != fiber.StatusAccepted || !strings.Contains(string(body), job.JobID) {
		t.Errorf("retry: %d %s", resp.StatusCode, body)
	}

	resp, _ = a.json(t, "DELETE", path, owner, "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("delete: status = %d", resp.StatusCode)
	}

	resp, _ = a.json(t, "GET", path, owner, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("after delete: status = %d", resp.StatusCode)
	}
}

func TestJobAccess(t *testing.T) {
	a := newTestAPI(t)
	job := submit(t, a)

	resp, _ := a.json(t, "GET", "/api/jobs/"+job.JobID, "intruder", "")
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	resp, _ = a.json(t, "PATCH", "/api/jobs/"+job.JobID+"/cancel", "intruder", "")
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("cancel status = %d, want 403", resp.StatusCode)
	}
	resp, _ = a.json(t, "GET", "/api/jobs/"+job.JobID, "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}
}

func TestListAndStats(t *testing.T) {
	a := newTestAPI(t)
	submit(t, a)

	resp, body := a.json(t, "GET", "/api/jobs?status=queued&limit=5", owner, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list status = %d: %s", resp.StatusCode, body)
	}
	var list model.ListJobsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Limit != 5 || len(list.Items) != 1 {
		t.Errorf("list = %+v", list)
	}

	resp, _ = a.json(t, "GET", "/api/jobs?status=sleeping", owner, "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad status filter: %d", resp.StatusCode)
	}

	resp, body = a.json(t, "GET", "/api/queue/stats", owner, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	var stats model.QueueStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Totals.Pending != 1 || len(stats.Queues) != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func pptx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"ppt/presentation.xml":  `<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`,
		"ppt/slides/slide1.xml": `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree/></p:cSld></p:sld>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, projectID, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if projectID != "" {
		_ = mw.WriteField("projectId", projectID)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadPresentation(t *testing.T) {
	a := newTestAPI(t)

	body, ct := multipartBody(t, project, "aula.pptx", pptx(t))
	resp, data := a.do(t, "POST", "/api/presentations", owner, body, ct)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var out model.PresentationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.SlideCount != 1 || out.Filename != "aula.pptx" {
		t.Errorf("upload = %+v", out)
	}

	resp, _ = a.json(t, "GET", "/api/presentations/"+out.ID, owner, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	tests := []struct {
		name      string
		projectID string
		filename  string
		data      []byte
		status    int
	}{
		{"no project", "", "aula.pptx", pptx(t), fiber.StatusBadRequest},
		{"no file", project, "", nil, fiber.StatusBadRequest},
		{"not pptx", project, "aula.pptx", []byte("hello"), fiber.StatusBadRequest},
		{"foreign project", "5b0f8a52-7c4e-4d8b-9a61-ffffffffffff", "aula.pptx", pptx(t), fiber.StatusForbidden},
	}
	for _, tt := range tests {
		body, ct := multipartBody(t, tt.projectID, tt.filename, tt.data)
		resp, data := a.do(t, "POST", "/api/presentations", owner, body, ct)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d: %s", tt.name, resp.StatusCode, tt.status, data)
		}
	}
}
