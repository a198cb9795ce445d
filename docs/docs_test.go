package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestSwaggerDocument(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}

	var doc struct {
		Schemes     []string                              `json:"schemes"`
		Paths       map[string]map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage            `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if len(doc.Schemes) == 0 {
		t.Error("schemes not rendered")
	}

	routes := map[string][]string{
		"/api/jobs":                {"get", "post"},
		"/api/jobs/{jobId}":        {"get", "delete"},
		"/api/jobs/{jobId}/pause":  {"patch"},
		"/api/jobs/{jobId}/resume": {"patch"},
		"/api/jobs/{jobId}/cancel": {"patch"},
		"/api/jobs/{jobId}/retry":  {"post"},
		"/api/queue/stats":         {"get"},
		"/api/presentations":       {"post"},
		"/api/presentations/{id}":  {"get"},
	}
	for path, methods := range routes {
		for _, m := range methods {
			if _, ok := doc.Paths[path][m]; !ok {
				t.Errorf("%s %s missing", m, path)
			}
		}
	}
	for _, def := range []string{"model.SubmitJobRequest", "model.JobView", "model.RenderSettings", "response.ErrorResponse"} {
		if _, ok := doc.Definitions[def]; !ok {
			t.Errorf("definition %s missing", def)
		}
	}
}
