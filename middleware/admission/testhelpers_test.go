package admission

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

const validToken = "valid-token-123"

func newTestPipeline(t *testing.T, rpm, burst int) *application.Pipeline {
	t.Helper()

	routes := domain.DefaultRoutes()
	router, err := infra.NewRouter(routes)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	validator, err := infra.NewValidator(map[string]domain.Identity{
		validToken: {SubjectID: "user-1", Roles: []string{"user"}},
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	limits := application.NewRateLimitService(routes, domain.RateLimit{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		Enabled:           true,
	}, func(rpm, burst int) domain.LimiterStore { return infra.NewStore(rpm, burst) })

	return &application.Pipeline{Routes: router, Identity: validator, Limits: limits}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.GatewayError {
	t.Helper()
	var body domain.GatewayError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}
