package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestEngine_EchoesRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newEngine(zap.NewNop())

	r := httptest.NewRequest(http.MethodDelete, "http://upstream/42?x=1", nil)
	r.Header.Set("X-Subject-ID", "user-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["method"] != "DELETE" || body["path"] != "/42" || body["query"] != "x=1" || body["subject"] != "user-1" {
		t.Fatalf("unexpected echo: %v", body)
	}
}
