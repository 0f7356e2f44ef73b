package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/quillhq/quillfeed/internal/models"
)

func TestViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		header   string
		expected int64
	}{
		{"missing", "", models.AnonymousViewer},
		{"valid", "42", 42},
		{"padded", " 7 ", 7},
		{"malformed", "abc", models.AnonymousViewer},
		{"negative", "-3", models.AnonymousViewer},
		{"zero", "0", models.AnonymousViewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64 = -1
			engine := gin.New()
			engine.Use(Viewer())
			engine.GET("/", func(c *gin.Context) {
				got = ViewerID(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(ViewerHeader, tt.header)
			}
			engine.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.expected {
				t.Errorf("ViewerID() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type params struct {
		ID   int64  `json:"id"`
		Sort string `json:"sort"`
	}

	tests := []struct {
		name    string
		raw     string
		want    params
		wantErr bool
	}{
		{"object", `{"id": 3, "sort": "oldest"}`, params{ID: 3, Sort: "oldest"}, false},
		{"empty", ``, params{}, false},
		{"null", `null`, params{}, false},
		{"positional", `[3]`, params{}, true},
		{"wrong type", `{"id": "three"}`, params{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got params
			err := Decode(json.RawMessage(tt.raw), &got)
			if tt.wantErr {
				var pe *ParamsError
				if !errors.As(err, &pe) {
					t.Fatalf("Decode() error = %v, want *ParamsError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequireID(t *testing.T) {
	if err := RequireID("id", 0); err == nil {
		t.Error("RequireID(0) should fail")
	}
	if err := RequireID("id", 5); err != nil {
		t.Errorf("RequireID(5) error = %v", err)
	}
}
