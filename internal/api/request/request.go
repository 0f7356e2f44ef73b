// Package request holds what every JSON-RPC method reads from the incoming
// request: the viewer identity and the decoded params.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillhq/quillfeed/internal/models"
)

// ViewerHeader carries the authenticated caller id set by the gateway
const ViewerHeader = "X-User-Id"

const viewerKey = "quillfeed.viewer_id"

// Viewer reads the caller identity from ViewerHeader. Missing or malformed
// values leave the request anonymous.
func Viewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := models.AnonymousViewer
		if raw := strings.TrimSpace(c.GetHeader(ViewerHeader)); raw != "" {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
				id = parsed
			}
		}
		c.Set(viewerKey, id)
		if id != models.AnonymousViewer {
			trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.Int64("quillfeed.viewer_id", id))
		}
		c.Next()
	}
}

// ViewerID returns the caller id, or models.AnonymousViewer
func ViewerID(c *gin.Context) int64 {
	if v, ok := c.Get(viewerKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return models.AnonymousViewer
}

// ParamsError reports params that could not be decoded or are missing
// required fields
type ParamsError struct {
	Message string
}

func (e *ParamsError) Error() string {
	return e.Message
}

// Invalid returns a ParamsError
func Invalid(format string, args ...interface{}) error {
	return &ParamsError{Message: fmt.Sprintf(format, args...)}
}

// Decode unmarshals named params into dest. Absent or null params leave
// dest untouched.
func Decode(params json.RawMessage, dest interface{}) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return Invalid("params must be an object")
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return Invalid("invalid parameters format: %v", err)
	}
	return nil
}

// RequireID checks that id names a row
func RequireID(name string, id int64) error {
	if id <= 0 {
		return Invalid("missing required parameter: %s", name)
	}
	return nil
}
