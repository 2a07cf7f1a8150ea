package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolattend/internal/attendance"
)

func TestWriteErrorMapsCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid argument", attendance.ErrInvalid("bad status"), http.StatusBadRequest, string(attendance.CodeInvalidArgument)},
		{"not found", attendance.ErrNotFound("record rec-1"), http.StatusNotFound, string(attendance.CodeNotFound)},
		{"permission denied", attendance.ErrPermissionDenied("window closed"), http.StatusForbidden, string(attendance.CodePermissionDenied)},
		{"data unavailable", attendance.ErrDataUnavailable("audit query failed: %v", errors.New("conn refused")), http.StatusServiceUnavailable, string(attendance.CodeDataUnavailable)},
		{"data integrity", attendance.ErrDataIntegrity("unknown status"), http.StatusInternalServerError, string(attendance.CodeDataIntegrity)},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			writeError(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}
