package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("teacher-7", RoleTeacher, "R. Mensah", "schoolattend", "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)

	claims, err := Parse(token.Value, "secret", "schoolattend")
	require.NoError(t, err)
	assert.Equal(t, "teacher-7", claims.Subject)
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.Equal(t, "R. Mensah", claims.Name)
}

func TestParseRejectsBadTokens(t *testing.T) {
	token, err := Issue("admin-1", RoleAdmin, "", "schoolattend", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token.Value, "wrong-key", "schoolattend")
	assert.Error(t, err)

	_, err = Parse(token.Value, "secret", "other-issuer")
	assert.Error(t, err)

	expired, err := Issue("admin-1", RoleAdmin, "", "schoolattend", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.Value, "secret", "schoolattend")
	assert.Error(t, err)
}
