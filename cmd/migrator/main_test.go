package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/auth"
)

func TestHostKeyHash(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hostkey", "hash", "quizmaster-2024"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, auth.VerifyHostKey(hash, "quizmaster-2024"))
}

func TestHostKeyHashRejectsShortKey(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"hostkey", "hash", "short"})
	assert.ErrorIs(t, root.Execute(), auth.ErrHostKeyTooShort)
}

func TestResolveDSN(t *testing.T) {
	dsn, err := resolveDSN("postgres://explicit")
	require.NoError(t, err)
	assert.Equal(t, "postgres://explicit", dsn)

	t.Setenv("PG_USER", "")
	t.Setenv("PG_DATABASE", "")
	_, err = resolveDSN("")
	assert.Error(t, err)

	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "trivia")
	t.Setenv("PG_PASSWORD", "pw")
	t.Setenv("PG_DATABASE", "night")
	dsn, err = resolveDSN("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://trivia:pw@db:5432/night?sslmode=disable", dsn)
}
