package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/punchsync/internal/config"
)

func TestAuthCode(t *testing.T) {
	code, err := authCode("4/abc", "s1")
	require.NoError(t, err)
	assert.Equal(t, "4/abc", code)

	code, err = authCode("http://localhost/?state=s1&code=4%2Fxyz&scope=cal", "s1")
	require.NoError(t, err)
	assert.Equal(t, "4/xyz", code)

	_, err = authCode("http://localhost/?state=other&code=4%2Fxyz", "s1")
	assert.Error(t, err)

	_, err = authCode("", "s1")
	assert.Error(t, err)
}

func TestResolveEmployees(t *testing.T) {
	cfg := &config.Config{Employees: []config.Employee{{Name: "Jesus"}, {Name: "Enrique"}}}

	all, err := resolveEmployees(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jesus", "Enrique"}, all)

	one, err := resolveEmployees(cfg, []string{"enrique"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Enrique"}, one)

	_, err = resolveEmployees(cfg, []string{"Maria"})
	assert.Error(t, err)

	_, err = resolveEmployees(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestResolveMonth(t *testing.T) {
	w, err := resolveMonth("2025-06", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-06", w.Label())

	w, err = resolveMonth("", time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Now().UTC()))

	_, err = resolveMonth("June", time.UTC)
	assert.Error(t, err)
}
