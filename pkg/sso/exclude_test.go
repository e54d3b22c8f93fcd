package sso

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldExclude_BuiltinPaths(t *testing.T) {
	settings := DefaultSettings()

	for _, path := range []string{
		"/user/login/sso",
		"/user/login",
		"/user/logout",
		"/user",
		"/User/Login",
		"/user/login/",
	} {
		assert.True(t, ShouldExclude(path, "example.com", settings, "/", ""),
			"path %q must always be excluded", path)
	}

	assert.False(t, ShouldExclude("/user/42", "example.com", settings, "/", ""))
	assert.False(t, ShouldExclude("/dashboard", "example.com", settings, "/", ""))
}

func TestShouldExclude_ConfiguredPaths(t *testing.T) {
	settings := &Settings{
		Enabled:       true,
		ExcludedPaths: []string{"about", "/pricing"},
	}

	assert.True(t, ShouldExclude("/about", "example.com", settings, "/", ""))
	assert.True(t, ShouldExclude("/ABOUT", "example.com", settings, "/", ""))
	assert.True(t, ShouldExclude("/pricing", "example.com", settings, "/", ""))
	assert.False(t, ShouldExclude("/about/team", "example.com", settings, "/", ""))
	assert.False(t, ShouldExclude("/aboutus", "example.com", settings, "/", ""))
}

func TestShouldExclude_WildcardPaths(t *testing.T) {
	settings := &Settings{
		Enabled:       true,
		ExcludedPaths: []string{"blog/*"},
	}

	assert.True(t, ShouldExclude("/blog", "example.com", settings, "/", ""))
	assert.True(t, ShouldExclude("/blog/2024/hello", "example.com", settings, "/", ""))
	assert.True(t, ShouldExclude("/Blog/Post", "example.com", settings, "/", ""))
	assert.False(t, ShouldExclude("/blogroll", "example.com", settings, "/", ""))
}

func TestShouldExclude_FrontSentinel(t *testing.T) {
	settings := &Settings{
		Enabled:       true,
		ExcludedPaths: []string{FrontSentinel},
	}

	assert.True(t, ShouldExclude("/home", "example.com", settings, "/home", ""))
	assert.False(t, ShouldExclude("/dashboard", "example.com", settings, "/home", ""))

	// A different front page moves what the sentinel matches.
	assert.False(t, ShouldExclude("/home", "example.com", settings, "/start", ""))
	assert.True(t, ShouldExclude("/start", "example.com", settings, "/start", ""))
}

func TestShouldExclude_Hosts(t *testing.T) {
	settings := &Settings{
		Enabled:       true,
		ExcludedHosts: []string{"public.example.com"},
	}

	assert.True(t, ShouldExclude("/dashboard", "public.example.com", settings, "/", ""))
	assert.True(t, ShouldExclude("/dashboard", "PUBLIC.example.com", settings, "/", ""))
	assert.False(t, ShouldExclude("/dashboard", "intranet.example.com", settings, "/", ""))
}

func TestShouldExclude_BasePath(t *testing.T) {
	settings := &Settings{
		Enabled:       true,
		ExcludedPaths: []string{"reports/*"},
	}

	// Policy entries are base-path-agnostic.
	assert.True(t, ShouldExclude("/sub/reports/q3", "example.com", settings, "/", "/sub"))
	assert.True(t, ShouldExclude("/sub/user/login", "example.com", settings, "/", "/sub"))
	assert.False(t, ShouldExclude("/sub/dashboard", "example.com", settings, "/", "/sub"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		basePath string
		want     string
	}{
		{"/node/5", "", "/node/5"},
		{"node/5", "", "/node/5"},
		{"/node/5/", "", "/node/5"},
		{"/", "", "/"},
		{"/sub/node/5", "/sub", "/node/5"},
		{"/sub", "/sub", "/"},
		{"/subway", "/sub", "/subway"},
		{"/SUB/node/5", "/sub", "/node/5"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizePath(tc.path, tc.basePath),
			"NormalizePath(%q, %q)", tc.path, tc.basePath)
	}
}

func TestMatchPath_WildcardEdgeCases(t *testing.T) {
	assert.True(t, matchPath("/anything", "*"))
	assert.True(t, matchPath("/blog", "blog/*"))
	assert.True(t, matchPath("/blog/a/b", "/blog/*"))
	assert.False(t, matchPath("/blogging", "blog/*"))
	assert.True(t, matchPath("/exact", "exact"))
	assert.False(t, matchPath("/exact/sub", "exact"))
}
