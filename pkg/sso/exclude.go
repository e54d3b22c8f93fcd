package sso

import "strings"

// builtinExcludedPaths must never be intercepted or login/logout would loop
var builtinExcludedPaths = []string{
	LoginPath,
	ManualLoginPath,
	LogoutPath,
	AccountPath,
}

// ShouldExclude reports whether automated SSO must be skipped for a request
// to the given path and host. The path is normalized by stripping the
// deployment base path so policy is base-path-agnostic. Pure function, safe
// on every request.
func ShouldExclude(requestPath, requestHost string, settings *Settings, frontPage, basePath string) bool {
	path := NormalizePath(requestPath, basePath)

	for _, p := range builtinExcludedPaths {
		if strings.EqualFold(path, p) {
			return true
		}
	}

	for _, host := range settings.ExcludedHosts {
		if strings.EqualFold(host, requestHost) {
			return true
		}
	}

	front := NormalizePath(frontPage, "")
	for _, entry := range settings.ExcludedPaths {
		if entry == FrontSentinel {
			if strings.EqualFold(path, front) {
				return true
			}
			continue
		}
		if matchPath(path, entry) {
			return true
		}
	}

	return false
}

// NormalizePath strips the base path prefix and guarantees a leading slash
func NormalizePath(path, basePath string) string {
	if basePath != "" && basePath != "/" {
		if strings.EqualFold(path, basePath) {
			path = "/"
		} else if len(path) > len(basePath) && strings.EqualFold(path[:len(basePath)], basePath) && path[len(basePath)] == '/' {
			path = path[len(basePath):]
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// matchPath matches a normalized request path against one configured entry.
// A trailing '*' makes the entry a prefix wildcard covering the named path
// and everything below it; otherwise matching is exact. Both forms are
// case-insensitive.
func matchPath(path, entry string) bool {
	entry = NormalizePath(entry, "")

	if strings.HasSuffix(entry, "*") {
		prefix := strings.TrimRight(strings.TrimSuffix(entry, "*"), "/")
		if prefix == "" {
			return true
		}
		return strings.EqualFold(path, prefix) ||
			(len(path) > len(prefix) && strings.EqualFold(path[:len(prefix)], prefix) && path[len(prefix)] == '/')
	}

	return strings.EqualFold(path, entry)
}
