package mcpmgr

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	redactedValue = "[REDACTED]"
	// redactedKeep is how much of an Authorization credential survives
	// redaction, after its scheme.
	redactedKeep = 4
)

var sensitivePatterns = []string{"token", "secret", "key", "password", "credential", "auth", "signature"}

// IsSensitiveHeader reports whether a header name carries credentials.
func IsSensitiveHeader(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "authorization", "proxy-authorization", "cookie", "set-cookie":
		return true
	}
	return containsSensitive(key)
}

func containsSensitive(key string) bool {
	for _, pattern := range sensitivePatterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}
	return false
}

func isAuthorizationHeader(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	return key == "authorization" || key == "proxy-authorization"
}

// RedactValue masks a credential. An Authorization value keeps its scheme
// and the first few characters of the credential so operators can tell
// tokens apart.
func RedactValue(v string) string {
	scheme, cred, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || scheme == "" {
		return redactedValue
	}
	cred = strings.TrimSpace(cred)
	if len(cred) <= 2*redactedKeep {
		return scheme + " " + redactedValue
	}
	return scheme + " " + cred[:redactedKeep] + "..."
}

// RedactHeader masks the value of a sensitive header. Only Authorization
// headers keep a scheme and prefix; every other credential is fully masked.
func RedactHeader(name, value string) string {
	switch {
	case isAuthorizationHeader(name):
		return RedactValue(value)
	case IsSensitiveHeader(name):
		return redactedValue
	default:
		return value
	}
}

// RedactHeaders returns a copy of headers with sensitive values masked.
func RedactHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = RedactHeader(k, v)
	}
	return out
}

// RedactURL masks userinfo and credential-bearing query parameters. Input
// that does not parse as a URL is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		} else {
			u.User = url.User("xxxxx")
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for k := range q {
			if containsSensitive(strings.ToLower(k)) {
				q[k] = []string{"xxxxx"}
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}

var urlInText = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// scrubURLs redacts every URL embedded in s.
func scrubURLs(s string) string {
	return urlInText.ReplaceAllStringFunc(s, RedactURL)
}

func toHTTPHeader(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}
