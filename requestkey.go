package rawgkit

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RequestKey is the canonical identity of a fetchable resource: scheme, host
// and path plus query parameters sorted by name then value. Two URLs that
// differ only in query parameter order produce the same key. Keys are used
// both for cache lookups and for coalescing concurrent in-flight requests.
type RequestKey struct {
	canonical string
}

// String returns the canonical form of the key.
func (k RequestKey) String() string {
	return k.canonical
}

// NewRequestKey parses rawURL and builds its canonical key. Malformed or
// non-absolute URLs are rejected with an InvalidURL error before any network
// activity.
func NewRequestKey(rawURL string) (RequestKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RequestKey{}, &ClientError{
			Type:    ErrorTypeInvalidURL,
			Message: fmt.Sprintf("malformed URL %q", rawURL),
			Cause:   err,
			URL:     rawURL,
		}
	}
	if u.Scheme == "" || u.Host == "" {
		return RequestKey{}, &ClientError{
			Type:    ErrorTypeInvalidURL,
			Message: fmt.Sprintf("URL %q is not absolute", rawURL),
			URL:     rawURL,
		}
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	if u.Path == "" {
		b.WriteByte('/')
	} else {
		b.WriteString(u.Path)
	}

	if q := canonicalQuery(u.Query()); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}

	return RequestKey{canonical: b.String()}, nil
}

// canonicalQuery renders query values sorted by name, then value, so that
// parameter order in the input never changes the key.
func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		vals := append([]string(nil), values[name]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// BuildURL joins baseURL and path and attaches query items. Output is
// deterministic: the same inputs always render the same URL, so downstream
// request keys are stable.
func BuildURL(baseURL, path string, query map[string]string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", &ClientError{
			Type:    ErrorTypeInvalidURL,
			Message: fmt.Sprintf("malformed base URL %q", baseURL),
			Cause:   err,
			URL:     baseURL,
		}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &ClientError{
			Type:    ErrorTypeInvalidURL,
			Message: fmt.Sprintf("base URL %q is not absolute", baseURL),
			URL:     baseURL,
		}
	}

	joined := strings.TrimSuffix(u.Path, "/")
	if path != "" {
		joined += "/" + strings.TrimPrefix(path, "/")
	}
	u.Path = joined

	if len(query) > 0 {
		values := u.Query()
		for name, value := range query {
			values.Set(name, value)
		}
		u.RawQuery = canonicalQuery(values)
	}

	return u.String(), nil
}
