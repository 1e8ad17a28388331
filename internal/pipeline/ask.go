package pipeline

import "net/url"

// Ask is the caller's raw request intent before it has been matched
// against any endpoint, spec §4.7 "init(ask) ... ask names a method,
// url, headers and body plus any values the caller wants bound ahead of
// matching".
type Ask struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Values  map[string]any
}

// splitURL breaks ask.URL into origin/pathname/searchParams components,
// defaulting empty pieces rather than failing: an incomplete ask is
// still allowed to match a fully-templated endpoint.
func splitURL(raw string) (origin, pathname string, searchParams map[string]string) {
	searchParams = map[string]string{}
	if raw == "" {
		return "", "", searchParams
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", raw, searchParams
	}
	if u.Scheme != "" && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	pathname = u.Path
	for key, values := range u.Query() {
		if len(values) > 0 {
			searchParams[key] = values[0]
		}
	}
	return origin, pathname, searchParams
}
