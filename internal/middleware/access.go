package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// w3cFields is the #Fields directive of every access log line.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent) cs(Referer)"

// AccessLogConfig controls which requests are logged and where.
type AccessLogConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
	// Output receives the log lines; nil means the standard logger.
	Output *log.Logger
}

// DefaultAccessLogConfig skips the Prometheus scrape endpoint.
func DefaultAccessLogConfig() AccessLogConfig {
	return AccessLogConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c AccessLogConfig) skips(path string) bool {
	if !c.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// AccessLog logs every request in W3C Extended Log Format. The directive
// header is written once when the middleware is built.
func AccessLog(config AccessLogConfig) func(http.Handler) http.Handler {
	out := config.Output
	if out == nil {
		out = log.Default()
	}
	out.Println("#Software: geoindex/1.0")
	out.Println("#Fields: " + w3cFields)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			//nolint:gosec // G706 - every request-derived field passes through clean()
			out.Println(accessLine(r, rec, start))
		})
	}
}

func accessLine(r *http.Request, rec *statusRecorder, start time.Time) string {
	now := start.UTC()
	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		orDash(clean(clientIP(r))),
		orDash(clean(r.Method)),
		orDash(clean(r.URL.Path)),
		orDash(clean(r.URL.RawQuery)),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.size, 10),
		strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		orDash(quote(clean(r.UserAgent()))),
		orDash(quote(clean(r.Referer()))),
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// clean drops control characters so a request cannot forge log lines or
// emit terminal escapes. Line breaks become spaces.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// quote wraps values containing separators in double quotes, doubling any
// embedded quote.
func quote(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
