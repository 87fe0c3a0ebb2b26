package logger

import "strings"

var sensitiveQueryParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"apitoken",
	"auth",
	"csrf",
	"email",
}

// SanitizedEmail masks an email address so log lines never carry a full
// identity. "client@example.com" becomes "c*****@*******.com".
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	local := mask(email[:at])

	domain := email[at+1:]
	if dot := strings.LastIndex(domain, "."); dot > 0 {
		labels := strings.Split(domain[:dot], ".")
		for i, label := range labels {
			labels[i] = strings.Repeat("*", len(label))
		}
		domain = strings.Join(labels, ".") + domain[dot:]
	}

	return local + "@" + domain
}

// mask keeps the first character and stars out the rest.
func mask(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + strings.Repeat("*", len(s)-1)
}

// SanitizeQueryString reports whether a raw query string carries a parameter
// that must not reach the request log.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
