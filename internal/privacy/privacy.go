// Package privacy derives storable, de-identified provenance fields from raw
// request data. Everything here is pure; HashIP takes its salt from the caller.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

const (
	maxUserAgentLen = 500
	maxReferrerLen  = 500
	maxUTMLen       = 100
)

var (
	emailRe  = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
	ipv4Re   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	markupRe = regexp.MustCompile(`[<>"'&]`)
)

// ClientIP resolves the originating address from proxy headers, left-most
// forwarded value first. Returns "0.0.0.0" when nothing usable is present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return "0.0.0.0"
}

// HashIP returns the hex sha256 of ip+salt. Same ip and salt always produce
// the same hash; hashes made with different salts are not comparable.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])
}

// SanitizeUserAgent truncates the user-agent and redacts embedded email- and
// IPv4-shaped substrings before storage.
func SanitizeUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	ua = emailRe.ReplaceAllString(ua, "[email]")
	return ipv4Re.ReplaceAllString(ua, "[ip]")
}

// SanitizeReferrer keeps scheme, host and path of a referrer URL, dropping the
// query string. Unparseable input is stripped of markup characters instead.
func SanitizeReferrer(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		s := referrer
		if len(s) > maxReferrerLen {
			s = s[:maxReferrerLen]
		}
		return markupRe.ReplaceAllString(s, "")
	}
	s := u.Scheme + "://" + u.Host + u.Path
	if len(s) > maxReferrerLen {
		s = s[:maxReferrerLen]
	}
	return s
}

// UTM holds campaign-tracking parameters. Empty string means absent.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// ExtractUTM parses utm_* parameters from a URL's query string. Each value is
// length-capped and stripped of markup-unsafe characters.
func ExtractUTM(rawURL string) UTM {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UTM{}
	}
	q := u.Query()
	return UTM{
		Source:   sanitizeUTMValue(q.Get("utm_source")),
		Medium:   sanitizeUTMValue(q.Get("utm_medium")),
		Campaign: sanitizeUTMValue(q.Get("utm_campaign")),
		Term:     sanitizeUTMValue(q.Get("utm_term")),
		Content:  sanitizeUTMValue(q.Get("utm_content")),
	}
}

func sanitizeUTMValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) > maxUTMLen {
		v = v[:maxUTMLen]
	}
	return strings.TrimSpace(markupRe.ReplaceAllString(v, ""))
}

// ClassifyDevice buckets a user-agent into mobile, tablet, desktop or unknown.
// The mobile check runs first: a UA carrying both tokens (iPads with a Mobile
// build marker, Android tablets) counts as mobile.
func ClassifyDevice(ua string) string {
	if ua == "" {
		return "unknown"
	}
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "android"):
		return "mobile"
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		return "tablet"
	case useragent.New(ua).Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

// ClassifyBrowser maps a user-agent onto a fixed browser bucket. The substring
// checks run in priority order; the first match wins.
func ClassifyBrowser(ua string) string {
	if ua == "" {
		return ""
	}
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "chrome"):
		return "Chrome"
	case strings.Contains(lower, "firefox"):
		return "Firefox"
	case strings.Contains(lower, "safari"):
		return "Safari"
	case strings.Contains(lower, "edge"):
		return "Edge"
	case strings.Contains(lower, "opera"):
		return "Opera"
	default:
		return "Other"
	}
}

// BrowserDetail returns the parsed browser version and OS for enrichment
// metadata. Both may be empty for unrecognized agents.
func BrowserDetail(ua string) (version, os string) {
	if ua == "" {
		return "", ""
	}
	parsed := useragent.New(ua)
	_, version = parsed.Browser()
	return version, parsed.OS()
}

// Substrings matched case-insensitively against the User-Agent.
var botSignatures = []string{
	"bot",
	"spider",
	"crawl",
	"facebookexternalhit",
	"facebot",
	"whatsapp",
	"slackbot",
	"telegrambot",
	"applebot",
	"twitterbot",
	"linkedinbot",
	"preview",
	"chrome-lighthouse",
	"headlesschrome/",
	"phantomjs",
	"go-http-client/",
	"curl/",
	"wget/",
	"python-requests/",
	"python-urllib/",
	"okhttp/",
	"java/",
	"libwww-perl/",
}

// IsBot returns true if the user-agent looks like a crawler, link-preview
// fetcher or plain HTTP client library.
func IsBot(rawUA string) bool {
	if rawUA == "" {
		return false
	}
	if useragent.New(rawUA).Bot() {
		return true
	}
	lower := strings.ToLower(rawUA)
	for _, sig := range botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
