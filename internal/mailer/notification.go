package mailer

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
)

// Notification carries everything needed to render one owner alert.
type Notification struct {
	ProjectTitle string
	FormData     map[string]string
	SubmittedAt  time.Time
	Referrer     string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
}

// Render produces the subject, html and text bodies for a waitlist-signup
// notification.
func (n Notification) Render() (subject, htmlBody, text string) {
	email := n.FormData["email"]
	name := n.FormData["name"]

	who := email
	if name != "" {
		who = name
	}
	subject = fmt.Sprintf("New %s waitlist signup: %s", n.ProjectTitle, who)

	var hb strings.Builder
	fmt.Fprintf(&hb, "<h2>New waitlist signup for %s</h2>\n", html.EscapeString(n.ProjectTitle))
	hb.WriteString("<h3>Contact</h3>\n<ul>\n")
	for _, key := range sortedKeys(n.FormData) {
		fmt.Fprintf(&hb, "<li><strong>%s:</strong> %s</li>\n",
			html.EscapeString(key), html.EscapeString(n.FormData[key]))
	}
	hb.WriteString("</ul>\n<h3>Details</h3>\n<ul>\n")
	fmt.Fprintf(&hb, "<li><strong>Submitted:</strong> %s</li>\n", n.SubmittedAt.Format(time.RFC1123))
	for _, pair := range n.detailPairs() {
		fmt.Fprintf(&hb, "<li><strong>%s:</strong> %s</li>\n",
			pair[0], html.EscapeString(pair[1]))
	}
	hb.WriteString("</ul>\n")
	htmlBody = hb.String()

	var tb strings.Builder
	fmt.Fprintf(&tb, "New waitlist signup for %s\n\nContact:\n", n.ProjectTitle)
	for _, key := range sortedKeys(n.FormData) {
		fmt.Fprintf(&tb, "- %s: %s\n", key, n.FormData[key])
	}
	fmt.Fprintf(&tb, "\nSubmitted: %s\n", n.SubmittedAt.Format(time.RFC1123))
	for _, pair := range n.detailPairs() {
		fmt.Fprintf(&tb, "%s: %s\n", pair[0], pair[1])
	}
	text = tb.String()

	return subject, htmlBody, text
}

func (n Notification) detailPairs() [][2]string {
	var pairs [][2]string
	if n.Referrer != "" {
		pairs = append(pairs, [2]string{"Referrer", n.Referrer})
	}
	if n.UTMSource != "" {
		pairs = append(pairs, [2]string{"Source", n.UTMSource})
	}
	if n.UTMMedium != "" {
		pairs = append(pairs, [2]string{"Medium", n.UTMMedium})
	}
	if n.UTMCampaign != "" {
		pairs = append(pairs, [2]string{"Campaign", n.UTMCampaign})
	}
	return pairs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
