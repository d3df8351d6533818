package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/marketprobe/marketprobe/internal/db"
	"github.com/marketprobe/marketprobe/internal/models"
)

type seedProject struct {
	slug        string
	title       string
	description string
	domain      string
	status      string
	headline    string
	theme       string
	// weight controls relative traffic volume (higher = more page views)
	weight float64
	// conversion is the fraction of page views that become submissions
	conversion float64
}

var projects = []seedProject{
	{"inboxzero", "InboxZero AI", "An assistant that triages your email overnight", "inboxzero.example.com", "ACTIVE", "Wake up to an empty inbox", "minimal", 5.0, 0.06},
	{"loopnotes", "LoopNotes", "Shared release notes for product teams", "", "ACTIVE", "Release notes your users actually read", "modern", 3.5, 0.04},
	{"fernwell", "Fernwell", "Subscription plants for small offices", "fernwell.example.com", "ACTIVE", "A greener office, delivered monthly", "eco", 2.0, 0.08},
	{"stackpad", "StackPad", "Scratchpad that turns notes into runbooks", "", "ACTIVE", "From midnight notes to morning runbooks", "tech", 4.0, 0.03},
	{"quietkit", "QuietKit", "Focus timers without the guilt trip", "", "GRADUATED", "Deep work, gently enforced", "bold", 1.5, 0.05},
	{"paperroute", "PaperRoute", "Newsletter analytics for indie writers", "", "DRAFT", "Know which paragraph lost them", "creative", 0, 0},
}

var utmSources = []struct {
	source string
	medium string
	weight float64
}{
	{"", "", 30}, // direct traffic
	{"twitter", "social", 15},
	{"newsletter", "email", 12},
	{"producthunt", "social", 10},
	{"google", "cpc", 8},
	{"reddit", "social", 6},
	{"hackernews", "social", 5},
	{"linkedin", "social", 4},
}

var referrerHosts = []struct {
	host   string
	weight float64
}{
	{"", 30}, // direct
	{"twitter.com", 14},
	{"news.ycombinator.com", 10},
	{"producthunt.com", 9},
	{"google.com", 18},
	{"reddit.com", 7},
	{"linkedin.com", 5},
	{"dev.to", 3},
}

var devices = []struct {
	name    string
	browser string
	weight  float64
}{
	{"desktop", "Chrome", 40},
	{"desktop", "Firefox", 10},
	{"desktop", "Safari", 8},
	{"desktop", "Edge", 6},
	{"mobile", "Safari", 18},
	{"mobile", "Chrome", 14},
	{"tablet", "Safari", 4},
}

var countries = []struct {
	code   string
	weight float64
}{
	{"US", 30}, {"GB", 12}, {"DE", 10}, {"IN", 9}, {"CA", 7},
	{"FR", 6}, {"BR", 5}, {"AU", 5}, {"NL", 4}, {"SE", 3},
	{"JP", 3}, {"ES", 2}, {"PL", 2}, {"SG", 1}, {"MX", 1},
}

var firstNames = []string{
	"ada", "grace", "alan", "edsger", "barbara", "donald", "tony",
	"leslie", "niklaus", "john", "dennis", "ken", "bjarne", "rob",
}

func pick[T any](rng *rand.Rand, weights func(int) float64, items []T) T {
	var total float64
	for i := range items {
		total += weights(i)
	}
	v := rng.Float64() * total
	for i := range items {
		v -= weights(i)
		if v <= 0 {
			return items[i]
		}
	}
	return items[len(items)-1]
}

func fakeIPHash(rng *rand.Rand) string {
	ip := fmt.Sprintf("%d.%d.%d.%d", rng.Intn(224)+1, rng.Intn(256), rng.Intn(256), rng.Intn(256))
	sum := sha256.Sum256([]byte(ip + "seed-salt"))
	return hex.EncodeToString(sum[:])
}

func main() {
	dbPath := os.Getenv("MARKETPROBE_DB_PATH")
	if dbPath == "" {
		dbPath = "./marketprobe.db"
	}

	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	rng := rand.New(rand.NewSource(42)) // deterministic seed
	now := time.Now().UTC()
	start := now.AddDate(0, -3, 0)

	fmt.Println("Seeding projects...")

	totalEvents := 0
	totalSubmissions := 0

	for _, sp := range projects {
		project := &models.Project{
			Slug:        sp.slug,
			Title:       sp.title,
			Description: sp.description,
			Domain:      sp.domain,
			Status:      sp.status,
		}
		if err := models.CreateProject(database, project); err != nil {
			log.Fatalf("create project %q: %v", sp.slug, err)
		}

		pc := &models.PageConfig{
			ProjectID: project.ID,
			TemplateConfig: models.TemplateConfig{
				Headline:    sp.headline,
				Subheadline: sp.description,
				CTAText:     "Join the waitlist",
				Features: []models.Feature{
					{Title: "Early access", Description: "Be first in line when we launch."},
					{Title: "Founding pricing", Description: "Lock in the launch price forever."},
				},
			},
			DesignConfig: models.DesignConfig{
				Theme:     sp.theme,
				HeroStyle: "centered",
			},
		}
		if err := models.ActivateNewPageConfig(database, pc); err != nil {
			log.Fatalf("page config %q: %v", sp.slug, err)
		}

		fmt.Printf("  [%d] /p/%-10s %s (%s)\n", project.ID, sp.slug, sp.title, sp.status)

		if sp.weight == 0 {
			continue
		}

		// Synthesize daily traffic: variance, gentle growth, weekend dip.
		var events []models.AnalyticsEvent
		submissionN := 0

		for day := start; day.Before(now); day = day.Add(24 * time.Hour) {
			progress := day.Sub(start).Hours() / now.Sub(start).Hours()
			growth := 0.7 + 0.6*progress
			variance := 0.6 + rng.Float64()*0.8
			weekday := 1.0
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				weekday = 0.5
			}
			viewsToday := int(sp.weight * 6 * growth * variance * weekday)

			for v := 0; v < viewsToday; v++ {
				hour := int(rng.NormFloat64()*4 + 14)
				if hour < 0 {
					hour = 0
				}
				if hour > 23 {
					hour = 23
				}
				ts := time.Date(day.Year(), day.Month(), day.Day(), hour, rng.Intn(60), rng.Intn(60), 0, time.UTC)
				if ts.After(now) {
					continue
				}

				utm := pick(rng, func(i int) float64 { return utmSources[i].weight }, utmSources)
				ref := pick(rng, func(i int) float64 { return referrerHosts[i].weight }, referrerHosts)
				dev := pick(rng, func(i int) float64 { return devices[i].weight }, devices)
				country := pick(rng, func(i int) float64 { return countries[i].weight }, countries)

				referrer := ""
				if ref.host != "" {
					referrer = "https://" + ref.host + "/"
				}

				events = append(events, models.AnalyticsEvent{
					ProjectID:  project.ID,
					EventType:  models.EventPageView,
					Timestamp:  ts,
					IPHash:     fakeIPHash(rng),
					Referrer:   referrer,
					Pathname:   "/p/" + sp.slug,
					UTMSource:  utm.source,
					UTMMedium:  utm.medium,
					Country:    country.code,
					DeviceType: dev.name,
					Browser:    dev.browser,
				})

				if rng.Float64() < sp.conversion {
					submissionN++
					email := fmt.Sprintf("%s%d@example.com", firstNames[rng.Intn(len(firstNames))], submissionN)
					sub := &models.FormSubmission{
						ProjectID:   project.ID,
						SubmittedAt: ts.Add(time.Duration(rng.Intn(120)) * time.Second),
						Email:       email,
						FormData:    map[string]string{"email": email},
						IPHash:      fakeIPHash(rng),
						Referrer:    referrer,
						UTMSource:   utm.source,
						UTMMedium:   utm.medium,
					}
					if err := models.CreateSubmission(database, sub); err != nil {
						log.Fatalf("submission for %q: %v", sp.slug, err)
					}
					events = append(events, models.AnalyticsEvent{
						ProjectID:  project.ID,
						EventType:  models.EventFormSubmission,
						Timestamp:  sub.SubmittedAt,
						IPHash:     sub.IPHash,
						Referrer:   referrer,
						Pathname:   "/p/" + sp.slug,
						UTMSource:  utm.source,
						UTMMedium:  utm.medium,
						Country:    country.code,
						DeviceType: dev.name,
						Browser:    dev.browser,
						Metadata:   map[string]any{"submissionId": sub.ID, "formFields": []string{"email"}},
					})
				}
			}

			if len(events) >= 500 {
				if err := models.BatchInsertEvents(database, events); err != nil {
					log.Fatalf("insert events for %q: %v", sp.slug, err)
				}
				totalEvents += len(events)
				events = events[:0]
			}
		}

		if len(events) > 0 {
			if err := models.BatchInsertEvents(database, events); err != nil {
				log.Fatalf("insert events for %q: %v", sp.slug, err)
			}
			totalEvents += len(events)
		}
		totalSubmissions += submissionN
	}

	fmt.Printf("\nDone! Created %d projects, %d events, %d submissions.\n", len(projects), totalEvents, totalSubmissions)
	fmt.Printf("Database: %s\n", dbPath)
}
