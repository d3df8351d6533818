// Package abuse maintains datacenter CIDR ranges and a Tor exit-node list to
// spot form submissions that cannot plausibly come from a human visitor.
// Lookups are thread-safe; lists refresh periodically in the background.
package abuse

import (
	"bufio"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	datacenterRangesURL = "https://raw.githubusercontent.com/jhassine/server-ip-addresses/master/data/datacenters.txt"
	torExitNodeURL      = "https://check.torproject.org/torbulkexitlist"

	refreshInterval = 24 * time.Hour
	fetchTimeout    = 30 * time.Second
)

type Checker struct {
	mu      sync.RWMutex
	ranges  []*net.IPNet
	exitIPs map[string]bool
	stop    chan struct{}
	done    chan struct{}
}

// NewChecker starts a background goroutine that fetches the lists immediately
// and refreshes them every 24 hours. Pass enabled=false for a no-op checker
// that blocks nothing.
func NewChecker(enabled bool) *Checker {
	c := &Checker{exitIPs: make(map[string]bool)}
	if !enabled {
		return c
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run()
	return c
}

// Blocked returns true if ip belongs to a known datacenter range or is a Tor
// exit node.
func (c *Checker) Blocked(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.exitIPs[ip] {
		return true
	}
	for _, n := range c.ranges {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Shutdown stops the background refresh and waits for it to finish.
func (c *Checker) Shutdown() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
}

func (c *Checker) run() {
	defer close(c.done)
	c.refresh()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refresh()
		case <-c.stop:
			return
		}
	}
}

func (c *Checker) refresh() {
	ranges, rangeErr := fetchCIDRs(datacenterRangesURL)
	exits, exitErr := fetchIPList(torExitNodeURL)

	if rangeErr != nil {
		log.Printf("abuse: datacenter ranges fetch failed: %v", rangeErr)
	}
	if exitErr != nil {
		log.Printf("abuse: tor exit list fetch failed: %v", exitErr)
	}

	exitSet := make(map[string]bool, len(exits))
	for _, ip := range exits {
		exitSet[ip] = true
	}

	c.mu.Lock()
	if len(ranges) > 0 {
		c.ranges = ranges
	}
	if len(exitSet) > 0 {
		c.exitIPs = exitSet
	}
	c.mu.Unlock()

	log.Printf("abuse: loaded %d CIDR ranges, %d exit nodes", len(ranges), len(exits))
}

// fetchCIDRs downloads a plain text file of one CIDR per line.
func fetchCIDRs(url string) ([]*net.IPNet, error) {
	resp, err := httpGet(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return parseCIDRs(resp.Body)
}

// fetchIPList downloads a plain text file of one IP per line.
func fetchIPList(url string) ([]string, error) {
	resp, err := httpGet(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ips []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if net.ParseIP(line) != nil {
			ips = append(ips, line)
		}
	}
	return ips, scanner.Err()
}

func httpGet(url string) (*http.Response, error) {
	client := &http.Client{Timeout: fetchTimeout}
	return client.Get(url)
}

func parseCIDRs(r io.Reader) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, ipNet, err := net.ParseCIDR(line)
		if err != nil {
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets, scanner.Err()
}
