// Package cache holds the custom-domain lookup cache used by the hostname
// router. Entries expire after a TTL so a project flipped out of ACTIVE is
// never served stale for longer than that bound.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marketprobe/marketprobe/internal/models"
)

type DomainCache struct {
	c *expirable.LRU[string, *models.Project]
}

func New(size int, ttl time.Duration) *DomainCache {
	return &DomainCache{
		c: expirable.NewLRU[string, *models.Project](size, nil, ttl),
	}
}

func (dc *DomainCache) Get(domain string) (*models.Project, bool) {
	return dc.c.Get(domain)
}

func (dc *DomainCache) Set(domain string, p *models.Project) {
	dc.c.Add(domain, p)
}

func (dc *DomainCache) Invalidate(domain string) {
	dc.c.Remove(domain)
}
