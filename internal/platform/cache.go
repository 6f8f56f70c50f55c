package platform

import (
	"sync"
	"time"
)

// Team is a named group of members on the platform
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type cachedTeam struct {
	team    *Team
	expires time.Time
}

// TeamCache remembers team metadata for one session. It only saves requests
// when the same team is looked up more than once while an entry is fresh.
type TeamCache struct {
	mu    sync.RWMutex
	teams map[string]cachedTeam
	ttl   time.Duration
	now   func() time.Time
}

// NewTeamCache creates a cache whose entries live for ttl (5m when zero)
func NewTeamCache(ttl time.Duration) *TeamCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &TeamCache{
		teams: make(map[string]cachedTeam),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores a team under its id
func (c *TeamCache) Put(team *Team) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams[team.ID] = cachedTeam{team: team, expires: c.now().Add(c.ttl)}
}

// Get returns a fresh cached team; expired entries are dropped
func (c *TeamCache) Get(id string) (*Team, bool) {
	c.mu.RLock()
	entry, ok := c.teams[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expires) {
		c.mu.Lock()
		if cur, ok := c.teams[id]; ok && cur.expires == entry.expires {
			delete(c.teams, id)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.team, true
}
