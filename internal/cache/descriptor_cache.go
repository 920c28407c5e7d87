package cache

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/smartpresence/attendance-service/internal/face"
)

// allUsersKey holds the candidate list used for identification across users
const allUsersKey = "*"

// DescriptorCache keeps decoded face descriptors in process, keyed by user ID
type DescriptorCache struct {
	c *ttlcache.Cache[string, []face.Candidate]

	mu      sync.Mutex
	running bool
}

func NewDescriptorCache(ttl time.Duration) *DescriptorCache {
	return &DescriptorCache{
		c: ttlcache.New[string, []face.Candidate](
			ttlcache.WithTTL[string, []face.Candidate](ttl),
			ttlcache.WithDisableTouchOnHit[string, []face.Candidate](),
		),
	}
}

// Start runs expired-item cleanup until Stop is called
func (d *DescriptorCache) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	go d.c.Start()
}

// Stop ends the cleanup loop; it is a no-op when Start was never called
func (d *DescriptorCache) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false
	d.c.Stop()
}

func (d *DescriptorCache) Get(userID string) ([]face.Candidate, bool) {
	item := d.c.Get(userID)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

func (d *DescriptorCache) Set(userID string, candidates []face.Candidate) {
	d.c.Set(userID, candidates, ttlcache.DefaultTTL)
}

func (d *DescriptorCache) GetAll() ([]face.Candidate, bool) {
	return d.Get(allUsersKey)
}

func (d *DescriptorCache) SetAll(candidates []face.Candidate) {
	d.Set(allUsersKey, candidates)
}

// Invalidate drops a user's entry together with the cross-user list
func (d *DescriptorCache) Invalidate(userID string) {
	d.c.Delete(userID)
	d.c.Delete(allUsersKey)
}

func (d *DescriptorCache) Len() int {
	return d.c.Len()
}
