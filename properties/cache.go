package properties

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/galactavista/galactavista-go/types"
)

// Detail lookups are cached briefly so flipping between a list and a detail
// view does not refetch the same listing.
const (
	detailTTL       = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

type detailCache struct {
	entries *gocache.Cache
}

func newDetailCache() *detailCache {
	return &detailCache{entries: gocache.New(detailTTL, cleanupInterval)}
}

func (c *detailCache) get(id int64) (types.Property, bool) {
	v, ok := c.entries.Get(strconv.FormatInt(id, 10))
	if !ok {
		return types.Property{}, false
	}
	return v.(types.Property), true
}

func (c *detailCache) set(p types.Property) {
	c.entries.SetDefault(strconv.FormatInt(p.ID, 10), p)
}

func (c *detailCache) invalidate(id int64) {
	c.entries.Delete(strconv.FormatInt(id, 10))
}
