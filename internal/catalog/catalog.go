package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// ChannelInfo is the immutable description of one channel.
type ChannelInfo struct {
	ServiceID      string `json:"service_id"`
	Title          string `json:"title"`
	StreamImageURL string `json:"stream_image_url,omitempty"`
	LogoImageURL   string `json:"logo_image_url,omitempty"`
	ChannelNumber  string `json:"channel_number,omitempty"`
}

// Fetcher retrieves the full channel list.
type Fetcher interface {
	FetchChannels(ctx context.Context) ([]ChannelInfo, error)
}

// snapshot is one immutable catalog generation.
type snapshot struct {
	ordered     []ChannelInfo
	byServiceID map[string]ChannelInfo
	refreshedAt time.Time
}

// emptySnapshot is served before the first successful refresh.
var emptySnapshot = &snapshot{byServiceID: map[string]ChannelInfo{}}

// Cache is the channel catalog.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Refresh calls are not serialized against each other; the last
//     successful one wins.
type Cache struct {
	fetcher Fetcher
	extras  []ChannelInfo
	current atomic.Pointer[snapshot]
}

// New creates an empty Cache.
//
// Parameters:
//   - fetcher: Source of the channel list
//   - extras: Channels appended to every refreshed catalog (e.g. apps)
func New(fetcher Fetcher, extras ...ChannelInfo) *Cache {
	c := &Cache{
		fetcher: fetcher,
		extras:  append([]ChannelInfo(nil), extras...),
	}
	c.current.Store(emptySnapshot)
	return c
}

// Refresh fetches the channel list and replaces the catalog.
//
// On failure the previous catalog is kept and the error returned.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}
	channels, err := c.fetcher.FetchChannels(ctx)
	if err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}
	c.Replace(channels)
	return nil
}

// Replace installs a catalog built from channels plus the configured extras.
//
// A later entry with the same service id replaces the earlier one in the
// lookup map but keeps the earlier position in the ordered list.
func (c *Cache) Replace(channels []ChannelInfo) {
	all := make([]ChannelInfo, 0, len(channels)+len(c.extras))
	all = append(all, channels...)
	all = append(all, c.extras...)

	s := &snapshot{
		ordered:     make([]ChannelInfo, 0, len(all)),
		byServiceID: make(map[string]ChannelInfo, len(all)),
		refreshedAt: time.Now().UTC(),
	}
	index := make(map[string]int, len(all))
	for _, ch := range all {
		if i, dup := index[ch.ServiceID]; dup {
			s.ordered[i] = ch
		} else {
			index[ch.ServiceID] = len(s.ordered)
			s.ordered = append(s.ordered, ch)
		}
		s.byServiceID[ch.ServiceID] = ch
	}
	c.current.Store(s)
}

// Lookup returns the channel with the given service id.
func (c *Cache) Lookup(serviceID string) (ChannelInfo, bool) {
	ch, ok := c.current.Load().byServiceID[serviceID]
	return ch, ok
}

// FindByTitle returns the first channel, in catalog order, whose title
// equals title exactly.
func (c *Cache) FindByTitle(title string) (ChannelInfo, bool) {
	for _, ch := range c.current.Load().ordered {
		if ch.Title == title {
			return ch, true
		}
	}
	return ChannelInfo{}, false
}

// Channels returns the catalog in order. The slice is a copy.
func (c *Cache) Channels() []ChannelInfo {
	ordered := c.current.Load().ordered
	out := make([]ChannelInfo, len(ordered))
	copy(out, ordered)
	return out
}

// Len returns the number of channels.
func (c *Cache) Len() int {
	return len(c.current.Load().ordered)
}

// RefreshedAt returns when the current catalog was installed, or the zero
// time if it never was.
func (c *Cache) RefreshedAt() time.Time {
	return c.current.Load().refreshedAt
}
