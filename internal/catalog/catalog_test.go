package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu       sync.Mutex
	channels []ChannelInfo
	err      error
	calls    int
}

func (f *stubFetcher) FetchChannels(context.Context) ([]ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

var testChannels = []ChannelInfo{
	{ServiceID: "NL_000001_019401", Title: "NPO 1", StreamImageURL: "https://img/npo1.jpg", ChannelNumber: "1"},
	{ServiceID: "NL_000002_019402", Title: "NPO 2", StreamImageURL: "https://img/npo2.jpg", ChannelNumber: "2"},
	{ServiceID: "NL_000003_019403", Title: "NPO 2", ChannelNumber: "902"},
}

func TestCache_EmptyBeforeRefresh(t *testing.T) {
	c := New(&stubFetcher{})

	assert.Equal(t, 0, c.Len())
	assert.True(t, c.RefreshedAt().IsZero())
	_, ok := c.Lookup("NL_000001_019401")
	assert.False(t, ok)
	_, ok = c.FindByTitle("NPO 1")
	assert.False(t, ok)
}

func TestCache_Refresh(t *testing.T) {
	c := New(&stubFetcher{channels: testChannels})

	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.RefreshedAt().IsZero())

	ch, ok := c.Lookup("NL_000001_019401")
	require.True(t, ok)
	assert.Equal(t, "NPO 1", ch.Title)
	assert.Equal(t, "https://img/npo1.jpg", ch.StreamImageURL)
}

func TestCache_FindByTitleReturnsFirstInOrder(t *testing.T) {
	c := New(&stubFetcher{channels: testChannels})
	require.NoError(t, c.Refresh(context.Background()))

	ch, ok := c.FindByTitle("NPO 2")
	require.True(t, ok)
	assert.Equal(t, "NL_000002_019402", ch.ServiceID)

	_, ok = c.FindByTitle("npo 2")
	assert.False(t, ok, "title match is exact")
}

func TestCache_FailedRefreshKeepsPrevious(t *testing.T) {
	f := &stubFetcher{channels: testChannels}
	c := New(f)
	require.NoError(t, c.Refresh(context.Background()))
	before := c.RefreshedAt()

	f.err = errors.New("boom")
	err := c.Refresh(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, f.err)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, before, c.RefreshedAt())
}

func TestCache_RefreshWithoutFetcher(t *testing.T) {
	c := New(nil)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoFetcher)
}

func TestCache_Extras(t *testing.T) {
	netflix := ChannelInfo{ServiceID: "NL_000073_019506", Title: "Netflix", ChannelNumber: "150"}
	c := New(&stubFetcher{channels: testChannels}, netflix)
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, 4, c.Len())
	ch, ok := c.FindByTitle("Netflix")
	require.True(t, ok)
	assert.Equal(t, "NL_000073_019506", ch.ServiceID)
	assert.Equal(t, netflix, c.Channels()[3])
}

func TestCache_ReplaceDuplicateServiceID(t *testing.T) {
	c := New(nil)
	c.Replace([]ChannelInfo{
		{ServiceID: "a", Title: "First"},
		{ServiceID: "b", Title: "Other"},
		{ServiceID: "a", Title: "Second"},
	})

	assert.Equal(t, 2, c.Len())
	ch, _ := c.Lookup("a")
	assert.Equal(t, "Second", ch.Title)
	assert.Equal(t, "Second", c.Channels()[0].Title)
}

func TestCache_ChannelsIsCopy(t *testing.T) {
	c := New(&stubFetcher{channels: testChannels})
	require.NoError(t, c.Refresh(context.Background()))

	got := c.Channels()
	got[0].Title = "changed"

	ch, _ := c.Lookup("NL_000001_019401")
	assert.Equal(t, "NPO 1", ch.Title)
	assert.Equal(t, "NPO 1", c.Channels()[0].Title)
}

func TestCache_ConcurrentReadsDuringRefresh(t *testing.T) {
	c := New(&stubFetcher{channels: testChannels})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			if ch, ok := c.Lookup("NL_000002_019402"); ok {
				assert.Equal(t, "NPO 2", ch.Title)
			}
			n := c.Len()
			assert.True(t, n == 0 || n == 3, "observed partial catalog of %d", n)
		}()
	}
	wg.Wait()
}
