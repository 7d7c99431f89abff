package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	infos []string
	warns []string
}

func (l *recordingLogger) Info(msg string, _ ...any) { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any) { l.warns = append(l.warns, msg) }

func TestNewRefresher_Schedules(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"@every 6h", false},
		{"@hourly", false},
		{"0 4 * * *", false},
		{"not a schedule", true},
		{"* * * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			_, err := NewRefresher(New(nil), tt.schedule, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRefresher_RefreshLogsOutcome(t *testing.T) {
	f := &stubFetcher{channels: testChannels}
	logger := &recordingLogger{}
	r, err := NewRefresher(New(f), "@every 1h", logger)
	require.NoError(t, err)

	r.refresh()
	assert.Equal(t, []string{"catalog refreshed"}, logger.infos)
	assert.Equal(t, 3, r.cache.Len())

	f.err = errors.New("unreachable")
	r.refresh()
	assert.Equal(t, []string{"catalog refresh failed"}, logger.warns)
	assert.Equal(t, 3, r.cache.Len(), "failed refresh keeps previous catalog")
}

func TestRefresher_StartStop(t *testing.T) {
	r, err := NewRefresher(New(&stubFetcher{}), "@every 1h", nil)
	require.NoError(t, err)

	r.Start()
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	r.Stop(ctx)
}
