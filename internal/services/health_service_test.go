package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeHub map[string]int64

func (f fakeHub) Stats() map[string]int64 { return f }

func TestHealthService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		hub         HubStats
		reloads     func() int
		wantReloads int
		wantWS      bool
	}{
		{name: "bare", hub: nil, reloads: nil},
		{
			name:        "with hub and watcher",
			hub:         fakeHub{"active_clients": 2},
			reloads:     func() int { return 3 },
			wantReloads: 3,
			wantWS:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("1.2.3", tt.hub, tt.reloads, nil)
			status := hs.HealthCheck(context.Background())

			assert.Equal(t, "ok", status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Equal(t, []string{"category_forecasting", "promo_intensity", "mmm"}, status.Pipelines)
			assert.Equal(t, tt.wantReloads, status.RulesReloads)
			assert.GreaterOrEqual(t, status.UptimeSeconds, 0.0)
			if tt.wantWS {
				assert.Equal(t, int64(2), status.WebSocket["active_clients"])
			} else {
				assert.Nil(t, status.WebSocket)
			}
		})
	}
}

func TestHealthService_Version(t *testing.T) {
	info := NewHealthService("1.2.3", nil, nil, nil).Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Contains(t, info, "go_version")
}
