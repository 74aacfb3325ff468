package environment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Snapshot is the environment panel shown on the dashboard.
type Snapshot struct {
	UV     string `json:"uv"`
	Pollen string `json:"pollen"`
}

// UVLabel buckets a UV index into the WHO exposure categories.
func UVLabel(v float64) string {
	switch {
	case v < 3:
		return "Low"
	case v < 6:
		return "Moderate"
	case v < 8:
		return "High"
	case v < 11:
		return "Very High"
	default:
		return "Extreme"
	}
}

// Snapshot fetches UV and pollen concurrently. Lookups that fail show
// "Unavailable"; Snapshot itself only fails if ctx is cancelled.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{UV: Unavailable, Pollen: Unavailable}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if v, ok := c.UVIndex(gctx); ok {
			snap.UV = fmt.Sprintf("%.1f (%s)", v, UVLabel(v))
		}
		return nil
	})
	g.Go(func() error {
		if p := c.Pollen(); p != "" {
			snap.Pollen = p
		}
		return nil
	})
	g.Go(func() error {
		if c.delay <= 0 {
			return nil
		}
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-time.After(c.delay):
			return nil
		}
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
