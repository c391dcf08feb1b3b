// Package retention rotates archived chart images.
package retention

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
)

// chartName matches objects written by the archive: graph-<id>_<YYYYMMDDHHMMSS>.<ext>.
var chartName = regexp.MustCompile(`^graph-[^/_]+_(\d{14})\.[A-Za-z0-9]+$`)

// Store lists and deletes archived objects.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Manager handles the retention and rotation of archived charts.
type Manager struct {
	store Store
	keep  int
	logf  logger.Logf
}

// NewManager creates a new retention manager that keeps the newest keep charts.
func NewManager(store Store, keep int, logf logger.Logf) *Manager {
	return &Manager{
		store: store,
		keep:  keep,
		logf:  logger.OrDiscard(logf),
	}
}

type chart struct {
	key       string
	timestamp string
}

// Rotate deletes all but the newest archived charts, ordered by the timestamp
// in their names. Keys that do not follow the archive naming are never touched.
// A non-positive keep disables rotation.
func (m *Manager) Rotate(ctx context.Context) error {
	if m.keep <= 0 {
		return nil
	}

	keys, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list charts for rotation: %w", err)
	}

	charts := make([]chart, 0, len(keys))
	for _, key := range keys {
		if match := chartName.FindStringSubmatch(path.Base(key)); match != nil {
			charts = append(charts, chart{key: key, timestamp: match[1]})
		}
	}
	if len(charts) <= m.keep {
		return nil
	}

	sort.SliceStable(charts, func(i, j int) bool { return charts[i].timestamp < charts[j].timestamp })

	for _, c := range charts[:len(charts)-m.keep] {
		m.logf("Rotating out old chart: %s", c.key)
		if err := m.store.Delete(ctx, c.key); err != nil {
			return fmt.Errorf("failed to delete old chart %s: %w", c.key, err)
		}
	}

	return nil
}
