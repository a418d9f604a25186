package scheduler

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dyike/FinSight/pkg/dataflows"
)

// DefaultSchedule runs after the US close on weekdays.
const DefaultSchedule = "30 16 * * 1-5"

// Watchlist is the YAML file consumed by the watch command:
//
//	schedule: "30 16 * * 1-5"
//	timezone: America/New_York
//	symbols: [AAPL, MSFT, 0700.HK]
type Watchlist struct {
	Schedule string   `yaml:"schedule"`
	Timezone string   `yaml:"timezone"`
	Symbols  []string `yaml:"symbols"`
}

func LoadWatchlist(path string) (Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Watchlist{}, fmt.Errorf("read watchlist: %w", err)
	}
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return Watchlist{}, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	if err := wl.Normalize(); err != nil {
		return Watchlist{}, fmt.Errorf("watchlist %s: %w", path, err)
	}
	return wl, nil
}

// Normalize validates and uppercases every symbol, drops duplicates and
// fills in the default schedule.
func (w *Watchlist) Normalize() error {
	if w.Schedule == "" {
		w.Schedule = DefaultSchedule
	}
	var errs []error
	seen := make(map[string]bool, len(w.Symbols))
	symbols := make([]string, 0, len(w.Symbols))
	for _, raw := range w.Symbols {
		sym, err := dataflows.ValidateSymbol(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if len(symbols) == 0 {
		return errors.New("no symbols to watch")
	}
	w.Symbols = symbols
	return nil
}
