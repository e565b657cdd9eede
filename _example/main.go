package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jkbrsn/blocktimer"
	"github.com/jkbrsn/blocktimer/pkg/promhandler"
)

// Store is an example type whose methods are timed.
type Store struct {
	data map[string]string
}

// Get looks up key, timing the lookup.
func (s *Store) Get(key string) (string, error) {
	timer, err := blocktimer.Time(blocktimer.HostOf(s), "Get", key)
	if err != nil {
		return "", err
	}
	defer timer.End()

	time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	value, ok := s.data[key]
	if !ok {
		return "", errors.New("not found")
	}
	return value, nil
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Export durations to Prometheus and stream them as JSON lines to stdout
	reg := prometheus.NewRegistry()
	prom, err := promhandler.New(reg)
	if err != nil {
		fmt.Printf("Error creating Prometheus handler: %v\n", err)
		return
	}
	jsonLines, err := blocktimer.NewJSONHandler(os.Stdout)
	if err != nil {
		fmt.Printf("Error creating JSON handler: %v\n", err)
		return
	}
	async, err := blocktimer.NewAsyncHandler(jsonLines, blocktimer.WithAsyncWorkers(2))
	if err != nil {
		fmt.Printf("Error creating async handler: %v\n", err)
		return
	}
	defer async.Close()

	if err := blocktimer.SetTimerHandlers(prom, async); err != nil {
		fmt.Printf("Error setting timer handlers: %v\n", err)
		return
	}

	store := &Store{data: map[string]string{"a": "1", "b": "2"}}
	for _, key := range []string{"a", "b", "c"} {
		value, err := store.Get(key)
		if err != nil {
			fmt.Printf("Get %s: %v\n", key, err)
			continue
		}
		fmt.Printf("Get %s: %s\n", key, value)
	}

	// Measure guarantees the timer ends even if the block panics
	err = blocktimer.Measure("main", "batch", nil, func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err != nil {
		fmt.Printf("Error measuring batch: %v\n", err)
	}

	fmt.Printf("Stats: %+v\n", blocktimer.Default().Stats())
}
