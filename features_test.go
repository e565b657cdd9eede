package blocktimer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"
)

// timerFeature holds the state of one scenario.
type timerFeature struct {
	registry *Registry
	recorder *recordingHandler
	startErr error
}

func (f *timerFeature) aRegistryWithARecordingHandler() error {
	f.recorder = &recordingHandler{}
	r, err := NewRegistry(WithLogger(zerolog.Nop()), WithHandlers(f.recorder))
	if err != nil {
		return err
	}
	f.registry = r
	return nil
}

func (f *timerFeature) aRegistryWithAFailingHandlerFollowedByARecordingHandler() error {
	f.recorder = &recordingHandler{}
	failing := &failingHandler{name: "always-fails", err: errors.New("boom")}
	r, err := NewRegistry(WithLogger(zerolog.Nop()), WithHandlers(failing, f.recorder))
	if err != nil {
		return err
	}
	handlers := r.CurrentHandlers()
	if len(handlers) != 3 || handlers[1] != TimerHandler(failing) {
		return errors.New("expected the failing handler to be registered first")
	}
	f.registry = r
	return nil
}

func (f *timerFeature) iTimeWithoutAnOperation(method, host string) error {
	timer, err := f.registry.Start(host, method, nil)
	if err != nil {
		f.startErr = err
		return nil
	}
	timer.End()
	return nil
}

func (f *timerFeature) theCustomHandlersAreReplaced() error {
	return f.registry.SetHandlers(&recordingHandler{})
}

func (f *timerFeature) theRecordingHandlerReceivedEvents(count int) error {
	if got := f.recorder.Len(); got != count {
		return fmt.Errorf("expected %d events, got %d", count, got)
	}
	return nil
}

func (f *timerFeature) theLastEventHasMethodAndNoOperation(method string) error {
	events := f.recorder.Events()
	if len(events) == 0 {
		return errors.New("no events recorded")
	}
	last := events[len(events)-1]
	if last.Method() != method {
		return fmt.Errorf("expected method %q, got %q", method, last.Method())
	}
	if last.Operation() != nil {
		return fmt.Errorf("expected no operation, got %v", last.Operation())
	}
	return nil
}

func (f *timerFeature) everyRecordedEventHasANonNegativeDuration() error {
	for _, e := range f.recorder.Events() {
		if e.DurationNanos() < 0 {
			return fmt.Errorf("event %s has negative duration %d", e.ID(), e.DurationNanos())
		}
	}
	return nil
}

func (f *timerFeature) theRegistryCountedHandlerFaults(count int) error {
	if got := f.registry.Stats().HandlerFaults; got != uint64(count) {
		return fmt.Errorf("expected %d handler faults, got %d", count, got)
	}
	return nil
}

func (f *timerFeature) startingTheTimerFailedWithAnInvalidArgument() error {
	if !errors.Is(f.startErr, ErrInvalidArgument) {
		return fmt.Errorf("expected ErrInvalidArgument, got %v", f.startErr)
	}
	return nil
}

// initializeTimerScenario registers the step definitions with fresh state per scenario.
func initializeTimerScenario(sc *godog.ScenarioContext) {
	f := &timerFeature{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*f = timerFeature{}
		return ctx, nil
	})

	sc.Step(`^a registry with a recording handler$`, f.aRegistryWithARecordingHandler)
	sc.Step(`^a registry with a failing handler followed by a recording handler$`, f.aRegistryWithAFailingHandlerFollowedByARecordingHandler)
	sc.Step(`^I time "([^"]*)" on "([^"]*)" without an operation$`, f.iTimeWithoutAnOperation)
	sc.Step(`^the custom handlers are replaced$`, f.theCustomHandlersAreReplaced)
	sc.Step(`^the recording handler received (\d+) events$`, f.theRecordingHandlerReceivedEvents)
	sc.Step(`^the last event has method "([^"]*)" and no operation$`, f.theLastEventHasMethodAndNoOperation)
	sc.Step(`^every recorded event has a non-negative duration$`, f.everyRecordedEventHasANonNegativeDuration)
	sc.Step(`^the registry counted (\d+) handler faults$`, f.theRegistryCountedHandlerFaults)
	sc.Step(`^starting the timer failed with an invalid argument$`, f.startingTheTimerFailedWithAnInvalidArgument)
}

// TestFeatures runs the Godog scenarios under features/.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "blocktimer",
		ScenarioInitializer: initializeTimerScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
