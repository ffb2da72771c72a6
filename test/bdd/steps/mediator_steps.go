package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
	"github.com/cosminstn/disruptor-mediator/internal/application/samples"
	"github.com/cosminstn/disruptor-mediator/test/helpers"
	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"
)

const stepTimeout = 5 * time.Second

type incrementCommand struct {
	mediator.CommandOf[mediator.Unit]
	counter *atomic.Int64
}

type explodeCommand struct {
	mediator.CommandOf[mediator.Unit]
}

type unhandledQuery struct {
	mediator.QueryOf[int]
}

type scoreEvent struct {
	mediator.EventOf
	Score int
}

type mediatorContext struct {
	med       *mediator.Mediator
	logger    *helpers.RecordingLogger
	failures  *helpers.RecordingFailureSink
	createErr error

	err      error
	response int
	counter  atomic.Int64
	pending  []func(context.Context) error

	callbackMu    sync.Mutex
	callbackValue int
	callbackRan   bool

	seenMu sync.Mutex
	seen   map[string]int

	workers map[int]map[string]bool
}

func (mc *mediatorContext) reset() {
	mc.med = nil
	mc.logger = helpers.NewRecordingLogger()
	mc.failures = helpers.NewRecordingFailureSink()
	mc.createErr = nil
	mc.err = nil
	mc.response = 0
	mc.counter.Store(0)
	mc.pending = nil
	mc.callbackValue = 0
	mc.callbackRan = false
	mc.seen = make(map[string]int)
	mc.workers = make(map[int]map[string]bool)
}

func (mc *mediatorContext) close() {
	if mc.med != nil {
		_ = mc.med.Close(context.Background())
	}
}

func (mc *mediatorContext) baseBindings() []mediator.Binding {
	bindings := samples.Bindings(mc.logger)
	return append(bindings,
		mediator.BindCommand[incrementCommand, mediator.Unit]("incrementHandler",
			mediator.CommandHandlerFunc[incrementCommand, mediator.Unit](func(_ context.Context, c incrementCommand) (mediator.Unit, error) {
				c.counter.Add(1)
				return mediator.Unit{}, nil
			})),
		mediator.BindCommand[explodeCommand, mediator.Unit]("explodeHandler",
			mediator.CommandHandlerFunc[explodeCommand, mediator.Unit](func(context.Context, explodeCommand) (mediator.Unit, error) {
				panic("boom")
			})),
	)
}

func (mc *mediatorContext) start(groups int, bindings []mediator.Binding) error {
	registry := mediator.NewRegistry(mediator.StaticBindings(bindings...), mediator.WithRegistryLogger(mc.logger))
	med, err := mediator.New(registry,
		mediator.WithExecutionGroups(groups),
		mediator.WithBufferSize(64),
		mediator.WithBlockingTimeout(stepTimeout),
		mediator.WithLogger(mc.logger),
		mediator.WithFailureSink(mc.failures),
	)
	if err != nil {
		return err
	}
	if err := med.Initialize(context.Background()); err != nil {
		return err
	}
	mc.med = med
	return nil
}

// Setup Steps

func (mc *mediatorContext) aStartedMediatorWithExecutionGroups(groups int) error {
	return mc.start(groups, mc.baseBindings())
}

func (mc *mediatorContext) aStartedMediatorWithTheseEventHandlers(table *godog.Table) error {
	bindings := mc.baseBindings()
	for _, row := range tableRecords(table) {
		name, outcome := row["name"], row["outcome"]
		bindings = append(bindings, mediator.BindEvent[scoreEvent](name, mc.scoreHandler(name, outcome)))
	}
	return mc.start(1, bindings)
}

func (mc *mediatorContext) scoreHandler(name, outcome string) mediator.EventHandler[scoreEvent] {
	return mediator.EventHandlerFunc[scoreEvent](func(_ context.Context, ev scoreEvent) error {
		switch outcome {
		case "fail":
			return fmt.Errorf("%s refused score %d", name, ev.Score)
		case "panic":
			panic(name + " exploded")
		}
		mc.seenMu.Lock()
		mc.seen[name] = ev.Score
		mc.seenMu.Unlock()
		return nil
	})
}

func (mc *mediatorContext) iCreateAMediatorWithExecutionGroups(groups int) error {
	registry := mediator.NewRegistry(mediator.StaticBindings(mc.baseBindings()...))
	mc.med, mc.createErr = mediator.New(registry, mediator.WithExecutionGroups(groups))
	return nil
}

// Dispatch Steps

func (mc *mediatorContext) iDispatchABlockingNextNumberQueryFor(n int) error {
	mc.response, mc.err = mediator.DispatchBlocking[int](context.Background(), mc.med, samples.FindNextNumber{Number: n})
	return nil
}

func (mc *mediatorContext) iDispatchABlockingNextNumberQueryForToExecutionGroup(n, group int) error {
	mc.response, mc.err = mediator.DispatchBlocking[int](context.Background(), mc.med,
		samples.FindNextNumber{Number: n}, mediator.WithExecutionGroup(group))
	return nil
}

func (mc *mediatorContext) iDispatchIncrementCommandsAsynchronously(count int) error {
	for i := 0; i < count; i++ {
		f, err := mediator.DispatchAsync[mediator.Unit](context.Background(), mc.med, incrementCommand{counter: &mc.counter})
		if err != nil {
			return err
		}
		mc.pending = append(mc.pending, func(ctx context.Context) error {
			_, err := f.Get(ctx)
			return err
		})
	}
	return nil
}

func (mc *mediatorContext) iDispatchAnAsynchronousNextNumberQueryForWithACallback(n int) error {
	f, err := mediator.DispatchAsyncWithCallback[int](context.Background(), mc.med, samples.FindNextNumber{Number: n},
		func(_ mediator.Request[int], response int, err error) {
			mc.callbackMu.Lock()
			defer mc.callbackMu.Unlock()
			if err == nil {
				mc.callbackValue = response
			}
			mc.callbackRan = true
		})
	if err != nil {
		return err
	}
	mc.pending = append(mc.pending, func(ctx context.Context) error {
		_, err := f.Get(ctx)
		return err
	})
	return nil
}

func (mc *mediatorContext) iDispatchABlockingQueryNobodyHandles() error {
	_, mc.err = mediator.DispatchBlocking[int](context.Background(), mc.med, unhandledQuery{})
	return nil
}

func (mc *mediatorContext) iDispatchABlockingCommandWhoseHandlerPanics() error {
	_, mc.err = mediator.DispatchBlocking[mediator.Unit](context.Background(), mc.med, explodeCommand{})
	return nil
}

func (mc *mediatorContext) iWaitForEveryPendingDispatch() error {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	for _, wait := range mc.pending {
		if err := wait(ctx); err != nil {
			return err
		}
	}
	mc.pending = nil
	return nil
}

func (mc *mediatorContext) iAskEveryExecutionGroupTimesWhichWorkerHandledTheQuery(times int) error {
	for group := 1; group <= mc.med.ExecutionGroups(); group++ {
		mc.workers[group] = make(map[string]bool)
		for i := 0; i < times; i++ {
			id, err := mediator.DispatchBlocking[string](context.Background(), mc.med,
				samples.HandlerThread{}, mediator.WithExecutionGroup(group))
			if err != nil {
				return err
			}
			mc.workers[group][id] = true
		}
	}
	return nil
}

// Event Steps

func (mc *mediatorContext) iPublishAScoreEventWith(score int) error {
	mc.err = mc.med.Publish(context.Background(), scoreEvent{Score: score})
	return nil
}

// iWaitForTheEventToBeHandled queues a query behind the event on the same
// group. Its response arrives only after the event was handled.
func (mc *mediatorContext) iWaitForTheEventToBeHandled() error {
	if mc.err != nil {
		return fmt.Errorf("publish failed: %w", mc.err)
	}
	_, err := mediator.DispatchBlocking[int](context.Background(), mc.med, samples.FindNextNumber{})
	return err
}

// Assertion Steps

func (mc *mediatorContext) theDispatchShouldSucceed() error {
	if mc.err != nil {
		return fmt.Errorf("expected dispatch to succeed, got: %w", mc.err)
	}
	return nil
}

func (mc *mediatorContext) thePublishShouldSucceed() error {
	if mc.err != nil {
		return fmt.Errorf("expected publish to succeed, got: %w", mc.err)
	}
	return nil
}

func (mc *mediatorContext) theResponseShouldBe(expected int) error {
	if mc.response != expected {
		return fmt.Errorf("expected response %d, got %d", expected, mc.response)
	}
	return nil
}

func (mc *mediatorContext) theDispatchShouldFailWith(fragment string) error {
	if mc.err == nil {
		return errors.New("expected dispatch to fail, but it succeeded")
	}
	if !strings.Contains(mc.err.Error(), fragment) {
		return fmt.Errorf("expected error containing %q, got %q", fragment, mc.err.Error())
	}
	return nil
}

func (mc *mediatorContext) theCounterShouldBe(expected int) error {
	if got := mc.counter.Load(); got != int64(expected) {
		return fmt.Errorf("expected counter %d, got %d", expected, got)
	}
	return nil
}

func (mc *mediatorContext) theCallbackShouldHaveReceived(expected int) error {
	mc.callbackMu.Lock()
	defer mc.callbackMu.Unlock()

	if !mc.callbackRan {
		return errors.New("callback did not run before the future settled")
	}
	if mc.callbackValue != expected {
		return fmt.Errorf("expected callback to receive %d, got %d", expected, mc.callbackValue)
	}
	return nil
}

func (mc *mediatorContext) everyExecutionGroupShouldReportASingleWorker() error {
	for group, ids := range mc.workers {
		if len(ids) != 1 {
			return fmt.Errorf("execution group %d ran on %d workers", group, len(ids))
		}
	}
	return nil
}

func (mc *mediatorContext) theExecutionGroupsShouldReportDistinctWorkers() error {
	owner := make(map[string]int)
	for group, ids := range mc.workers {
		for id := range ids {
			if other, ok := owner[id]; ok {
				return fmt.Errorf("execution groups %d and %d share worker %s", other, group, id)
			}
			owner[id] = group
		}
	}
	return nil
}

func (mc *mediatorContext) creatingTheMediatorShouldFail() error {
	if mc.createErr == nil {
		return errors.New("expected mediator creation to fail, but it succeeded")
	}
	if !errors.Is(mc.createErr, mediator.ErrInvalidExecutionGroups) {
		return fmt.Errorf("expected ErrInvalidExecutionGroups, got: %w", mc.createErr)
	}
	return nil
}

func (mc *mediatorContext) theEventHandlersShouldHaveSeen(table *godog.Table) error {
	mc.seenMu.Lock()
	defer mc.seenMu.Unlock()

	expected := tableRecords(table)
	if len(mc.seen) != len(expected) {
		return fmt.Errorf("expected %d handlers to see the event, got %d: %v", len(expected), len(mc.seen), mc.seen)
	}
	for _, row := range expected {
		score, err := strconv.Atoi(row["score"])
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", row["score"], err)
		}
		got, ok := mc.seen[row["name"]]
		if !ok {
			return fmt.Errorf("handler %s never saw the event", row["name"])
		}
		if got != score {
			return fmt.Errorf("handler %s saw score %d, expected %d", row["name"], got, score)
		}
	}
	return nil
}

func (mc *mediatorContext) handlerFailuresShouldBeRecorded(expected int) error {
	if got := len(mc.failures.Failures()); got != expected {
		return fmt.Errorf("expected %d recorded failures, got %d", expected, got)
	}
	if !mc.logger.HasMessage("ERROR", "event handler failed") {
		return errors.New("expected event handler failures to be logged")
	}
	return nil
}

// tableRecords maps every data row to its header names
func tableRecords(table *godog.Table) []map[string]string {
	var rows []*messages.PickleTableRow = table.Rows
	if len(rows) == 0 {
		return nil
	}

	header := rows[0].Cells
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, cell := range row.Cells {
			if i < len(header) {
				record[header[i].Value] = cell.Value
			}
		}
		records = append(records, record)
	}
	return records
}

// InitializeMediatorScenario registers the mediator step definitions
func InitializeMediatorScenario(sc *godog.ScenarioContext) {
	mc := &mediatorContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		mc.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		mc.close()
		return ctx, nil
	})

	sc.Step(`^a started mediator with (-?\d+) execution groups?$`, mc.aStartedMediatorWithExecutionGroups)
	sc.Step(`^a started mediator with these event handlers:$`, mc.aStartedMediatorWithTheseEventHandlers)
	sc.Step(`^I create a mediator with (-?\d+) execution groups?$`, mc.iCreateAMediatorWithExecutionGroups)

	sc.Step(`^I dispatch a blocking next number query for (-?\d+)$`, mc.iDispatchABlockingNextNumberQueryFor)
	sc.Step(`^I dispatch a blocking next number query for (-?\d+) to execution group (-?\d+)$`, mc.iDispatchABlockingNextNumberQueryForToExecutionGroup)
	sc.Step(`^I dispatch (\d+) increment commands asynchronously$`, mc.iDispatchIncrementCommandsAsynchronously)
	sc.Step(`^I dispatch an asynchronous next number query for (-?\d+) with a callback$`, mc.iDispatchAnAsynchronousNextNumberQueryForWithACallback)
	sc.Step(`^I dispatch a blocking query nobody handles$`, mc.iDispatchABlockingQueryNobodyHandles)
	sc.Step(`^I dispatch a blocking command whose handler panics$`, mc.iDispatchABlockingCommandWhoseHandlerPanics)
	sc.Step(`^I wait for every pending dispatch$`, mc.iWaitForEveryPendingDispatch)
	sc.Step(`^I ask every execution group (\d+) times which worker handled the query$`, mc.iAskEveryExecutionGroupTimesWhichWorkerHandledTheQuery)

	sc.Step(`^I publish a score event with (-?\d+)$`, mc.iPublishAScoreEventWith)
	sc.Step(`^I wait for the event to be handled$`, mc.iWaitForTheEventToBeHandled)

	sc.Step(`^the dispatch should succeed$`, mc.theDispatchShouldSucceed)
	sc.Step(`^the publish should succeed$`, mc.thePublishShouldSucceed)
	sc.Step(`^the response should be (-?\d+)$`, mc.theResponseShouldBe)
	sc.Step(`^the dispatch should fail with "([^"]*)"$`, mc.theDispatchShouldFailWith)
	sc.Step(`^the counter should be (\d+)$`, mc.theCounterShouldBe)
	sc.Step(`^the callback should have received (-?\d+)$`, mc.theCallbackShouldHaveReceived)
	sc.Step(`^every execution group should report a single worker$`, mc.everyExecutionGroupShouldReportASingleWorker)
	sc.Step(`^the execution groups should report distinct workers$`, mc.theExecutionGroupsShouldReportDistinctWorkers)
	sc.Step(`^creating the mediator should fail$`, mc.creatingTheMediatorShouldFail)
	sc.Step(`^the event handlers should have seen:$`, mc.theEventHandlersShouldHaveSeen)
	sc.Step(`^(\d+) handler failures? should be recorded$`, mc.handlerFailuresShouldBeRecorded)
}
