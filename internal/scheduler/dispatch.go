package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dyluth/collab/pkg/collab"
)

// Sink receives run events. *collab.Client satisfies it.
type Sink interface {
	Publish(ctx context.Context, evt *collab.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt *collab.Event) error

func (f SinkFunc) Publish(ctx context.Context, evt *collab.Event) error { return f(ctx, evt) }

// LogSink writes each event as one structured JSON log line.
type LogSink struct {
	Logger   *log.Logger
	Instance string
}

func (l *LogSink) Publish(_ context.Context, evt *collab.Event) error {
	data := map[string]interface{}{
		"timestamp":      time.UnixMilli(evt.TimestampMs).UTC().Format(time.RFC3339),
		"level":          "info",
		"component":      "scheduler",
		"event_type":     string(evt.Type),
		"instance":       l.Instance,
		"seq":            evt.Seq,
		"run_id":         evt.RunID,
		"epoch":          evt.Epoch,
		"phase":          string(evt.Phase),
		"accepted_count": evt.AcceptedCount,
		"quota":          evt.Quota,
	}
	if evt.CandidateID != 0 {
		data["candidate_id"] = evt.CandidateID
		data["status"] = string(evt.Status)
	}
	if evt.Reason != "" {
		data["reason"] = evt.Reason
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	l.Logger.Println(string(jsonData))
	return nil
}

const (
	dispatchBuffer = 256
	publishTimeout = 2 * time.Second
)

// dispatcher delivers events to sinks on a single goroutine so sink latency
// never extends the scheduler's critical section. Events are enqueued while the
// scheduler mutex is held, so delivery order equals state-change order.
type dispatcher struct {
	ch     chan *collab.Event
	sinks  []Sink
	logger *log.Logger
	wg     sync.WaitGroup
	closed bool // guarded by the scheduler mutex
}

func newDispatcher(sinks []Sink, logger *log.Logger) *dispatcher {
	d := &dispatcher{
		ch:     make(chan *collab.Event, dispatchBuffer),
		sinks:  sinks,
		logger: logger,
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for evt := range d.ch {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := sink.Publish(ctx, evt); err != nil {
				d.logger.Printf("[Scheduler] WARN: failed to publish %s event (seq=%d): %v", evt.Type, evt.Seq, err)
			}
			cancel()
		}
	}
}

// enqueue must be called with the scheduler mutex held.
func (d *dispatcher) enqueue(evt *collab.Event) {
	if d.closed {
		return
	}
	select {
	case d.ch <- evt:
	default:
		d.logger.Printf("[Scheduler] WARN: event queue full, dropping %s event (seq=%d)", evt.Type, evt.Seq)
	}
}

// close must be called with the scheduler mutex held; wait afterwards without it.
func (d *dispatcher) close() {
	if d.closed {
		return
	}
	d.closed = true
	close(d.ch)
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
