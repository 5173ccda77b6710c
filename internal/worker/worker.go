// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package worker implements the per-tenant worker thread that owns a single
// scriptengine.Engine and serves one request at a time, in enqueue order
// (spec.md §4.3, §4.4). Grounded on original_source/dino-server/src/lib.rs's
// AppState: one OS thread per tenant, an unbounded channel carrying request
// messages, a reply channel carrying exactly one Resp back to the caller.
package worker

import (
	"fmt"
	"sync"

	"github.com/scriptrun/scriptrun/internal/apperror"
	"github.com/scriptrun/scriptrun/internal/applog"
	"github.com/scriptrun/scriptrun/internal/scriptengine"
)

// Message is the tagged union a ScriptWorker consumes from its inbox
// (spec.md §3's WorkerMessage): either a Request carrying a one-shot reply
// channel, or a Shutdown signal.
type Message struct {
	kind    messageKind
	req     scriptengine.Req
	handler string
	reply   chan<- Reply
}

type messageKind int

const (
	kindRequest messageKind = iota
	kindShutdown
)

// Reply is the one-shot value a worker sends back: either a Resp or a
// worker-side error (spec.md §3: "Reply is a one-shot producer end for a
// Response (or a worker-side error)").
type Reply struct {
	Resp scriptengine.Resp
	Err  error
}

// NewRequestMessage builds a Request message and the channel the caller
// should receive exactly one Reply from.
func NewRequestMessage(req scriptengine.Req, handler string) (Message, <-chan Reply) {
	replyCh := make(chan Reply, 1)
	return Message{kind: kindRequest, req: req, handler: handler, reply: replyCh}, replyCh
}

func newShutdownMessage() Message {
	return Message{kind: kindShutdown}
}

// Inbox is the unbounded request channel one ScriptWorker reads from. Go
// channels are bounded, so "unbounded" is approximated with a generously
// buffered channel; a sender blocks only once inboxCapacity messages are
// already queued (spec.md §4.3).
type Inbox chan Message

const inboxCapacity = 4096

// ScriptWorker is a goroutine owning one scriptengine.Engine, processing
// Messages strictly in the order they were enqueued (spec.md §4.4, §4.5's
// ordering guarantee).
type ScriptWorker struct {
	host     string
	inbox    Inbox
	done     chan struct{}
	logger   applog.Logger
	inflight sync.WaitGroup
}

// Spawn starts the worker goroutine. The engine is constructed on the
// calling goroutine so a bundling/evaluation error surfaces synchronously
// (matching spec.md §4.1's build-before-publish ordering); only request
// processing happens on the spawned goroutine.
func Spawn(host string, bundle string, logger applog.Logger) (*ScriptWorker, error) {
	engine, err := scriptengine.New(bundle, logger, host)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("starting worker for host %q", host), err)
	}

	w := &ScriptWorker{
		host:   host,
		inbox:  make(Inbox, inboxCapacity),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run(engine)
	return w, nil
}

func (w *ScriptWorker) run(engine *scriptengine.Engine) {
	defer close(w.done)
	defer engine.Close()

	for msg := range w.inbox {
		if msg.kind == kindShutdown {
			w.drain(engine)
			return
		}
		w.handle(engine, msg)
	}
}

func (w *ScriptWorker) handle(engine *scriptengine.Engine, msg Message) {
	resp, err := engine.Invoke(msg.handler, msg.req)
	w.reply(msg, resp, err)
}

// reply sends without blocking if the caller already gave up on the reply
// (spec.md §4.5's cancellation note: the handler still runs to completion,
// but a closed or abandoned receiver must never hang the worker).
func (w *ScriptWorker) reply(msg Message, resp scriptengine.Resp, err error) {
	if msg.reply == nil {
		return
	}
	select {
	case msg.reply <- Reply{Resp: resp, Err: err}:
	default:
	}
}

// drain runs every request already enqueued before Shutdown to completion,
// per spec.md §4.4: "drains any remaining queued requests... to avoid
// hanging clients whose replies are already awaited". Requests sent to the
// inbox after Shutdown was enqueued are a caller bug; the registry's
// Replace prevents this by swapping the routing entry before sending
// Shutdown.
func (w *ScriptWorker) drain(engine *scriptengine.Engine) {
	for {
		select {
		case msg, ok := <-w.inbox:
			if !ok {
				return
			}
			if msg.kind == kindShutdown {
				continue
			}
			w.handle(engine, msg)
		default:
			return
		}
	}
}

// Send enqueues msg on the worker's inbox. Never blocks the hot path beyond
// the buffered channel's capacity.
func (w *ScriptWorker) Send(msg Message) {
	w.inbox <- msg
}

// BeginSend and EndSend bracket the narrow window between a Registry lookup
// that returned this worker and the matching Send: Registry.Send holds the
// registry's read lock only long enough to look the worker up and call
// BeginSend, so Replace's writer-locked map swap can never interleave with
// it, but the enqueue itself (Send) happens after the read lock is released.
// Replace waits on this count (see Registry.Replace) before sending
// Shutdown, which closes the gap spec.md §8's boundary case leaves open: a
// caller that looked this worker up a moment before it was replaced must
// still get its message enqueued before drain runs, not after the worker
// has already exited.
func (w *ScriptWorker) BeginSend() { w.inflight.Add(1) }
func (w *ScriptWorker) EndSend()   { w.inflight.Done() }

// Shutdown enqueues a Shutdown message; it does not wait for the worker to
// finish draining. Call Wait for that. The inbox is never closed: the
// registry is expected to have already swapped the routing entry to a new
// worker and drained this worker's BeginSend/EndSend count to zero before
// calling Shutdown (see Registry.Replace), so no further legitimate sends
// target this inbox; the channel is simply abandoned once the worker
// goroutine exits and is reclaimed by the garbage collector.
func (w *ScriptWorker) Shutdown() {
	w.inbox <- newShutdownMessage()
}

// Wait blocks until the worker goroutine has drained and exited.
func (w *ScriptWorker) Wait() {
	<-w.done
}
