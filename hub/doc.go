// Package hub provides a central coordination primitive for progress
// reporting: a single in-process pub/sub broadcaster that any number of
// UI-sink subscribers (a terminal renderer, a log tailer, an optional
// remote mirror) can attach to, without the Sequential Driver or Parallel
// Executor knowing or caring who's listening.
//
// # Role
//
// Hub implements observability.Observer, so it can be handed to every
// other component (the Driver, the Executor, the Workspace Manager) as
// their single observer. Internally it fans every event it receives out
// to each subscribed channel:
//
//	h := hub.New(ctx, hub.DefaultConfig())
//	h.Subscribe("terminal", func(ctx context.Context, e observability.Event) error {
//	    fmt.Println(e.Type, e.Data)
//	    return nil
//	})
//	driver := orchestrator.New(cfg, projectDir, orchestrator.WithObserver(h))
//
// # Delivery
//
// Each subscriber owns a buffered channel and a dedicated goroutine that
// drains it and invokes the subscriber's handler. OnEvent never blocks: when
// a slow or wedged subscriber has filled its own buffer, the event is
// dropped for that subscriber and counted as a delivery failure in the
// metrics. Size ChannelBufferSize generously, or run an internal queue
// inside the handler, to lower the chance of drops.
//
// # Lifecycle
//
// Shutdown cancels delivery to every subscriber and waits (up to a
// timeout) for their consume goroutines to exit; events still buffered
// when the hub's context is cancelled are not delivered.
package hub
