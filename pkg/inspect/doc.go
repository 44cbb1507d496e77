// Package inspect exposes the reactive runtime over HTTP for debugging and
// monitoring. Handler returns a chi router with three endpoints:
//
//	GET /stats   — JSON snapshot of runtime counters and queue depth
//	GET /metrics — Prometheus exposition (promhttp)
//	GET /events  — WebSocket stream of runtime events, msgpack-encoded
//
// The event stream attaches a pulse.Observer while at least one client is
// connected and detaches it when the last client leaves, so an idle inspector
// adds no overhead to the reactive core.
//
// Mount it wherever your application serves HTTP:
//
//	mux.Handle("/debug/pulse/", http.StripPrefix("/debug/pulse", inspect.Handler()))
package inspect
