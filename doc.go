// Package runway tracks long-running model jobs through their lifecycle.
// Callers submit a job (fine-tuning, training, deployment), the work runs
// asynchronously, and the caller polls for status and results.
//
// Runway is designed as a library first. The lifecycle engine owns every
// state transition, a store contract abstracts persistence, and the
// dispatcher bridges to an arbitrary execution capability.
//
// # Quick Start
//
//	store := memory.New()
//	eng := engine.New(store, logger)
//	disp := worker.NewDispatcher(eng, logger)
//	svc := service.New(gate, eng, disp, store, logger)
//
// # Architecture
//
// Each subsystem lives in its own package: job (record model and store
// contract), engine (state machine), auth (authorization gate), worker
// (asynchronous dispatch), service (caller-facing operations). A single
// backend under store/ implements both the job store and the API key store.
package runway
