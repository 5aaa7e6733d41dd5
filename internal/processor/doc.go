// Package processor runs the per-episode pipeline: fetch the source audio,
// transcribe it, detect ad segments with the model, cut them out, and publish
// the clean file to the library.
//
// Each job gets its own staging directory, removed only after a successful
// publish so failed runs leave their artefacts behind for inspection. The
// pipeline checks for cancellation between stages; a stage that is already
// running finishes before the job stops.
//
// External tools (the transcriber and the audio editor) are invoked through
// configurable command templates, so tests swap in a stub runner instead of
// shelling out.
package processor
