// Package manager owns the active model handle and coordinates every
// inference operation against it. It is structured into small files by
// concern:
//
//   - service.go: core Service type, load/swap, acquire, lifecycle.
//   - config.go: ServiceConfig, defaults, catalog and factory seams.
//   - types.go: model kinds, specs, and normalized parameter types.
//   - errors.go: error taxonomy and helpers (IsValidation, IsTooBusy, ...).
//   - handle.go: sealed handle types per kind plus drain-aware retirement.
//   - loader.go: handle construction and the GPU-to-CPU load fallback.
//   - admission.go: bounded queueing ahead of the single generation slot.
//   - generate.go: token streaming, drain/merge, completion and chat entry
//     points, function calling.
//   - prompt.go: chat templates, completion templates, tool-call parsing.
//   - vision.go: clip projector binding and image embedding sessions.
//   - diffusion.go, imaging.go: image generation and PNG staging.
//   - speech.go, wav.go: transcription entry point and WAV decoding.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//
// Build tags and runtimes:
//
//   - In-process llama: go-llama.cpp engine, enabled with `-tags=llama`.
//     Files: engine_llama.go, llama_cgo.go (linker rpath hints). Without
//     the tag, engine_llama_stub.go fails fast and text models are served
//     by the llama-server engine (engine_server.go), which needs no CGO.
//
//   - Whisper: whisper.cpp bindings, enabled with `-tags=whisper`.
//     Files: engine_whisper.go, with a fail-fast stub otherwise.
//
//   - Diffusion and the clip projector load their native libraries with
//     dlopen at runtime (internal/sd, internal/llava); no tags involved.
//
// External packages should treat this package as the orchestration layer
// and use public methods only (New, Load, Completion, Chat, Txt2Img,
// Transcribe, ...). Internal types are subject to change.
package manager
