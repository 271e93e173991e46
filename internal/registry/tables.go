package registry

import "inferd/internal/manager"

// entry describes one well-known model family: where its artifact lives
// on the hub and how prompts should be shaped for it.
type entry struct {
	kind      manager.Kind
	artifact  string
	projector string

	chatFormat         string
	completionTemplate string
}

// catalog maps short model names to hub artifacts. Names match the ones
// the Python-era CLI accepted; paths are hub-relative and double as cache
// layout. Families with no chatFormat use the chatml default.
var catalog = map[string]entry{
	// Text.
	"llama2": {
		kind:       manager.KindText,
		artifact:   "llama2/llama-2-7b-chat-q4_0.gguf",
		chatFormat: "llama-2",
	},
	"llama3": {
		kind:       manager.KindText,
		artifact:   "llama3/meta-llama-3-8b-instruct-q4_0.gguf",
		chatFormat: "llama-3",
	},
	"llama3.1": {
		kind:       manager.KindText,
		artifact:   "llama3.1/meta-llama-3.1-8b-instruct-q4_0.gguf",
		chatFormat: "llama-3",
	},
	"llama3.2": {
		kind:       manager.KindText,
		artifact:   "llama3.2/llama-3.2-3b-instruct-q4_0.gguf",
		chatFormat: "llama-3",
	},
	"gemma": {
		kind:       manager.KindText,
		artifact:   "gemma/gemma-1.1-2b-instruct-q4_0.gguf",
		chatFormat: "gemma",
	},
	"gemma2": {
		kind:       manager.KindText,
		artifact:   "gemma2/gemma-2-2b-instruct-q4_0.gguf",
		chatFormat: "gemma",
	},
	"mistral": {
		kind:       manager.KindText,
		artifact:   "mistral/mistral-7b-instruct-v0.3-q4_0.gguf",
		chatFormat: "llama-2",
	},
	"qwen2.5": {
		kind:     manager.KindText,
		artifact: "qwen2.5/qwen2.5-1.5b-instruct-q4_0.gguf",
	},
	"phi3": {
		kind:     manager.KindText,
		artifact: "phi3/phi-3-mini-4k-instruct-q4_0.gguf",
	},
	"tinyllama": {
		kind:     manager.KindText,
		artifact: "tinyllama/tinyllama-1.1b-chat-v1.0-q4_0.gguf",
	},
	"octopus-v2": {
		kind:     manager.KindText,
		artifact: "octopus-v2/octopus-v2-q4_0.gguf",
		completionTemplate: "Below is the query from the users, please call the correct function " +
			"and generate the parameters to call the function.\n\nQuery: %s \n\nResponse:",
	},

	// Vision-language.
	"nanollava": {
		kind:      manager.KindVisionLanguage,
		artifact:  "nanollava/nanollava-q4_0.gguf",
		projector: "nanollava/nanollava-mmproj-f16.gguf",
	},
	"llava-phi3": {
		kind:      manager.KindVisionLanguage,
		artifact:  "llava-phi3/llava-phi-3-mini-q4_0.gguf",
		projector: "llava-phi3/llava-phi-3-mini-mmproj-f16.gguf",
	},
	"llava1.6-mistral": {
		kind:       manager.KindVisionLanguage,
		artifact:   "llava1.6-mistral/llava-v1.6-mistral-7b-q4_0.gguf",
		projector:  "llava1.6-mistral/llava-v1.6-mistral-7b-mmproj-f16.gguf",
		chatFormat: "llama-2",
	},
	"llava1.6-vicuna": {
		kind:       manager.KindVisionLanguage,
		artifact:   "llava1.6-vicuna/llava-v1.6-vicuna-7b-q4_0.gguf",
		projector:  "llava1.6-vicuna/llava-v1.6-vicuna-7b-mmproj-f16.gguf",
		chatFormat: "vicuna",
	},

	// Diffusion.
	"sd1.5": {
		kind:     manager.KindDiffusion,
		artifact: "sd1.5/stable-diffusion-v1-5-q8_0.gguf",
	},
	"sd2.1": {
		kind:     manager.KindDiffusion,
		artifact: "sd2.1/stable-diffusion-v2-1-q8_0.gguf",
	},
	"sdxl-turbo": {
		kind:     manager.KindDiffusion,
		artifact: "sdxl-turbo/sdxl-turbo-q8_0.gguf",
	},
	"lcm-dreamshaper": {
		kind:     manager.KindDiffusion,
		artifact: "lcm-dreamshaper/lcm-dreamshaper-v7-q8_0.gguf",
	},

	// Audio.
	"whisper-tiny": {
		kind:     manager.KindAudio,
		artifact: "whisper-tiny/ggml-tiny.bin",
	},
	"whisper-base": {
		kind:     manager.KindAudio,
		artifact: "whisper-base/ggml-base.bin",
	},
	"whisper-small": {
		kind:     manager.KindAudio,
		artifact: "whisper-small/ggml-small.bin",
	},
}

// lookup returns the catalog entry for a short model name.
func lookup(name string) (entry, bool) {
	e, ok := catalog[name]
	return e, ok
}
