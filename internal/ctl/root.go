package ctl

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// buildRootCmd is a convenience for help-only fallbacks.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(defaultConfig()) }

// buildRootCmdWith constructs the Cobra command tree wired to the fn*
// actions against one daemon.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "inferctl",
		Short:         "Talk to a running inferd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	root.PersistentFlags().String("host", cfg.Host, "Daemon base URL (defaults INFERD_HOST or http://127.0.0.1:8000)")
	root.PersistentFlags().Duration("timeout", cfg.Timeout, "Per-call timeout for non-streaming requests")
	root.PersistentFlags().String("log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults INFERCTL_LOG_LEVEL or info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if f := cmd.InheritedFlags().Lookup("host"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.Host = v
			}
		}
		if f := cmd.InheritedFlags().Lookup("timeout"); f != nil {
			if d, err := time.ParseDuration(f.Value.String()); err == nil && d > 0 {
				cfg.Timeout = d
			}
		}
		if f := cmd.InheritedFlags().Lookup("log-level"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.LogLvl = v
			}
		}
		SetLogLevel(cfg.LogLvl)
	}

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon reachability and the resident model",
		Example: "  inferctl status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnStatus(cmd.OutOrStdout(), cfg)
		},
	}

	modelsCmd := &cobra.Command{
		Use:     "models",
		Short:   "List catalog, cached and loaded models",
		Example: "  inferctl models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnModels(cmd.OutOrStdout(), cfg)
		},
	}

	var load loadOpts
	loadCmd := &cobra.Command{
		Use:   "load <model>",
		Short: "Load a model into the daemon (needs --reload on the daemon)",
		Example: "  inferctl load llama3.2\n" +
			"  inferctl load ./tiny.gguf --local-path --kind text\n" +
			"  inferctl load TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF/tinyllama.Q4_0.gguf --hf --kind text",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnLoad(cmd.OutOrStdout(), cfg, args[0], load)
		},
	}
	loadCmd.Flags().StringVar(&load.kind, "kind", "", "Model kind: text|vision|diffusion|audio")
	loadCmd.Flags().BoolVar(&load.localPath, "local-path", false, "Treat <model> as a filesystem path")
	loadCmd.Flags().BoolVar(&load.hf, "hf", false, "Treat <model> as a HuggingFace owner/repo/file reference")
	loadCmd.Flags().StringVar(&load.projector, "projector", "", "Projector artifact for vision-language models")
	loadCmd.Flags().IntVar(&load.ctxLen, "ctx", 0, "Context length, 0 keeps the daemon default")

	var gen genOpts
	addGenFlags := func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&gen.maxTokens, "max-tokens", 0, "Max new tokens, 0 keeps the daemon default")
		cmd.Flags().Float64Var(&gen.temperature, "temperature", -1, "Sampling temperature, negative keeps the daemon default")
		cmd.Flags().Float64Var(&gen.topP, "top-p", 0, "Nucleus sampling probability, 0 keeps the daemon default")
		cmd.Flags().StringSliceVar(&gen.stop, "stop", nil, "Stop sequences")
		cmd.Flags().BoolVar(&gen.noStream, "no-stream", false, "Wait for the full result instead of streaming tokens")
	}

	completeCmd := &cobra.Command{
		Use:     "complete <prompt>",
		Short:   "Run a text completion, streaming tokens to stdout",
		Example: "  inferctl complete \"Write a haiku about the ocean.\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnComplete(cmd.OutOrStdout(), cfg, strings.Join(args, " "), gen)
		},
	}
	addGenFlags(completeCmd)

	var system string
	chatCmd := &cobra.Command{
		Use:     "chat <message>",
		Short:   "Send one chat turn, streaming the reply to stdout",
		Example: "  inferctl chat \"What is the capital of France?\" --system \"Answer briefly.\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnChat(cmd.OutOrStdout(), cfg, strings.Join(args, " "), system, gen)
		},
	}
	addGenFlags(chatCmd)
	chatCmd.Flags().StringVar(&system, "system", "", "System prompt prepended to the conversation")

	var img imageOpts
	addImageFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&img.negative, "negative", "", "Negative prompt")
		cmd.Flags().IntVar(&img.width, "width", 0, "Image width, 0 keeps the daemon default")
		cmd.Flags().IntVar(&img.height, "height", 0, "Image height, 0 keeps the daemon default")
		cmd.Flags().IntVar(&img.steps, "steps", 0, "Sampling steps, 0 keeps the daemon default")
		cmd.Flags().Float64Var(&img.cfgScale, "cfg-scale", 0, "Guidance scale, 0 keeps the daemon default")
		cmd.Flags().Int64Var(&img.seed, "seed", 0, "Random seed, 0 picks one")
		cmd.Flags().StringVar(&img.outDir, "out", "", "Write images into this local directory instead of printing daemon paths")
	}

	txt2imgCmd := &cobra.Command{
		Use:     "txt2img <prompt>",
		Short:   "Generate an image from a prompt",
		Example: "  inferctl txt2img \"a lighthouse at dawn, oil painting\" --steps 30 --out .",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnTxt2Img(cmd.OutOrStdout(), cfg, strings.Join(args, " "), img)
		},
	}
	addImageFlags(txt2imgCmd)

	img2imgCmd := &cobra.Command{
		Use:     "img2img <init-image> <prompt>",
		Short:   "Repaint an init image following a prompt",
		Example: "  inferctl img2img sketch.png \"watercolor, soft light\" --strength 0.6",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnImg2Img(cmd.OutOrStdout(), cfg, args[0], strings.Join(args[1:], " "), img)
		},
	}
	addImageFlags(img2imgCmd)
	img2imgCmd.Flags().Float64Var(&img.strength, "strength", 0, "Repaint strength 0..1, 0 keeps the daemon default")

	var speech speechOpts
	transcribeCmd := &cobra.Command{
		Use:     "transcribe <file.wav>",
		Short:   "Transcribe a 16 kHz mono WAV file",
		Example: "  inferctl transcribe meeting.wav --language de\n  inferctl transcribe meeting.wav --translate",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnTranscribe(cmd.OutOrStdout(), cfg, args[0], speech)
		},
	}
	transcribeCmd.Flags().StringVar(&speech.language, "language", "", "Spoken language hint, empty autodetects")
	transcribeCmd.Flags().BoolVar(&speech.translate, "translate", false, "Translate the transcript to English")
	transcribeCmd.Flags().IntVar(&speech.beamSize, "beam-size", 0, "Decoder beam size, 0 keeps the daemon default")
	transcribeCmd.Flags().Float64Var(&speech.temperature, "temperature", -1, "Decoder temperature, negative keeps the daemon default")

	root.AddCommand(statusCmd, modelsCmd, loadCmd, completeCmd, chatCmd, txt2imgCmd, img2imgCmd, transcribeCmd)
	return root
}
