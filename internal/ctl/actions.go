package ctl

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"inferd/pkg/types"
)

func fnStatus(out io.Writer, cfg *Config) error {
	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	ready, err := c.ready(ctx)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %v", c.base, err)
	}
	fmt.Fprintf(out, "daemon: %s\n", c.base)
	if !ready {
		fmt.Fprintln(out, "model:  none loaded")
		return nil
	}
	var models types.ModelsResponse
	if err := c.getJSON(ctx, "/v1/models", &models); err != nil {
		return err
	}
	for _, m := range models.Data {
		if m.Loaded {
			fmt.Fprintf(out, "model:  %s (%s)\n", m.ID, m.Kind)
			if m.Path != "" {
				fmt.Fprintf(out, "path:   %s\n", m.Path)
			}
		}
	}
	return nil
}

func fnModels(out io.Writer, cfg *Config) error {
	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	var models types.ModelsResponse
	if err := c.getJSON(ctx, "/v1/models", &models); err != nil {
		return err
	}
	fmt.Fprintf(out, "%-14s %-10s %-7s %s\n", "ID", "KIND", "LOADED", "PATH")
	for _, m := range models.Data {
		loaded := "-"
		if m.Loaded {
			loaded = "yes"
		}
		fmt.Fprintf(out, "%-14s %-10s %-7s %s\n", m.ID, m.Kind, loaded, m.Path)
	}
	return nil
}

type loadOpts struct {
	kind      string
	localPath bool
	hf        bool
	projector string
	ctxLen    int
}

func fnLoad(out io.Writer, cfg *Config, model string, opts loadOpts) error {
	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	info("loading %s, large artifacts are pulled on first use", model)
	start := time.Now()
	var active types.ActiveModel
	err := c.postJSON(ctx, "/v1/models/load", types.LoadRequest{
		Model:     model,
		Kind:      opts.kind,
		LocalPath: opts.localPath,
		HF:        opts.hf,
		Projector: opts.projector,
		CtxLen:    opts.ctxLen,
	}, &active)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loaded %s (%s) on %s in %s\n", active.ID, active.Kind, active.Device, fmtDuration(time.Since(start)))
	return nil
}

type genOpts struct {
	maxTokens   int
	temperature float64
	topP        float64
	stop        []string
	noStream    bool
}

func (o genOpts) maxTokensPtr() *int {
	if o.maxTokens <= 0 {
		return nil
	}
	return &o.maxTokens
}

func (o genOpts) temperaturePtr() *float64 {
	if o.temperature < 0 {
		return nil
	}
	return &o.temperature
}

func (o genOpts) topPPtr() *float64 {
	if o.topP <= 0 {
		return nil
	}
	return &o.topP
}

func fnComplete(out io.Writer, cfg *Config, prompt string, opts genOpts) error {
	c := newClient(cfg)
	req := types.CompletionRequest{
		Prompt:       prompt,
		MaxNewTokens: opts.maxTokensPtr(),
		Temperature:  opts.temperaturePtr(),
		TopP:         opts.topPPtr(),
		StopWords:    opts.stop,
		Stream:       !opts.noStream,
	}
	if opts.noStream {
		ctx, cancel := callCtx(cfg)
		defer cancel()
		var resp types.CompletionResponse
		if err := c.postJSON(ctx, "/v1/completions", req, &resp); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response")
		}
		fmt.Fprintln(out, resp.Choices[0].Text)
		return nil
	}
	return c.streamGenerate(out, "/v1/completions", req)
}

func fnChat(out io.Writer, cfg *Config, message, system string, opts genOpts) error {
	c := newClient(cfg)
	var messages []types.ChatMessage
	if system != "" {
		messages = append(messages, types.ChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, types.ChatMessage{Role: "user", Content: message})
	req := types.ChatRequest{
		Messages:    messages,
		MaxTokens:   opts.maxTokensPtr(),
		Temperature: opts.temperaturePtr(),
		TopP:        opts.topPPtr(),
		StopWords:   opts.stop,
		Stream:      !opts.noStream,
	}
	if opts.noStream {
		ctx, cancel := callCtx(cfg)
		defer cancel()
		var resp types.ChatResponse
		if err := c.postJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response")
		}
		fmt.Fprintln(out, resp.Choices[0].Message.Content)
		return nil
	}
	return c.streamGenerate(out, "/v1/chat/completions", req)
}

type imageOpts struct {
	negative string
	width    int
	height   int
	steps    int
	cfgScale float64
	seed     int64
	strength float64
	outDir   string
}

func (o imageOpts) request(prompt string) types.ImageGenerationRequest {
	req := types.ImageGenerationRequest{
		Prompt:         prompt,
		NegativePrompt: o.negative,
		Seed:           o.seed,
	}
	if o.width > 0 {
		req.Width = &o.width
	}
	if o.height > 0 {
		req.Height = &o.height
	}
	if o.steps > 0 {
		req.SampleSteps = &o.steps
	}
	if o.cfgScale > 0 {
		req.CfgScale = &o.cfgScale
	}
	if o.strength > 0 {
		req.Strength = &o.strength
	}
	return req
}

func fnTxt2Img(out io.Writer, cfg *Config, prompt string, opts imageOpts) error {
	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	start := time.Now()
	var resp types.ImageGenerationResponse
	if err := c.postJSON(ctx, "/v1/txt2img", opts.request(prompt), &resp); err != nil {
		return err
	}
	info("generated %d image(s) in %s", len(resp.Data), fmtDuration(time.Since(start)))
	return writeImages(out, opts.outDir, resp.Data)
}

func fnImg2Img(out io.Writer, cfg *Config, initPath, prompt string, opts imageOpts) error {
	abs, err := filepath.Abs(initPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("init image: %v", err)
	}
	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	req := opts.request(prompt)
	// The daemon reads the init image from disk; this only works against
	// a local daemon. Remote daemons need the multipart form instead.
	req.ImagePath = abs
	start := time.Now()
	var resp types.ImageGenerationResponse
	if err := c.postJSON(ctx, "/v1/img2img", req, &resp); err != nil {
		return err
	}
	info("generated %d image(s) in %s", len(resp.Data), fmtDuration(time.Since(start)))
	return writeImages(out, opts.outDir, resp.Data)
}

// writeImages reports where the daemon saved each image, or decodes them
// into outDir when one is given.
func writeImages(out io.Writer, outDir string, images []types.GeneratedImage) error {
	for i, img := range images {
		if outDir == "" {
			fmt.Fprintln(out, img.URL)
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			return fmt.Errorf("image %d: %v", i, err)
		}
		dest := filepath.Join(outDir, filepath.Base(img.URL))
		if err := os.WriteFile(dest, raw, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(out, dest)
	}
	return nil
}

type speechOpts struct {
	language    string
	translate   bool
	beamSize    int
	temperature float64
}

func fnTranscribe(out io.Writer, cfg *Config, wavPath string, opts speechOpts) error {
	f, err := os.Open(wavPath)
	if err != nil {
		return err
	}
	defer f.Close()

	path := "/v1/audio/transcriptions"
	if opts.translate {
		path = "/v1/audio/translations"
		if opts.language != "" {
			warn("--language is ignored for translations; output is always English")
			opts.language = ""
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if opts.language != "" {
		mw.WriteField("language", opts.language)
	}
	if opts.beamSize > 0 {
		mw.WriteField("beam_size", strconv.Itoa(opts.beamSize))
	}
	if opts.temperature >= 0 {
		mw.WriteField("temperature", strconv.FormatFloat(opts.temperature, 'f', -1, 64))
	}
	if err := mw.Close(); err != nil {
		return err
	}

	c := newClient(cfg)
	ctx, cancel := callCtx(cfg)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp types.TranscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Text)
	return nil
}
