package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/router-for-me/claudebridge/internal/config"
	"github.com/router-for-me/claudebridge/internal/sse"
	"github.com/router-for-me/claudebridge/internal/usage"
	"github.com/router-for-me/claudebridge/internal/util"
	sdktranslator "github.com/router-for-me/claudebridge/sdk/translator"
	log "github.com/sirupsen/logrus"
)

// streamReadSize bounds a single read from the backend stream.
const streamReadSize = 32 * 1024

// OpenAICompatExecutor forwards Claude Messages requests to an
// OpenAI-compatible chat-completions backend.
type OpenAICompatExecutor struct {
	cfg       *config.Holder
	client    atomic.Pointer[http.Client]
	estimator usage.TokenEstimator
}

// NewOpenAICompatExecutor builds the executor and its shared HTTP client.
func NewOpenAICompatExecutor(cfg *config.Holder, estimator usage.TokenEstimator) (*OpenAICompatExecutor, error) {
	if cfg == nil {
		cfg = config.NewHolder(config.Default())
	}
	if estimator == nil {
		estimator = usage.CharEstimator{}
	}
	e := &OpenAICompatExecutor{cfg: cfg, estimator: estimator}
	if err := e.Reload(cfg.Load()); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *OpenAICompatExecutor) Identifier() string { return "openai-compat" }

// Reload rebuilds the HTTP client for new proxy or timeout settings.
// In-flight requests keep the client they started with.
func (e *OpenAICompatExecutor) Reload(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	client, err := newProxyAwareHTTPClient(cfg.Backend)
	if err != nil {
		return err
	}
	e.client.Store(client)
	return nil
}

// Execute performs a non-streaming call and returns the translated Claude
// message.
func (e *OpenAICompatExecutor) Execute(ctx context.Context, req Request) (resp Response, err error) {
	cfg := e.cfg.Load()
	record := usage.Record{Model: req.Model, RequestedAt: time.Now()}
	defer func() {
		record.Failed = err != nil
		record.Duration = time.Since(record.RequestedAt)
		usage.Publish(ctx, record)
	}()

	body := e.translateRequest(cfg, req, false)
	record.InputTokens = usage.EstimateBackendRequest(e.estimator, body)

	callCtx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout())
	defer cancel()

	httpResp, err := e.do(callCtx, cfg, body, req.APIKey, false)
	if err != nil {
		return resp, err
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("openai-compat executor: close response body error: %v", errClose)
		}
	}()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return resp, err
	}
	if in, out, ok := usage.ParseOpenAIUsage(data); ok {
		if in > 0 {
			record.InputTokens = in
		}
		record.OutputTokens = out
	}

	var param any
	out := sdktranslator.TranslateNonStream(ctx, sdktranslator.FormatOpenAI, sdktranslator.FormatClaude, req.Model, bytes.Clone(req.Payload), body, data, &param)
	return Response{Payload: []byte(out)}, nil
}

// ExecuteStream opens a streaming call. Errors before the backend accepts the
// request are returned directly and nothing is sent on the channel. After
// that, the channel carries message_start, the translated events and either
// the closing events or one chunk with Err set. The channel is closed when the
// stream ends or ctx is done.
func (e *OpenAICompatExecutor) ExecuteStream(ctx context.Context, req Request) (_ <-chan StreamChunk, err error) {
	cfg := e.cfg.Load()
	record := usage.Record{Model: req.Model, Stream: true, RequestedAt: time.Now()}

	body := e.translateRequest(cfg, req, true)
	record.InputTokens = usage.EstimateBackendRequest(e.estimator, body)

	var param any
	start := sdktranslator.StartStream(ctx, sdktranslator.FormatOpenAI, sdktranslator.FormatClaude, req.Model, body, record.InputTokens, &param)

	httpResp, err := e.do(ctx, cfg, body, req.APIKey, true)
	if err != nil {
		record.Failed = true
		record.Duration = time.Since(record.RequestedAt)
		usage.Publish(ctx, record)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer func() {
			if errClose := httpResp.Body.Close(); errClose != nil {
				log.Errorf("openai-compat executor: close response body error: %v", errClose)
			}
			record.Duration = time.Since(record.RequestedAt)
			usage.Publish(ctx, record)
		}()

		send := func(chunk StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}
		sendAll := func(records []string) bool {
			for i := range records {
				if !send(StreamChunk{Payload: []byte(records[i])}) {
					return false
				}
			}
			return true
		}

		if !sendAll(start) {
			return
		}

		idle := newIdleReader(httpResp.Body, cfg.Backend.Timeout())
		defer idle.Stop()

		errRead := pumpLines(ctx, idle, func(line []byte) bool {
			if payload, ok := sse.DataPayload(line); ok {
				if in, outTokens, okUsage := usage.ParseOpenAIUsage(payload); okUsage {
					if in > 0 {
						record.InputTokens = in
					}
					record.OutputTokens = outTokens
				}
			}
			return sendAll(sdktranslator.TranslateStream(ctx, sdktranslator.FormatOpenAI, sdktranslator.FormatClaude, req.Model, req.Payload, body, line, &param))
		})
		if errRead != nil {
			if ctx.Err() != nil {
				return
			}
			if idle.TimedOut() {
				errRead = fmt.Errorf("backend stream idle for %s", cfg.Backend.Timeout())
			}
			record.Failed = true
			log.Debugf("openai-compat executor: stream read error: %v", errRead)
			send(StreamChunk{Err: errRead})
			return
		}
		sendAll(sdktranslator.FinishStream(ctx, sdktranslator.FormatOpenAI, sdktranslator.FormatClaude, req.Model, &param))
	}()

	return out, nil
}

// CountTokens estimates the input tokens of a Claude request without calling
// the backend.
func (e *OpenAICompatExecutor) CountTokens(ctx context.Context, req Request) (Response, error) {
	count := usage.CountClaudeRequest(e.estimator, req.Payload)
	out := sdktranslator.TranslateTokenCount(ctx, sdktranslator.FormatOpenAI, sdktranslator.FormatClaude, count, req.Payload)
	return Response{Payload: []byte(out)}, nil
}

func (e *OpenAICompatExecutor) translateRequest(cfg *config.Config, req Request, stream bool) []byte {
	upstreamModel := util.UpstreamModelName(cfg.Backend.ProviderPrefix, req.Model)
	return sdktranslator.TranslateRequest(sdktranslator.FormatClaude, sdktranslator.FormatOpenAI, upstreamModel, bytes.Clone(req.Payload), stream)
}

// do sends body to the backend. Non-2xx replies are drained and returned as
// statusErr; on success the returned body is already decompressed.
func (e *OpenAICompatExecutor) do(ctx context.Context, cfg *config.Config, body []byte, apiKey string, stream bool) (*http.Response, error) {
	url := cfg.Backend.ChatCompletionsURL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	applyOpenAIHeaders(httpReq, apiKey, stream)

	if cfg.RequestLog {
		log.Debugf("openai-compat executor: POST %s key=%s body=%s", url, util.MaskSecret(apiKey), util.RedactSensitiveJSON(body))
	}

	httpResp, err := e.client.Load().Do(httpReq)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeResponseBody(httpResp.Body, httpResp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	httpResp.Body = decoded

	if !isSuccess(httpResp.StatusCode) {
		b, _ := io.ReadAll(httpResp.Body)
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("openai-compat executor: close response body error: %v", errClose)
		}
		log.Debugf("request error, error status: %d, error body: %s", httpResp.StatusCode, b)
		return nil, statusErr{code: httpResp.StatusCode, msg: string(b)}
	}
	return httpResp, nil
}

func applyOpenAIHeaders(r *http.Request, apiKey string, stream bool) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Accept-Encoding", "gzip, br, zstd")
	if stream {
		r.Header.Set("Accept", "text/event-stream")
		r.Header.Set("Cache-Control", "no-cache")
		return
	}
	r.Header.Set("Accept", "application/json")
}

// idleReader closes the underlying body when no read completes within the
// idle window. Each completed read restarts the window.
type idleReader struct {
	r        io.ReadCloser
	d        time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleReader(r io.ReadCloser, d time.Duration) *idleReader {
	ir := &idleReader{r: r, d: d}
	ir.timer = time.AfterFunc(d, func() {
		ir.timedOut.Store(true)
		_ = r.Close()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.timedOut.Load() {
		ir.timer.Reset(ir.d)
	}
	return n, err
}

// Stop disarms the idle timer.
func (ir *idleReader) Stop() { ir.timer.Stop() }

// TimedOut reports whether the idle window elapsed.
func (ir *idleReader) TimedOut() bool { return ir.timedOut.Load() }

var errStreamStopped = errors.New("executor: stream consumer stopped")

// pumpLines reads r in chunks and hands every complete line to handle. A
// chunk's lines are all handled before the next read. A trailing line without
// a newline is handled at EOF. handle returning false stops the pump.
func pumpLines(ctx context.Context, r io.Reader, handle func(line []byte) bool) error {
	var lines sse.LineBuffer
	buf := make([]byte, streamReadSize)
	for {
		if errCtx := ctx.Err(); errCtx != nil {
			return errCtx
		}
		n, errRead := r.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				if !handle(line) {
					return stopReason(ctx)
				}
			}
		}
		if errRead == nil {
			continue
		}
		if errors.Is(errRead, io.EOF) {
			if tail := lines.Flush(); len(tail) > 0 {
				if !handle(tail) {
					return stopReason(ctx)
				}
			}
			return nil
		}
		return errRead
	}
}

func stopReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errStreamStopped
}
