// Package speech issues synthesis requests to an OpenAI-compatible
// /audio/speech endpoint.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const readChunk = 32 * 1024

// Options configures a Client.
type Options struct {
	// Endpoint is the API base URL, for example https://api.openai.com/v1.
	Endpoint string
	AuthKey  string

	// HTTPClient overrides the default client. Its timeout, if any, applies
	// to the whole response including the body.
	HTTPClient *http.Client

	// RequestsPerMinute paces requests. Zero disables pacing.
	RequestsPerMinute int

	// Cache, when set, stores encoded payloads fetched with Fetch.
	Cache cache.Cache
}

// Response is a live synthesis response. The caller must close Body.
type Response struct {
	Format tts.Format
	Body   io.ReadCloser
}

// Client talks to the speech endpoint.
type Client struct {
	api     *openai.Client
	limiter *rate.Limiter
	cache   cache.Cache
	logger  *log.Logger
}

// New returns a client for opts.
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, &tts.ValidationError{Field: "endpoint", Reason: "must not be empty"}
	}

	config := openai.DefaultConfig(opts.AuthKey)
	config.BaseURL = endpoint
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	} else {
		config.HTTPClient = &http.Client{}
	}

	c := &Client{
		api:    openai.NewClientWithConfig(config),
		cache:  opts.Cache,
		logger: log.WithPrefix("speech"),
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return c, nil
}

// Synthesize sends one request and returns the response as soon as the
// headers arrive. The body streams as the server produces it.
func (c *Client) Synthesize(ctx context.Context, text string, voice tts.Voice, format tts.Format) (*Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, &tts.CancelledError{Err: ctx.Err()}
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &tts.CancelledError{Err: err}
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(voice.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice.Name),
		ResponseFormat: openai.SpeechResponseFormat(format),
		Speed:          voice.Speed,
	}

	start := time.Now()
	raw, err := c.api.CreateSpeech(ctx, req)
	if err != nil {
		return nil, classify(ctx, err)
	}

	c.logger.Debug("Speech response", "format", format, "chars", len([]rune(text)), "latency", time.Since(start))
	return &Response{Format: format, Body: raw}, nil
}

// Fetch synthesizes text as a complete MP3 payload. The body is read in
// chunks and ctx is checked between them, so a long download can be
// abandoned part way. Payloads are served from and stored in the cache.
func (c *Client) Fetch(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	return c.FetchFormat(ctx, text, voice, tts.FormatMP3)
}

// FetchFormat is Fetch for an explicit response format.
func (c *Client) FetchFormat(ctx context.Context, text string, voice tts.Voice, format tts.Format) ([]byte, error) {
	key := cache.Key(voice.Model, voice.Name, strconv.FormatFloat(voice.Speed, 'f', -1, 64), string(format), text)
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			c.logger.Debug("Cache hit", "bytes", humanize.IBytes(uint64(len(data))))
			return data, nil
		}
	}

	resp, err := c.Synthesize(ctx, text, voice, format)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := ReadAll(ctx, resp.Body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(key, data); err != nil {
			c.logger.Warn("Failed to cache payload", "error", err)
		}
	}
	return data, nil
}

// ReadAll reads r to the end, checking ctx before every read.
func ReadAll(ctx context.Context, r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, &tts.CancelledError{Err: err}
		}
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, classify(ctx, err)
		}
	}
}

// classify maps a request or body error into the error taxonomy.
func classify(ctx context.Context, err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return &tts.CancelledError{Err: err}
	case errors.As(err, &apiErr):
		return &tts.HTTPError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	case errors.As(err, &reqErr):
		return &tts.HTTPError{Status: reqErr.HTTPStatusCode}
	default:
		return &tts.NetworkError{Err: err}
	}
}
