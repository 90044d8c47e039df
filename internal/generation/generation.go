// Package generation asks an OpenAI-compatible chat completion API to write
// video titles and descriptions from transcripts.
package generation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"golang.org/x/time/rate"

	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
)

const (
	TitlePrompt = "Your task is to generate an SEO-focused title for a video based on its transcript. " +
		"Be concise but descriptive, using relevant keywords to improve discoverability. " +
		"Keep the title between 3 and 8 words and no longer than 100 characters. " +
		"Return only the title as plain text, without quotes or extra formatting."
	DescriptionPrompt = "Your task is to summarize the transcript of a video. " +
		"Write in the first person as the creator of the video, in no more than 3 to 5 short paragraphs. " +
		"Focus on the main points and avoid filler. " +
		"Return only the summary as plain text, without headings or markdown."
)

var ErrEmptyResult = fmt.Errorf("generation returned no text")

type Generator interface {
	Generate(ctx context.Context, systemPrompt, input string) (string, error)
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
}

var _ Generator = (*Client)(nil)

// New paces outbound requests to perMinute. A non-positive rate means no
// pacing.
func New(baseURL, apiKey, model string, perMinute float64) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		limiter: limiter,
	}
}

func (c *Client) Generate(ctx context.Context, systemPrompt, input string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generation.Client.Generate: rate limiter: %w", err)
	}

	body := gabs.New()
	body.Set(c.model, "model")
	body.Set([]interface{}{
		map[string]interface{}{"role": "system", "content": systemPrompt},
		map[string]interface{}{"role": "user", "content": input},
	}, "messages")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("generation.Client.Generate: could not build request: %w", err)
	}

	req.Header.Set("authorization", "Bearer "+c.apiKey)
	req.Header.Set("content-type", "application/json")

	d, err := ctxhttpclient.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generation.Client.Generate: %w", err)
	}

	j, err := gabs.ParseJSON(d)
	if err != nil {
		return "", fmt.Errorf("generation.Client.Generate: could not parse response: %w", err)
	}

	s, _ := j.Path("choices.0.message.content").Data().(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("generation.Client.Generate: %w", ErrEmptyResult)
	}

	return s, nil
}
