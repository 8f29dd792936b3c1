package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkline/orimg/internal/provider"
	"github.com/mkline/orimg/pkg/models"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 120 * time.Second

	refererHeader = "https://github.com/mkline/orimg"
	titleHeader   = "orimg"
)

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []message    `json:"messages"`
	Modalities  []string     `json:"modalities"`
	ImageConfig *imageConfig `json:"image_config,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	ImageSize   string `json:"image_size,omitempty"`
}

type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message responseMessage `json:"message"`
}

type responseMessage struct {
	Content json.RawMessage `json:"content"`
	Images  []responseImage `json:"images"`
}

type responseImage struct {
	ImageURL imageURL `json:"image_url"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type modelsResponse struct {
	Data []catalogModel `json:"data"`
}

type catalogModel struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ContextLength int               `json:"context_length"`
	Architecture  modelArchitecture `json:"architecture"`
	Pricing       modelPricing      `json:"pricing"`
}

type modelArchitecture struct {
	OutputModalities []string `json:"output_modalities"`
}

type modelPricing struct {
	ImageOutput string `json:"image_output"`
	Image       string `json:"image"`
}

// Provider talks to the OpenRouter chat-completions endpoint with image
// modalities enabled.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	payload := buildChatRequest(req)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrGenerationFailed, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", provider.ErrGenerationFailed, resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", provider.ErrGenerationFailed)
	}

	return buildResponse(chatResp.Choices[0].Message)
}

// buildChatRequest embeds reference images as data URLs ahead of the prompt
// text. With no references the content is a plain string.
func buildChatRequest(req *models.Request) *chatRequest {
	payload := &chatRequest{
		Model:      req.Model,
		Modalities: []string{"image", "text"},
	}

	if len(req.References) == 0 {
		payload.Messages = []message{{Role: "user", Content: req.Prompt}}
	} else {
		parts := make([]contentPart, 0, len(req.References)+1)
		for _, ref := range req.References {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: dataURL(ref.MIMEType, ref.Data)},
			})
		}
		parts = append(parts, contentPart{Type: "text", Text: req.Prompt})
		payload.Messages = []message{{Role: "user", Content: parts}}
	}

	if req.AspectRatio != "" || req.Size != "" {
		payload.ImageConfig = &imageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.Size,
		}
	}

	return payload
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func buildResponse(msg responseMessage) (*models.Response, error) {
	response := &models.Response{
		Text:   extractText(msg.Content),
		Images: make([]models.GeneratedImage, 0, len(msg.Images)),
	}

	for i, img := range msg.Images {
		url := img.ImageURL.URL
		if url == "" {
			continue
		}

		gen := models.GeneratedImage{Index: i}
		if mimeType, b64, ok := parseDataURL(url); ok {
			decoded, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image %d: %w", i+1, err)
			}
			gen.Data = decoded
			gen.MIMEType = mimeType
		} else {
			gen.URL = url
		}
		response.Images = append(response.Images, gen)
	}

	return response, nil
}

// parseDataURL splits "data:image/png;base64,<data>" into its mime type and
// base64 payload.
func parseDataURL(url string) (mimeType, b64 string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	header, data, found := strings.Cut(url[len("data:"):], ",")
	if !found {
		return "", "", false
	}
	mimeType = strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, data, true
}

// extractText handles both plain-string and content-parts forms of the
// assistant message content.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, part := range parts {
			if part.Type == "text" {
				sb.WriteString(part.Text)
			}
		}
		return sb.String()
	}

	return ""
}

// ListImageModels fetches the catalog and keeps models advertising image
// output, sorted by display name.
func (p *Provider) ListImageModels(ctx context.Context) ([]models.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch models: status %d", resp.StatusCode)
	}

	var modelsResp modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	var infos []models.ModelInfo
	for _, m := range modelsResp.Data {
		if !hasImageOutput(m.Architecture.OutputModalities) {
			continue
		}
		info := models.ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			ContextLength: m.ContextLength,
		}
		priceStr := m.Pricing.ImageOutput
		if priceStr == "" {
			priceStr = m.Pricing.Image
		}
		if priceStr != "" {
			if price, err := strconv.ParseFloat(priceStr, 64); err == nil {
				info.ImagePrice = price
				info.PriceKnown = true
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].Name) < strings.ToLower(infos[j].Name)
	})
	return infos, nil
}

func hasImageOutput(modalities []string) bool {
	for _, m := range modalities {
		if m == "image" {
			return true
		}
	}
	return false
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", refererHeader)
	req.Header.Set("X-Title", titleHeader)
}
