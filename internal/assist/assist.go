package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zenithmed/registry-api/internal/model"
	"github.com/zenithmed/registry-api/pkg/logger"
	"github.com/zenithmed/registry-api/pkg/metrics"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-3-flash-preview"

	categoryVocabulary = "General Practice, Cardiology, Dermatology, Pediatrics, Diagnostics"

	// Fixed fallback strings. Summarize never returns an error, only one of
	// these or model output.
	msgNoKey       = "Clinical operation summary is unavailable (AI key not set)."
	msgEmpty       = "Registry is currently empty."
	msgUnavailable = "Summary temporarily unavailable."
	msgDone        = "Analysis complete."
)

// ParsedAppointment is the structured result of a free-text scheduling
// request. PatientName, Date and Time are the required extraction targets.
type ParsedAppointment struct {
	PatientName string `json:"patientName"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Category    string `json:"category,omitempty"`
	Room        string `json:"room,omitempty"`
	Reports     string `json:"reports,omitempty"`
}

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	SummaryTTL time.Duration
}

// Client is a stateless request/response wrapper around the hosted completion
// endpoint. No retries, no streaming; every failure maps to a benign value.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *gocache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Minute
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   gocache.New(cfg.SummaryTTL, 5*time.Minute),
		logger:  log,
		metrics: m,
	}
}

// ParseAppointmentText extracts a partial appointment from a free-text intake
// request. Any failure at all (no key, network error, malformed model output)
// returns nil; the caller treats nil as "no-op", never as an error to surface.
func (c *Client) ParseAppointmentText(ctx context.Context, text string) *ParsedAppointment {
	if c.cfg.APIKey == "" {
		c.outcome("parse", "no_key")
		return nil
	}

	prompt := fmt.Sprintf(`Parse this CLINIC intake request: %q.
Current Date: %s.
Available Categories: %s.
Map to the closest category. Map 'tests' or 'labs' to 'Diagnostics'.
Return ONLY JSON.`, text, time.Now().Format("1/2/2006"), categoryVocabulary)

	req := GeminiRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &ResponseSchema{
				Type: "OBJECT",
				Properties: map[string]SchemaProperty{
					"patientName": {Type: "STRING"},
					"date":        {Type: "STRING"},
					"time":        {Type: "STRING"},
					"category":    {Type: "STRING"},
					"room":        {Type: "STRING"},
					"reports":     {Type: "STRING", Description: "Extract any medical symptoms or reason for visit as a report"},
				},
				Required: []string{"patientName", "date", "time"},
			},
		},
	}

	raw, err := c.generate(ctx, req)
	if err != nil {
		c.logger.Debug("appointment parse failed", "error", err.Error())
		c.outcome("parse", "error")
		return nil
	}

	var parsed ParsedAppointment
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		c.logger.Debug("appointment parse returned malformed JSON")
		c.outcome("parse", "malformed")
		return nil
	}

	c.outcome("parse", "ok")
	return &parsed
}

// Summarize produces a short operational summary of the given appointments.
// An empty registry short-circuits without calling the remote model.
func (c *Client) Summarize(ctx context.Context, appointments []*model.Appointment, wordBudget int) string {
	if len(appointments) == 0 {
		c.outcome("summarize", "empty")
		return msgEmpty
	}
	if c.cfg.APIKey == "" {
		c.outcome("summarize", "no_key")
		return msgNoKey
	}
	if wordBudget <= 0 {
		wordBudget = 20
	}

	key := summaryCacheKey(appointments)
	if cached, ok := c.cache.Get(key); ok {
		c.outcome("summarize", "cached")
		return cached.(string)
	}

	payload, err := json.Marshal(appointments)
	if err != nil {
		c.outcome("summarize", "error")
		return msgUnavailable
	}

	prompt := fmt.Sprintf(
		"Generate a brief (max %d words) operational clinical summary based on these patient appointments: %s",
		wordBudget, payload)

	raw, err := c.generate(ctx, GeminiRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
	})
	if err != nil {
		c.logger.Debug("summary generation failed", "error", err.Error())
		c.outcome("summarize", "error")
		return msgUnavailable
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		summary = msgDone
	}

	c.cache.Set(key, summary, gocache.DefaultExpiration)
	c.outcome("summarize", "ok")
	return summary
}

func (c *Client) generate(ctx context.Context, reqBody GeminiRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion call returned status %d", resp.StatusCode)
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return geminiResp.Text(), nil
}

func (c *Client) outcome(op, outcome string) {
	if c.metrics != nil {
		c.metrics.AssistCalls.WithLabelValues(op, outcome).Inc()
	}
}

// summaryCacheKey fingerprints the registry snapshot so a burst of summary
// requests against unchanged data reuses the model output.
func summaryCacheKey(appointments []*model.Appointment) string {
	var b strings.Builder
	b.WriteString("summary:")
	for _, apt := range appointments {
		b.WriteString(apt.ID.String())
		b.WriteByte(':')
		b.WriteString(string(apt.Status))
		b.WriteByte(';')
	}
	return b.String()
}
