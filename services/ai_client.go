package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cppla/moodbloom/metrics"
)

// maxAIResponseBytes caps what is accepted from the AI service.
const maxAIResponseBytes = 1 << 20

var (
	// ErrAIUnavailable wraps transport failures and non-2xx answers of the AI service.
	ErrAIUnavailable = errors.New("ai service unavailable")
	// ErrAIResponseTooLarge is returned when the AI service answers with more than 1MB.
	ErrAIResponseTooLarge = errors.New("ai service response too large")
)

// Analysis is the mood analysis of a text or a voice recording.
type Analysis struct {
	Mood                string               `json:"mood"`
	MoodScore           int                  `json:"score"`
	EnergyLevel         int                  `json:"energy"`
	SentimentScore      float64              `json:"sentimentScore"`
	EmotionalState      string               `json:"emotional_state"`
	DetectedEmotions    []string             `json:"detected_emotions"`
	TranscribedText     string               `json:"transcribed_text,omitempty"`
	GameRecommendations []GameRecommendation `json:"game_recommendations,omitempty"`
}

// GameRecommendation is a suggestion attached to voice analyses.
type GameRecommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// RecommendationRequest describes the check-in recommendations are generated for.
type RecommendationRequest struct {
	UserID           uint     `json:"userId"`
	Mood             string   `json:"mood"`
	MoodScore        int      `json:"moodScore"`
	EnergyLevel      int      `json:"energyLevel"`
	EmotionalState   string   `json:"emotionalState"`
	DetectedEmotions []string `json:"detectedEmotions"`
}

// SuggestedRecommendation is one item generated by the AI service.
type SuggestedRecommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Mood        string `json:"mood"`
}

// SummaryCheckIn is the check-in shape sent for weekly summaries.
type SummaryCheckIn struct {
	Mood             string    `json:"mood"`
	MoodScore        int       `json:"moodScore"`
	EnergyLevel      int       `json:"energyLevel"`
	EmotionalState   string    `json:"emotionalState"`
	DetectedEmotions []string  `json:"detectedEmotions"`
	SentimentScore   float64   `json:"sentimentScore"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SummaryInsights is the generated text of a weekly summary.
type SummaryInsights struct {
	Insights        string `json:"insights"`
	Recommendations string `json:"recommendations"`
}

// MoodAnalyzer is the contract of the external AI service. callerToken is the
// bearer token of the requesting user, used when no service token is configured.
type MoodAnalyzer interface {
	AnalyzeText(ctx context.Context, callerToken, text string) (*Analysis, error)
	AnalyzeVoice(ctx context.Context, callerToken, fileName string, audio io.Reader) (*Analysis, error)
	GenerateRecommendations(ctx context.Context, callerToken string, req RecommendationRequest) ([]SuggestedRecommendation, error)
	GenerateSummary(ctx context.Context, callerToken string, checkIns []SummaryCheckIn) (*SummaryInsights, error)
}

// AIClient talks to the AI service over HTTP.
type AIClient struct {
	http  *resty.Client
	token string
}

// NewAIClient creates a client for the AI service at baseURL.
func NewAIClient(baseURL, token string, timeout time.Duration) *AIClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &AIClient{http: c, token: token}
}

func (c *AIClient) request(ctx context.Context, callerToken string) *resty.Request {
	token := c.token
	if token == "" {
		token = callerToken
	}
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// AnalyzeText asks the AI service for the mood of text.
func (c *AIClient) AnalyzeText(ctx context.Context, callerToken, text string) (*Analysis, error) {
	var out Analysis
	err := c.post("/analyze-text", c.request(ctx, callerToken).SetBody(map[string]string{"text": text}), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeVoice uploads a recording as the multipart field "audio".
func (c *AIClient) AnalyzeVoice(ctx context.Context, callerToken, fileName string, audio io.Reader) (*Analysis, error) {
	var out Analysis
	err := c.post("/analyze-voice", c.request(ctx, callerToken).SetFileReader("audio", fileName, audio), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateRecommendations asks for recommendations matching a check-in.
func (c *AIClient) GenerateRecommendations(ctx context.Context, callerToken string, req RecommendationRequest) ([]SuggestedRecommendation, error) {
	var out struct {
		Recommendations []SuggestedRecommendation `json:"recommendations"`
	}
	if err := c.post("/generate-recommendations", c.request(ctx, callerToken).SetBody(req), &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// GenerateSummary asks for weekly insights over checkIns.
func (c *AIClient) GenerateSummary(ctx context.Context, callerToken string, checkIns []SummaryCheckIn) (*SummaryInsights, error) {
	var out SummaryInsights
	body := map[string]any{"checkIns": checkIns}
	if err := c.post("/generate-summary", c.request(ctx, callerToken).SetBody(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AIClient) post(path string, req *resty.Request, out any) (err error) {
	defer func() { metrics.RecordAIRequest(strings.TrimPrefix(path, "/"), err) }()

	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAIUnavailable, path, err)
	}
	body := resp.Body()
	if len(body) > maxAIResponseBytes {
		return fmt.Errorf("%w: %s: %d bytes", ErrAIResponseTooLarge, path, len(body))
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("%w: %s: status %d", ErrAIUnavailable, path, resp.StatusCode())
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
