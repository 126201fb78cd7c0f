package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Ensure GeminiExtractor implements ContentExtractor
var _ driven.ContentExtractor = (*GeminiExtractor)(nil)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// extractionPrompt instructs the model to emit a sample paper as JSON in the
// exact shape the domain schema validates.
const extractionPrompt = `Analyze the given content and extract the following information to create a structured JSON format for a sample paper. Use the exact format provided below:

{
    "title": "string",
    "type": "string",
    "time": int,
    "marks": int,
    "params": {
        "board": "string",
        "grade": int,
        "subject": "string"
    },
    "tags": ["string"],
    "chapters": ["string"],
    "sections": [
        {
            "marks_per_question": int,
            "type": "string",
            "questions": [
                {
                    "question": "string",
                    "answer": "string",
                    "type": "string",
                    "question_slug": "string",
                    "reference_id": "string",
                    "hint": "string",
                    "params": {}
                }
            ]
        }
    ]
}

Instructions:
1. Title: Extract the main title of the sample paper.
2. Type: Determine the type of the sample paper (e.g., "previous_year", "practice", etc.).
3. Time: Extract the total time allowed for the paper in minutes.
4. Marks: Extract the total marks for the paper.
5. Params: Identify the board (eg., "CBSE", "ICSE", "IB"), grade, and subject of the paper.
6. Tags: List relevant tags for the paper content.
7. Chapters: List the chapters covered in the paper.
8. Sections: For each section of the paper:
   - Determine the marks per question
   - Identify the type of the section
   - For each question in the section:
     * Extract the question text
     * Provide the answer if available
     * Determine the question type (e.g., "short", "long", "mcq")
     * Generate a suitable question_slug
     * Assign a reference_id
     * Provide a hint if possible
     * Include any additional parameters in the params object

Ensure that all JSON keys and values are properly formatted and escaped. If any information is not available, use null or an empty string/array as appropriate.`

// GeminiExtractor implements ContentExtractor using the Gemini generateContent API
type GeminiExtractor struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiExtractor creates a new Gemini-backed extractor
func NewGeminiExtractor(apiKey, model, baseURL string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	return &GeminiExtractor{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// generateRequest is the request body for the generateContent API
type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// generateResponse is the response from the generateContent API
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// ExtractText extracts a structured sample paper from raw text
func (e *GeminiExtractor) ExtractText(ctx context.Context, text string) (*domain.SamplePaper, error) {
	parts := []generatePart{
		{Text: extractionPrompt},
		{Text: text},
	}
	return e.extract(ctx, parts)
}

// ExtractFile extracts a structured sample paper from a PDF file on disk
func (e *GeminiExtractor) ExtractFile(ctx context.Context, path string) (*domain.SamplePaper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}

	parts := []generatePart{
		{Text: extractionPrompt},
		{InlineData: &inlineData{
			MimeType: "application/pdf",
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}
	return e.extract(ctx, parts)
}

func (e *GeminiExtractor) extract(ctx context.Context, parts []generatePart) (*domain.SamplePaper, error) {
	text, err := e.generate(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	paper, err := parsePaperResponse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	return paper, nil
}

// generate calls the generateContent endpoint and returns the first
// candidate's text.
func (e *GeminiExtractor) generate(ctx context.Context, parts []generatePart) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if genResp.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s (status: %s)",
			genResp.Error.Message, genResp.Error.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API returned status %d", resp.StatusCode)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// parsePaperResponse decodes the model output into a validated sample paper.
// Models wrap JSON in markdown fences often enough that stripping them first
// is mandatory.
func parsePaperResponse(text string) (*domain.SamplePaper, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var paper domain.SamplePaper
	if err := json.Unmarshal([]byte(cleaned), &paper); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	if err := paper.Validate(); err != nil {
		return nil, fmt.Errorf("model output rejected: %w", err)
	}
	return &paper, nil
}
