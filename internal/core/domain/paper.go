package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// PaperParams identifies the board, grade and subject a paper belongs to.
type PaperParams struct {
	Board   string `json:"board"`
	Grade   int    `json:"grade"`
	Subject string `json:"subject"`
}

// Question is a single question/answer pair inside a section.
type Question struct {
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Type         string         `json:"type"`
	QuestionSlug string         `json:"question_slug"`
	ReferenceID  string         `json:"reference_id"`
	Hint         *string        `json:"hint"`
	Params       map[string]any `json:"params"`
}

// Section groups questions that carry the same marks.
type Section struct {
	MarksPerQuestion int        `json:"marks_per_question"`
	Type             string     `json:"type"`
	Questions        []Question `json:"questions"`
}

// SamplePaper is a structured exam paper. Every list field must carry at
// least one element and the numeric fields must be strictly positive; Grade
// is bounded to [1,12]. Validate enforces all of it.
type SamplePaper struct {
	Title    string      `json:"title"`
	Type     string      `json:"type"`
	Time     int         `json:"time"`
	Marks    int         `json:"marks"`
	Params   PaperParams `json:"params"`
	Tags     []string    `json:"tags"`
	Chapters []string    `json:"chapters"`
	Sections []Section   `json:"sections"`
}

const samplePaperSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "type", "time", "marks", "params", "tags", "chapters", "sections"],
  "properties": {
    "title": {"type": "string"},
    "type": {"type": "string"},
    "time": {"type": "integer", "exclusiveMinimum": 0},
    "marks": {"type": "integer", "exclusiveMinimum": 0},
    "params": {
      "type": "object",
      "required": ["board", "grade", "subject"],
      "properties": {
        "board": {"type": "string"},
        "grade": {"type": "integer", "minimum": 1, "maximum": 12},
        "subject": {"type": "string"}
      }
    },
    "tags": {"type": "array", "minItems": 1, "items": {"type": "string"}},
    "chapters": {"type": "array", "minItems": 1, "items": {"type": "string"}},
    "sections": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/section"}}
  },
  "definitions": {
    "section": {
      "type": "object",
      "required": ["marks_per_question", "type", "questions"],
      "properties": {
        "marks_per_question": {"type": "integer", "exclusiveMinimum": 0},
        "type": {"type": "string"},
        "questions": {"type": "array", "items": {"$ref": "#/definitions/question"}}
      }
    },
    "question": {
      "type": "object",
      "required": ["question", "answer", "type", "question_slug", "reference_id"],
      "properties": {
        "question": {"type": "string"},
        "answer": {"type": "string"},
        "type": {"type": "string"},
        "question_slug": {"type": "string"},
        "reference_id": {"type": "string"},
        "hint": {"type": ["string", "null"]},
        "params": {"type": "object"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
)

func paperSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("sample_paper.json", bytes.NewReader([]byte(samplePaperSchema))); err != nil {
			panic(fmt.Sprintf("add sample paper schema: %v", err))
		}
		compiledSchema = compiler.MustCompile("sample_paper.json")
	})
	return compiledSchema
}

// Validate checks the paper against the sample paper schema.
// Returns ErrInvalidInput (wrapped with the schema violation) on failure.
func (p *SamplePaper) Validate() error {
	doc, err := p.Document()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := paperSchema().Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Document converts the paper to its storage representation.
func (p *SamplePaper) Document() (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal sample paper: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal sample paper: %w", err)
	}
	return doc, nil
}

// ValidateDocument checks an untyped document against the sample paper schema.
func ValidateDocument(doc map[string]any) error {
	if err := paperSchema().Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
