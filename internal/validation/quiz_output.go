package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	optionsPerQuestion = 4
	minListItems       = 3
	maxListItems       = 5

	cardinalitySchemaURL = "schema://quiz_output.json"
)

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// A fence closes only on a line of its own, so backticks inside JSON
	// strings do not end the block.
	fencedRe = regexp.MustCompile("(?ms)```(?:json|JSON)?[ \\t]*\\n(.*?)\\n[ \\t]*```[ \\t]*$")
)

// QuizParser implements domain.QuizParser. Parsing is two-phase: locate the
// JSON payload inside free-form model text, then decode and validate it.
type QuizParser struct {
	cardinality *jsonschema.Schema
}

// NewQuizParser creates a parser. When policy.EnforceCardinality is set the
// question, option, entity and topic counts are checked against a compiled
// JSON schema after the structural checks pass.
func NewQuizParser(policy config.QuizPolicyConfig) (*QuizParser, error) {
	p := &QuizParser{}
	if !policy.EnforceCardinality {
		return p, nil
	}

	schema, err := compileCardinalitySchema(policy.MinQuestions, policy.MaxQuestions)
	if err != nil {
		return nil, err
	}
	p.cardinality = schema
	return p, nil
}

// Parse extracts and validates a quiz from raw model output.
func (p *QuizParser) Parse(raw string) (*domain.QuizOutput, error) {
	payload, ok := ExtractPayload(raw)
	if !ok {
		return nil, domain.NewMalformedOutputError(errors.New("no JSON object found in model output"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, domain.NewMalformedOutputError(err)
	}

	quiz := &domain.QuizOutput{}
	if _, err := decodeField(fields, "title", &quiz.Title); err != nil {
		return nil, err
	}

	var rawQuestions []json.RawMessage
	for _, f := range []struct {
		name   string
		target interface{}
	}{
		{"summary", &quiz.Summary},
		{"questions", &rawQuestions},
		{"key_entities", &quiz.KeyEntities},
		{"related_topics", &quiz.RelatedTopics},
	} {
		present, err := decodeField(fields, f.name, f.target)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, domain.NewMissingFieldError(f.name)
		}
	}

	if len(rawQuestions) == 0 {
		return nil, domain.NewEmptyQuizError()
	}

	quiz.Questions = make([]domain.Question, 0, len(rawQuestions))
	for i, rawQuestion := range rawQuestions {
		question, err := parseQuestion(i, rawQuestion)
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, *question)
	}

	if p.cardinality != nil {
		var instance any
		if err := json.Unmarshal([]byte(payload), &instance); err != nil {
			return nil, domain.NewMalformedOutputError(err)
		}
		if err := p.cardinality.Validate(instance); err != nil {
			return nil, domain.NewCardinalityError(err)
		}
	}

	return quiz, nil
}

// ExtractPayload locates the JSON object in model output that may carry
// reasoning blocks, code fences or surrounding prose.
func ExtractPayload(raw string) (string, bool) {
	text := strings.TrimSpace(thinkBlockRe.ReplaceAllString(raw, ""))

	if match := fencedRe.FindStringSubmatch(text); match != nil {
		if payload, ok := braceSpan(match[1]); ok && json.Valid([]byte(payload)) {
			return payload, true
		}
	}
	return braceSpan(text)
}

// braceSpan returns text from the first "{" to the last "}".
func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeField decodes fields[name] into target. Absent and null values report
// present=false; a value of the wrong type is malformed output.
func decodeField(fields map[string]json.RawMessage, name string, target interface{}) (bool, error) {
	value, ok := fields[name]
	if !ok || isNull(value) {
		return false, nil
	}
	if err := json.Unmarshal(value, target); err != nil {
		return false, domain.NewMalformedOutputError(fmt.Errorf("field %q: %w", name, err)).
			WithContext("field", name)
	}
	return true, nil
}

func parseQuestion(index int, raw json.RawMessage) (*domain.Question, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("question is null")
		}
		return nil, domain.NewMalformedOutputError(fmt.Errorf("question %d: %w", index, err)).
			WithContext("index", index)
	}

	q := &domain.Question{}
	if _, err := decodeField(fields, "question", &q.Question); err != nil {
		return nil, err
	}
	if _, err := decodeField(fields, "topic_area", &q.TopicArea); err != nil {
		return nil, err
	}

	if _, err := decodeField(fields, "options", &q.Options); err != nil {
		return nil, err
	}
	if len(q.Options) == 0 {
		return nil, domain.NewInvalidQuestionError(index, domain.IssueMissingOptions)
	}

	if _, err := decodeField(fields, "correct_answer", &q.CorrectAnswer); err != nil {
		return nil, err
	}
	if q.CorrectAnswer == "" {
		return nil, domain.NewInvalidQuestionError(index, domain.IssueMissingCorrectAnswer)
	}

	if _, err := decodeField(fields, "explanation", &q.Explanation); err != nil {
		return nil, err
	}
	if q.Explanation == "" {
		return nil, domain.NewInvalidQuestionError(index, domain.IssueMissingExplanation)
	}

	if !q.HasOption(q.CorrectAnswer) {
		return nil, domain.NewInvalidQuestionError(index, domain.IssueAnswerNotInOptions)
	}
	return q, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func compileCardinalitySchema(minQuestions, maxQuestions int) (*jsonschema.Schema, error) {
	if minQuestions <= 0 {
		minQuestions = 1
	}
	if maxQuestions < minQuestions {
		return nil, fmt.Errorf("invalid quiz policy: max_questions %d is below min_questions %d", maxQuestions, minQuestions)
	}

	boundedList := map[string]any{
		"type":     "array",
		"minItems": minListItems,
		"maxItems": maxListItems,
	}
	definition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": minQuestions,
				"maxItems": maxQuestions,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"options": map[string]any{
							"type":     "array",
							"minItems": optionsPerQuestion,
							"maxItems": optionsPerQuestion,
						},
					},
				},
			},
			"key_entities":   boundedList,
			"related_topics": boundedList,
		},
	}

	// The compiler expects a decoded JSON value, not Go ints.
	defBytes, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("marshal quiz schema: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse quiz schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(cardinalitySchemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add quiz schema: %w", err)
	}
	schema, err := c.Compile(cardinalitySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	return schema, nil
}

var _ domain.QuizParser = (*QuizParser)(nil)
