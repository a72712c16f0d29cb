package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion(i int) map[string]any {
	return map[string]any{
		"question":       fmt.Sprintf("Question %d?", i),
		"options":        []string{"A", "B", "C", "D"},
		"correct_answer": "B",
		"explanation":    "B is right.",
		"topic_area":     "History",
	}
}

func validQuiz(questions int) map[string]any {
	qs := make([]any, questions)
	for i := range qs {
		qs[i] = validQuestion(i)
	}
	return map[string]any{
		"title":          "Alan Turing",
		"summary":        "Alan Turing was a mathematician. He founded computer science.",
		"questions":      qs,
		"key_entities":   []string{"Alan Turing", "Enigma", "Bletchley Park"},
		"related_topics": []string{"Cryptography", "Computability", "Artificial intelligence"},
	}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func lenientParser(t *testing.T) *QuizParser {
	t.Helper()
	p, err := NewQuizParser(config.QuizPolicyConfig{})
	require.NoError(t, err)
	return p
}

func requireReason(t *testing.T, err error, reason domain.Reason) *domain.DomainError {
	t.Helper()
	require.Error(t, err)
	domainErr, ok := domain.AsDomainError(err)
	require.True(t, ok, "expected a domain error, got %T: %v", err, err)
	assert.Equal(t, domain.CodeValidation, domainErr.Code)
	assert.Equal(t, reason, domainErr.Reason, "error: %v", err)
	return domainErr
}

func TestQuizParser_Parse_Valid(t *testing.T) {
	quiz, err := lenientParser(t).Parse(toJSON(t, validQuiz(8)))
	require.NoError(t, err)

	assert.Equal(t, "Alan Turing", quiz.Title)
	assert.Len(t, quiz.Questions, 8)
	assert.Equal(t, []string{"A", "B", "C", "D"}, quiz.Questions[0].Options)
	assert.Equal(t, "History", quiz.Questions[0].TopicArea)
	for _, q := range quiz.Questions {
		assert.Contains(t, q.Options, q.CorrectAnswer)
	}
}

func TestQuizParser_Parse_TolerantExtraction(t *testing.T) {
	payload := toJSON(t, validQuiz(7))

	backticks := validQuiz(7)
	backticks["questions"].([]any)[0] = map[string]any{
		"question":       "Which marker opens a fenced code block in Markdown?",
		"options":        []string{"```", "~~", "##", "**"},
		"correct_answer": "```",
		"explanation":    "Three backticks open a fenced block.",
		"topic_area":     "Syntax",
	}
	backtickPayload := toJSON(t, backticks)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "code fence", raw: "```json\n" + payload + "\n```"},
		{name: "bare fence", raw: "```\n" + payload + "\n```"},
		{name: "prose around payload", raw: "Here is your quiz:\n" + payload + "\nGood luck!"},
		{name: "reasoning block", raw: "<think>I should use {braces} carefully.</think>\n" + payload},
		{name: "fence after prose with braces", raw: "Format {like this}:\n```json\n" + payload + "\n```\nThanks"},
		{name: "backticks inside fenced strings", raw: "```json\n" + backtickPayload + "\n```"},
		{name: "inline fence after prose", raw: "Sure! ```json\n" + backtickPayload + "\n```"},
		{name: "fence on one line", raw: "```json " + payload + "```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz, err := lenientParser(t).Parse(tt.raw)
			require.NoError(t, err)
			assert.Len(t, quiz.Questions, 7)
		})
	}
}

func TestQuizParser_Parse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "plain prose", raw: "I cannot help with that request."},
		{name: "truncated object", raw: `{"title": "X", "summary": "S", "questions": [`},
		{name: "unbalanced", raw: `} nothing here {`},
		{name: "broken syntax", raw: `{"title": "X",, }`},
		{name: "questions not a list", raw: `{"title":"X","summary":"S","questions":"many","key_entities":["a"],"related_topics":["b"]}`},
		{name: "question not an object", raw: `{"title":"X","summary":"S","questions":["q"],"key_entities":["a"],"related_topics":["b"]}`},
		{name: "options not a list", raw: `{"title":"X","summary":"S","questions":[{"question":"q","options":"A","correct_answer":"A","explanation":"e"}],"key_entities":["a"],"related_topics":["b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lenientParser(t).Parse(tt.raw)
			requireReason(t, err, domain.ReasonMalformedOutput)
		})
	}
}

func TestQuizParser_Parse_MissingField(t *testing.T) {
	for _, field := range []string{"summary", "questions", "key_entities", "related_topics"} {
		t.Run(field, func(t *testing.T) {
			quiz := validQuiz(7)
			delete(quiz, field)

			_, err := lenientParser(t).Parse(toJSON(t, quiz))
			domainErr := requireReason(t, err, domain.ReasonMissingField)
			assert.Equal(t, field, domainErr.Context["field"])
		})
	}

	t.Run("null counts as missing", func(t *testing.T) {
		quiz := validQuiz(7)
		quiz["summary"] = nil

		_, err := lenientParser(t).Parse(toJSON(t, quiz))
		requireReason(t, err, domain.ReasonMissingField)
	})
}

func TestQuizParser_Parse_MissingTitleIsAllowed(t *testing.T) {
	quiz := validQuiz(7)
	delete(quiz, "title")

	parsed, err := lenientParser(t).Parse(toJSON(t, quiz))
	require.NoError(t, err)
	assert.Empty(t, parsed.Title)
}

func TestQuizParser_Parse_EmptyQuiz(t *testing.T) {
	raw := `{"title":"X","summary":"S","questions":[],"key_entities":["a"],"related_topics":["b"]}`

	_, err := lenientParser(t).Parse(raw)
	requireReason(t, err, domain.ReasonEmptyQuiz)
}

func TestQuizParser_Parse_InvalidQuestion(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q map[string]any)
		issue  domain.QuestionIssue
	}{
		{
			name: "answer not in options",
			mutate: func(q map[string]any) {
				q["correct_answer"] = "B"
				q["options"] = []string{"A", "C", "D"}
			},
			issue: domain.IssueAnswerNotInOptions,
		},
		{name: "missing options", mutate: func(q map[string]any) { delete(q, "options") }, issue: domain.IssueMissingOptions},
		{name: "empty options", mutate: func(q map[string]any) { q["options"] = []string{} }, issue: domain.IssueMissingOptions},
		{name: "missing answer", mutate: func(q map[string]any) { delete(q, "correct_answer") }, issue: domain.IssueMissingCorrectAnswer},
		{name: "missing explanation", mutate: func(q map[string]any) { q["explanation"] = nil }, issue: domain.IssueMissingExplanation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := validQuiz(1)
			tt.mutate(quiz["questions"].([]any)[0].(map[string]any))

			_, err := lenientParser(t).Parse(toJSON(t, quiz))
			domainErr := requireReason(t, err, domain.ReasonInvalidQuestion)
			assert.Equal(t, 0, domainErr.Context["index"])
			assert.Equal(t, string(tt.issue), domainErr.Context["issue"])
		})
	}

	t.Run("reports index of the first bad question", func(t *testing.T) {
		quiz := validQuiz(5)
		quiz["questions"].([]any)[3].(map[string]any)["correct_answer"] = "Z"

		_, err := lenientParser(t).Parse(toJSON(t, quiz))
		domainErr := requireReason(t, err, domain.ReasonInvalidQuestion)
		assert.Equal(t, 3, domainErr.Context["index"])
	})
}

func TestQuizParser_Parse_LenientCardinality(t *testing.T) {
	quiz := validQuiz(2)
	quiz["key_entities"] = []string{"only one"}

	parsed, err := lenientParser(t).Parse(toJSON(t, quiz))
	require.NoError(t, err)
	assert.Len(t, parsed.Questions, 2)
}

func TestQuizParser_Parse_EnforcedCardinality(t *testing.T) {
	p, err := NewQuizParser(config.QuizPolicyConfig{EnforceCardinality: true, MinQuestions: 7, MaxQuestions: 10})
	require.NoError(t, err)

	t.Run("within bounds", func(t *testing.T) {
		_, err := p.Parse(toJSON(t, validQuiz(10)))
		require.NoError(t, err)
	})

	tests := []struct {
		name   string
		mutate func(q map[string]any)
	}{
		{name: "too few questions", mutate: func(q map[string]any) { q["questions"] = q["questions"].([]any)[:6] }},
		{name: "too many questions", mutate: func(q map[string]any) {
			q["questions"] = append(q["questions"].([]any), validQuestion(7), validQuestion(8), validQuestion(9))
		}},
		{name: "three options", mutate: func(q map[string]any) {
			q["questions"].([]any)[2].(map[string]any)["options"] = []string{"A", "B", "C"}
		}},
		{name: "too many entities", mutate: func(q map[string]any) {
			q["key_entities"] = strings.Split("a,b,c,d,e,f", ",")
		}},
		{name: "too few topics", mutate: func(q map[string]any) { q["related_topics"] = []string{"a", "b"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := validQuiz(8)
			tt.mutate(quiz)

			_, err := p.Parse(toJSON(t, quiz))
			requireReason(t, err, domain.ReasonCardinality)
		})
	}
}

func TestNewQuizParser_InvalidPolicy(t *testing.T) {
	_, err := NewQuizParser(config.QuizPolicyConfig{EnforceCardinality: true, MinQuestions: 7, MaxQuestions: 3})
	assert.Error(t, err)
}

func TestExtractPayload(t *testing.T) {
	payload, ok := ExtractPayload("noise {\"a\": {\"b\": 1}} trailing")
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, payload)

	_, ok = ExtractPayload("no structured data")
	assert.False(t, ok)
}
