package quizgen

import (
	"fmt"

	"wiki-quiz/internal/domain"

	"github.com/tmc/langchaingo/outputparser"
	"github.com/tmc/langchaingo/prompts"
)

const quizPromptTemplate = `You are an expert educational content creator. Based on the following Wikipedia article, generate an engaging and educational quiz.

Article Title: {{.title}}

Article Content:
{{.content}}

Your task is to create a comprehensive quiz with the following structure:

1. A brief summary of the article (2-3 sentences)
2. Generate 7-10 multiple-choice questions that:
   - Cover different aspects of the article
   - Range from basic recall to deeper understanding
   - Have 4 options each with only ONE correct answer
   - Use a correct_answer copied exactly from its options
   - Include clear explanations for the correct answers
3. Identify 3-5 key entities or concepts from the article
4. Suggest 3-5 related topics for further reading

{{.format_instructions}}

Ensure the quiz is educational, engaging, and accurately reflects the article content.`

// PromptBuilder renders the quiz instruction for an article. The format
// instructions are derived once from domain.QuizOutput, so Build is a pure
// function of title and content.
type PromptBuilder struct {
	template prompts.PromptTemplate
}

// NewPromptBuilder compiles the instruction template.
func NewPromptBuilder() (*PromptBuilder, error) {
	parser, err := outputparser.NewDefined(domain.QuizOutput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe quiz output schema: %w", err)
	}

	return &PromptBuilder{
		template: prompts.PromptTemplate{
			Template:       quizPromptTemplate,
			InputVariables: []string{"title", "content"},
			TemplateFormat: prompts.TemplateFormatGoTemplate,
			PartialVariables: map[string]any{
				"format_instructions": parser.GetFormatInstructions(),
			},
		},
	}, nil
}

// Build renders the prompt. Content is passed through untouched; any
// truncation happens in the fetcher.
func (b *PromptBuilder) Build(title, content string) (string, error) {
	prompt, err := b.template.Format(map[string]any{
		"title":   title,
		"content": content,
	})
	if err != nil {
		return "", domain.NewInternalError("Failed to build quiz prompt", err)
	}
	return prompt, nil
}

var _ domain.PromptBuilder = (*PromptBuilder)(nil)
