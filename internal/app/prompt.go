package app

import (
	"fmt"
	"strings"

	"edulearn-quiz-service/internal/catalog"
	"edulearn-quiz-service/internal/domain"
)

const generatorSystemPrompt = "You are an expert educator creating high-quality quiz questions. Always return valid JSON only."

// ValidateQuestionCount enforces the [MinQuestions, MaxQuestions] range.
func ValidateQuestionCount(n int) error {
	if n < domain.MinQuestions || n > domain.MaxQuestions {
		return domain.ErrInvalidQuestionCount
	}
	return nil
}

// BuildPrompt renders the generation instruction for one quiz request.
// Output is deterministic for a given input.
func BuildPrompt(topics *catalog.Catalog, topicID, difficulty string, count int) (string, error) {
	topic, err := topics.Resolve(topicID, difficulty)
	if err != nil {
		return "", err
	}
	if err := ValidateQuestionCount(count); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create %d multiple choice questions about %s at %s difficulty level.\n\n", count, topic.Name, difficulty)
	fmt.Fprintf(&b, "Topic Focus: %s\n\n", topic.Description)
	b.WriteString("Difficulty Guidelines:\n")
	b.WriteString("- beginner: Basic concepts, fundamental syntax, simple applications\n")
	b.WriteString("- intermediate: Practical problem-solving, integration of concepts, real-world scenarios\n")
	b.WriteString("- advanced: Complex optimization, edge cases, architectural decisions, performance considerations\n\n")
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "1. Each question must have exactly %d answer choices\n", domain.OptionsPerQuestion)
	b.WriteString("2. Randomize the position of correct answers\n")
	b.WriteString("3. Include practical, scenario-based questions when possible\n")
	b.WriteString("4. Provide clear, educational explanations\n")
	b.WriteString("5. Focus on understanding rather than memorization\n")

	if topic.ComplexityFocus {
		fmt.Fprintf(&b, "\nSpecial focus for %s:\n", topic.ID)
		b.WriteString("- Include time/space complexity analysis\n")
		b.WriteString("- Present real coding scenarios\n")
		b.WriteString("- Test understanding of when to use specific approaches\n")
		b.WriteString("- Include trade-offs between different solutions\n")
	}

	b.WriteString("\nReturn response as valid JSON array only:\n")
	b.WriteString("[\n  {\n")
	b.WriteString("    \"question\": \"Question text here?\",\n")
	b.WriteString("    \"options\": [\"Choice A\", \"Choice B\", \"Choice C\", \"Choice D\"],\n")
	b.WriteString("    \"correctAnswer\": 2,\n")
	b.WriteString("    \"explanation\": \"Clear explanation of why this answer is correct and others are wrong.\",\n")
	fmt.Fprintf(&b, "    \"difficulty\": %q,\n", difficulty)
	fmt.Fprintf(&b, "    \"category\": %q\n", topic.ID)
	b.WriteString("  }\n]\n\n")
	b.WriteString("No markdown formatting, no extra text, just the JSON array.")
	return b.String(), nil
}
