package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// answerPreviewLimit caps the preview text carried in stream events.
const answerPreviewLimit = 140

// parseOutput interprets raw gateway content per step type. Any parse
// failure is reported as a step failure, never as a partial result.
func (e *Engine) parseOutput(plan stepPlan, content string) (domain.StepOutput, error) {
	switch plan.stepType {
	case domain.StepTypeMasterTopic:
		return e.parseTopic(content)
	case domain.StepTypeMasterQuestion:
		return parseQuestion(content)
	case domain.StepTypeModelAnswer:
		return parseAnswer(content)
	case domain.StepTypeModelJudge:
		return e.parseJudgments(plan.actorID, content)
	default:
		return nil, fmt.Errorf("step type %s has no gateway output", plan.stepType)
	}
}

// parseTopic matches the response against the topic menu, first exactly,
// then by containment. Responses that name no menu entry fail the step.
func (e *Engine) parseTopic(content string) (domain.StepOutput, error) {
	response := strings.TrimSpace(stripFences(content))
	if response == "" {
		return nil, fmt.Errorf("empty topic response")
	}
	for _, topic := range e.topicMenu {
		if strings.EqualFold(response, topic) {
			return domain.TopicOutput{Topic: topic}, nil
		}
	}
	lowered := strings.ToLower(response)
	for _, topic := range e.topicMenu {
		if strings.Contains(lowered, strings.ToLower(topic)) {
			return domain.TopicOutput{Topic: topic}, nil
		}
	}
	return nil, fmt.Errorf("topic %q is not on the menu", truncate(response, 80))
}

// parseQuestion accepts either a JSON object with question and difficulty
// fields or a plain-text question.
func parseQuestion(content string) (domain.StepOutput, error) {
	response := strings.TrimSpace(stripFences(content))
	if response == "" {
		return nil, fmt.Errorf("empty question response")
	}

	if strings.HasPrefix(response, "{") {
		var parsed struct {
			Question   string `json:"question"`
			Difficulty string `json:"difficulty"`
		}
		if err := json.Unmarshal([]byte(response), &parsed); err == nil && strings.TrimSpace(parsed.Question) != "" {
			return domain.QuestionOutput{
				Question:   strings.TrimSpace(parsed.Question),
				Difficulty: strings.ToLower(strings.TrimSpace(parsed.Difficulty)),
			}, nil
		}
	}
	return domain.QuestionOutput{Question: response}, nil
}

func parseAnswer(content string) (domain.StepOutput, error) {
	response := strings.TrimSpace(content)
	if response == "" {
		return nil, fmt.Errorf("empty answer response")
	}
	return domain.AnswerOutput{
		Answer:  response,
		Preview: truncate(response, answerPreviewLimit),
	}, nil
}

// parseJudgments expects a JSON array of {subject_id, score, rationale}.
// Scores are clamped to [0, 10]; unknown subjects fail the step so a
// hallucinated ID never pollutes the score map.
func (e *Engine) parseJudgments(judgeID string, content string) (domain.StepOutput, error) {
	response := strings.TrimSpace(stripFences(content))
	if response == "" {
		return nil, fmt.Errorf("empty judgment response")
	}
	// Tolerate prose around the array.
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("judgment response contains no JSON array")
	}

	var parsed []struct {
		SubjectID string  `json:"subject_id"`
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal judgments: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("judgment response is empty")
	}

	isMaster := judgeID == e.round.MasterID
	judgments := make([]domain.Judgment, 0, len(parsed))
	for _, entry := range parsed {
		subjectID := strings.TrimSpace(entry.SubjectID)
		if _, ok := e.states[subjectID]; !ok {
			return nil, fmt.Errorf("judgment names unknown subject %q", subjectID)
		}
		if subjectID == judgeID {
			return nil, fmt.Errorf("judge %s scored its own answer", judgeID)
		}
		judgments = append(judgments, domain.Judgment{
			JudgeID:          judgeID,
			SubjectID:        subjectID,
			Score:            clampScore(entry.Score),
			Rationale:        strings.TrimSpace(entry.Rationale),
			IsMasterJudgment: isMaster,
		})
	}
	return domain.JudgeOutput{Judgments: judgments}, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		// Drop a language tag such as ```json.
		firstLine := trimmed[:newline]
		if !strings.ContainsAny(firstLine, "{[") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
