package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/platform/id"
)

// StepType identifies the unit of game work a step performs.
type StepType string

const (
	// StepTypeMasterTopic has the master select the round topic.
	StepTypeMasterTopic StepType = "master_topic"
	// StepTypeMasterQuestion has the master pose the round question.
	StepTypeMasterQuestion StepType = "master_question"
	// StepTypeModelAnswer has a non-master participant answer the question.
	StepTypeModelAnswer StepType = "model_answer"
	// StepTypeModelJudge has a participant judge all submitted answers.
	StepTypeModelJudge StepType = "model_judge"
	// StepTypeScoring aggregates judgments into the round score map. It has
	// no actor.
	StepTypeScoring StepType = "scoring"
)

// StepStatus describes the execution state of a step.
type StepStatus string

const (
	// StepStatusPending indicates the step is queued but not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is executing. At most one step
	// per round may be running at any time.
	StepStatusRunning StepStatus = "running"
	// StepStatusSuccess indicates the step finished and its output is durable.
	StepStatusSuccess StepStatus = "success"
	// StepStatusFailed indicates the step failed and can be retried or undone.
	StepStatusFailed StepStatus = "failed"
)

// Step is the unit of execution and of undo within a round.
type Step struct {
	ID      string
	RoundID string
	// Seq orders steps within a round. Assigned by storage on insert.
	Seq  int
	Type StepType
	// ActorID is empty for the scoring step.
	ActorID string
	Status  StepStatus
	Output  StepOutput
	// Error holds the failure message for failed steps.
	Error string
	// LatencyMS records the gateway round-trip for dispatched steps.
	LatencyMS   int64
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NewStep builds a running step for a round.
func NewStep(roundID string, stepType StepType, actorID string, now func() time.Time, idGenerator func() (string, error)) (Step, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	stepID, err := idGenerator()
	if err != nil {
		return Step{}, fmt.Errorf("generate step id: %w", err)
	}
	return Step{
		ID:        stepID,
		RoundID:   roundID,
		Type:      stepType,
		ActorID:   actorID,
		Status:    StepStatusRunning,
		CreatedAt: now().UTC(),
	}, nil
}

// Judgment is one judge's score for one subject's answer.
type Judgment struct {
	JudgeID          string  `json:"judge_id"`
	SubjectID        string  `json:"subject_id"`
	Score            float64 `json:"score"`
	Rationale        string  `json:"rationale,omitempty"`
	IsMasterJudgment bool    `json:"is_master_judgment"`
}

// StepOutput is the tagged per-stepType output payload. Each variant carries
// exactly the fields its step type produces.
type StepOutput interface {
	stepOutput()
}

// TopicOutput is the master_topic payload.
type TopicOutput struct {
	Topic string `json:"topic"`
}

// QuestionOutput is the master_question payload.
type QuestionOutput struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty,omitempty"`
}

// AnswerOutput is the model_answer payload.
type AnswerOutput struct {
	Answer  string `json:"answer"`
	Preview string `json:"preview"`
}

// JudgeOutput is the model_judge payload.
type JudgeOutput struct {
	Judgments []Judgment `json:"judgments"`
}

// ScoreOutput is the scoring payload.
type ScoreOutput struct {
	Scores map[string]float64 `json:"scores"`
}

func (TopicOutput) stepOutput()    {}
func (QuestionOutput) stepOutput() {}
func (AnswerOutput) stepOutput()   {}
func (JudgeOutput) stepOutput()    {}
func (ScoreOutput) stepOutput()    {}

// EncodeStepOutput serializes a step output payload for persistence.
func EncodeStepOutput(output StepOutput) ([]byte, error) {
	if output == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("marshal step output: %w", err)
	}
	return encoded, nil
}

// DecodeStepOutput deserializes a step output payload keyed by step type.
func DecodeStepOutput(stepType StepType, payload []byte) (StepOutput, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var (
		output StepOutput
		err    error
	)
	switch stepType {
	case StepTypeMasterTopic:
		var value TopicOutput
		err = json.Unmarshal(payload, &value)
		output = value
	case StepTypeMasterQuestion:
		var value QuestionOutput
		err = json.Unmarshal(payload, &value)
		output = value
	case StepTypeModelAnswer:
		var value AnswerOutput
		err = json.Unmarshal(payload, &value)
		output = value
	case StepTypeModelJudge:
		var value JudgeOutput
		err = json.Unmarshal(payload, &value)
		output = value
	case StepTypeScoring:
		var value ScoreOutput
		err = json.Unmarshal(payload, &value)
		output = value
	default:
		return nil, fmt.Errorf("unknown step type %q", stepType)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s output: %w", stepType, err)
	}
	return output, nil
}

// RollbackStatus returns the round status that precedes the given step
// type's phase. It is the single sanctioned source of rollback edges.
func RollbackStatus(stepType StepType) (RoundStatus, error) {
	switch stepType {
	case StepTypeMasterTopic:
		return RoundStatusCreated, nil
	case StepTypeMasterQuestion:
		return RoundStatusTopicSelection, nil
	case StepTypeModelAnswer:
		return RoundStatusAnswering, nil
	case StepTypeModelJudge:
		return RoundStatusJudging, nil
	case StepTypeScoring:
		return RoundStatusScoring, nil
	default:
		return "", fmt.Errorf("unknown step type %q", stepType)
	}
}
