// Package gateway defines the generation backend consumed by the engine.
// The engine treats it as a black box with two outcomes, content or error;
// retries, rate limiting, and timeouts are the backend's concern and
// surface here as ordinary errors.
package gateway

import "context"

// Role selects the prompt template a dispatch uses.
type Role string

const (
	// RoleTopicSelect asks the master to pick a topic.
	RoleTopicSelect Role = "topic_select"
	// RoleQuestionAuthor asks the master to pose a question.
	RoleQuestionAuthor Role = "question_author"
	// RoleAnswer asks a participant to answer the round question.
	RoleAnswer Role = "answer"
	// RoleJudge asks a participant to score all submitted answers.
	RoleJudge Role = "judge"
)

// SubjectAnswer is one answer presented to a judge. SubjectName is empty
// when the session is configured for anonymized judging.
type SubjectAnswer struct {
	SubjectID   string
	SubjectName string
	Answer      string
}

// Context carries the round data a dispatch needs. Fields are populated
// per role: TopicChoices for topic selection, Topic for question
// authoring, Question for answering, Question plus Answers for judging.
type Context struct {
	SessionID   string
	RoundID     string
	RoundNumber int
	ActorID     string
	ActorName   string
	// Model is the target model identifier for the acting participant.
	Model        string
	TopicChoices []string
	Topic        string
	Question     string
	Difficulty   string
	Answers      []SubjectAnswer
	Anonymized   bool
}

// Gateway dispatches one generation request and returns the raw content.
type Gateway interface {
	Dispatch(ctx context.Context, role Role, request Context) (string, error)
}

// Func adapts a function to the Gateway interface.
type Func func(ctx context.Context, role Role, request Context) (string, error)

// Dispatch implements Gateway.
func (f Func) Dispatch(ctx context.Context, role Role, request Context) (string, error) {
	return f(ctx, role, request)
}
