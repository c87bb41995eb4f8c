package engine

import (
	"testing"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

func parserEngine() *Engine {
	return &Engine{
		topicMenu: []string{"History", "Science"},
		round:     &domain.Round{MasterID: "alpha"},
		states: map[string]*domain.ParticipantState{
			"alpha": {ParticipantID: "alpha"},
			"beta":  {ParticipantID: "beta"},
			"gamma": {ParticipantID: "gamma"},
		},
	}
}

func TestParseTopicMatchesMenu(t *testing.T) {
	eng := parserEngine()

	cases := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "exact", content: "Science", want: "Science"},
		{name: "case insensitive", content: "science", want: "Science"},
		{name: "embedded in prose", content: "I pick Science for this round.", want: "Science"},
		{name: "fenced", content: "```\nHistory\n```", want: "History"},
		{name: "off menu", content: "Cooking", wantErr: true},
		{name: "empty", content: "   ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			output, err := eng.parseTopic(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseTopic(%q) succeeded, want error", tc.content)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTopic(%q): %v", tc.content, err)
			}
			if got := output.(domain.TopicOutput).Topic; got != tc.want {
				t.Fatalf("topic = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseQuestionAcceptsJSONAndPlainText(t *testing.T) {
	output, err := parseQuestion(`{"question": "Why is the sky blue?", "difficulty": "Easy"}`)
	if err != nil {
		t.Fatalf("parseQuestion: %v", err)
	}
	question := output.(domain.QuestionOutput)
	if question.Question != "Why is the sky blue?" || question.Difficulty != "easy" {
		t.Fatalf("parsed %+v", question)
	}

	output, err = parseQuestion("Why is the sky blue?")
	if err != nil {
		t.Fatalf("parseQuestion plain: %v", err)
	}
	question = output.(domain.QuestionOutput)
	if question.Question != "Why is the sky blue?" || question.Difficulty != "" {
		t.Fatalf("parsed plain %+v", question)
	}
}

func TestParseAnswerBuildsPreview(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	output, err := parseAnswer(long)
	if err != nil {
		t.Fatalf("parseAnswer: %v", err)
	}
	answer := output.(domain.AnswerOutput)
	if answer.Answer != long {
		t.Fatal("full answer must be preserved")
	}
	if len([]rune(answer.Preview)) != answerPreviewLimit {
		t.Fatalf("preview length = %d, want %d", len([]rune(answer.Preview)), answerPreviewLimit)
	}

	if _, err := parseAnswer("  "); err == nil {
		t.Fatal("blank answer should fail")
	}
}

func TestParseJudgments(t *testing.T) {
	eng := parserEngine()

	output, err := eng.parseJudgments("alpha", "Here are my scores:\n```json\n"+
		`[{"subject_id": "beta", "score": 12, "rationale": "great"},`+
		`{"subject_id": "gamma", "score": -3}]`+"\n```")
	if err != nil {
		t.Fatalf("parseJudgments: %v", err)
	}
	judgments := output.(domain.JudgeOutput).Judgments
	if len(judgments) != 2 {
		t.Fatalf("judgments = %d, want 2", len(judgments))
	}
	if judgments[0].Score != 10 || judgments[1].Score != 0 {
		t.Fatalf("scores not clamped: %v, %v", judgments[0].Score, judgments[1].Score)
	}
	if !judgments[0].IsMasterJudgment {
		t.Fatal("judgments from the master must carry the master flag")
	}

	output, err = eng.parseJudgments("beta", `[{"subject_id": "gamma", "score": 7}]`)
	if err != nil {
		t.Fatalf("peer parseJudgments: %v", err)
	}
	if output.(domain.JudgeOutput).Judgments[0].IsMasterJudgment {
		t.Fatal("peer judgment wrongly flagged as master")
	}
}

func TestParseJudgmentsRejectsBadSubjects(t *testing.T) {
	eng := parserEngine()

	if _, err := eng.parseJudgments("beta", `[{"subject_id": "nobody", "score": 5}]`); err == nil {
		t.Fatal("unknown subject should fail")
	}
	if _, err := eng.parseJudgments("beta", `[{"subject_id": "beta", "score": 5}]`); err == nil {
		t.Fatal("self-judgment should fail")
	}
	if _, err := eng.parseJudgments("beta", "no json here"); err == nil {
		t.Fatal("missing array should fail")
	}
}
