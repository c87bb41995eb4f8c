package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/events"
	"github.com/modelarena/arena/internal/services/arena/gateway"
	"github.com/modelarena/arena/internal/services/arena/scoring"
)

// executeStep runs one step end-to-end: persist running, emit started,
// dispatch, persist the outcome, then emit completed or failed. The caller
// holds the lock with stepInFlight set; the lock is released only for the
// gateway call so snapshot readers never wait on a slow dispatch.
func (e *Engine) executeStep(ctx context.Context, plan stepPlan) (domain.Step, error) {
	ctx, span := e.tracer.Start(ctx, "engine.step",
		trace.WithAttributes(
			attribute.String("arena.step_type", string(plan.stepType)),
			attribute.String("arena.actor_id", plan.actorID),
		))
	defer span.End()

	step, err := domain.NewStep(e.round.ID, plan.stepType, plan.actorID, e.clock, e.idGenerator)
	if err != nil {
		return domain.Step{}, err
	}
	step, err = e.stores.Steps.PutStep(ctx, step)
	if err != nil {
		return domain.Step{}, fmt.Errorf("persist running step: %w", err)
	}
	if state, ok := e.states[plan.actorID]; ok {
		if plan.stepType == domain.StepTypeModelJudge {
			state.Activity = domain.ActivityJudging
		} else {
			state.Activity = domain.ActivityThinking
		}
	}
	e.publish(events.KindStepStarted, events.StepStartedPayload{
		RoundID:   e.round.ID,
		StepID:    step.ID,
		StepType:  step.Type,
		ActorID:   step.ActorID,
		ActorName: e.participantName(step.ActorID),
	})

	if plan.stepType == domain.StepTypeScoring {
		return e.finishScoringStep(ctx, step)
	}

	role, request, err := e.buildDispatch(ctx, plan)
	if err != nil {
		return e.finishFailedStep(ctx, step, err)
	}

	// The gateway call is the only long-blocking work; drop the lock so
	// observers can read snapshots meanwhile. stepInFlight keeps every
	// other writer out.
	e.mu.Unlock()
	started := e.clock()
	content, dispatchErr := e.gateway.Dispatch(ctx, role, request)
	latency := e.clock().Sub(started)
	e.mu.Lock()

	step.LatencyMS = latency.Milliseconds()
	if dispatchErr != nil {
		span.RecordError(dispatchErr)
		return e.finishFailedStep(ctx, step, dispatchErr)
	}

	output, err := e.parseOutput(plan, content)
	if err != nil {
		// Malformed output is handled exactly like a gateway failure:
		// failed step, round phase unchanged, retryable.
		span.RecordError(err)
		return e.finishFailedStep(ctx, step, err)
	}

	return e.finishSuccessfulStep(ctx, step, output)
}

// buildDispatch assembles the role and context for a gateway call.
// Caller holds the lock.
func (e *Engine) buildDispatch(ctx context.Context, plan stepPlan) (gateway.Role, gateway.Context, error) {
	settings, err := e.stores.Settings.GetSettings(ctx)
	if err != nil {
		return "", gateway.Context{}, fmt.Errorf("load settings: %w", err)
	}

	request := gateway.Context{
		SessionID:   e.session.ID,
		RoundID:     e.round.ID,
		RoundNumber: e.round.RoundNumber,
		ActorID:     plan.actorID,
		ActorName:   e.participantName(plan.actorID),
		Model:       e.participantModel(plan.actorID),
		Topic:       e.round.Topic,
		Question:    e.round.Question,
		Difficulty:  e.round.Difficulty,
		Anonymized:  settings.JudgeAnonymized,
	}

	switch plan.stepType {
	case domain.StepTypeMasterTopic:
		request.TopicChoices = append([]string(nil), e.topicMenu...)
		return gateway.RoleTopicSelect, request, nil
	case domain.StepTypeMasterQuestion:
		return gateway.RoleQuestionAuthor, request, nil
	case domain.StepTypeModelAnswer:
		return gateway.RoleAnswer, request, nil
	case domain.StepTypeModelJudge:
		answers, err := e.collectAnswers(ctx)
		if err != nil {
			return "", gateway.Context{}, err
		}
		request.Answers = answers
		return gateway.RoleJudge, request, nil
	default:
		return "", gateway.Context{}, fmt.Errorf("step type %s does not dispatch", plan.stepType)
	}
}

// collectAnswers gathers the round's successful answers for judging.
func (e *Engine) collectAnswers(ctx context.Context) ([]gateway.SubjectAnswer, error) {
	steps, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	var answers []gateway.SubjectAnswer
	for _, step := range steps {
		if step.Type != domain.StepTypeModelAnswer || step.Status != domain.StepStatusSuccess {
			continue
		}
		output, ok := step.Output.(domain.AnswerOutput)
		if !ok {
			continue
		}
		answers = append(answers, gateway.SubjectAnswer{
			SubjectID:   step.ActorID,
			SubjectName: e.participantName(step.ActorID),
			Answer:      output.Answer,
		})
	}
	return answers, nil
}

// finishFailedStep persists the failure and emits step_failed. The round
// phase is left unchanged so the same actor/stepType can be retried.
// Exhausting the retry ceiling fails the round.
func (e *Engine) finishFailedStep(ctx context.Context, step domain.Step, cause error) (domain.Step, error) {
	completedAt := e.now()
	step.Status = domain.StepStatusFailed
	step.Error = cause.Error()
	step.CompletedAt = &completedAt
	if state, ok := e.states[step.ActorID]; ok {
		state.Activity = domain.ActivityIdle
	}
	if _, err := e.stores.Steps.PutStep(ctx, step); err != nil {
		return domain.Step{}, fmt.Errorf("persist failed step: %w", err)
	}

	e.publish(events.KindStepFailed, events.StepFailedPayload{
		RoundID:  step.RoundID,
		StepID:   step.ID,
		StepType: step.Type,
		ActorID:  step.ActorID,
		Error:    step.Error,
	})
	e.logf("arena: step %s (%s/%s) failed: %v", step.ID, step.Type, step.ActorID, cause)

	key := failureKey(step.RoundID, step.Type, step.ActorID)
	e.failures[key]++
	settings, err := e.stores.Settings.GetSettings(ctx)
	if err != nil {
		return domain.Step{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.MaxStepRetries > 0 && e.failures[key] >= settings.MaxStepRetries {
		if err := e.failRound(ctx, fmt.Sprintf("retry ceiling reached at %s/%s", step.Type, step.ActorID)); err != nil {
			return domain.Step{}, err
		}
		e.publish(events.KindSessionCompleted, events.SessionPayload{
			SessionID: e.session.ID,
			Status:    string(domain.SessionStatusFailed),
		})
	}
	return step, nil
}

// finishSuccessfulStep persists the success, applies its effect to round
// and participant state, and emits step_completed. Persistence always
// happens before emission.
func (e *Engine) finishSuccessfulStep(ctx context.Context, step domain.Step, output domain.StepOutput) (domain.Step, error) {
	completedAt := e.now()
	step.Status = domain.StepStatusSuccess
	step.Output = output
	step.CompletedAt = &completedAt

	switch step.Type {
	case domain.StepTypeMasterTopic:
		topic := output.(domain.TopicOutput).Topic
		e.round.Topic = topic
		if err := e.transitionRound(ctx, domain.RoundStatusTopicSelection); err != nil {
			return domain.Step{}, err
		}
	case domain.StepTypeMasterQuestion:
		question := output.(domain.QuestionOutput)
		e.round.Question = question.Question
		e.round.Difficulty = question.Difficulty
		if err := e.transitionRound(ctx, domain.RoundStatusAnswering); err != nil {
			return domain.Step{}, err
		}
	case domain.StepTypeModelAnswer:
		if state, ok := e.states[step.ActorID]; ok {
			state.HasAnswered = true
			state.Activity = domain.ActivityAnswered
		}
		if _, ok := domain.NextAnswerer(e.session.ParticipantIDs, e.round.MasterID, domain.AnsweredFlags(e.states)); !ok {
			if err := e.transitionRound(ctx, domain.RoundStatusJudging); err != nil {
				return domain.Step{}, err
			}
		}
	case domain.StepTypeModelJudge:
		if state, ok := e.states[step.ActorID]; ok {
			state.HasJudged = true
			state.Activity = domain.ActivityJudged
		}
		if _, ok := domain.NextJudge(e.session.ParticipantIDs, e.round.MasterID, domain.JudgedFlags(e.states)); !ok {
			if err := e.transitionRound(ctx, domain.RoundStatusScoring); err != nil {
				return domain.Step{}, err
			}
		}
	}

	if _, err := e.stores.Steps.PutStep(ctx, step); err != nil {
		return domain.Step{}, fmt.Errorf("persist step: %w", err)
	}
	delete(e.failures, failureKey(step.RoundID, step.Type, step.ActorID))
	e.undoSpent = false

	e.publish(events.KindStepCompleted, events.StepCompletedPayload{
		RoundID:     step.RoundID,
		StepID:      step.ID,
		StepType:    step.Type,
		ActorID:     step.ActorID,
		Output:      step.Output,
		LatencyMS:   step.LatencyMS,
		RoundStatus: string(e.round.Status),
	})
	return step, nil
}

// finishScoringStep aggregates the round's judgments, completes the round,
// and advances or completes the session. No gateway call is involved.
func (e *Engine) finishScoringStep(ctx context.Context, step domain.Step) (domain.Step, error) {
	judgments, err := e.collectJudgments(ctx)
	if err != nil {
		return e.finishFailedStep(ctx, step, err)
	}

	policy := e.policy
	if policy == nil {
		settings, err := e.stores.Settings.GetSettings(ctx)
		if err != nil {
			return domain.Step{}, fmt.Errorf("load settings: %w", err)
		}
		policy = scoring.NewWeightedMean(settings.MasterJudgeWeight)
	}
	scores := policy.Aggregate(judgments)
	// Every participant appears in the score map; the master receives no
	// judgments and therefore scores zero for its own round.
	for _, participantID := range e.session.ParticipantIDs {
		if _, ok := scores[participantID]; !ok {
			scores[participantID] = 0
		}
	}

	completedAt := e.now()
	step.Status = domain.StepStatusSuccess
	step.Output = domain.ScoreOutput{Scores: scores}
	step.CompletedAt = &completedAt
	if _, err := e.stores.Steps.PutStep(ctx, step); err != nil {
		return domain.Step{}, fmt.Errorf("persist scoring step: %w", err)
	}

	e.round.Scores = scores
	e.undoSpent = false
	if err := e.transitionRound(ctx, domain.RoundStatusCompleted); err != nil {
		return domain.Step{}, err
	}
	completedRound := *e.round

	nextRound, sessionDone, err := e.completeRound(ctx)
	if err != nil {
		return domain.Step{}, err
	}

	e.publish(events.KindStepCompleted, events.StepCompletedPayload{
		RoundID:     step.RoundID,
		StepID:      step.ID,
		StepType:    step.Type,
		Output:      step.Output,
		RoundStatus: string(completedRound.Status),
	})
	e.publish(events.KindRoundCompleted, events.RoundCompletedPayload{
		SessionID:   completedRound.SessionID,
		RoundID:     completedRound.ID,
		RoundNumber: completedRound.RoundNumber,
		Scores:      scores,
	})
	if sessionDone {
		e.publish(events.KindSessionCompleted, events.SessionPayload{
			SessionID: e.session.ID,
			Status:    string(e.session.Status),
		})
	} else if nextRound != nil {
		e.publishRoundStarted(*nextRound)
	}
	return step, nil
}

// collectJudgments gathers every judgment from the round's successful
// judge steps.
func (e *Engine) collectJudgments(ctx context.Context) ([]domain.Judgment, error) {
	steps, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	var judgments []domain.Judgment
	for _, step := range steps {
		if step.Type != domain.StepTypeModelJudge || step.Status != domain.StepStatusSuccess {
			continue
		}
		output, ok := step.Output.(domain.JudgeOutput)
		if !ok {
			continue
		}
		judgments = append(judgments, output.Judgments...)
	}
	if len(judgments) == 0 {
		return nil, fmt.Errorf("no judgments recorded for round %s", e.round.ID)
	}
	return judgments, nil
}
