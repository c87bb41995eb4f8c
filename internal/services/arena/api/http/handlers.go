package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

type createSessionRequest struct {
	TotalRounds    int      `json:"total_rounds"`
	ParticipantIDs []string `json:"participant_ids"`
	FirstMasterID  string   `json:"first_master_id"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session, err := s.engine.CreateSession(c.Context(), domain.CreateSessionInput{
		TotalRounds:    req.TotalRounds,
		ParticipantIDs: req.ParticipantIDs,
		FirstMasterID:  req.FirstMasterID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(session))
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	sessions, err := s.stores.Sessions.ListSessions(c.Context())
	if err != nil {
		return err
	}
	responses := make([]fiber.Map, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, sessionResponse(session))
	}
	return c.JSON(fiber.Map{"sessions": responses})
}

func (s *Server) getSession(c *fiber.Ctx) error {
	session, err := s.stores.Sessions.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func (s *Server) listRounds(c *fiber.Ctx) error {
	rounds, err := s.stores.Rounds.ListRounds(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	responses := make([]fiber.Map, 0, len(rounds))
	for _, round := range rounds {
		responses = append(responses, roundResponse(round))
	}
	return c.JSON(fiber.Map{"rounds": responses})
}

func (s *Server) listSteps(c *fiber.Ctx) error {
	steps, err := s.stores.Steps.ListSteps(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	responses := make([]fiber.Map, 0, len(steps))
	for _, step := range steps {
		responses = append(responses, stepResponse(step))
	}
	return c.JSON(fiber.Map{"steps": responses})
}

func (s *Server) startSession(c *fiber.Ctx) error {
	session, err := s.engine.Start(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func (s *Server) pauseSession(c *fiber.Ctx) error {
	session, err := s.engine.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func (s *Server) resumeSession(c *fiber.Ctx) error {
	session, err := s.engine.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func (s *Server) endSession(c *fiber.Ctx) error {
	session, err := s.engine.End(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

func (s *Server) advance(c *fiber.Ctx) error {
	step, err := s.engine.Advance(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"step": stepResponse(step)})
}

func (s *Server) undo(c *fiber.Ctx) error {
	if err := s.engine.Undo(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"undone": true})
}

func (s *Server) cleanupFailedStep(c *fiber.Ctx) error {
	if err := s.engine.CleanupFailedStep(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cleaned_up": true})
}

func (s *Server) getState(c *fiber.Ctx) error {
	snapshot, err := s.engine.Snapshot(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(snapshot)
}

func sessionResponse(session domain.GameSession) fiber.Map {
	return fiber.Map{
		"id":               session.ID,
		"status":           session.Status,
		"total_rounds":     session.TotalRounds,
		"completed_rounds": session.CompletedRounds,
		"participant_ids":  session.ParticipantIDs,
		"first_master_id":  session.FirstMasterID,
		"started_at":       session.StartedAt,
		"updated_at":       session.UpdatedAt,
	}
}

func roundResponse(round domain.Round) fiber.Map {
	return fiber.Map{
		"id":           round.ID,
		"session_id":   round.SessionID,
		"round_number": round.RoundNumber,
		"status":       round.Status,
		"master_id":    round.MasterID,
		"topic":        round.Topic,
		"question":     round.Question,
		"difficulty":   round.Difficulty,
		"scores":       round.Scores,
		"created_at":   round.CreatedAt,
		"updated_at":   round.UpdatedAt,
	}
}

func stepResponse(step domain.Step) fiber.Map {
	response := fiber.Map{
		"id":         step.ID,
		"round_id":   step.RoundID,
		"seq":        step.Seq,
		"type":       step.Type,
		"actor_id":   step.ActorID,
		"status":     step.Status,
		"latency_ms": step.LatencyMS,
		"created_at": step.CreatedAt,
	}
	if step.Output != nil {
		response["output"] = step.Output
	}
	if step.Error != "" {
		response["error"] = step.Error
	}
	if step.CompletedAt != nil {
		response["completed_at"] = step.CompletedAt
	}
	return response
}
