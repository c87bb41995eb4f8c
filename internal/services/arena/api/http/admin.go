package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/modelarena/arena/internal/platform/id"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

type settingsRequest struct {
	ExecutionMode     *string  `json:"execution_mode"`
	StepDelayMS       *int     `json:"step_delay_ms"`
	JudgeAnonymized   *bool    `json:"judge_anonymized"`
	MasterJudgeWeight *float64 `json:"master_judge_weight"`
	MaxStepRetries    *int     `json:"max_step_retries"`
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	settings, err := s.stores.Settings.GetSettings(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(settingsResponse(settings))
}

// putSettings applies a partial update; absent fields keep their stored
// value.
func (s *Server) putSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := s.stores.Settings.GetSettings(c.Context())
	if err != nil {
		return err
	}

	if req.ExecutionMode != nil {
		mode := storage.ExecutionMode(strings.ToLower(strings.TrimSpace(*req.ExecutionMode)))
		if mode != storage.ExecutionModeManual && mode != storage.ExecutionModeAutomatic {
			return fiber.NewError(fiber.StatusBadRequest, "execution_mode must be manual or automatic")
		}
		settings.ExecutionMode = mode
	}
	if req.StepDelayMS != nil {
		if *req.StepDelayMS < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "step_delay_ms must be >= 0")
		}
		settings.StepDelayMS = *req.StepDelayMS
	}
	if req.JudgeAnonymized != nil {
		settings.JudgeAnonymized = *req.JudgeAnonymized
	}
	if req.MasterJudgeWeight != nil {
		if *req.MasterJudgeWeight <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "master_judge_weight must be > 0")
		}
		settings.MasterJudgeWeight = *req.MasterJudgeWeight
	}
	if req.MaxStepRetries != nil {
		if *req.MaxStepRetries < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "max_step_retries must be >= 0")
		}
		settings.MaxStepRetries = *req.MaxStepRetries
	}

	if err := s.stores.Settings.PutSettings(c.Context(), settings); err != nil {
		return err
	}
	if err := s.engine.SyncAutoDriver(c.Context()); err != nil {
		return err
	}
	return c.JSON(settingsResponse(settings))
}

type participantRequest struct {
	Name     string `json:"name"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Enabled  *bool  `json:"enabled"`
}

func (s *Server) listParticipants(c *fiber.Ctx) error {
	participants, err := s.stores.Participants.ListParticipants(c.Context())
	if err != nil {
		return err
	}
	responses := make([]fiber.Map, 0, len(participants))
	for _, participant := range participants {
		responses = append(responses, participantResponse(participant))
	}
	return c.JSON(fiber.Map{"participants": responses})
}

func (s *Server) createParticipant(c *fiber.Ctx) error {
	var req participantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "model is required")
	}

	participantID, err := id.NewID()
	if err != nil {
		return err
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	participant := storage.Participant{
		ID:       participantID,
		Name:     strings.TrimSpace(req.Name),
		Model:    strings.TrimSpace(req.Model),
		Provider: strings.TrimSpace(req.Provider),
		Enabled:  enabled,
	}
	if err := s.stores.Participants.PutParticipant(c.Context(), participant); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(participantResponse(participant))
}

func (s *Server) updateParticipant(c *fiber.Ctx) error {
	var req participantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	participant, err := s.stores.Participants.GetParticipant(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		participant.Name = name
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		participant.Model = model
	}
	if provider := strings.TrimSpace(req.Provider); provider != "" {
		participant.Provider = provider
	}
	if req.Enabled != nil {
		participant.Enabled = *req.Enabled
	}

	if err := s.stores.Participants.PutParticipant(c.Context(), participant); err != nil {
		return err
	}
	return c.JSON(participantResponse(participant))
}

func (s *Server) deleteParticipant(c *fiber.Ctx) error {
	if err := s.stores.Participants.DeleteParticipant(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func settingsResponse(settings storage.Settings) fiber.Map {
	return fiber.Map{
		"execution_mode":      settings.ExecutionMode,
		"step_delay_ms":       settings.StepDelayMS,
		"judge_anonymized":    settings.JudgeAnonymized,
		"master_judge_weight": settings.MasterJudgeWeight,
		"max_step_retries":    settings.MaxStepRetries,
	}
}

func participantResponse(participant storage.Participant) fiber.Map {
	return fiber.Map{
		"id":       participant.ID,
		"name":     participant.Name,
		"model":    participant.Model,
		"provider": participant.Provider,
		"enabled":  participant.Enabled,
	}
}
