package server

import (
	"bufio"
	"context"
	"emoai/app/config"
	"emoai/app/service/chat"
	"emoai/app/service/emolog"
	"emoai/app/service/state"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
	"github.com/valyala/fasthttp"
)

const shutdownTimeout = 5 * time.Second

type Service struct {
	cfg     *config.Config
	appCtx  context.Context
	chatSvc *chat.Service
	logSvc  *emolog.Service

	app *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:     do.MustInvoke[*config.Config](di),
		appCtx:  do.MustInvoke[context.Context](di),
		chatSvc: do.MustInvoke[*chat.Service](di),
		logSvc:  do.MustInvoke[*emolog.Service](di),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Post("/api/chat/stream", s.handleChatStream)
	app.Get("/api/emotion_log", s.handleEmotionLog)
	app.Get("/api/emotion_stats/today", s.handleTodayStats)

	s.app = app

	return s, nil
}

func (s *Service) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	slog.Info("HTTP server listening", "addr", s.cfg.Server.Listen)

	if err := s.app.Listen(s.cfg.Server.Listen); err != nil {
		slog.Error("HTTP server stopped", "error", err, "telegram", true)
	}
}

type chatStreamBody struct {
	// Messages carries the frontend schema: full history with the last user
	// message as the turn input.
	Messages []state.Message `json:"messages"`
	// Legacy schema fields.
	UserInput     string `json:"user_input"`
	SessionID     string `json:"session_id"`
	AgentOverride string `json:"agent_override"`
}

// handleChatStream responds with newline-delimited JSON events, flushed one
// per line as the reply streams in.
func (s *Service) handleChatStream(c *fiber.Ctx) error {
	var body chatStreamBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req := chat.Request{
		SessionID:       body.SessionID,
		UserInput:       body.UserInput,
		PersonaOverride: body.AgentOverride,
	}

	if len(body.Messages) > 0 {
		last := body.Messages[len(body.Messages)-1]
		if last.Role == "user" {
			req.UserInput = last.Content
			req.History = body.Messages[:len(body.Messages)-1]
		}
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The turn runs on the app context: if the client goes away the
		// write fails, we cancel, and the post-turn work still proceeds on
		// the followup worker.
		turnCtx, cancel := context.WithCancel(s.appCtx)
		defer cancel()

		events := s.chatSvc.Stream(turnCtx, req)
		encoder := json.NewEncoder(w)

		for event := range events {
			if err := encoder.Encode(event); err != nil {
				slog.Debug("Stream write failed, cancelling turn", "error", err)
				break
			}
			if err := w.Flush(); err != nil {
				slog.Debug("Stream flush failed, cancelling turn", "error", err)
				break
			}
		}

		cancel()
		for range events {
		}
	}))

	return nil
}

func (s *Service) handleEmotionLog(c *fiber.Ctx) error {
	entries, err := s.logSvc.ReadNewestFirst()
	if err != nil {
		slog.Error("Failed to read emotion log", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read emotion log")
	}

	return c.JSON(entries)
}

func (s *Service) handleTodayStats(c *fiber.Ctx) error {
	stats, err := s.logSvc.TodayStats(c.UserContext(), time.Now())
	if err != nil {
		slog.Error("Failed to compute emotion stats", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute emotion stats")
	}

	return c.JSON(stats)
}
