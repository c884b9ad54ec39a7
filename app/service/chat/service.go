package chat

import (
	"context"
	"emoai/app/client/nvidia"
	"emoai/app/service/emolog"
	"emoai/app/service/emotion"
	"emoai/app/service/followup"
	"emoai/app/service/meta"
	"emoai/app/service/persona"
	"emoai/app/service/rag"
	"emoai/app/service/state"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const (
	eventBufferSize = 16
	retrieveTopK    = 3

	maxReplyTokens      = 512
	maxShortReplyTokens = 200

	trendThreshold = 0.05
)

type emotionDetector interface {
	Detect(ctx context.Context, text string) emotion.Observation
}

type metaInterpreter interface {
	Detect(text string) (key, meaning string, ok bool)
	Interpret(ctx context.Context, userInput string) state.PrefUpdate
}

type personaSelector interface {
	Choose(emotionLabel, intent string, valence, confidence float64) persona.Persona
	BuildSystemPrompt(p persona.Persona, retrievedContext, toneHint string, prefs state.Preferences) string
	RecordOutcomeReward(ctx context.Context, p persona.Persona, prevValence, newValence float64, userInput, lastReply string)
	RecordMetaFeedback(ctx context.Context, p persona.Persona, userInput, metaKey, metaMeaning string)
}

type retriever interface {
	Retrieve(ctx context.Context, indexName, query string, k int) string
}

type turnLogger interface {
	Append(entry emolog.Entry) error
}

type taskQueue interface {
	Enqueue(name string, fn func(ctx context.Context))
}

type streamer interface {
	StreamComplete(ctx context.Context, messages []nvidia.Message, temperature float32, maxTokens int, onDelta func(delta string) error) error
}

// Service sequences one turn: meta check, emotion detection and fusion,
// persona selection, retrieval, prompt assembly, generation streaming, then
// post-turn learning via the followup queue.
type Service struct {
	llm        streamer
	emotionSvc emotionDetector
	metaSvc    metaInterpreter
	personaSvc personaSelector
	ragSvc     retriever
	stateSvc   *state.Service
	logSvc     turnLogger
	followup   taskQueue
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*nvidia.Client](di),
		do.MustInvoke[*emotion.Service](di),
		do.MustInvoke[*meta.Service](di),
		do.MustInvoke[*persona.Service](di),
		do.MustInvoke[*rag.Service](di),
		do.MustInvoke[*state.Service](di),
		do.MustInvoke[*emolog.Service](di),
		do.MustInvoke[*followup.Service](di),
	), nil
}

func NewService(
	llm streamer,
	emotionSvc emotionDetector,
	metaSvc metaInterpreter,
	personaSvc personaSelector,
	ragSvc retriever,
	stateSvc *state.Service,
	logSvc turnLogger,
	followupSvc taskQueue,
) *Service {
	return &Service{
		llm:        llm,
		emotionSvc: emotionSvc,
		metaSvc:    metaSvc,
		personaSvc: personaSvc,
		ragSvc:     ragSvc,
		stateSvc:   stateSvc,
		logSvc:     logSvc,
		followup:   followupSvc,
	}
}

// Stream runs one turn and returns its ordered event stream: one status
// report event, then cumulative reply prefixes, then exactly one final
// event. The channel closes after the final event.
func (s *Service) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, eventBufferSize)

	go s.runTurn(ctx, req, events)

	return events
}

func (s *Service) runTurn(ctx context.Context, req Request, events chan<- Event) {
	defer close(events)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Turn pipeline panicked", "panic", r, "telegram", true)
			s.emit(ctx, events, Event{
				ReplyChunk: "Internal Server Error",
				Report:     "An error occurred on the server.",
				IsFinal:    true,
				Error:      fmt.Sprint(r),
			})
		}
	}()

	turnID := uuid.NewString()

	userInput := strings.TrimSpace(req.UserInput)
	if userInput == "" {
		s.emit(ctx, events, Event{Report: "Empty input", IsFinal: true})
		return
	}

	session := s.stateSvc.Session(req.SessionID)
	session.BeginTurn()
	defer session.EndTurn()

	// Meta check
	metaKey, metaMeaning, metaMode := s.metaSvc.Detect(userInput)
	if metaMode {
		if update := s.metaSvc.Interpret(ctx, userInput); !update.IsZero() {
			s.stateSvc.ApplyPrefUpdate(update)
		}
	}

	// Emotion detection and fusion
	observation := s.emotionSvc.Detect(ctx, userInput)

	history := session.Emotions()
	fusedLabel, fusedValence := emotion.Fuse(
		observation.Label, observation.Valence, observation.Confidence, history, metaMode)

	var prevValence float64
	hasPrev := len(history) > 0
	if hasPrev {
		prevValence = history[len(history)-1].Valence
	}

	point := state.EmotionPoint{Text: userInput, Label: fusedLabel, Valence: fusedValence}
	session.AppendEmotion(point)

	trend := "stable"
	if hasPrev {
		switch diff := fusedValence - prevValence; {
		case diff > trendThreshold:
			trend = "up"
		case diff < -trendThreshold:
			trend = "down"
		}
	}

	// Intent and persona
	intent := emotion.DetectIntent(userInput)

	var chosen persona.Persona
	if p, ok := persona.Lookup(req.PersonaOverride); ok {
		chosen = p
	} else {
		chosen = s.personaSvc.Choose(fusedLabel, intent, fusedValence, observation.Confidence)
	}

	// Retrieval
	retrievedContext := s.ragSvc.Retrieve(ctx, chosen.Spec().IndexName, userInput, retrieveTopK)

	// Global tone and prompt
	s.stateSvc.RememberEmotion(point)
	toneHint, temperature := s.stateSvc.GlobalToneAndTemperature()
	prefs := s.stateSvc.Preferences()

	systemPrompt := s.personaSvc.BuildSystemPrompt(chosen, retrievedContext, toneHint, prefs)

	messages := make([]nvidia.Message, 0, len(req.History)+2)
	messages = append(messages, nvidia.Message{Role: "system", Content: systemPrompt})

	priorMessages := req.History
	if len(priorMessages) == 0 {
		priorMessages = session.Messages()
	}
	for _, msg := range priorMessages {
		messages = append(messages, nvidia.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, nvidia.Message{Role: "user", Content: userInput})

	avgValence := s.stateSvc.AverageValence()
	report := fmt.Sprintf("**Emotion:** %s (%.2f) | **Trend:** %s | **Agent:** %s | **Avg Valence:** %+.2f",
		observation.Label, observation.Confidence, trend, chosen, avgValence)

	slog.Info("Processing turn",
		"turn", turnID,
		"session", session.ID(),
		"emotion", fusedLabel,
		"valence", fusedValence,
		"intent", intent,
		"agent", chosen,
		"meta", metaMode,
	)

	if !s.emit(ctx, events, Event{Report: report}) {
		return
	}

	// Generation
	maxTokens := maxReplyTokens
	if prefs.ReplyLength == "short" {
		maxTokens = maxShortReplyTokens
	}

	var fullReply strings.Builder
	err := s.llm.StreamComplete(ctx, messages, temperature, maxTokens, func(delta string) error {
		fullReply.WriteString(delta)

		if !s.emit(ctx, events, Event{ReplyChunk: fullReply.String(), Report: report}) {
			return context.Canceled
		}

		return nil
	})
	if err != nil {
		slog.Error("Generation failed mid-turn", "turn", turnID, "error", err)
		fullReply.WriteString(fmt.Sprintf(" [Error: %v]", err))
	}

	reply := fullReply.String()

	s.emit(ctx, events, Event{ReplyChunk: reply, Report: report, IsFinal: true})

	// Post-turn learning runs on the worker's context, not the request's:
	// a disconnected client must not lose the log entry or the reward.
	s.followup.Enqueue("post_turn", func(taskCtx context.Context) {
		s.finishTurn(taskCtx, session, chosen, turnArtifacts{
			userInput:   userInput,
			reply:       reply,
			label:       fusedLabel,
			valence:     fusedValence,
			prevValence: prevValence,
			trend:       trend,
			metaMode:    metaMode,
			metaKey:     metaKey,
			metaMeaning: metaMeaning,
		})
	})
}

type turnArtifacts struct {
	userInput   string
	reply       string
	label       string
	valence     float64
	prevValence float64
	trend       string
	metaMode    bool
	metaKey     string
	metaMeaning string
}

func (s *Service) finishTurn(ctx context.Context, session *state.Session, chosen persona.Persona, a turnArtifacts) {
	if err := s.logSvc.Append(emolog.Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserInput: a.userInput,
		Emotion:   a.label,
		Valence:   a.valence,
		Trend:     a.trend,
		AgentUsed: string(chosen),
		AIReply:   a.reply,
	}); err != nil {
		slog.Error("Failed to append emotion log entry", "error", err)
	}

	if !a.metaMode {
		s.personaSvc.RecordOutcomeReward(ctx, chosen, a.prevValence, a.valence, a.userInput, a.reply)
	} else if a.metaKey != "" {
		s.personaSvc.RecordMetaFeedback(ctx, chosen, a.userInput, a.metaKey, a.metaMeaning)
	}

	session.AppendExchange(a.userInput, a.reply)
}

// emit delivers one event unless the turn context is already gone. Stream
// write failures never block the pipeline indefinitely.
func (s *Service) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
