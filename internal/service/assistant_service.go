package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/entity"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/pkg/llm"
	"bchat-be/pkg/ratelimit"

	"github.com/google/uuid"
)

const assistantPrompt = `You are BChat AI, a professional chat assistant inside a group chat.

STRICT INSTRUCTIONS:

- Answer ONLY the current question.
- DO NOT refer to previous chat history unless explicitly asked.
- DO NOT include markdown symbols like **, ##, *, _, or backticks.
- DO NOT truncate dates, links, or names.
- Always give complete information.

FORMATTING RULES:

- Use plain clean text.
- Write full dates like: September 5, 2029
- Provide FULL links including https://
- Keep answers concise and accurate.
- Do NOT include headings or decorations.
- Do NOT include unrelated information.

Recent chat history:
%s

User question:
%s

Answer clearly:
`

var (
	markdownTokens = regexp.MustCompile("\\*\\*|__|`|##|\\*")
	headingMarks   = regexp.MustCompile(`#{1,6}\s?`)
	blankLineRuns  = regexp.MustCompile(`\n{3,}`)
	bareWWWLinks   = regexp.MustCompile(`(^|[^/])(www\.\S+)`)
)

type IAssistantService interface {
	// CheckQuota records one AI request for the user and fails once the hourly quota is spent.
	CheckQuota(ctx context.Context, userId uuid.UUID) error
	Ask(ctx context.Context, roomId uuid.UUID, question string) (string, error)
}

type AssistantSettings struct {
	Timeout      time.Duration
	HistoryLimit int
	Model        string
}

type assistantService struct {
	provider llm.LLMProvider
	messages IMessageService
	limiter  ratelimit.Limiter
	settings AssistantSettings
	logger   logger.ILogger
}

func NewAssistantService(provider llm.LLMProvider, messages IMessageService, limiter ratelimit.Limiter, settings AssistantSettings, log logger.ILogger) IAssistantService {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 50
	}
	return &assistantService{
		provider: provider,
		messages: messages,
		limiter:  limiter,
		settings: settings,
		logger:   log,
	}
}

func (s *assistantService) CheckQuota(ctx context.Context, userId uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, "ai:"+userId.String())
	if err != nil {
		// Fail open when the quota store is unreachable.
		s.logger.Warn("AI", "Quota check failed, allowing request", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !allowed {
		return apperror.Validation("AI request limit reached, try again later")
	}
	return nil
}

func (s *assistantService) Ask(ctx context.Context, roomId uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperror.Validation("Please ask a valid question")
	}
	if s.provider == nil {
		return "", apperror.External("AI is not configured", nil)
	}

	history, err := s.messages.Recent(ctx, roomId, s.settings.HistoryLimit)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	opts := []llm.Option{
		llm.WithTemperature(0.4),
		llm.WithMaxTokens(600),
		llm.WithTopP(0.8),
	}
	if s.settings.Model != "" {
		opts = append(opts, llm.WithModel(s.settings.Model))
	}

	start := time.Now()
	raw, err := s.provider.Generate(ctx, BuildAssistantPrompt(history, question), opts...)
	if err != nil {
		s.logger.Error("AI", "Completion failed", map[string]interface{}{
			"room_id":  roomId.String(),
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		})
		return "", apperror.External("AI failed to respond. Please try again.", err)
	}

	answer := CleanAssistantReply(raw)
	if answer == "" {
		return "", apperror.External("AI did not respond.", llm.ErrEmptyResponse)
	}

	s.logger.Info("AI", "Completion received", map[string]interface{}{
		"room_id":  roomId.String(),
		"duration": time.Since(start).String(),
	})
	return answer, nil
}

// BuildAssistantPrompt renders history as "{sender}: {content}" lines ahead of the question.
func BuildAssistantPrompt(history []*entity.Message, question string) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", historySpeaker(m), m.Content))
	}
	transcript := strings.Join(lines, "\n")
	if transcript == "" {
		transcript = "(no messages yet)"
	}
	return fmt.Sprintf(assistantPrompt, transcript, question)
}

func historySpeaker(m *entity.Message) string {
	switch {
	case m.IsAI:
		return dto.AISenderName
	case m.SenderUsername != "":
		return m.SenderUsername
	default:
		return "Unknown"
	}
}

// CleanAssistantReply strips markdown markers, collapses blank lines and
// completes bare www. links.
func CleanAssistantReply(text string) string {
	text = markdownTokens.ReplaceAllString(text, "")
	text = headingMarks.ReplaceAllString(text, "")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	return bareWWWLinks.ReplaceAllString(text, "${1}https://${2}")
}

// FormatAssistantExchange is the stored content of an AI reply.
func FormatAssistantExchange(question, answer string) string {
	return fmt.Sprintf("Q: %s\nA: %s", strings.TrimSpace(question), answer)
}
