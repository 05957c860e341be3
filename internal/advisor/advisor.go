package advisor

import (
	"context"
	"fmt"
	"log"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// DeskQuerier provides ticket and track-record data for the advisor's context.
type DeskQuerier interface {
	ListTickets(ctx context.Context, f domain.TicketFilter) ([]service.TicketView, error)
	Summary(ctx context.Context, address string) (*domain.PnLSummary, error)
}

// MarkQuerier provides current marks for the advisor's context.
type MarkQuerier interface {
	ListMarks(ctx context.Context) ([]*domain.MarkSnapshot, error)
}

// ConversationStore persists and retrieves conversation messages.
type ConversationStore interface {
	AppendMessage(ctx context.Context, chatKey, role, content string) error
	RecentMessages(ctx context.Context, chatKey string, limit int) ([]domain.ConversationMessage, error)
}

type AdvisorService struct {
	tracer     trace.Tracer
	llm        LLMClient
	desk       DeskQuerier
	marks      MarkQuerier
	convStore  ConversationStore
	model      string
	maxHistory int
}

func NewAdvisorService(
	tracer trace.Tracer,
	llm LLMClient,
	desk DeskQuerier,
	marks MarkQuerier,
	convStore ConversationStore,
	model string,
	maxHistory int,
) *AdvisorService {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &AdvisorService{
		tracer:     tracer,
		llm:        llm,
		desk:       desk,
		marks:      marks,
		convStore:  convStore,
		model:      model,
		maxHistory: maxHistory,
	}
}

func (s *AdvisorService) Ask(ctx context.Context, chatKey, userMessage string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()
	span.SetAttributes(attribute.String("chat_key", chatKey))

	// 1. Persist the user message
	if err := s.convStore.AppendMessage(ctx, chatKey, "user", userMessage); err != nil {
		log.Printf("failed to store user message: %v", err)
	}

	// 2. Extract mentioned assets and addresses for targeted context
	assets := ExtractAssets(userMessage)
	addresses := ExtractAddresses(userMessage)

	// 3. Gather desk context
	deskContext, err := s.gatherContext(ctx, assets, addresses)
	if err != nil {
		log.Printf("failed to gather desk context: %v", err)
		deskContext = "Desk data temporarily unavailable."
	}

	// 4. Build system prompt with live data
	systemPrompt := BuildSystemPrompt(deskContext)

	// 5. Load conversation history
	history, err := s.convStore.RecentMessages(ctx, chatKey, s.maxHistory)
	if err != nil {
		log.Printf("failed to load conversation history: %v", err)
		history = nil
	}

	// 6. Construct messages array. History already holds the question once
	// stored; fall back to the raw message when it does not.
	messages := s.buildMessages(systemPrompt, history)
	if len(messages) == 1 {
		messages = append(messages, openai.UserMessage(userMessage))
	}

	// 7. Call LLM
	reply, err := s.callLLM(ctx, messages)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}

	// 8. Persist the assistant reply
	if err := s.convStore.AppendMessage(ctx, chatKey, "assistant", reply); err != nil {
		log.Printf("failed to store assistant reply: %v", err)
	}

	return reply, nil
}

func (s *AdvisorService) gatherContext(ctx context.Context, assets, addresses []string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()

	marks, err := s.marks.ListMarks(ctx)
	if err != nil {
		return "", err
	}
	if len(assets) > 0 {
		marks = filterMarks(marks, assets)
	}

	var live, closed []service.TicketView
	var summaries []*domain.PnLSummary

	if len(addresses) > 0 {
		for _, addr := range addresses {
			for _, state := range []domain.TicketState{domain.TicketPending, domain.TicketOpen} {
				if batch, err := s.desk.ListTickets(ctx, domain.TicketFilter{State: state, Address: addr, Limit: 10}); err == nil {
					live = append(live, batch...)
				}
			}
			if batch, err := s.desk.ListTickets(ctx, domain.TicketFilter{State: domain.TicketClosed, Address: addr, Limit: 5}); err == nil {
				closed = append(closed, batch...)
			}
			if sum, err := s.desk.Summary(ctx, addr); err == nil {
				summaries = append(summaries, sum)
			}
		}
	} else {
		for _, state := range []domain.TicketState{domain.TicketPending, domain.TicketOpen} {
			batch, err := s.desk.ListTickets(ctx, domain.TicketFilter{State: state, Asset: singleOrEmpty(assets), Limit: 10})
			if err != nil {
				return "", err
			}
			live = append(live, batch...)
		}
		closed, _ = s.desk.ListTickets(ctx, domain.TicketFilter{State: domain.TicketClosed, Asset: singleOrEmpty(assets), Limit: 5})
	}

	return FormatDeskContext(marks, live, closed, summaries), nil
}

func filterMarks(marks []*domain.MarkSnapshot, assets []string) []*domain.MarkSnapshot {
	want := make(map[string]bool, len(assets))
	for _, a := range assets {
		want[a] = true
	}
	var out []*domain.MarkSnapshot
	for _, m := range marks {
		if want[m.Asset] {
			out = append(out, m)
		}
	}
	return out
}

func singleOrEmpty(assets []string) string {
	if len(assets) == 1 {
		return assets[0]
	}
	return ""
}

func (s *AdvisorService) buildMessages(
	systemPrompt string,
	history []domain.ConversationMessage,
) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)

	// System prompt always first
	messages = append(messages, openai.SystemMessage(systemPrompt))

	// Conversation history (already limited by RecentMessages query)
	for _, msg := range history {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	return messages
}

func (s *AdvisorService) callLLM(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	completion, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
