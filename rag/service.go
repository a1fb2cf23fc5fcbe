package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/generation"
	"github.com/poiesic/docquery/retrieval"
	"github.com/poiesic/docquery/storage"
)

// eventBuffer sizes the answer stream channel. Large enough that a slow
// consumer rarely stalls token forwarding.
const eventBuffer = 64

// Service answers questions over the indexed documents.
// It runs retrieval, builds a grounded prompt and streams the generated
// answer as a sequence of events.
type Service struct {
	engine             *retrieval.Engine
	prompts            *generation.PromptBuilder
	client             *generation.Client
	documentRepository storage.DocumentRepository
	logger             *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a new answer service.
func NewService(
	engine *retrieval.Engine,
	prompts *generation.PromptBuilder,
	client *generation.Client,
	documentRepository storage.DocumentRepository,
	opts ...Option,
) (*Service, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if prompts == nil {
		return nil, ErrPromptBuilderRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	s := &Service{
		engine:             engine,
		prompts:            prompts,
		client:             client,
		documentRepository: documentRepository,
		logger:             slog.Default().With("component", "rag"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// degradationMonitor records whether retrieval fell back to an empty
// candidate set.
type degradationMonitor struct {
	degraded bool
}

func (m *degradationMonitor) Start(_ string)             {}
func (m *degradationMonitor) AfterEmbedding(_ []float32) {}
func (m *degradationMonitor) Degraded(_ string, _ error) { m.degraded = true }
func (m *degradationMonitor) Finish(_ []*core.Candidate) {}

// QueryStream answers a question as a stream of events.
//
// The stream carries zero or more chunk events followed by exactly one
// terminal event: complete (with sources and a status of ok or degraded)
// or error. The channel closes after the terminal event. Cancelling ctx
// stops the stream.
func (s *Service) QueryStream(ctx context.Context, question string, opts ...retrieval.QueryOption) (<-chan Event, error) {
	if strings.TrimSpace(question) == "" {
		return nil, core.ErrEmptyQuestion
	}

	events := make(chan Event, eventBuffer)
	go s.run(ctx, question, events, opts)
	return events, nil
}

func (s *Service) run(ctx context.Context, question string, events chan<- Event, opts []retrieval.QueryOption) {
	defer close(events)

	monitor := &degradationMonitor{}
	candidates, err := s.engine.RetrieveWithMonitor(ctx, question, monitor, opts...)
	if err != nil {
		s.emit(ctx, events, Event{Type: EventError, Content: err.Error()})
		return
	}

	sources := s.buildSources(ctx, candidates)
	prompt := s.prompts.Build(question, candidates)

	var full strings.Builder
	status, err := s.client.Stream(ctx, prompt, func(token string) error {
		full.WriteString(token)
		return s.emit(ctx, events, Event{Type: EventChunk, Content: token})
	})
	if err != nil {
		s.logger.Error("answer stream failed", "err", err)
		s.emit(ctx, events, Event{Type: EventError, Content: err.Error()})
		return
	}

	if monitor.degraded {
		status = core.StatusDegraded
	}

	s.emit(ctx, events, Event{
		Type:    EventComplete,
		Content: full.String(),
		Sources: sources,
		Status:  status,
	})
}

// emit delivers an event unless the consumer is gone.
func (s *Service) emit(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildSources resolves candidate chunks into client-facing sources,
// looking up document names once per document.
func (s *Service) buildSources(ctx context.Context, candidates []*core.Candidate) []Source {
	names := make(map[string]string)
	sources := make([]Source, 0, len(candidates))

	for _, candidate := range candidates {
		docID := candidate.Chunk.DocumentId
		name, ok := names[docID]
		if !ok {
			doc, err := s.documentRepository.GetDocument(ctx, docID)
			if err != nil {
				s.logger.Warn("source document lookup failed", "document_id", docID, "err", err)
			} else {
				name = doc.Name
			}
			names[docID] = name
		}

		// The prompt builder attributes source blocks by name
		candidate.DocumentName = name

		sources = append(sources, Source{
			DocumentID:   docID,
			DocumentName: name,
			Text:         candidate.Chunk.Text,
			Position:     candidate.Chunk.Position,
			Score:        candidate.Score,
		})
	}

	return sources
}

// Query answers a question synchronously, collecting the stream into a
// single Answer.
func (s *Service) Query(ctx context.Context, question string, opts ...retrieval.QueryOption) (*core.Answer, error) {
	events, err := s.QueryStream(ctx, question, opts...)
	if err != nil {
		return nil, err
	}

	answer := &core.Answer{Status: core.StatusComplete}
	var text strings.Builder

	for event := range events {
		switch event.Type {
		case EventChunk:
			text.WriteString(event.Content)
		case EventComplete:
			answer.Status = event.Status
			answer.Sources = make([]*core.Candidate, 0, len(event.Sources))
			for _, src := range event.Sources {
				answer.Sources = append(answer.Sources, &core.Candidate{
					Chunk: &core.Chunk{
						DocumentId: src.DocumentID,
						Position:   src.Position,
						Text:       src.Text,
					},
					Score:        src.Score,
					DocumentName: src.DocumentName,
				})
			}
		case EventError:
			answer.Status = core.StatusError
			answer.Text = text.String()
			return answer, core.ErrAnswerFailed
		}
	}

	answer.Text = text.String()
	return answer, nil
}
