package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/lore/internal/models"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// AskRequest is a retrieval-augmented question.
type AskRequest struct {
	Prompt     string `json:"prompt"`
	NoteID     string `json:"note_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
	IncludeAll bool   `json:"include_all,omitempty"`
}

// Answer is the generated reply together with the notes it was grounded on.
type Answer struct {
	Answer   string           `json:"answer"`
	Model    string           `json:"model"`
	Context  []models.NoteRef `json:"context"`
	Degraded bool             `json:"degraded"`
}

// Service runs the retrieval and generation round-trip.
type Service struct {
	assembler   *Assembler
	gen         Generator
	model       string
	timeout     time.Duration
	defaultTopK int
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithModel sets the model identifier passed to the generator.
func WithModel(model string) ServiceOption {
	return func(s *Service) { s.model = model }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithDefaultTopK sets the TopK used when a request leaves it zero.
func WithDefaultTopK(k int) ServiceOption {
	return func(s *Service) { s.defaultTopK = k }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service that assembles context from src and answers
// with gen.
func NewService(src Source, gen Generator, opts ...ServiceOption) *Service {
	s := &Service{
		gen:         gen,
		timeout:     DefaultTimeout,
		defaultTopK: DefaultTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.assembler = NewAssembler(src, s.logger)
	return s
}

// Assemble builds the context set for req without calling the generator.
func (s *Service) Assemble(ctx context.Context, req AskRequest) (*Result, error) {
	r := Request{
		Prompt:     req.Prompt,
		NoteID:     req.NoteID,
		TopK:       req.TopK,
		IncludeAll: req.IncludeAll,
	}
	if r.TopK == 0 {
		r.TopK = s.defaultTopK
	}
	return s.assembler.Assemble(ctx, r)
}

// Ask assembles context for req and asks the generator. Generation errors
// are returned as they come from the generator and are not retried.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	res, err := s.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(res.Entries, req.Prompt)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(genCtx, s.model, prompt)
	if err != nil {
		s.logger.Error("generation failed",
			slog.String("model", s.model),
			slog.Int("context_notes", len(res.Entries)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.logger.Info("generation done",
		slog.String("model", s.model),
		slog.Int("context_notes", len(res.Entries)),
		slog.Bool("degraded", res.Degraded),
		slog.Duration("elapsed", time.Since(start)),
	)

	refs := make([]models.NoteRef, len(res.Entries))
	for i, e := range res.Entries {
		refs[i] = models.NoteRef{ID: e.ID, Title: e.Title}
	}
	return &Answer{
		Answer:   text,
		Model:    s.model,
		Context:  refs,
		Degraded: res.Degraded,
	}, nil
}
