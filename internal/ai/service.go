// Package ai wraps the hosted language model used for summaries, search and chat.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/retry"
	"github.com/anonto42/quill/backend/internal/richtext"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxPromptRunes caps how much article text is sent to the model.
const maxPromptRunes = 12000

var (
	ErrNothingToSummarize = errors.New("post has no text to summarize")
	ErrNoQuestion         = errors.New("chat history must end with a user message")
)

type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// Generator is the hosted model: one-shot generation and streamed chat.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, system string, history []Message, onChunk func(string) error) error
}

type Service struct {
	gen    Generator
	cache  *cache.Cache
	policy retry.Policy
}

func NewService(gen Generator, c *cache.Cache, policy retry.Policy) *Service {
	return &Service{gen: gen, cache: c, policy: policy}
}

// Summarize returns a short summary of a post, cached per post revision.
func (s *Service) Summarize(ctx context.Context, post *models.Post) (string, error) {
	text := richtext.PlainText(post.Content)
	if text == "" {
		return "", ErrNothingToSummarize
	}
	key := cache.NewKey(cache.Summary, map[string]string{
		"id":      post.ID.Hex(),
		"updated": strconv.FormatInt(post.UpdatedAt.UnixNano(), 10),
	})

	return cache.GetOrLoad(s.cache, key, func() (string, error) {
		prompt := fmt.Sprintf("Summarize the following blog article titled %q in three sentences. "+
			"Reply with the summary only.\n\n%s", post.Title, richtext.Truncate(text, maxPromptRunes))

		return retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
			out, err := s.gen.Generate(ctx, prompt)
			if err != nil {
				return "", err
			}
			out = strings.TrimSpace(out)
			if out == "" {
				return "", errors.New("model returned an empty summary")
			}
			return out, nil
		})
	})
}

// SearchKeywords asks the model to turn a free-form question into search terms.
func (s *Service) SearchKeywords(ctx context.Context, question string) ([]string, error) {
	prompt := "Extract at most five short search keywords from the question below. " +
		"Reply with the keywords separated by commas and nothing else.\n\n" + question

	out, err := retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.gen.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	return parseKeywords(out), nil
}

func parseKeywords(out string) []string {
	seen := make(map[string]bool)
	keywords := make([]string, 0, 5)
	for _, part := range strings.FieldsFunc(out, func(r rune) bool { return r == ',' || r == '\n' }) {
		kw := strings.ToLower(strings.Trim(strings.TrimSpace(part), `"'.-*`))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

const chatSystemPrompt = "You are the reading assistant of a technical blog. Answer concisely. " +
	"When article context is given, ground your answer in it."

// Chat streams the assistant's reply. articleContext, when non-empty, is the plain text
// of the post the reader is looking at.
func (s *Service) Chat(ctx context.Context, history []Message, articleContext string, onChunk func(string) error) error {
	if len(history) == 0 || history[len(history)-1].Role != RoleUser {
		return ErrNoQuestion
	}
	system := chatSystemPrompt
	if articleContext != "" {
		system += "\n\nArticle:\n" + richtext.Truncate(articleContext, maxPromptRunes)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return s.gen.Stream(ctx, system, history, onChunk)
}
