package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/internal/types"
	"github.com/jteo/copra/pkg/session"
)

const defaultTopK = 8

// Assistant composes grounded answers. Persistent mode stuffs every
// retrieved corpus passage into one citation-aware prompt; temporary mode
// grounds a single direct completion in excerpts from the session's
// uploaded documents. Each call is independent and stateless.
type Assistant struct {
	retriever types.Retriever
	chat      types.CompletionEngine
	segmenter types.Segmenter
}

// AskRequest is the session-facing query surface.
type AskRequest struct {
	Question           string
	Files              []models.UploadedFile
	UseUploadedContext bool
	TopK               int
	Strict             bool
}

type AskResponse struct {
	Answer   string
	Excerpts []models.Excerpt
}

func New(retriever types.Retriever, chat types.CompletionEngine, segmenter types.Segmenter) *Assistant {
	return &Assistant{
		retriever: retriever,
		chat:      chat,
		segmenter: segmenter,
	}
}

// Ask answers a question from the persistent corpus: retrieve, then one
// stuff-style completion with all passages concatenated verbatim.
func (a *Assistant) Ask(ctx context.Context, query string) (string, error) {
	docs, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}

	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("[source: %s p.%d]\n%s\n\n", doc.Source, doc.Page, doc.Content))
	}

	prompt := fmt.Sprintf("%s\n\nContext:\n%s\nQuestion: %s\nAnswer:",
		ragInstructions, contextBuilder.String(), query)

	return a.chat.Complete(ctx, ragRole, prompt)
}

// AskWithTempContext answers from pre-retrieved uploaded-document
// excerpts, bypassing the corpus entirely. Strict mode enforces the
// fixed not-found sentence; lenient mode allows clearly flagged general
// knowledge. Strict with no excerpts short-circuits to the sentence,
// since there is nothing the model could ground an answer in.
func (a *Assistant) AskWithTempContext(ctx context.Context, question string, excerpts []models.Excerpt, strict bool) (string, error) {
	if strict && len(excerpts) == 0 {
		return NotFoundAnswer, nil
	}

	var contextLines []string
	for _, e := range excerpts {
		src := metaString(e.Metadata, "source", "uploaded")
		page := metaString(e.Metadata, "page", "?")
		contextLines = append(contextLines, fmt.Sprintf("[%s p.%s]\n%s\n", src, page, e.Text))
	}

	guard := lenientGuard
	if strict {
		guard = strictGuard
	}

	prompt := fmt.Sprintf(
		"Use the context below to answer the question.\n%s\nContext excerpts:\n%s\nUser question: %s\n"+
			"Answer concisely with brief citations like [source p.page] where applicable.",
		guard, strings.Join(contextLines, "\n"), question)

	return a.chat.Complete(ctx, tempContextRole, prompt)
}

// Answer is the session-facing entry point. With uploaded context
// requested and files present it runs the segment, index, retrieve and
// compose sequence against the session's ephemeral index; in every other
// case it answers from the persistent corpus. Empty uploads are an
// informational fallback, not an error.
func (a *Assistant) Answer(ctx context.Context, sess *session.Session, req AskRequest) (AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, fmt.Errorf("empty question")
	}

	if req.UseUploadedContext && len(req.Files) > 0 {
		segments := a.segmenter.Build(req.Files)
		if len(segments) == 0 {
			// Nothing readable in the uploads; fall back to the corpus.
			answer, err := a.Ask(ctx, question)
			return AskResponse{Answer: answer}, err
		}

		index, err := sess.Index()
		if err != nil {
			return AskResponse{}, err
		}
		if err := index.Add(ctx, segments); err != nil {
			return AskResponse{}, err
		}

		topK := req.TopK
		if topK <= 0 {
			topK = defaultTopK
		}
		excerpts, err := index.Query(ctx, question, topK)
		if err != nil {
			return AskResponse{}, err
		}

		answer, err := a.AskWithTempContext(ctx, question, excerpts, req.Strict)
		if err != nil {
			return AskResponse{}, err
		}
		return AskResponse{Answer: answer, Excerpts: excerpts}, nil
	}

	answer, err := a.Ask(ctx, question)
	return AskResponse{Answer: answer}, err
}

func metaString(meta map[string]interface{}, key, fallback string) string {
	if meta == nil {
		return fallback
	}
	if v, ok := meta[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return fallback
}
