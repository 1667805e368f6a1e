package assistant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/pkg/assistant"
	"github.com/jteo/copra/pkg/segmenter"
	"github.com/jteo/copra/pkg/session"
)

type fakeChat struct {
	answer     string
	calls      int
	lastSystem string
	lastPrompt string
}

func (f *fakeChat) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	return f.answer, nil
}

func (f *fakeChat) ExpandQuery(_ context.Context, _ string, _ int) ([]string, error) {
	return nil, nil
}

type fakeRetriever struct {
	docs []models.RetrievedDocument
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) ([]models.RetrievedDocument, error) {
	return f.docs, nil
}

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r) / 1000.0
	}
	return vec, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = h.Embed(ctx, t)
	}
	return out, nil
}

func newAssistant(chat *fakeChat, docs []models.RetrievedDocument) *assistant.Assistant {
	seg := segmenter.NewWithConfig(segmenter.SegmenterConfig{})
	return assistant.New(&fakeRetriever{docs: docs}, chat, &seg)
}

func TestAskStuffsRetrievedContext(t *testing.T) {
	chat := &fakeChat{answer: "The setback is 5 m [source: COP_Part1.pdf p.12]."}
	a := newAssistant(chat, []models.RetrievedDocument{
		{Source: "COP_Part1.pdf", Page: 12, Content: "Setback shall be 5 m for deep sewers."},
		{Source: "COP_Part1.pdf", Page: 13, Content: "Corridor distances are given in figure 3.2."},
	})

	answer, err := a.Ask(context.Background(), "What is the setback?")
	require.NoError(t, err)
	assert.Equal(t, chat.answer, answer)

	assert.Contains(t, chat.lastSystem, "Public Utilities Board")
	assert.Contains(t, chat.lastPrompt, "[source: COP_Part1.pdf p.12]")
	assert.Contains(t, chat.lastPrompt, "Setback shall be 5 m for deep sewers.")
	assert.Contains(t, chat.lastPrompt, "[source: COP_Part1.pdf p.13]")
	assert.Contains(t, chat.lastPrompt, assistant.NotFoundAnswer)
	assert.Contains(t, chat.lastPrompt, "What is the setback?")
}

func TestAskWithTempContextStrictEmptyExcerpts(t *testing.T) {
	chat := &fakeChat{answer: "should not be used"}
	a := newAssistant(chat, nil)

	answer, err := a.AskWithTempContext(context.Background(), "anything?", nil, true)
	require.NoError(t, err)
	assert.Equal(t, assistant.NotFoundAnswer, answer)
	assert.Zero(t, chat.calls, "no completion call without grounding material")
}

func TestAskWithTempContextGuards(t *testing.T) {
	excerpts := []models.Excerpt{
		{Text: "Freeboard is 15 percent.", Metadata: map[string]interface{}{"source": "notes.txt", "page": 1}},
	}

	chat := &fakeChat{answer: "ok"}
	a := newAssistant(chat, nil)

	_, err := a.AskWithTempContext(context.Background(), "freeboard?", excerpts, true)
	require.NoError(t, err)
	assert.Contains(t, chat.lastPrompt, assistant.NotFoundAnswer)
	assert.Contains(t, chat.lastPrompt, "[notes.txt p.1]")

	_, err = a.AskWithTempContext(context.Background(), "freeboard?", excerpts, false)
	require.NoError(t, err)
	assert.Contains(t, chat.lastPrompt, "general knowledge")
	assert.NotContains(t, chat.lastPrompt, "reply exactly")
}

func TestAnswerUploadedContextEndToEnd(t *testing.T) {
	chat := &fakeChat{answer: "The setback is 5 meters [setback.txt p.1]."}
	a := newAssistant(chat, nil)

	sess := session.New(hashEmbedder{})
	defer sess.Clear()

	resp, err := a.Answer(context.Background(), sess, assistant.AskRequest{
		Question: "What is the setback mentioned in annex B?",
		Files: []models.UploadedFile{
			{Name: "setback.txt", Data: []byte("The minimum setback for annex B pipes is 5 meters.")},
		},
		UseUploadedContext: true,
		Strict:             true,
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Excerpts)
	assert.Equal(t, "setback.txt", resp.Excerpts[0].Metadata["source"])
	assert.Contains(t, chat.lastPrompt, "[setback.txt p.1]")
	assert.Contains(t, chat.lastPrompt, "The minimum setback for annex B pipes is 5 meters.")
	assert.Contains(t, resp.Answer, "setback.txt")
}

func TestAnswerFallsBackWhenUploadsUnreadable(t *testing.T) {
	chat := &fakeChat{answer: "corpus answer"}
	a := newAssistant(chat, []models.RetrievedDocument{
		{Source: "COP_Part1.pdf", Page: 3, Content: "some corpus passage"},
	})

	sess := session.New(hashEmbedder{})
	defer sess.Clear()

	resp, err := a.Answer(context.Background(), sess, assistant.AskRequest{
		Question:           "What is the gradient?",
		Files:              []models.UploadedFile{{Name: "broken.pdf", Data: []byte("not a pdf")}},
		UseUploadedContext: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "corpus answer", resp.Answer)
	assert.Empty(t, resp.Excerpts)
	assert.Contains(t, chat.lastPrompt, "some corpus passage", "unreadable uploads fall back to the corpus")
}

func TestAnswerFlagWithoutFilesUsesCorpus(t *testing.T) {
	chat := &fakeChat{answer: "corpus answer"}
	a := newAssistant(chat, nil)

	sess := session.New(hashEmbedder{})
	defer sess.Clear()

	resp, err := a.Answer(context.Background(), sess, assistant.AskRequest{
		Question:           "Define freeboard.",
		UseUploadedContext: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "corpus answer", resp.Answer)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	a := newAssistant(&fakeChat{}, nil)
	sess := session.New(hashEmbedder{})
	defer sess.Clear()

	_, err := a.Answer(context.Background(), sess, assistant.AskRequest{Question: "   "})
	assert.Error(t, err)
}
