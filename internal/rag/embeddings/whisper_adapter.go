package embeddings

import (
	"bytes"
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"Muninn/internal/embedding"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// WhisperAdapter turns audio files into embedded transcript segments. A
// speech-to-text model produces timed segments; very short segments are
// merged with their neighbors so each retrievable unit carries enough
// words to embed meaningfully; the merged texts are then embedded by the
// same kind of sentence encoder the text modality uses, but into the
// separate audio index.
type WhisperAdapter struct {
	client     *openai.Client
	model      string
	embedder   embedding.Embedding
	dim        int
	minSegment float64
}

// NewWhisperAdapter builds the audio adapter. minSegment is the minimum
// merged segment length in seconds; zero or negative disables merging.
func NewWhisperAdapter(client *openai.Client, model string, embedder embedding.Embedding, dim int, minSegment float64) *WhisperAdapter {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperAdapter{
		client:     client,
		model:      model,
		embedder:   embedder,
		dim:        dim,
		minSegment: minSegment,
	}
}

// transcriptSegment is one timed span of recognized speech.
type transcriptSegment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

// TranscribeAndEmbed transcribes the audio and embeds every merged
// segment. Audio without recognizable speech yields no segments and no
// error.
func (a *WhisperAdapter) TranscribeAndEmbed(ctx context.Context, data []byte) ([]schema.SegmentVector, error) {
	// The transcription endpoint infers the container format from the
	// upload's file extension, so derive one from the content.
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: "audio" + mimetype.Detect(data).Extension(),
		Reader:   bytes.NewReader(data),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityAudio), BatchIndex: -1, Err: err}
	}

	var segments []transcriptSegment
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcriptSegment{Text: text, StartSec: seg.Start, EndSec: seg.End})
	}
	segments = mergeShortSegments(segments, a.minSegment)
	if len(segments) == 0 {
		return nil, nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	vectors, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityAudio), BatchIndex: -1, Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &ragerr.EmbeddingError{
			Modality:   string(schema.ModalityAudio),
			BatchIndex: -1,
			Err:        ragerr.NewValidation("batch", "model returned %d vectors for %d segments", len(vectors), len(texts)),
		}
	}

	out := make([]schema.SegmentVector, len(segments))
	for i, seg := range segments {
		if len(vectors[i]) != a.dim {
			return nil, &ragerr.EmbeddingError{
				Modality:   string(schema.ModalityAudio),
				BatchIndex: i,
				WantDim:    a.dim,
				GotDim:     len(vectors[i]),
			}
		}
		out[i] = schema.SegmentVector{
			Text:     seg.Text,
			StartSec: seg.StartSec,
			EndSec:   seg.EndSec,
			Vector:   vectors[i],
		}
	}
	return out, nil
}

// EmbedQuery embeds a text query into the audio transcript space.
func (a *WhisperAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Modality: string(schema.ModalityAudio), BatchIndex: -1, Err: err}
	}
	if len(v) != a.dim {
		return nil, &ragerr.EmbeddingError{
			Modality:   string(schema.ModalityAudio),
			BatchIndex: -1,
			WantDim:    a.dim,
			GotDim:     len(v),
		}
	}
	return v, nil
}

// Dimensions returns the fixed size of the audio modality space.
func (a *WhisperAdapter) Dimensions() int { return a.dim }

// mergeShortSegments joins consecutive segments until each covers at least
// minSec of audio. A short trailing remainder is folded into the previous
// merged segment so no fragment is left too small to stand alone.
func mergeShortSegments(segments []transcriptSegment, minSec float64) []transcriptSegment {
	if minSec <= 0 || len(segments) == 0 {
		return segments
	}
	var merged []transcriptSegment
	cur := segments[0]
	for _, seg := range segments[1:] {
		if cur.EndSec-cur.StartSec >= minSec {
			merged = append(merged, cur)
			cur = seg
			continue
		}
		cur.Text = cur.Text + " " + seg.Text
		cur.EndSec = seg.EndSec
	}
	if cur.EndSec-cur.StartSec < minSec && len(merged) > 0 {
		last := &merged[len(merged)-1]
		last.Text = last.Text + " " + cur.Text
		last.EndSec = cur.EndSec
	} else {
		merged = append(merged, cur)
	}
	return merged
}

// compile-time check to ensure WhisperAdapter implements the AudioEmbedder interface
var _ interfaces.AudioEmbedder = (*WhisperAdapter)(nil)
