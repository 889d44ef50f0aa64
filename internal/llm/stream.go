package llm

import (
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Stream is a lazy, finite, single-pass producer of completion text
// fragments. Recv returns io.EOF when the sequence ends. Close releases
// the underlying connection and is safe to call at any point, so a
// caller that stops consuming early does not leak the model connection.
// Concatenating every fragment yields the same text a non-streaming
// call would produce for equivalent sampling.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// openaiStream adapts the go-openai stream, skipping empty deltas.
type openaiStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

// textStream replays fixed fragments. Used for terminal outcomes that
// must still honor the streaming contract, like a moderation refusal.
type textStream struct {
	fragments []string
	pos       int
}

// NewTextStream returns a Stream that yields the given fragments in
// order, then io.EOF.
func NewTextStream(fragments ...string) Stream {
	return &textStream{fragments: fragments}
}

func (s *textStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	out := s.fragments[s.pos]
	s.pos++
	return out, nil
}

func (s *textStream) Close() error { return nil }

// Collect drains a stream, concatenates its fragments, and closes it.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var out string
	for {
		fragment, err := s.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out += fragment
	}
}
