package llm

import "context"

// Static is a Client that always answers with the same text. Used when no
// backend is configured and as a test double.
type Static string

func (s Static) Generate(ctx context.Context, messages []Message) (Response, error) {
	return Response{Content: string(s)}, nil
}
