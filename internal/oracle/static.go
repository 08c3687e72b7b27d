package oracle

import "context"

// Static always returns the same reply. Used for offline dry runs and as a
// test double; with an empty reply it forces every caller down its
// fallback path.
type Static struct {
	Reply string
	Err   error
}

// NewStatic builds a fixed-reply oracle.
func NewStatic(reply string) *Static {
	return &Static{Reply: reply}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Generate(ctx context.Context, prompt string) (string, error) {
	return s.GenerateWithSystem(ctx, "", prompt)
}

func (s *Static) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}
