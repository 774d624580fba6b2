package main

import (
	"context"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
	"github.com/theimaginaryfoundation/opinion-amplifier/provider"
)

// textGenerator is the part of provider.Generator the writer needs.
type textGenerator interface {
	Generate(ctx context.Context, req provider.Request) (string, error)
}

// modelWriter implements abm.PostWriter over the Responses API.
type modelWriter struct {
	gen  textGenerator
	lang string
}

func (w *modelWriter) WritePost(ctx context.Context, req abm.PostRequest) (string, error) {
	return w.gen.Generate(ctx, provider.Request{
		Instructions:    buildInstructions(req, w.lang),
		Input:           userTurn,
		MaxOutputTokens: int64(req.MaxTokens),
	})
}
