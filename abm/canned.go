package abm

import (
	"context"
	"hash/fnv"
)

var cannedPosts = map[Role][]string{
	RoleContrarian: {
		"WAKE UP! They're lying to you about the real cost of this 'green transition'! Who profits?",
		"Your power bill doubled and they call it progress?! Stop swallowing the propaganda!",
		"Ask yourself why the 'experts' never mention the blackouts. Open your eyes!",
		"This is a scam dressed up as science. Why do you keep defending it?!",
	},
	RoleConsensus: {
		"The evidence shows that a gradual transition lowers long-term costs, because storage prices keep falling.",
		"I understand the concern about prices. However, the data suggests that balanced investment protects households.",
		"That's a fair point, and research indicates we can manage the short-term costs with targeted support.",
		"Studies consistently find that diversified energy sources improve reliability, so a measured approach makes sense.",
	},
	RoleNeutral: {
		"I'm not sure what to think. Maybe both sides have a point?",
		"Honestly I just want stable prices. Can someone explain the trade-offs?",
		"Interesting discussion. I'd like to see more numbers before deciding.",
		"I can see why people are worried, but I also see the long-term benefits.",
	},
}

// CannedWriter returns fixed posts per role. The choice depends only on the
// agent and round, so runs are reproducible.
type CannedWriter struct {
	Posts map[Role][]string
}

// NewCannedWriter returns a writer over the built-in post set.
func NewCannedWriter() *CannedWriter {
	return &CannedWriter{Posts: cannedPosts}
}

func (w *CannedWriter) WritePost(ctx context.Context, req PostRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	posts := w.Posts[req.Role]
	if len(posts) == 0 {
		posts = cannedPosts[req.Role]
	}
	if len(posts) == 0 {
		return "", nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.AgentID))
	i := (int(h.Sum32()%uint32(len(posts))) + req.Round) % len(posts)
	return posts[i], nil
}
