package push

import (
	"context"
	"log/slog"
	"sync"
)

// Message is one push handed to a Recorder.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Recorder keeps pushes in memory instead of sending them. It backs
// STORE_BACKEND=memory runs and tests. Err, when set, fails every send after
// recording it.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, token, title, body string, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Message{Token: token, Title: title, Body: body, Data: data})
	if r.Err != nil {
		return r.Err
	}
	slog.Info("push recorded", "title", title)
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo returns the messages addressed to token.
func (r *Recorder) SentTo(token string) []Message {
	var out []Message
	for _, m := range r.Sent() {
		if m.Token == token {
			out = append(out, m)
		}
	}
	return out
}
