package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) Chat(ctx context.Context, system, user string) (string, error) {
	f.prompt = user
	return f.reply, f.err
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want DetailLevel
	}{
		{"quick", Quick},
		{"QUICK", Quick},
		{"detailed", Detailed},
		{"standard", Standard},
		{"", Standard},
		{"bogus", Standard},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSummarize_EmptyText(t *testing.T) {
	s := New(&fakeGenerator{})
	if _, err := s.Summarize(context.Background(), "  \n ", Standard); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestSummarize_LevelSelectsPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: " summary "}
	s := New(gen)

	got, err := s.Summarize(context.Background(), "Some content worth summarizing.", Quick)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "summary" {
		t.Errorf("summary = %q, want trimmed reply", got)
	}
	if !strings.Contains(gen.prompt, "2-3 key bullet points") {
		t.Errorf("prompt = %q, want quick-level wording", gen.prompt)
	}
}

func TestSummarize_TruncatesLongInput(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := New(gen)

	long := strings.Repeat("a", 20000)
	if _, err := s.Summarize(context.Background(), long, Quick); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(gen.prompt) > 9000 {
		t.Errorf("prompt length = %d, want input truncated to the quick limit", len(gen.prompt))
	}
}

func TestSummarize_ProviderError(t *testing.T) {
	wantErr := errors.New("provider down")
	s := New(&fakeGenerator{err: wantErr})

	if _, err := s.Summarize(context.Background(), "Some content.", Standard); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}
