package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAnalyzeVoice_EmptyBatch(t *testing.T) {
	a := &Analyzer{C: &fakeCompleter{}}
	if _, err := a.AnalyzeVoice(context.Background(), nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("err = %v, want ErrNoSamples", err)
	}
}

func TestAnalyzeVoice_FencedProfileAccepted(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"```json\n{\"overall_voice_summary\":\"short and direct\"}\n```"}}
	a := &Analyzer{C: fc}

	doc, err := a.AnalyzeVoice(context.Background(), []SentSample{
		{To: []string{"alex@sequoia.com"}, Subject: "Re: intro", Body: "Done, intro sent."},
	})
	if err != nil {
		t.Fatalf("AnalyzeVoice: %v", err)
	}
	if doc != `{"overall_voice_summary":"short and direct"}` {
		t.Fatalf("doc = %q", doc)
	}
	if !strings.Contains(fc.lastUser, "Analyze these 1 sent emails") {
		t.Fatalf("sample framing missing:\n%s", fc.lastUser)
	}
}

func TestAnalyzeVoice_InvalidJSONFails(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"The owner writes short, direct emails."}}
	a := &Analyzer{C: fc}

	if _, err := a.AnalyzeVoice(context.Background(), []SentSample{{Subject: "x", Body: "y"}}); err == nil {
		t.Fatal("prose profile must be rejected")
	}
}

func TestClassifyRecipient_NormalizesAndDegrades(t *testing.T) {
	cases := []struct {
		response string
		err      error
		want     string
	}{
		{response: "Investor", want: "investor"},
		{response: "internal\n", want: "internal"},
		{response: "colleague", want: "unknown"},
		{err: errors.New("down"), want: "unknown"},
	}
	for _, tc := range cases {
		fc := &fakeCompleter{responses: []string{tc.response}}
		if tc.err != nil {
			fc.errs = []error{tc.err}
		}
		a := &Analyzer{C: fc}
		got := a.ClassifyRecipient(context.Background(), "sarah@profound.ai", "alex@sequoia.com", "Re: intro")
		if got != tc.want {
			t.Errorf("ClassifyRecipient(%q) = %q, want %q", tc.response, got, tc.want)
		}
	}
}
