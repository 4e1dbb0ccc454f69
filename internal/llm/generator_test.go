package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

func TestGenerateMailDraft_NoRetryAndQuoteStrip(t *testing.T) {
	fc := &fakeCompleter{responses: []string{`"Happy to make that intro. Let me check with them first."`}}
	g := &Generator{C: fc, Persona: testPersona()}

	cls := domain.MailClassification{
		Category: domain.CategoryInvestorIntro,
		Priority: domain.PriorityHigh,
		Action:   domain.ActionDraftResponse,
		Summary:  "intro ask",
	}
	out, err := g.GenerateMailDraft(context.Background(), MailInput{
		From: "alex@sequoia.com", Subject: "Intro", Body: "Could you intro us?",
	}, cls, "", VoiceContext{})
	if err != nil {
		t.Fatalf("GenerateMailDraft: %v", err)
	}
	if out != "Happy to make that intro. Let me check with them first." {
		t.Fatalf("quotes not stripped: %q", out)
	}
	if fc.calls != 1 {
		t.Fatalf("generation must not retry, calls = %d", fc.calls)
	}
}

func TestGenerateMailDraft_ErrorPropagates(t *testing.T) {
	fc := &fakeCompleter{errs: []error{errors.New("overloaded")}}
	g := &Generator{C: fc, Persona: testPersona()}

	_, err := g.GenerateMailDraft(context.Background(), MailInput{Subject: "x"},
		domain.SafeMailClassification("x"), "", VoiceContext{})
	if err == nil {
		t.Fatal("generation failure must propagate, never produce an empty draft")
	}
	if fc.calls != 1 {
		t.Fatalf("generation must not retry, calls = %d", fc.calls)
	}
}

func TestGenerateMailDraft_VoiceProfileShapesPrompt(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"ok"}}
	g := &Generator{C: fc, Persona: testPersona()}

	voice := VoiceContext{
		ProfileJSON: `{
			"greeting_patterns": ["Hi [Name],"],
			"closing_patterns": ["Best,"],
			"formality_level": 2,
			"do_not_use": ["circle back"],
			"per_recipient_notes": {"investor": "lead with the relationship"},
			"overall_voice_summary": "Short and direct."
		}`,
		FeedbackSummary: "- drop the pleasantries",
		Examples: []domain.VoiceExample{
			{RecipientType: "investor", Subject: "Re: Q3", SentText: "Quick update below."},
		},
	}
	cls := domain.MailClassification{Category: domain.CategoryDealFlow, Priority: domain.PriorityHigh, Action: domain.ActionDraftResponse}
	if _, err := g.GenerateMailDraft(context.Background(), MailInput{Subject: "x"}, cls, "", voice); err != nil {
		t.Fatalf("GenerateMailDraft: %v", err)
	}

	sys := fc.lastSys
	for _, want := range []string{
		"Hi [Name],",
		"NEVER use: circle back",
		"With investors: lead with the relationship",
		"drop the pleasantries",
		"Re: Q3",
	} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, sys)
		}
	}
}

func TestGenerateMailDraft_DefaultVoiceBeforeFirstAnalysis(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"ok"}}
	g := &Generator{C: fc, Persona: testPersona()}

	if _, err := g.GenerateMailDraft(context.Background(), MailInput{Subject: "x"},
		domain.SafeMailClassification("x"), "", VoiceContext{}); err != nil {
		t.Fatalf("GenerateMailDraft: %v", err)
	}
	if !strings.Contains(fc.lastSys, "defaults, refined after voice analysis") {
		t.Fatalf("default voice section missing:\n%s", fc.lastSys)
	}
}

func TestGenerateChatDraft_GuidanceAndContext(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"On it, will send the deck by EOD."}}
	g := &Generator{C: fc, Persona: testPersona()}

	cls := domain.ChatClassification{
		NeedsResponse: true, Urgency: "high", Summary: "deck ask", DraftGuidance: "confirm timing",
	}
	out, err := g.GenerateChatDraft(context.Background(), ChatInput{
		Channel: "#partnerships", From: "U01CEO", Text: "deck?", ThreadContext: "CEO: board meets Friday",
	}, cls, VoiceContext{})
	if err != nil {
		t.Fatalf("GenerateChatDraft: %v", err)
	}
	if out != "On it, will send the deck by EOD." {
		t.Fatalf("draft = %q", out)
	}
	for _, want := range []string{"Guidance: confirm timing", "board meets Friday"} {
		if !strings.Contains(fc.lastUser, want) {
			t.Fatalf("prompt missing %q:\n%s", want, fc.lastUser)
		}
	}
}

func TestGenerateExternalDraft_ParsesEnvelope(t *testing.T) {
	fc := &fakeCompleter{responses: []string{
		"```json\n{\"draft_text\":\"\\\"Thanks for reaching out!\\\"\",\"needs_response\":true,\"urgency\":\"medium\",\"summary\":\"recruiter ping\"}\n```",
	}}
	g := &Generator{C: fc, Persona: testPersona()}

	res, err := g.GenerateExternalDraft(context.Background(), ExternalInput{
		SenderName: "Jordan Lee", SenderHeadline: "Talent @ Index", MessageText: "Open to a chat?",
	}, VoiceContext{})
	if err != nil {
		t.Fatalf("GenerateExternalDraft: %v", err)
	}
	if !res.NeedsResponse || res.Urgency != "medium" {
		t.Fatalf("envelope mis-parsed: %+v", res)
	}
	if res.DraftText != "Thanks for reaching out!" {
		t.Fatalf("quotes not stripped: %q", res.DraftText)
	}
}

func TestGenerateExternalDraft_BadJSONFails(t *testing.T) {
	fc := &fakeCompleter{responses: []string{"sure, here's a draft"}}
	g := &Generator{C: fc, Persona: testPersona()}

	if _, err := g.GenerateExternalDraft(context.Background(), ExternalInput{MessageText: "x"}, VoiceContext{}); err == nil {
		t.Fatal("unparseable envelope must fail, not fabricate a draft")
	}
}

func TestRecipientTypeFor(t *testing.T) {
	cases := map[domain.MailCategory]string{
		domain.CategoryInvestorIntro:    "investor",
		domain.CategoryDealFlow:         "investor",
		domain.CategoryInternalAction:   "internal",
		domain.CategoryPortfolioRequest: "partner",
		domain.CategoryNewsletter:       "",
	}
	for cat, want := range cases {
		if got := RecipientTypeFor(cat); got != want {
			t.Errorf("RecipientTypeFor(%s) = %q, want %q", cat, got, want)
		}
	}
}
