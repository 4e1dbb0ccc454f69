package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSamples is returned when a voice analysis is requested with no sent
// mail to learn from.
var ErrNoSamples = errors.New("no samples to analyze")

// SentSample is one sent email fed into voice analysis.
type SentSample struct {
	To      []string
	Subject string
	Body    string
}

const (
	analysisMaxTokens  = 2000
	recipientMaxTokens = 10

	// maxAnalysisSamples caps how many sent emails go into one analysis
	// call; more adds cost without moving the profile.
	maxAnalysisSamples = 100
)

// Analyzer turns a batch of sent emails into the owner's voice profile.
type Analyzer struct {
	C Completer
}

// AnalyzeVoice runs one completion over the sample batch and returns the
// profile as a JSON document, validated to parse before it is returned.
func (a *Analyzer) AnalyzeVoice(ctx context.Context, samples []SentSample) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if len(samples) > maxAnalysisSamples {
		samples = samples[:maxAnalysisSamples]
	}

	parts := make([]string, 0, len(samples))
	for _, s := range samples {
		parts = append(parts, fmt.Sprintf("To: %s\nSubject: %s\n---\n%s",
			strings.Join(head(s.To, 3), ", "), s.Subject, clip(s.Body, 1000)))
	}
	user := fmt.Sprintf("Analyze these %d sent emails:\n\n%s",
		len(parts), strings.Join(parts, "\n\n===== EMAIL =====\n\n"))

	out, err := a.C.Complete(ctx, voiceAnalysisSystem, user, analysisMaxTokens)
	if err != nil {
		return "", fmt.Errorf("voice analysis: %w", err)
	}

	doc := stripFences(out)
	if !json.Valid([]byte(doc)) {
		return "", fmt.Errorf("voice analysis returned invalid JSON: %s", clip(doc, 200))
	}
	return doc, nil
}

// ClassifyRecipient tags one sent email with a recipient type
// (investor/internal/partner/vendor/unknown). Any failure degrades to
// "unknown" rather than blocking the example save.
func (a *Analyzer) ClassifyRecipient(ctx context.Context, fromEmail, toEmail, subject string) string {
	user := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s", fromEmail, toEmail, subject)
	out, err := a.C.Complete(ctx, recipientClassifySystem, user, recipientMaxTokens)
	if err != nil {
		return "unknown"
	}
	switch t := strings.ToLower(strings.TrimSpace(out)); t {
	case "investor", "internal", "partner", "vendor":
		return t
	}
	return "unknown"
}
