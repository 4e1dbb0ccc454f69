// Package services holds the business logic for the draft lifecycle, the
// mail scan cycle, and the voice profile. This file centralizes the
// service-level error values; translation into user-facing messages or HTTP
// status codes happens at the handler layer.
package services

import "errors"

var (
	// ErrDraftNotFound indicates the requested draft does not exist.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrNotPending is returned when a lifecycle action targets a draft
	// that has already left pending_review, including the loser of a race
	// between two concurrent decisions.
	ErrNotPending = errors.New("draft is no longer pending")

	// ErrEmptyDraft is returned when a draft would be created or edited
	// with no text.
	ErrEmptyDraft = errors.New("draft text is empty")

	// ErrEmptyFeedback is returned when text feedback is blank.
	ErrEmptyFeedback = errors.New("feedback is empty")

	// ErrNoVoiceSamples is returned when a voice rebuild finds no sent
	// mail to learn from.
	ErrNoVoiceSamples = errors.New("no sent mail to analyze")
)
