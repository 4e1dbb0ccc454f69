// Draft HTTP handlers.
//
// This file exposes the read-side draft API plus the external draft
// endpoint:
//   - GET  /drafts           (list, paginated, ETag support)
//   - GET  /drafts/{id}      (fetch one)
//   - POST /drafts/external  (bearer-authenticated draft generation for
//     channels the assistant cannot watch directly)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. All draft decisions
// (approve/edit/reject/skip) happen over Slack, never over HTTP.
package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smadden/go-inbox-assistant/internal/domain"
	"github.com/smadden/go-inbox-assistant/internal/llm"
	"github.com/smadden/go-inbox-assistant/internal/services"
	"github.com/smadden/go-inbox-assistant/internal/utils"
)

//
// Service contracts (context-aware)
//

// DraftReader defines the read-side draft operations consumed by HTTP
// handlers. Implementations must honor the provided context.
type DraftReader interface {
	// Get returns one draft by id.
	Get(ctx context.Context, id string) (*domain.Draft, error)
	// ListPage returns a page of drafts, optionally filtered by status,
	// plus the total count for that filter.
	ListPage(ctx context.Context, status domain.DraftStatus, page, pageSize int) ([]domain.Draft, int64, error)
	// Stats returns the draft count and latest creation time, used for
	// cheap ETag computation.
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// ExternalDrafter produces a reply draft for a message pasted in from a
// channel the assistant has no API access to.
type ExternalDrafter interface {
	GenerateExternalDraft(ctx context.Context, in llm.ExternalInput, voice llm.VoiceContext) (domain.ExternalDraft, error)
}

// VoiceProvider assembles the owner's voice context for draft generation.
type VoiceProvider interface {
	Context(ctx context.Context, recipientType string) llm.VoiceContext
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for drafts.
type Handlers struct {
	drafts  DraftReader
	drafter ExternalDrafter
	voice   VoiceProvider
	// secret authorizes POST /drafts/external. Empty disables the endpoint.
	secret string
}

// New constructs a Handlers instance bound to the given services.
func New(drafts DraftReader, drafter ExternalDrafter, voice VoiceProvider, externalSecret string) *Handlers {
	return &Handlers{drafts: drafts, drafter: drafter, voice: voice, secret: externalSecret}
}

//
// DTOs
//

// ExternalDraftRequest is the JSON payload for the external draft endpoint:
// a message from a surface the assistant cannot watch (e.g. LinkedIn),
// pasted in by a relay.
type ExternalDraftRequest struct {
	SenderName          string   `json:"sender_name" binding:"required"`
	SenderHeadline      string   `json:"sender_headline"`
	MessageText         string   `json:"message_text" binding:"required"`
	ConversationContext []string `json:"conversation_context"`
	ConversationID      string   `json:"conversation_id"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDraftsResponse wraps a page of drafts and pagination information.
type ListDraftsResponse struct {
	Drafts     []domain.Draft `json:"drafts"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params,
// returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// statusFilter validates the optional ?status= query param against the
// draft status enum. Returns ("", false) on an unknown value.
func statusFilter(c *gin.Context) (domain.DraftStatus, bool) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return "", true
	}
	s := domain.DraftStatus(raw)
	switch s {
	case domain.StatusPendingReview, domain.StatusApproved, domain.StatusRejected,
		domain.StatusSent, domain.StatusSkipped, domain.StatusExpired:
		return s, true
	}
	return "", false
}

//
// Handlers
//

// ListDrafts returns a page of drafts, newest first, optionally filtered by
// status. Supports weak ETag via If-None-Match and may return 304.
func (h *Handlers) ListDrafts(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	status, valid := statusFilter(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
		return
	}

	// ETag pre-check (best effort). Only for unfiltered listings, where
	// count+latest fully determine the result set.
	if status == "" {
		if count, latest, err := h.drafts.Stats(ctx); err == nil {
			var ts int64
			if latest != nil {
				ts = latest.Unix()
			}
			etag := fmt.Sprintf(`W/"drafts:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.drafts.ListPage(ctx, status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDraftsResponse{
		Drafts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDraft returns a single draft by id.
func (h *Handlers) GetDraft(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "draft id must be a UUID")
		return
	}

	d, err := h.drafts.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrDraftNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "draft not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}

// ExternalDraft drafts a reply for a message from an unwatched channel.
// Authenticated with a shared bearer secret; the draft is returned to the
// caller and never enters the review lifecycle.
func (h *Handlers) ExternalDraft(c *gin.Context) {
	if !h.authorized(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or missing bearer token")
		return
	}

	var req ExternalDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sender_name and message_text are required")
		return
	}

	ctx := c.Request.Context()
	out, err := h.drafter.GenerateExternalDraft(ctx, llm.ExternalInput{
		SenderName:     req.SenderName,
		SenderHeadline: req.SenderHeadline,
		MessageText:    req.MessageText,
		Context:        req.ConversationContext,
	}, h.voice.Context(ctx, ""))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeGenerateFailed, "draft generation failed")
		return
	}
	ok(c, http.StatusOK, out)
}

// authorized checks the Authorization bearer token in constant time.
func (h *Handlers) authorized(c *gin.Context) bool {
	if h.secret == "" {
		return false
	}
	auth := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
