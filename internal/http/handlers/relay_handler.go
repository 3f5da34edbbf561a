// Relay HTTP handlers.
//
// This file exposes the relay over REST, mirroring the chat commands:
//   - POST   /users/{id}/messages   (relay a message, return the replies)
//   - POST   /users/{id}/start      (greet and prime the hot cache)
//   - GET    /help                  (static help text)
//   - DELETE /users/{id}/cache      (drop the user's context)
//   - GET    /users/{id}/context    (latest durable entry)
//
// Replies that a chat transport would send one by one are collected and
// returned in order in the response body.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-context-relay/internal/domain"
	"github.com/tbourn/go-context-relay/internal/repo"
	"github.com/tbourn/go-context-relay/internal/services"
	"github.com/tbourn/go-context-relay/internal/utils"
)

//
// Service contracts (context-aware)
//

// RelayService is the message orchestration consumed by the handlers.
// *services.RelayService implements it.
type RelayService interface {
	IsAuthorized(userID int64) bool
	HandleMessage(ctx context.Context, userID int64, text string, out services.Replier) (*services.Outcome, error)
	Start(ctx context.Context, userID int64, out services.Replier) (bool, error)
	Help(ctx context.Context, userID int64, out services.Replier) error
	DropCache(ctx context.Context, userID int64, out services.Replier) error
}

// ContextReader reads durable context. *services.ContextService implements it.
type ContextReader interface {
	Last(ctx context.Context, userID int64) (*domain.ContextEntry, error)
}

// Handlers groups the relay endpoints.
type Handlers struct {
	relay   RelayService
	context ContextReader
}

// New constructs Handlers bound to the given services.
func New(relay RelayService, ctxReader ContextReader) *Handlers {
	return &Handlers{relay: relay, context: ctxReader}
}

//
// DTOs
//

// PostMessageRequest is the JSON payload for relaying a message.
type PostMessageRequest struct {
	// Text is the user's message. It must be non-empty.
	Text string `json:"text" binding:"required" example:"What is the capital of France?"`
}

// PostMessageResponse carries the replies produced for a relayed message.
type PostMessageResponse struct {
	ResolutionID string   `json:"resolution_id" example:"5b1f3c2e-8f0a-4a55-9d7e-2f3a9c0b6d11"`
	State        string   `json:"state" example:"persisted"`
	Replies      []string `json:"replies"`
	ContextUsed  bool     `json:"context_used" example:"true"`
	Persisted    bool     `json:"persisted" example:"true"`
}

// RepliesResponse carries the replies of a command.
type RepliesResponse struct {
	Replies []string `json:"replies"`
}

// StartResponse is returned by the start command.
type StartResponse struct {
	Replies []string `json:"replies"`
	// Primed reports whether prior context was loaded into the hot cache.
	Primed bool `json:"primed" example:"true"`
}

// ContextEntryResponse is the latest durable entry of a user.
type ContextEntryResponse struct {
	ID     int64  `json:"id" example:"17"`
	UserID int64  `json:"user_id" example:"42"`
	Text   string `json:"text" example:"What is the capital of France?"`
}

//
// Helpers
//

// replyBuffer collects replies in delivery order.
type replyBuffer struct {
	mu    sync.Mutex
	texts []string
}

func (b *replyBuffer) Reply(_ context.Context, _ int64, text string) error {
	b.mu.Lock()
	b.texts = append(b.texts, text)
	b.mu.Unlock()
	return nil
}

func (b *replyBuffer) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.texts))
	copy(out, b.texts)
	return out
}

// pathUserID parses the ":id" route parameter or writes a 400.
func pathUserID(c *gin.Context) (int64, bool) {
	id, valid := utils.ParseUserID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be an integer")
		return 0, false
	}
	return id, true
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Relay a message
// @Description Resolves prior context for the user, calls the completion backend and
// @Description returns every reply (acknowledgement first, then the completion in chunks).
// @Tags        Relay
// @Accept      json
// @Produce     json
// @Param       id    path  int                          true  "User ID"  example(42)
// @Param       body  body  handlers.PostMessageRequest  true  "Message payload"
// @Success     200  {object}  handlers.PostMessageResponse  "Replies"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse        "User not on the allowlist"
// @Failure     502  {object}  handlers.ErrorResponse        "Completion backend failed"
// @Router      /users/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	userID, valid := pathUserID(c)
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	out := &replyBuffer{}
	o, err := h.relay.HandleMessage(c.Request.Context(), userID, req.Text, out)
	var be *services.BackendError
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusForbidden, ErrCodeForbidden, services.MsgDenied)
		return
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	case errors.As(err, &be):
		fail(c, http.StatusBadGateway, ErrCodeCompletionFailed, services.MsgFailure, out.all()...)
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error(), out.all()...)
		return
	}

	ok(c, http.StatusOK, PostMessageResponse{
		ResolutionID: o.ResolutionID,
		State:        string(o.State),
		Replies:      out.all(),
		ContextUsed:  o.ContextUsed,
		Persisted:    o.Persisted,
	})
}

// StartSession godoc
// @ID          startSession
// @Summary     Start a session
// @Description Greets the user and primes the hot cache from their latest stored message.
// @Tags        Relay
// @Produce     json
// @Param       id  path  int  true  "User ID"  example(42)
// @Success     200  {object}  handlers.StartResponse  "Greeting"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "User not on the allowlist"
// @Failure     500  {object}  handlers.ErrorResponse  "Priming failed"
// @Router      /users/{id}/start [post]
func (h *Handlers) StartSession(c *gin.Context) {
	userID, valid := pathUserID(c)
	if !valid {
		return
	}

	out := &replyBuffer{}
	primed, err := h.relay.Start(c.Request.Context(), userID, out)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusForbidden, ErrCodeForbidden, services.MsgDenied)
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodePrimeFailed, err.Error(), out.all()...)
		return
	}

	ok(c, http.StatusOK, StartResponse{Replies: out.all(), Primed: primed})
}

// Help godoc
// @ID          help
// @Summary     Help text
// @Description Static usage help. Available to every caller.
// @Tags        Relay
// @Produce     json
// @Success     200  {object}  handlers.RepliesResponse  "Help"
// @Router      /help [get]
func (h *Handlers) Help(c *gin.Context) {
	out := &replyBuffer{}
	if err := h.relay.Help(c.Request.Context(), 0, out); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, RepliesResponse{Replies: out.all()})
}

// DropCache godoc
// @ID          dropCache
// @Summary     Drop the user's context
// @Description Purges the user's stored messages and their hot-cache entry. Idempotent.
// @Tags        Relay
// @Produce     json
// @Param       id  path  int  true  "User ID"  example(42)
// @Success     200  {object}  handlers.RepliesResponse  "Confirmation"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse    "User not on the allowlist"
// @Failure     500  {object}  handlers.ErrorResponse    "Purge failed"
// @Router      /users/{id}/cache [delete]
func (h *Handlers) DropCache(c *gin.Context) {
	userID, valid := pathUserID(c)
	if !valid {
		return
	}

	out := &replyBuffer{}
	err := h.relay.DropCache(c.Request.Context(), userID, out)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusForbidden, ErrCodeForbidden, services.MsgDenied)
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDropFailed, services.MsgFailure)
		return
	}

	ok(c, http.StatusOK, RepliesResponse{Replies: out.all()})
}

// GetContext godoc
// @ID          getContext
// @Summary     Latest stored message
// @Description Returns the user's most recent durable context entry.
// @Tags        Relay
// @Produce     json
// @Param       id  path  int  true  "User ID"  example(42)
// @Success     200  {object}  handlers.ContextEntryResponse  "Latest entry"
// @Failure     400  {object}  handlers.ErrorResponse         "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse         "User not on the allowlist"
// @Failure     404  {object}  handlers.ErrorResponse         "No history"
// @Failure     500  {object}  handlers.ErrorResponse         "Read failed"
// @Router      /users/{id}/context [get]
func (h *Handlers) GetContext(c *gin.Context) {
	userID, valid := pathUserID(c)
	if !valid {
		return
	}
	if !h.relay.IsAuthorized(userID) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, services.MsgDenied)
		return
	}

	e, err := h.context.Last(c.Request.Context(), userID)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no context for user")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeContextFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ContextEntryResponse{ID: e.ID, UserID: e.UserID, Text: e.Text})
}
