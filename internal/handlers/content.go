package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"branddos/internal/ai"
	"branddos/internal/middleware"
	"branddos/internal/models"
	"branddos/internal/prompt"
)

// defaultContentType is used when /generate is called without a type.
const defaultContentType = "Social Media Post"

// Content groups the text generation and history handlers.
type Content struct {
	brands BrandStore
	posts  PostStore
	chats  ChatStore
	texts  TextAI
}

// NewContent creates a new Content handler group.
func NewContent(brands BrandStore, posts PostStore, chats ChatStore, texts TextAI) *Content {
	return &Content{brands: brands, posts: posts, chats: chats, texts: texts}
}

type chatRequest struct {
	Messages []chatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
}

type chatMessage struct {
	Role    string `json:"role" validate:"required,chatrole"`
	Content string `json:"content" validate:"max=8000"`
}

type generateRequest struct {
	Input string `json:"input" validate:"notblank,max=4000"`
	Type  string `json:"type" validate:"max=50"`
}

type deleteRequest struct {
	PostID string `json:"postId" validate:"required,uuid"`
}

// Chat answers the last message of a conversation. The brand settings shape
// the system prompt when present. The user message and the reply are
// persisted after the completion; a persistence failure does not fail the
// request.
func (c *Content) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	final := req.Messages[len(req.Messages)-1]
	last := strings.TrimSpace(final.Content)
	if last == "" {
		writeError(w, http.StatusBadRequest, "No message content")
		return
	}
	if models.ChatRole(final.Role) != models.ChatRoleUser {
		writeError(w, http.StatusBadRequest, "The last message must come from the user.")
		return
	}
	if !checkPromptSafety(w, r, c.texts, "chat", last) {
		return
	}

	brand, err := c.brands.FindByUser(userID)
	if err != nil {
		slog.Warn("chat brand lookup failed, using default prompt", "error", err)
		brand = nil
	}

	history := make([]ai.Message, len(req.Messages))
	for i, m := range req.Messages {
		history[i] = ai.Message{Role: m.Role, Content: m.Content}
	}

	reply, err := c.texts.Chat(r.Context(), prompt.ChatSystem(brand), history)
	if errors.Is(err, ai.ErrEmptyCompletion) {
		slog.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "AI failed to generate a reply.")
		return
	}
	if err != nil {
		writeFailure(w, "chat", err, "Failed to generate a reply.")
		return
	}
	reply = strings.TrimSpace(reply)

	var eg errgroup.Group
	eg.Go(func() error { return c.chats.Append(userID, models.ChatRoleUser, last) })
	eg.Go(func() error { return c.chats.Append(userID, models.ChatRoleAssistant, reply) })
	if err := eg.Wait(); err != nil {
		slog.Warn("chat persistence failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ChatHistory returns the caller's chat log, oldest first.
func (c *Content) ChatHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := c.chats.ListByUser(middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("chat history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load chat history.")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.ChatMessage{"messages": messages})
}

// Generate writes a piece of content for the caller's brand. The result is
// saved to the post history; if saving fails the content is still returned.
func (c *Content) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())
	input := strings.TrimSpace(req.Input)
	contentType := strings.TrimSpace(req.Type)
	if contentType == "" {
		contentType = defaultContentType
	}

	brand, ok := loadBrand(w, c.brands, userID, "generate")
	if !ok {
		return
	}
	if !checkPromptSafety(w, r, c.texts, "generate", input) {
		return
	}

	output, err := c.texts.Generate(r.Context(), "", prompt.Generate(brand, input, contentType))
	if errors.Is(err, ai.ErrEmptyCompletion) {
		slog.Error("generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "The AI failed to generate content.")
		return
	}
	if err != nil {
		writeFailure(w, "generate", err, "Failed to generate content.")
		return
	}
	output = strings.TrimSpace(output)

	if _, err := c.posts.Create(userID, input, output, contentType); err != nil {
		slog.Warn("generated post not saved", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

// History returns the caller's generated posts, newest first.
func (c *Content) History(w http.ResponseWriter, r *http.Request) {
	posts, err := c.posts.ListByUser(middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history.")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.GeneratedPost{"history": nonNilPosts(posts)})
}

// Delete removes one of the caller's posts.
func (c *Content) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.PostID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Post id is not a valid id.")
		return
	}

	deleted, err := c.posts.DeleteOwned(id, middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("delete post failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete post.")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func nonNilPosts(posts []models.GeneratedPost) []models.GeneratedPost {
	if posts == nil {
		return []models.GeneratedPost{}
	}
	return posts
}
