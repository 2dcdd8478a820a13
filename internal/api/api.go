// Package api exposes the board over HTTP: auth, task mutations, user
// and activity reads, and the websocket endpoint for live events.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowdeck-dev/flowdeck/internal/auth"
	"github.com/flowdeck-dev/flowdeck/internal/board"
	"github.com/flowdeck-dev/flowdeck/internal/hub"
	"github.com/flowdeck-dev/flowdeck/internal/store"
	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// activityFeedLimit caps how many records the feed endpoint returns.
const activityFeedLimit = 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler holds the collaborators every route needs.
type Handler struct {
	Store   store.BoardStore
	Applier *board.Applier
	Hub     *hub.Hub
	Auth    *auth.Manager
}

// Mount wires all routes onto the engine. Everything under /api except
// the auth endpoints requires a valid token.
func (h *Handler) Mount(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/auth/register", h.RegisterUser)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", h.Auth.Middleware())
	{
		authed.GET("/auth/me", h.Me)

		authed.GET("/tasks", h.ListTasks)
		authed.POST("/tasks", h.CreateTask)
		authed.PUT("/tasks/:id", h.UpdateTask)
		authed.DELETE("/tasks/:id", h.DeleteTask)
		authed.POST("/tasks/:id/smart-assign", h.SmartAssign)
		authed.POST("/tasks/:id/resolve-conflict", h.ResolveConflict)

		authed.GET("/users", h.ListUsers)
		authed.GET("/users/:id", h.GetUser)
		authed.GET("/activities", h.ListActivities)
	}

	r.GET("/ws", h.Connect)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// --- Auth ---

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := &schema.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Store.InsertUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "user already exists"})
			return
		}
		h.fail(c, err)
		return
	}

	token, err := h.Auth.Mint(u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": u})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	u, err := h.Store.GetUserByEmail(req.Email)
	if err != nil || !u.Active || !auth.CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}

	token, err := h.Auth.Mint(u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": auth.CurrentUser(c)})
}

// --- Tasks ---

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.Store.ListTasks()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	AssigneeID  string `json:"assignee_id"`
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	task, err := h.Applier.Create(auth.CurrentUser(c), board.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      schema.Status(req.Status),
		Priority:    schema.Priority(req.Priority),
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	AssigneeID  *string `json:"assignee_id"`
	// Version is the version the client last saw. Zero skips the
	// conflict check.
	Version int `json:"version"`
}

func (h *Handler) UpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	changes := board.Changes{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != nil {
		s := schema.Status(*req.Status)
		changes.Status = &s
	}
	if req.Priority != nil {
		p := schema.Priority(*req.Priority)
		changes.Priority = &p
	}

	task, err := h.Applier.Update(auth.CurrentUser(c), c.Param("id"), changes, req.Version)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	if err := h.Applier.Delete(auth.CurrentUser(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted successfully"})
}

func (h *Handler) SmartAssign(c *gin.Context) {
	task, err := h.Applier.SmartAssign(auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type resolveConflictRequest struct {
	Resolved   *schema.Task `json:"resolved" binding:"required"`
	ConflictID string       `json:"conflict_id"`
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	task, err := h.Applier.Resolve(auth.CurrentUser(c), c.Param("id"), req.Resolved)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// --- Users & activities ---

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Store.ListUsers(true)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.Store.GetUser(c.Param("id"))
	if err != nil || !u.Active {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) ListActivities(c *gin.Context) {
	activities, err := h.Store.ListActivities(activityFeedLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

// --- Websocket ---

// Connect authenticates the handshake, upgrades it, and serves the
// session until the client goes away. Unauthenticated attempts are
// rejected before any event subscription happens.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = trimBearer(c.GetHeader("Authorization"))
	}
	u, err := h.Auth.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	s := hub.NewSession(u.Ref(), conn)
	h.Hub.Register(s)
	s.Serve(h.Hub)
}

func trimBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

// fail translates a core error into its HTTP shape. Conflicts get a
// dedicated 409 carrying both candidate snapshots so clients never have
// to sniff payload shapes.
func (h *Handler) fail(c *gin.Context, err error) {
	var validation *board.ValidationError
	var conflict *board.ConflictError

	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, schema.ConflictPayload{
			Message:  "task was modified by another user",
			Current:  conflict.Current,
			Proposed: conflict.Proposed,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"message": validation.Message})
	case errors.Is(err, board.ErrNoCandidates):
		c.JSON(http.StatusBadRequest, gin.H{"message": "no available users for assignment"})
	case errors.Is(err, store.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "task not found"})
	case errors.Is(err, store.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
	default:
		slog.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
