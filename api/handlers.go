package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetconsole/models"
	"fleetconsole/remote"
	"fleetconsole/service"
)

// Handlers carries the console's wired components into the gin routes.
type Handlers struct {
	gateway    *remote.Client
	session    *service.Session
	agents     *service.AgentManager
	selection  *service.Selection
	dispatcher *service.Dispatcher
	history    *service.HistoryStore
	serverURL  string
}

func NewHandlers(gateway *remote.Client, session *service.Session, agents *service.AgentManager,
	selection *service.Selection, dispatcher *service.Dispatcher, history *service.HistoryStore,
	serverURL string) *Handlers {
	return &Handlers{
		gateway:    gateway,
		session:    session,
		agents:     agents,
		selection:  selection,
		dispatcher: dispatcher,
		history:    history,
		serverURL:  serverURL,
	}
}

type loginRequest struct {
	User string `json:"user" binding:"required"`
	Pass string `json:"pass" binding:"required"`
}

// Login proxies the operator's credentials to the command server and
// installs the returned token in the process-wide session.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("user and pass are required"))
		return
	}

	result, err := h.gateway.Login(c.Request.Context(), req.User, req.Pass)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("login failed"))
		return
	}

	h.session.Init(result.Token, result.Role)
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"role": result.Role}))
}

func (h *Handlers) Logout(c *gin.Context) {
	h.session.Clear()
	h.selection.Exit()
	c.JSON(http.StatusOK, models.MessageResponse("logged out"))
}

func (h *Handlers) Version(c *gin.Context) {
	version, err := h.gateway.Version(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"version": version}))
}

func (h *Handlers) GetAgents(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse(h.agents.Snapshot()))
}

// RefreshAgents forces a roster refresh outside the poll interval.
func (h *Handlers) RefreshAgents(c *gin.Context) {
	if err := h.agents.Refresh(c.Request.Context()); err != nil {
		if models.KindOf(err) == models.ErrUnauthorized {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("session expired"))
			return
		}
		c.JSON(http.StatusBadGateway, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(h.agents.Snapshot()))
}

type selectionModeRequest struct {
	Active    bool `json:"active"`
	SelectAll bool `json:"select_all"`
}

func (h *Handlers) SetSelectionMode(c *gin.Context) {
	var req selectionModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid selection mode request"))
		return
	}
	if req.Active {
		h.selection.EnterMode(h.agents.IDs(), req.SelectAll)
	} else {
		h.selection.Exit()
	}
	h.writeSelection(c)
}

type toggleRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *Handlers) ToggleSelection(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("agent id required"))
		return
	}
	if _, ok := h.agents.Get(req.ID); !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse("unknown agent: "+req.ID))
		return
	}
	h.selection.Toggle(req.ID)
	h.writeSelection(c)
}

func (h *Handlers) SelectAllOrNone(c *gin.Context) {
	h.selection.AllOrNone(h.agents.IDs())
	h.writeSelection(c)
}

func (h *Handlers) ClearSelection(c *gin.Context) {
	h.selection.Exit()
	h.writeSelection(c)
}

func (h *Handlers) GetSelection(c *gin.Context) {
	h.writeSelection(c)
}

func (h *Handlers) writeSelection(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"mode": h.selection.Mode().String(),
		"ids":  h.selection.IDs(),
	}))
}

// Dispatch runs one fleet dispatch against the current selection. The
// command arrives either as JSON or, for file-bearing variants, as a
// multipart form with a "kind" field and a "file" attachment.
func (h *Handlers) Dispatch(c *gin.Context) {
	cmd, err := readCommand(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
		return
	}

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), cmd)
	switch {
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, models.ErrorResponse(err.Error()))
	case errors.Is(err, service.ErrNothingSelected):
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.APIResponse{
			Success: false,
			Data:    outcome,
			Error:   err.Error(),
		})
	case err != nil:
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusOK, models.OutcomeResponse(outcome))
	}
}

// readCommand decodes the dispatch request body into a command value.
func readCommand(c *gin.Context) (models.Command, error) {
	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return models.Command{}, errors.New("multipart dispatch requires a file field")
		}
		file, err := header.Open()
		if err != nil {
			return models.Command{}, err
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return models.Command{}, err
		}
		return models.Command{
			Kind:     models.CommandKind(c.PostForm("kind")),
			File:     data,
			FileName: header.Filename,
		}, nil
	}

	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		return models.Command{}, errors.New("invalid command body")
	}
	return cmd, nil
}

func (h *Handlers) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, models.SuccessResponse([]service.DispatchRecord{}))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(records))
}
