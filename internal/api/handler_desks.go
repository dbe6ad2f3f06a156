package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"checkin-desk-backend/internal/capture"
	"checkin-desk-backend/internal/checkin"
	"checkin-desk-backend/internal/desk"
)

// maxFrameBytes bounds one uploaded camera frame.
const maxFrameBytes = 4 << 20

type deskResponse struct {
	Desk    desk.View        `json:"desk"`
	Notices []checkin.Notice `json:"notices"`
	Scan    *desk.ScanResult `json:"scan,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// statusFor maps an intent error to an HTTP status. Business and transport
// failures are absorbed: the notices already tell staff what happened.
func statusFor(err error) int {
	var capErr *capture.Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, desk.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, checkin.ErrBusy),
		errors.Is(err, checkin.ErrStale),
		errors.Is(err, capture.ErrCaptureInProgress),
		errors.Is(err, capture.ErrCaptureStopped),
		errors.Is(err, capture.ErrNoCapture),
		errors.Is(err, capture.ErrNoStream):
		return http.StatusConflict
	case checkin.IsValidation(err):
		return http.StatusUnprocessableEntity
	case checkin.IsRejected(err),
		errors.Is(err, checkin.ErrTransport),
		errors.As(err, &capErr),
		errors.Is(err, capture.ErrScannerUnavailable):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respond(c *gin.Context, d *desk.Desk, err error) {
	h.respondScan(c, d, nil, err)
}

func (h *Handler) respondScan(c *gin.Context, d *desk.Desk, scan *desk.ScanResult, err error) {
	resp := h.deskBody(c, d, err)
	resp.Scan = scan
	c.JSON(statusFor(err), resp)
}

func (h *Handler) deskBody(c *gin.Context, d *desk.Desk, err error) deskResponse {
	resp := deskResponse{
		Desk:    d.View(),
		Notices: d.Machine().Notices(),
	}
	if resp.Notices == nil {
		resp.Notices = []checkin.Notice{}
	}
	status := statusFor(err)
	if status != http.StatusOK {
		resp.Error = err.Error()
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("desk_id", d.ID).Str("path", c.FullPath()).Msg("desk intent failed")
	}
	return resp
}

// withDesk resolves the :id path parameter.
func (h *Handler) withDesk(fn func(c *gin.Context, d *desk.Desk)) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := h.desks.Get(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "desk not found"})
			return
		}
		fn(c, d)
	}
}

// bind decodes a JSON body, answering 400 when it is malformed.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

// secureRequest reports whether the client reached us over https, directly
// or through a proxy.
func (h *Handler) secureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return h.secureHeader != "" && strings.EqualFold(c.GetHeader(h.secureHeader), "https")
}

type createDeskRequest struct {
	Capabilities desk.Capabilities `json:"capabilities"`
}

// CreateDesk handles POST /api/desks.
func (h *Handler) CreateDesk(c *gin.Context) {
	var req createDeskRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	req.Capabilities.SecureContext = req.Capabilities.SecureContext || h.secureRequest(c)

	d := h.desks.Create(req.Capabilities)
	c.JSON(http.StatusCreated, deskResponse{Desk: d.View(), Notices: []checkin.Notice{}})
}

// GetDesk handles GET /api/desks/:id. Notices are left queued.
func (h *Handler) GetDesk(c *gin.Context, d *desk.Desk) {
	c.JSON(http.StatusOK, gin.H{"desk": d.View()})
}

// DeleteDesk handles DELETE /api/desks/:id. A running session is stopped and
// its summary reported.
func (h *Handler) DeleteDesk(c *gin.Context) {
	if err := h.desks.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "desk not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetNotices handles GET /api/desks/:id/notices and drains the queue.
func (h *Handler) GetNotices(c *gin.Context, d *desk.Desk) {
	notices := d.Machine().Notices()
	if notices == nil {
		notices = []checkin.Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// PutCapabilities handles PUT /api/desks/:id/capabilities.
func (h *Handler) PutCapabilities(c *gin.Context, d *desk.Desk) {
	var caps desk.Capabilities
	if !bind(c, &caps) {
		return
	}
	caps.SecureContext = caps.SecureContext || h.secureRequest(c)
	d.SetCapabilities(caps)
	h.respond(c, d, nil)
}

type loadInstancesRequest struct {
	Date string `json:"date" binding:"required"`
}

func (h *Handler) LoadInstances(c *gin.Context, d *desk.Desk) {
	var req loadInstancesRequest
	if !bind(c, &req) {
		return
	}
	_, err := d.Machine().LoadInstances(c.Request.Context(), req.Date)
	h.respond(c, d, err)
}

type selectInstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

func (h *Handler) SelectInstance(c *gin.Context, d *desk.Desk) {
	var req selectInstanceRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, d, d.Machine().SelectInstance(req.InstanceID))
}

// StartSession starts scanning for the instance in the body or, when absent,
// the one already selected.
func (h *Handler) StartSession(c *gin.Context, d *desk.Desk) {
	var req selectInstanceRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	id := strings.TrimSpace(req.InstanceID)
	if id == "" {
		id = d.Machine().Session().SelectedInstanceID
	}
	h.respond(c, d, d.Machine().StartSession(c.Request.Context(), id))
}

type stopSessionResponse struct {
	deskResponse
	Summary *checkin.Summary `json:"summary,omitempty"`
}

func (h *Handler) StopSession(c *gin.Context, d *desk.Desk) {
	d.StopCamera()
	summary, err := d.Machine().StopSession()
	resp := stopSessionResponse{deskResponse: h.deskBody(c, d, err)}
	if err == nil {
		resp.Summary = &summary
	}
	c.JSON(statusFor(err), resp)
}

func (h *Handler) ResetSession(c *gin.Context, d *desk.Desk) {
	h.respond(c, d, d.Machine().ResetSession())
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

// SubmitCode handles typed or keyboard-wedge scanned codes.
func (h *Handler) SubmitCode(c *gin.Context, d *desk.Desk) {
	var req submitCodeRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, d, d.SubmitCode(c.Request.Context(), req.Code))
}

func (h *Handler) Confirm(c *gin.Context, d *desk.Desk) {
	_, err := d.Machine().ConfirmCheckIn(c.Request.Context())
	h.respond(c, d, err)
}

func (h *Handler) Cancel(c *gin.Context, d *desk.Desk) {
	h.respond(c, d, d.Machine().CancelCheckIn())
}

func (h *Handler) Undo(c *gin.Context, d *desk.Desk) {
	_, err := d.Machine().UndoCheckIn(c.Request.Context())
	h.respond(c, d, err)
}

type searchRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (h *Handler) Search(c *gin.Context, d *desk.Desk) {
	var req searchRequest
	if !bind(c, &req) {
		return
	}
	_, err := d.Machine().Search(c.Request.Context(), checkin.Criteria{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	h.respond(c, d, err)
}

type selectResultRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *Handler) SelectSearchResult(c *gin.Context, d *desk.Desk) {
	var req selectResultRequest
	if !bind(c, &req) {
		return
	}
	_, err := d.Machine().SelectSearchResult(c.Request.Context(), req.ID)
	h.respond(c, d, err)
}

type pageRequest struct {
	Direction string `json:"direction" binding:"required,oneof=next prev"`
}

func (h *Handler) Page(c *gin.Context, d *desk.Desk) {
	var req pageRequest
	if !bind(c, &req) {
		return
	}
	if req.Direction == "next" {
		d.Machine().NextPage()
	} else {
		d.Machine().PreviousPage()
	}
	h.respond(c, d, nil)
}

func (h *Handler) ClearSearch(c *gin.Context, d *desk.Desk) {
	d.Machine().ClearSearch()
	h.respond(c, d, nil)
}

// Scan starts a capture with the best backend the desk supports.
func (h *Handler) Scan(c *gin.Context, d *desk.Desk) {
	res, err := d.Scan(c.Request.Context())
	if err != nil {
		h.respond(c, d, err)
		return
	}
	h.respondScan(c, d, &res, nil)
}

type scannerResultRequest struct {
	Value string `json:"value"`
	Error string `json:"error"`
}

// ScannerResult receives the native scanner's outcome from the mobile shell.
func (h *Handler) ScannerResult(c *gin.Context, d *desk.Desk) {
	var req scannerResultRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, d, d.ScannerResult(req.Value, req.Error))
}

// CameraFrame receives one PNG or JPEG camera frame.
func (h *Handler) CameraFrame(c *gin.Context, d *desk.Desk) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)
	err := d.PushFrame(body)
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, capture.ErrNoStream):
		c.JSON(http.StatusConflict, gin.H{"error": "camera is not scanning"})
	case errors.Is(err, desk.ErrClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "desk not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame"})
	}
}

type cameraErrorRequest struct {
	Name    string `json:"name" binding:"required"`
	Message string `json:"message"`
}

// CameraError records a camera access failure the browser ran into.
func (h *Handler) CameraError(c *gin.Context, d *desk.Desk) {
	var req cameraErrorRequest
	if !bind(c, &req) {
		return
	}
	d.CameraFailed(req.Name, req.Message)
	h.respond(c, d, nil)
}

func (h *Handler) StopCamera(c *gin.Context, d *desk.Desk) {
	d.StopCamera()
	h.respond(c, d, nil)
}
