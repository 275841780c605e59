package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"TarLab/internal/domain/models"
	"TarLab/internal/usecase"
	xhttp "TarLab/pkg/http"
	xlogger "TarLab/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to wait for the request message
	requestWait = 30 * time.Second

	// Maximum request size, enough for the longest accepted series
	maxRequestSize = 8 << 20

	// Minimum spacing of progress messages
	progressInterval = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one server message on the estimation stream.
type StreamMessage struct {
	Type        string                      `json:"type"` // progress, result or error
	Progress    *models.Progress            `json:"progress,omitempty"`
	Constant    *models.ConstantEstimate    `json:"constant,omitempty"`
	TimeVarying *models.TimeVaryingEstimate `json:"timevarying,omitempty"`
	Errors      interface{}                 `json:"errors,omitempty"`
}

// Stream upgrades to a websocket, reads one EstimationJob shaped request,
// reports progress while the search runs and ends with the result.
func (h *TarHandler) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn.SetReadLimit(maxRequestSize)
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))
	req := &models.EstimationJob{}
	if err := conn.ReadJSON(req); err != nil {
		h.logger.Debug("stream request unreadable", xlogger.Error(err))
		_ = writeStream(conn, StreamMessage{Type: "error", Errors: []xhttp.ValidationError{{Code: "ERR_BAD_REQUEST", Message: err.Error()}}})
		return nil
	}
	if verr := xhttp.ValidateStruct(ctx, req); verr != nil {
		_ = writeStream(conn, StreamMessage{Type: "error", Errors: verr})
		return nil
	}
	if req.Variant == models.VariantTimeVarying {
		if ok, _ := h.allow(c); !ok {
			_ = writeStream(conn, StreamMessage{Type: "error", Errors: []*xhttp.AppError{xhttp.TooManyRequestsError("too many time-varying searches, retry later")}})
			return nil
		}
	}

	// A closed connection cancels the search.
	go func() {
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	progress := make(chan models.Progress, 1)
	done := make(chan StreamMessage, 1)
	go func() {
		defer close(done)
		report := func(p models.Progress) {
			select {
			case progress <- p:
			default:
			}
		}
		msg := StreamMessage{Type: "result"}
		var err error
		switch req.Variant {
		case models.VariantConstant:
			msg.Constant, err = h.est.EstimateConstant(ctx, &req.Request)
		default:
			msg.TimeVarying, err = h.est.EstimateTimeVarying(ctx, &req.Request, report)
		}
		if err != nil {
			msg = StreamMessage{Type: "error", Errors: []*xhttp.AppError{usecase.MapEstimationError(err)}}
		}
		done <- msg
	}()

	// Single writer: gorilla connections allow one concurrent writer.
	var last time.Time
	for {
		select {
		case p := <-progress:
			if time.Since(last) < progressInterval && p.Done < p.Total {
				continue
			}
			last = time.Now()
			if err := writeStream(conn, StreamMessage{Type: "progress", Progress: &p}); err != nil {
				cancel()
				<-done
				return nil
			}
		case msg := <-done:
			if err := writeStream(conn, msg); err != nil {
				h.logger.Debug("stream result not delivered", xlogger.Error(err))
				return nil
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		}
	}
}

func writeStream(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
