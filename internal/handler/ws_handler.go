package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/middleware"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	ws "github.com/stemsi/ielts-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// FeedbackReporter loads the stored feedback of one learner for one exam.
type FeedbackReporter interface {
	Report(ctx context.Context, examID, userID int) (*model.FeedbackReport, error)
}

// WSHandler streams AI feedback progress over WebSocket.
type WSHandler struct {
	rdb      *redis.Client
	reports  FeedbackReporter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, reports FeedbackReporter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:      rdb,
		reports:  reports,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// FeedbackStream godoc
// WS /ws/v1/writing/feedback/:exam_id/stream?token=
// Pushes the stored report on connect, then relays every grading event for
// the caller until the socket closes.
func (h *WSHandler) FeedbackStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID
	wsLog := h.log.With().Int("user_id", userID).Int("exam_id", examID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the first read so a result stored in between still
	// reaches the socket.
	sub := h.rdb.Subscribe(ctx, config.CacheKey.FeedbackChannel(examID, userID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Feedback subscription failed")
		ws.WriteError(conn, "subscription failed")
		return
	}

	wsLog.Info().Msg("Feedback stream connected")

	if report := h.loadReport(ctx, wsLog, examID, userID); report != nil {
		if err := ws.WriteTyped(conn, ws.FeedbackEvent{
			Event:   ws.EventFeedbackReady,
			ExamID:  examID,
			Overall: report.AverageOverall,
			Report:  report,
		}); err != nil {
			return
		}
	}

	ws.KeepAlive(conn)
	actions := make(chan ws.Action, 4)
	go readActions(conn, actions, cancel, wsLog)

	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	// All writes happen on this goroutine; gorilla connections allow one
	// concurrent writer.
	events := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Feedback stream closed")
			return
		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case action := <-actions:
			var err error
			switch action {
			case ws.ActionPing:
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			default:
				err = ws.WriteError(conn, "unknown action: "+string(action))
			}
			if err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := h.relay(ctx, conn, wsLog, userID, msg.Payload); err != nil {
				return
			}
		}
	}
}

// relay forwards one worker event, attaching the refreshed report to ready
// events. Payloads that do not decode are passed through unchanged.
func (h *WSHandler) relay(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, userID int, payload string) error {
	var ev ws.FeedbackEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ws.WriteRaw(conn, []byte(payload))
	}
	if ev.Event == ws.EventFeedbackReady {
		ev.Report = h.loadReport(ctx, log, ev.ExamID, userID)
	}
	return ws.WriteTyped(conn, ev)
}

func (h *WSHandler) loadReport(ctx context.Context, log zerolog.Logger, examID, userID int) *model.FeedbackReport {
	report, err := h.reports.Report(ctx, examID, userID)
	if err != nil {
		if !errors.Is(err, service.ErrFeedbackPending) {
			log.Warn().Err(err).Msg("Failed to load feedback report")
		}
		return nil
	}
	return report
}

// readActions decodes client messages until the socket fails, then cancels
// the stream.
func readActions(conn *websocket.Conn, out chan<- ws.Action, cancel context.CancelFunc, log zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		select {
		case out <- msg.Action:
		default:
		}
	}
}
