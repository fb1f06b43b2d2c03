package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/fanout"
	"github.com/hadron-robotics/hadron_rover/internal/models"
	"github.com/hadron-robotics/hadron_rover/internal/rtc"
	"github.com/pion/webrtc/v3"
)

const pingPeriod = 10 * time.Second
const shutdownTimeout = 2 * time.Second

// Inbound message types.
const (
	MsgRobotCommand  = "robot_command"
	MsgRobotSteer    = "robot_steer"
	MsgEmergencyStop = "emergency_stop"
	MsgGetStatus     = "get_status"
	MsgGetFrame      = "get_frame"
	MsgWebRTCOffer   = "webrtc_offer"
)

// Outbound message types.
const (
	MsgInitialState = "initial_state"
	MsgCommandAck   = "command_ack"
	MsgStatus       = "status"
	MsgFrame        = "frame"
	MsgWebRTCAnswer = "webrtc_answer"
	MsgError        = "error"
)

// Service is what a connected client can do to the vehicle.
type Service interface {
	Execute(ctx context.Context, cmd models.MotionCommand) error
	Enqueue(ctx context.Context, cmd models.MotionCommand) error
	EmergencyStop() error
	DriveState() models.DriveState
	Status() models.StatusSnapshot
	LatestFrame(maxAge time.Duration) (models.Frame, bool)
	NewViewer() (*rtc.Viewer, error)
}

type request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type commandRequest struct {
	Command    string  `json:"command"`
	Speed      float64 `json:"speed"`
	DurationMS int64   `json:"duration_ms"`
	Batched    bool    `json:"batched"`
}

type steerRequest struct {
	Speed     float64 `json:"speed"`
	Direction float64 `json:"direction"`
	Batched   bool    `json:"batched"`
}

type frameRequest struct {
	MaxAgeMS int64 `json:"max_age_ms"`
}

type offerRequest struct {
	Offer webrtc.SessionDescription `json:"offer"`
}

type commandAck struct {
	Command string `json:"command"`
}

type errorPayload struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}

type framePayload struct {
	Seq       uint64 `json:"seq"`
	TimeStamp int64  `json:"time_stamp"`
	Data      []byte `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the control and frame surface over a single websocket
// endpoint. State broadcasts reach every connected client through the
// fanout; request/reply messages are answered on the requesting connection.
type Server struct {
	cfg     config.ServerConfig
	service Service
	fanout  *fanout.Fanout
}

func NewServer(cfg config.ServerConfig, service Service, notifier *fanout.Fanout) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		fanout:  notifier,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleConnection(ctx, w, r)
	})

	server := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Printf("stopping websocket server: %s\n", ctx.Err().Error())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Printf("error: websocket server shutdown: %s\n", err.Error())
		}
	}()

	log.Printf("websocket server listening on %s\n", s.cfg.Listen)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// client serializes writes to one connection. Replies from the reader and
// broadcasts from the fanout pump share the conn.
type client struct {
	conn *websocket.Conn

	lock   sync.Mutex
	viewer *rtc.Viewer
}

func (c *client) writeJSON(messageType string, data interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteJSON(fanout.Message{
		Type:      messageType,
		Data:      data,
		TimeStamp: time.Now().UnixMilli(),
	})
}

func (c *client) writeRaw(payload []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *client) ping() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *client) setViewer(viewer *rtc.Viewer) {
	c.lock.Lock()
	old := c.viewer
	c.viewer = viewer
	c.lock.Unlock()
	if old != nil {
		old.Close()
	}
}

func (c *client) closeViewer() {
	c.setViewer(nil)
}

func (s *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error: websocket upgrade failed: %s\n", err.Error())
		return
	}
	defer conn.Close()

	subscriber := s.fanout.Subscribe()
	if subscriber == nil {
		log.Println("rejecting connection, fanout closed")
		return
	}
	defer s.fanout.Unsubscribe(subscriber.ID)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl := &client{conn: conn}
	defer cl.closeViewer()
	log.Printf("client %s connected as %s\n", conn.RemoteAddr(), subscriber.ID)

	err = cl.writeJSON(MsgInitialState, s.service.DriveState())
	if err != nil {
		log.Printf("error: failed sending initial state: %s\n", err.Error())
		return
	}

	go s.pump(connCtx, cl, subscriber)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Printf("client %s disconnected: %s\n", subscriber.ID, err.Error())
			return
		}
		s.dispatch(connCtx, cl, payload)
	}
}

// pump forwards fanout broadcasts to the client and keeps the connection
// alive with pings.
func (s *Server) pump(ctx context.Context, cl *client, subscriber *fanout.Subscriber) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-subscriber.Out():
			if !ok {
				return
			}
			err := cl.writeRaw(payload)
			if err != nil {
				log.Printf("error: failed forwarding broadcast: %s\n", err.Error())
				return
			}
		case <-pingTicker.C:
			err := cl.ping()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cl *client, payload []byte) {
	req := request{}
	err := json.Unmarshal(payload, &req)
	if err != nil {
		log.Printf("failed unmarshalling client msg: %s\n", payload)
		s.replyError(cl, "", fmt.Errorf("malformed message: %w", err))
		return
	}

	switch req.Type {
	case MsgRobotCommand:
		s.onCommand(ctx, cl, req.Data)
	case MsgRobotSteer:
		s.onSteer(ctx, cl, req.Data)
	case MsgEmergencyStop:
		s.onEmergencyStop(cl)
	case MsgGetStatus:
		s.reply(cl, MsgStatus, s.service.Status())
	case MsgGetFrame:
		s.onGetFrame(cl, req.Data)
	case MsgWebRTCOffer:
		s.onOffer(ctx, cl, req.Data)
	default:
		log.Printf("received message of unsupported type: %s\n", req.Type)
		s.replyError(cl, req.Type, fmt.Errorf("unsupported message type %q", req.Type))
	}
}

func (s *Server) onCommand(ctx context.Context, cl *client, data json.RawMessage) {
	cmdReq := commandRequest{}
	err := json.Unmarshal(data, &cmdReq)
	if err != nil {
		s.replyError(cl, MsgRobotCommand, fmt.Errorf("malformed command: %w", err))
		return
	}

	kind, ok := models.ParseCommandKind(cmdReq.Command)
	if !ok {
		s.replyError(cl, MsgRobotCommand, fmt.Errorf("unknown command %q", cmdReq.Command))
		return
	}

	cmd := models.MotionCommand{
		Kind:     kind,
		Speed:    cmdReq.Speed,
		Duration: time.Duration(cmdReq.DurationMS) * time.Millisecond,
	}
	s.submit(ctx, cl, MsgRobotCommand, cmd, cmdReq.Batched)
}

func (s *Server) onSteer(ctx context.Context, cl *client, data json.RawMessage) {
	steerReq := steerRequest{}
	err := json.Unmarshal(data, &steerReq)
	if err != nil {
		s.replyError(cl, MsgRobotSteer, fmt.Errorf("malformed steer: %w", err))
		return
	}

	cmd := models.MotionCommand{
		Kind:      models.CommandSteer,
		Speed:     steerReq.Speed,
		Direction: steerReq.Direction,
	}
	s.submit(ctx, cl, MsgRobotSteer, cmd, steerReq.Batched)
}

func (s *Server) submit(ctx context.Context, cl *client, requestType string, cmd models.MotionCommand, batched bool) {
	var err error
	if batched {
		err = s.service.Enqueue(ctx, cmd)
	} else {
		err = s.service.Execute(ctx, cmd)
	}
	if err != nil {
		s.replyError(cl, requestType, err)
		return
	}
	s.reply(cl, MsgCommandAck, commandAck{Command: cmd.Kind.String()})
}

func (s *Server) onEmergencyStop(cl *client) {
	err := s.service.EmergencyStop()
	if err != nil {
		s.replyError(cl, MsgEmergencyStop, err)
		return
	}
	s.reply(cl, MsgCommandAck, commandAck{Command: models.CommandEmergencyStop.String()})
}

func (s *Server) onGetFrame(cl *client, data json.RawMessage) {
	frameReq := frameRequest{}
	if len(data) > 0 {
		err := json.Unmarshal(data, &frameReq)
		if err != nil {
			s.replyError(cl, MsgGetFrame, fmt.Errorf("malformed frame request: %w", err))
			return
		}
	}

	frame, ok := s.service.LatestFrame(time.Duration(frameReq.MaxAgeMS) * time.Millisecond)
	if !ok {
		s.replyError(cl, MsgGetFrame, errors.New("no fresh frame available"))
		return
	}
	s.reply(cl, MsgFrame, framePayload{
		Seq:       frame.Seq,
		TimeStamp: frame.Timestamp.UnixMilli(),
		Data:      frame.Data,
	})
}

func (s *Server) onOffer(ctx context.Context, cl *client, data json.RawMessage) {
	offerReq := offerRequest{}
	err := json.Unmarshal(data, &offerReq)
	if err != nil {
		s.replyError(cl, MsgWebRTCOffer, fmt.Errorf("malformed offer: %w", err))
		return
	}

	viewer, err := s.service.NewViewer()
	if err != nil {
		s.replyError(cl, MsgWebRTCOffer, err)
		return
	}

	answer, err := viewer.Answer(offerReq.Offer)
	if err != nil {
		viewer.Close()
		s.replyError(cl, MsgWebRTCOffer, err)
		return
	}

	cl.setViewer(viewer)
	go viewer.Stream(ctx)

	log.Println("sending answer")
	s.reply(cl, MsgWebRTCAnswer, answer)
}

func (s *Server) reply(cl *client, messageType string, data interface{}) {
	err := cl.writeJSON(messageType, data)
	if err != nil {
		log.Printf("error: failed sending %s reply: %s\n", messageType, err.Error())
	}
}

func (s *Server) replyError(cl *client, requestType string, cause error) {
	log.Printf("error: request %s failed: %s\n", requestType, cause.Error())
	err := cl.writeJSON(MsgError, errorPayload{
		Request: requestType,
		Error:   cause.Error(),
	})
	if err != nil {
		log.Printf("error: failed sending error reply: %s\n", err.Error())
	}
}
