package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/lunavoice/lunavoice/internal/conversation"
	"github.com/lunavoice/lunavoice/internal/wakeword"
	"github.com/lunavoice/lunavoice/pkg/audio"
)

const (
	// micSampleRate is the sample rate clients record mic audio at.
	micSampleRate = 16000

	// playbackAckTimeout bounds the wait for frontend-playback-complete so
	// a client that never acknowledges cannot wedge turn finalization.
	playbackAckTimeout = 30 * time.Second
)

// errNoASR is surfaced when mic audio arrives but no transcriber is wired.
var errNoASR = errors.New("no speech recognition configured")

// inboundMessage is the union of all client message shapes; Type selects
// which fields are meaningful.
type inboundMessage struct {
	Type string `json:"type"`

	// text-input, interrupt-signal
	Text   string            `json:"text,omitempty"`
	Images []json.RawMessage `json:"images,omitempty"`

	// mic-audio-data
	Audio []float64 `json:"audio,omitempty"`

	// text-input, mic-audio-end
	WakeWordConfig *wakeword.Config `json:"wake_word_config,omitempty"`
	StopWordConfig *wakeword.Config `json:"stop_word_config,omitempty"`
}

// client is the per-connection state: the conversation controller, the
// serialized writer, the mic chunk buffer and the playback ack slot.
type client struct {
	id   string
	conn *websocket.Conn
	ctl  *conversation.Controller

	writeMu sync.Mutex

	micMu sync.Mutex
	mic   []int16

	acks chan struct{}
}

// handleWS upgrades the connection and runs the read loop until the client
// disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // browser clients connect cross-origin
	})
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx := r.Context()
	c := &client{
		id:   uuid.NewString()[:8],
		conn: conn,
		acks: make(chan struct{}, 1),
	}

	opts := []conversation.Option{
		conversation.WithCharacter(s.deps.Character),
		conversation.WithPlaybackAck(c.awaitPlayback),
		conversation.WithMetrics(s.deps.Metrics),
	}
	if s.deps.ASR != nil {
		opts = append(opts, conversation.WithASR(s.deps.ASR))
	}
	if s.deps.History != nil {
		opts = append(opts, conversation.WithHistory(s.deps.History))
	}
	if s.proactivePrompt != "" {
		opts = append(opts, conversation.WithProactivePrompt(s.proactivePrompt))
	}
	opts = append(opts, s.deps.ConvOptions...)

	c.ctl = conversation.New(s.deps.Agent, s.deps.TTS, c.send, opts...)

	if s.deps.History != nil {
		uid, err := s.deps.History.NewHistory(ctx, s.deps.Character.ConfUID)
		if err != nil {
			slog.Error("create history failed", "client", c.id, "err", err)
		} else {
			c.ctl.SetHistoryUID(uid)
		}
	}

	s.deps.Metrics.ActiveClients.Add(ctx, 1)
	defer s.deps.Metrics.ActiveClients.Add(ctx, -1)
	slog.Info("client connected", "client", c.id)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Info("client disconnected", "client", c.id, "err", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("unparseable client message", "client", c.id, "err", err)
			continue
		}
		s.dispatch(ctx, c, &msg)
	}
}

// dispatch routes one inbound message. Handler errors go back to the
// client as error messages; they never tear down the connection.
func (s *Server) dispatch(ctx context.Context, c *client, msg *inboundMessage) {
	var err error
	switch msg.Type {
	case "text-input":
		err = c.ctl.HandleText(ctx, msg.Text, conversation.ParseImages(msg.Images))

	case "mic-audio-data":
		c.appendMic(msg.Audio)

	case "mic-audio-end":
		clip := c.takeMic()
		if s.deps.ASR == nil {
			err = errNoASR
			break
		}
		err = c.ctl.HandleVoice(ctx, clip, msg.WakeWordConfig, msg.StopWordConfig)

	case "ai-speak-signal":
		err = c.ctl.HandleProactive(ctx)

	case "interrupt-signal":
		c.ctl.Interrupt(ctx, msg.Text)
		s.deps.Metrics.RecordInterrupt(ctx)

	case "frontend-playback-complete":
		select {
		case c.acks <- struct{}{}:
		default:
		}

	default:
		slog.Warn("unknown message type", "client", c.id, "type", msg.Type)
	}

	if err != nil {
		slog.Error("message handling failed", "client", c.id, "type", msg.Type, "err", err)
		c.sendError(ctx, err)
	}
}

// send serializes msg as JSON and writes it as one text frame. It is the
// SendFunc handed to the conversation controller, so everything the
// controller emits funnels through the write lock here.
func (c *client) send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *client) sendError(ctx context.Context, err error) {
	_ = c.send(ctx, map[string]any{"type": "error", "message": err.Error()})
}

// appendMic converts one float chunk to int16 samples and buffers it.
func (c *client) appendMic(chunk []float64) {
	if len(chunk) == 0 {
		return
	}
	samples := make([]int16, len(chunk))
	for i, f := range chunk {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		samples[i] = int16(f * 32767)
	}
	c.micMu.Lock()
	c.mic = append(c.mic, samples...)
	c.micMu.Unlock()
}

// takeMic drains the buffered mic audio into a PCM clip.
func (c *client) takeMic() audio.PCM {
	c.micMu.Lock()
	samples := c.mic
	c.mic = nil
	c.micMu.Unlock()
	return audio.PCM{Samples: samples, SampleRate: micSampleRate, Channels: 1}
}

// awaitPlayback blocks until the client reports audio playback finished.
// A slow client only delays finalization up to playbackAckTimeout.
func (c *client) awaitPlayback(ctx context.Context) error {
	select {
	case <-c.acks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playbackAckTimeout):
		slog.Warn("playback ack timed out", "client", c.id)
		return nil
	}
}
