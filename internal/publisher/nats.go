package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"route-animator/internal/anim"
	"route-animator/internal/camera"
	"route-animator/internal/path"
)

// NATSPublisher is an anim.Renderer that ships frames to remote renderers
// over NATS and carries the control subscription.
type NATSPublisher struct {
	nc          *nats.Conn
	conn        conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

type conn interface {
	Publish(subject string, data []byte) error
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("route-animator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := newPublisher(nc, prefix, logSubjects, m)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// FrameMessage is the wire form of an anim.Frame.
type FrameMessage struct {
	RouteID     string    `json:"routeId"`
	Phase       string    `json:"phase"`
	Timestamp   time.Time `json:"timestamp"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Bearing     float64   `json:"bearing"`
	Distance    float64   `json:"distanceMeters"`
	Progress    float64   `json:"progress"`
	Mode        string    `json:"mode"`
	ModeChanged bool      `json:"modeChanged,omitempty"`
	// Camera is present only when the renderer must move the viewport.
	Camera *camera.Command `json:"camera,omitempty"`
}

// ClearMessage tells renderers to drop the marker, trail and listeners
// of a route.
type ClearMessage struct {
	RouteID   string    `json:"routeId"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *NATSPublisher) FrameSubject(id path.RouteID) string {
	return fmt.Sprintf("%s.%s.frame", p.prefix, subjectToken(id.String()))
}

func (p *NATSPublisher) ClearSubject(id path.RouteID) string {
	return fmt.Sprintf("%s.%s.clear", p.prefix, subjectToken(id.String()))
}

func (p *NATSPublisher) ControlSubject() string {
	return p.prefix + ".control"
}

// Render publishes f. Errors are logged and counted; the frame loop
// never waits on the transport.
func (p *NATSPublisher) Render(f anim.Frame) {
	msg := FrameMessage{
		RouteID:     f.RouteID.String(),
		Phase:       f.Phase.String(),
		Timestamp:   f.Timestamp,
		Lat:         f.Position.Lat,
		Lng:         f.Position.Lng,
		Bearing:     f.Bearing,
		Distance:    f.DistanceMeters,
		Progress:    f.ProgressPercent,
		Mode:        string(f.ActiveMode),
		ModeChanged: f.ModeChanged,
		Camera:      f.Camera,
	}
	if err := p.publish(p.FrameSubject(f.RouteID), msg); err != nil {
		log.Printf("publish frame for %s: %v", f.RouteID, err)
	}
}

func (p *NATSPublisher) Clear(id path.RouteID) {
	msg := ClearMessage{RouteID: id.String(), Timestamp: time.Now()}
	if err := p.publish(p.ClearSubject(id), msg); err != nil {
		log.Printf("publish clear for %s: %v", id, err)
	}
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// SubscribeControl delivers every message on the control subject to
// handle. When the message carries a reply subject, handle's result is
// sent back as the reply.
func (p *NATSPublisher) SubscribeControl(handle func(data []byte) []byte) (*nats.Subscription, error) {
	if p.nc == nil {
		return nil, fmt.Errorf("subscribe %s: not connected", p.ControlSubject())
	}
	sub, err := p.nc.Subscribe(p.ControlSubject(), func(m *nats.Msg) {
		resp := handle(m.Data)
		if m.Reply == "" {
			return
		}
		if err := m.Respond(resp); err != nil {
			log.Printf("control reply: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.ControlSubject(), err)
	}
	log.Printf("listening for control commands on %s", p.ControlSubject())
	return sub, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
