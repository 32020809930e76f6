package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

// NATSPublisher pushes freshly synced trips onto the bus so downstream
// consumers (reporting, billing) pick them up without polling the API.
// A nil publisher is valid and drops everything, which keeps the sync
// runner usable when no broker is configured.
type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
}

func NewNATSPublisher(url string, logSubjects bool) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("trip-sync"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects}, nil
}

func (p *NATSPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	p.nc.Close()
}

// PublishTrip emits one message per upserted trip on trips.<device_id>.
func (p *NATSPublisher) PublishTrip(t trip.Trip) error {
	if p == nil || p.nc == nil {
		return nil
	}
	subject := fmt.Sprintf("trips.%s", subjectToken(t.DeviceID))
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	return p.nc.Publish(subject, b)
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
