package httpapi

import (
	"net/http"
	"strings"

	"github.com/fiend365gdsv/SQMS/internal/hub"

	"github.com/igm/sockjs-go/sockjs"
)

// NewStreamHandler serves the viewer streaming endpoint. A session holds at
// most one live subscription; it idles between deliveries and is pruned by the
// hub once a send fails, or removed here when the session ends.
func NewStreamHandler(h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		var sub *hub.Subscriber
		defer func() {
			if sub != nil {
				h.Unsubscribe(sub)
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}

			if sub != nil {
				h.Unsubscribe(sub)
				sub = nil
			}
			if parsed.Action == "unsubscribe" {
				continue
			}

			doctorID := strings.TrimSpace(parsed.DoctorID)
			if !isValidUUID(doctorID) {
				_ = session.Close(4000, "doctor_id must be a UUID")
				return
			}
			sub = h.Subscribe(doctorID, func(payload []byte) error {
				return session.Send(string(payload))
			})
		}
	})
}
