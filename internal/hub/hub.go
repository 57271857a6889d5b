package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// queueUpdate is the only event pushed to viewers. It carries no state;
// subscribers re-fetch the waiting list after each delivery.
var queueUpdate = []byte(`{"event":"queue-update","data":"updated"}`)

// Subscriber is a live viewer connection for one doctor's queue. The send
// callback is invoked from Notify; a non-nil error marks the connection dead
// and removes it from the registry.
type Subscriber struct {
	ID       string
	DoctorID string
	send     func([]byte) error
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber
}

type SubscribeMessage struct {
	Action   string `json:"action"`
	DoctorID string `json:"doctor_id"`
}

func New() *Hub {
	return &Hub{subscribers: make(map[string]map[string]*Subscriber)}
}

func (h *Hub) Subscribe(doctorID string, send func([]byte) error) *Subscriber {
	sub := &Subscriber{ID: uuid.NewString(), DoctorID: doctorID, send: send}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[doctorID]
	if !ok {
		set = make(map[string]*Subscriber)
		h.subscribers[doctorID] = set
	}
	set[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber; removing one that is already gone is a
// no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscriber) {
	set, ok := h.subscribers[sub.DoctorID]
	if !ok {
		return
	}
	delete(set, sub.ID)
	if len(set) == 0 {
		delete(h.subscribers, sub.DoctorID)
	}
}

// Notify delivers a queue-update event to every live subscriber of the
// doctor. Failed deliveries prune that subscriber only; nothing is reported
// back to the mutation that triggered the signal.
func (h *Hub) Notify(doctorID string) {
	h.mu.RLock()
	set := h.subscribers[doctorID]
	targets := make([]*Subscriber, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var dead []*Subscriber
	for _, sub := range targets {
		if err := sub.send(queueUpdate); err != nil {
			log.Printf("drop subscriber %s for doctor %s: %v", sub.ID, doctorID, err)
			dead = append(dead, sub)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range dead {
		h.remove(sub)
	}
}

func (h *Hub) SubscriberCount(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[doctorID])
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
