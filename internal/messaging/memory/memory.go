// Package memory is an in-memory messaging surface used by tests. It
// records every thread, message and membership change and hands them
// back for assertions.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
)

// Surface implements messaging.Surface against process memory.
type Surface struct {
	mu       sync.Mutex
	nextID   int64
	threads  map[int64]*Thread
	messages map[int64][]messaging.Message // by channel/thread id, oldest first

	// Err, when set, is returned by every mutating call. Tests use it
	// to simulate an upstream outage.
	Err error
}

// Thread records one created thread.
type Thread struct {
	ID       int64
	ParentID int64
	Name     string
	Members  []int64
}

func New() *Surface {
	return &Surface{
		nextID:   1000,
		threads:  make(map[int64]*Thread),
		messages: make(map[int64][]messaging.Message),
	}
}

func (s *Surface) CreateThread(_ context.Context, channelID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	s.nextID++
	id := s.nextID
	s.threads[id] = &Thread{ID: id, ParentID: channelID, Name: name}
	return id, nil
}

func (s *Surface) AddThreadMember(_ context.Context, threadID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	th, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("no such thread %d", threadID)
	}
	th.Members = append(th.Members, userID)
	return nil
}

func (s *Surface) Post(_ context.Context, channelID int64, content string, controls ...messaging.Control) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	s.nextID++
	msg := messaging.Message{
		ID:        s.nextID,
		ChannelID: channelID,
		Content:   content,
		Controls:  append([]messaging.Control(nil), controls...),
	}
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg.ID, nil
}

func (s *Surface) Edit(_ context.Context, channelID, messageID int64, content string, controls ...messaging.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	msgs := s.messages[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			msgs[i].Controls = append([]messaging.Control(nil), controls...)
			return nil
		}
	}
	return fmt.Errorf("no such message %d in channel %d", messageID, channelID)
}

func (s *Surface) GetMessage(_ context.Context, channelID, messageID int64) (*messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[channelID] {
		if m.ID == messageID {
			copy := m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("no such message %d in channel %d", messageID, channelID)
}

func (s *Surface) RecentMessages(_ context.Context, channelID int64, limit int) ([]messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[channelID]
	var out []messaging.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Thread returns the recorded thread state, nil when the thread was
// never created.
func (s *Surface) Thread(id int64) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[id]
}

// Threads returns every created thread, in creation order.
func (s *Surface) Threads() []*Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Thread
	for id := int64(0); id <= s.nextID; id++ {
		if th, ok := s.threads[id]; ok {
			out = append(out, th)
		}
	}
	return out
}

// Messages returns all messages posted to a channel, oldest first.
func (s *Surface) Messages(channelID int64) []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.Message(nil), s.messages[channelID]...)
}
