package recovery

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/store"
)

type recordingRenderer struct {
	mu       sync.Mutex
	messages map[string]string
}

func (m *recordingRenderer) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages == nil {
		m.messages = make(map[string]string)
	}
	m.messages[conversationID] = text
	return fmt.Sprintf("msg-%d", len(m.messages)), nil
}

func (m *recordingRenderer) EditMessage(ctx context.Context, conversationID, messageID, text string) error {
	return nil
}

func (m *recordingRenderer) SendDocument(ctx context.Context, conversationID, path, caption string) error {
	return nil
}

func TestRecoverAllClearsBusyConversations(t *testing.T) {
	st := store.NewInMemoryStore()
	render := &recordingRenderer{}

	st.SaveConversation(models.ConversationState{ConversationID: "stuck", FlowType: models.FlowWeather, CurrentState: models.StateWeatherBusy})
	st.SaveConversation(models.ConversationState{ConversationID: "mid-input", FlowType: models.FlowWeather, CurrentState: models.StateWeatherCity})
	st.SaveConversation(models.ConversationState{ConversationID: "video", FlowType: models.FlowGenVideo, CurrentState: models.StateGenVideoProgress})

	m := NewManager(st, render)
	m.MarkBusy(models.StateWeatherBusy, models.StateGenVideoProgress, models.StateGenVideoCancelling)

	if err := m.RecoverAll(context.Background()); err != nil {
		t.Fatalf("RecoverAll: %v", err)
	}

	for _, id := range []string{"stuck", "video"} {
		cs, err := st.GetConversation(id)
		if err != nil {
			t.Fatalf("GetConversation(%s): %v", id, err)
		}
		if !cs.Idle() {
			t.Errorf("conversation %s should be idle, state = %q", id, cs.CurrentState)
		}
		if render.messages[id] != InterruptedMessage {
			t.Errorf("conversation %s should be notified", id)
		}
	}

	cs, err := st.GetConversation("mid-input")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if cs == nil || cs.CurrentState != models.StateWeatherCity {
		t.Error("mid-input conversation must be left untouched")
	}
	if _, notified := render.messages["mid-input"]; notified {
		t.Error("untouched conversation must not be notified")
	}
}

func TestRecoverAllWithoutRenderer(t *testing.T) {
	st := store.NewInMemoryStore()
	st.SaveConversation(models.ConversationState{ConversationID: "stuck", FlowType: models.FlowProxies, CurrentState: models.StateProxiesBusy})

	m := NewManager(st, nil)
	m.MarkBusy(models.StateProxiesBusy)

	if err := m.RecoverAll(context.Background()); err != nil {
		t.Fatalf("RecoverAll: %v", err)
	}
}
