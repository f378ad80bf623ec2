package event

import (
	"encoding/json"
	"testing"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Name()) })
	bus.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Name()) })

	bus.Publish(PowerUpFinished{OK: true, Frequency: 875})
	bus.Publish(TuneFinished{OK: false, Frequency: 875})

	want := []string{"a:power_up_finished", "b:power_up_finished", "a:tune_finished", "b:tune_finished"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	h := bus.Subscribe(func(Event) { calls++ })
	other := bus.Subscribe(func(Event) {})

	bus.Publish(Exited{})
	bus.Unsubscribe(h)
	bus.Unsubscribe(h)
	bus.Publish(Exited{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if bus.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bus.Len())
	}
	if h == other || h == 0 {
		t.Errorf("handles not unique: %d, %d", h, other)
	}
}

func TestBusUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus()
	var second Handle
	secondCalls := 0
	bus.Subscribe(func(Event) { bus.Unsubscribe(second) })
	second = bus.Subscribe(func(Event) { secondCalls++ })

	bus.Publish(Exited{})
	bus.Publish(Exited{})

	if secondCalls > 1 {
		t.Errorf("removed listener called %d times", secondCalls)
	}
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(RecorderError{Kind: StorageInsufficient, Message: "low"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"kind":"storage_insufficient","message":"low"}` {
		t.Errorf("json = %s", data)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	bus := NewBus()
	bus.Subscribe(r.Listen)
	bus.Publish(MuteChanged{Muted: true})
	<-r.Notify()
	if evs := r.Events(); len(evs) != 1 || evs[0] != (MuteChanged{Muted: true}) {
		t.Errorf("Events() = %v", evs)
	}
}
