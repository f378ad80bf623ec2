package engine

import (
	"errors"
	"testing"
	"time"

	"fmradio/internal/rds"
)

func names(q *queue) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.items))
	for _, c := range q.items {
		out = append(out, c.Name())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueue_Supersession(t *testing.T) {
	tests := []struct {
		name    string
		push    []Command
		want    []string
		dropped int
	}{
		{
			name:    "latest tune wins",
			push:    []Command{Tune{Freq: 881}, Tune{Freq: 900}, Tune{Freq: 955}},
			want:    []string{"tune"},
			dropped: 2,
		},
		{
			name:    "power down drops pending tuning",
			push:    []Command{PowerUp{}, Tune{Freq: 900}, Seek{Up: true}, Scan{}, PowerDown{}},
			want:    []string{"power_down"},
			dropped: 4,
		},
		{
			name:    "recording commands are never merged",
			push:    []Command{StartRecording{}, StopRecording{}, StartRecording{}},
			want:    []string{"start_recording", "stop_recording", "start_recording"},
			dropped: 0,
		},
		{
			name: "rds updates coalesce per kind",
			push: []Command{
				rdsUpdate{kind: rds.ProgramService, value: "A"},
				rdsUpdate{kind: rds.RadioText, value: "x"},
				rdsUpdate{kind: rds.ProgramService, value: "B"},
			},
			want:    []string{"rds_update", "rds_update"},
			dropped: 1,
		},
		{
			name:    "mute keeps its place relative to others",
			push:    []Command{SetMute{Mute: true}, Tune{Freq: 900}, SetMute{Mute: false}},
			want:    []string{"tune", "set_mute"},
			dropped: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue()
			dropped := 0
			for _, c := range tt.push {
				n, err := q.push(c)
				if err != nil {
					t.Fatalf("push %s: %v", c.Name(), err)
				}
				dropped += n
			}
			if got := names(q); !equal(got, tt.want) {
				t.Errorf("queue = %v, want %v", got, tt.want)
			}
			if dropped != tt.dropped {
				t.Errorf("dropped = %d, want %d", dropped, tt.dropped)
			}
		})
	}
}

func TestQueue_LatestValueKept(t *testing.T) {
	q := newQueue()
	q.push(Tune{Freq: 881})
	q.push(Tune{Freq: 955})

	c, ok := q.next(make(chan struct{}))
	if !ok {
		t.Fatal("next returned no command")
	}
	if tune, _ := c.(Tune); tune.Freq != 955 {
		t.Errorf("got %+v, want the last tune", c)
	}
}

func TestQueue_SealAndPurge(t *testing.T) {
	q := newQueue()
	q.push(Scan{})
	q.push(StartRecording{})
	q.push(Seek{Up: true})

	if n := q.purge(func(c Command) bool { _, ok := c.(Seek); return ok }); n != 1 {
		t.Errorf("purge dropped %d, want 1", n)
	}
	if n := q.seal(exit{}); n != 2 {
		t.Errorf("seal dropped %d, want 2", n)
	}
	if got := names(q); !equal(got, []string{"exit"}) {
		t.Errorf("queue after seal = %v", got)
	}
	if _, err := q.push(Tune{Freq: 900}); !errors.Is(err, ErrClosed) {
		t.Errorf("push after seal: err = %v, want ErrClosed", err)
	}
}

func TestQueue_NextBlocksUntilPush(t *testing.T) {
	q := newQueue()
	stop := make(chan struct{})
	got := make(chan Command, 1)
	go func() {
		c, _ := q.next(stop)
		got <- c
	}()

	select {
	case c := <-got:
		t.Fatalf("next returned %v on an empty queue", c)
	case <-time.After(20 * time.Millisecond):
	}
	q.push(PowerDown{})
	select {
	case c := <-got:
		if c.Name() != "power_down" {
			t.Errorf("next = %s", c.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("next did not wake on push")
	}
}

func TestQueue_NextStops(t *testing.T) {
	q := newQueue()
	stop := make(chan struct{})
	close(stop)
	if _, ok := q.next(stop); ok {
		t.Error("next on a stopped empty queue returned a command")
	}
}
