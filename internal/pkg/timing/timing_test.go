package timing

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
)

func TestMockClockFiresInOrder(t *testing.T) {
	mock := clock.NewMock()
	c := New(mock)
	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })

	mock.Add(1500 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("after 1.5s fired = %v", fired)
	}
	mock.Add(time.Second)
	if len(fired) != 2 || fired[1] != "b" {
		t.Fatalf("after 2.5s fired = %v", fired)
	}
	if got := c.Now(); !got.Equal(time.Unix(0, 0).Add(2500 * time.Millisecond)) {
		t.Fatalf("Now() = %v", got)
	}
}

func TestStoppedTimerDoesNotFire(t *testing.T) {
	mock := clock.NewMock()
	c := New(mock)
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })
	timer.Stop()
	timer.Stop()

	mock.Add(time.Minute)
	if called {
		t.Fatal("stopped timer fired")
	}
}

func TestTimersArmedByCallbackFireWithinWindow(t *testing.T) {
	mock := clock.NewMock()
	c := New(mock)
	count := 0
	var arm func()
	arm = func() {
		c.AfterFunc(time.Second, func() {
			count++
			arm()
		})
	}
	arm()
	mock.Add(3 * time.Second)
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestNewMockAt(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock, c := NewMockAt(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}
	mock.Add(time.Second)
	if !c.Now().Equal(start.Add(time.Second)) {
		t.Fatalf("Now() = %v after Add", c.Now())
	}
}

func TestSystemClockFires(t *testing.T) {
	c := System()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("system timer did not fire")
	}
}
