package state

import (
	"sync"
	"testing"
)

func TestStore_GetUnknownIsAbsent(t *testing.T) {
	s := NewStore()
	if got := s.Get("sensor.nope"); got != nil {
		t.Fatalf("Get() = %+v, want nil", got)
	}
}

func TestStore_SetStateAndUnit(t *testing.T) {
	s := NewStore()
	s.SetUnit("sensor.t", "°F")
	if got := s.Get("sensor.t"); got != nil {
		t.Fatalf("unit without state: Get() = %+v, want nil", got)
	}

	s.SetState("sensor.t", "71.2")
	got := s.Get("sensor.t")
	if got == nil {
		t.Fatal("Get() = nil, want reading")
	}
	if got.Value != "71.2" || got.Unit != "°F" {
		t.Errorf("Get() = %+v, want {71.2 °F}", got)
	}
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	s.SetState("sensor.h", "40")
	s.Remove("sensor.h")
	if got := s.Get("sensor.h"); got != nil {
		t.Errorf("Get() after Remove = %+v, want nil", got)
	}
}

func TestStore_SubscribeNotifiesWatchedIDsOnly(t *testing.T) {
	s := NewStore()
	var calls int
	unsub := s.Subscribe([]string{"sensor.t", "sensor.h"}, func() { calls++ })
	defer unsub()

	s.SetState("sensor.t", "20")
	s.SetState("sensor.h", "50")
	s.SetState("sensor.other", "1")
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}

	t.Run("unchanged state does not notify", func(t *testing.T) {
		before := calls
		s.SetState("sensor.t", "20")
		if calls != before {
			t.Errorf("calls = %d, want %d", calls, before)
		}
	})

	t.Run("unit change notifies", func(t *testing.T) {
		before := calls
		s.SetUnit("sensor.t", "°C")
		if calls != before+1 {
			t.Errorf("calls = %d, want %d", calls, before+1)
		}
	})

	t.Run("remove notifies", func(t *testing.T) {
		before := calls
		s.Remove("sensor.h")
		if calls != before+1 {
			t.Errorf("calls = %d, want %d", calls, before+1)
		}
	})

	t.Run("remove of unknown entity does not notify", func(t *testing.T) {
		before := calls
		s.Remove("sensor.h")
		if calls != before {
			t.Errorf("calls = %d, want %d", calls, before)
		}
	})
}

func TestStore_CallbackMayReadStore(t *testing.T) {
	s := NewStore()
	var seen string
	unsub := s.Subscribe([]string{"sensor.t"}, func() {
		if r := s.Get("sensor.t"); r != nil {
			seen = r.Value
		}
	})
	defer unsub()

	s.SetState("sensor.t", "22.5")
	if seen != "22.5" {
		t.Errorf("seen = %q, want 22.5", seen)
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore()
	var calls int
	unsub := s.Subscribe([]string{"sensor.t"}, func() { calls++ })
	if s.observerCount() != 1 {
		t.Fatalf("observerCount() = %d, want 1", s.observerCount())
	}

	unsub()
	unsub()
	if s.observerCount() != 0 {
		t.Fatalf("observerCount() = %d, want 0", s.observerCount())
	}

	s.SetState("sensor.t", "1")
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after unsubscribe", calls)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	unsub := s.Subscribe([]string{"sensor.t"}, func() { _ = s.Get("sensor.t") })
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SetState("sensor.t", string(rune('a'+i)))
				_ = s.Get("sensor.t")
			}
		}(i)
	}
	wg.Wait()
}
