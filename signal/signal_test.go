package signal

import "testing"

func TestRaiseDropNotifiesInOrder(t *testing.T) {
	f := New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if _, err := f.Subscribe(CLCK, func(level bool) { order = append(order, i) }); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
	}

	f.Raise(CLCK)
	if len(order) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("callback %d fired out of order: got %d", i, v)
		}
	}
	if !f.Read(CLCK) {
		t.Error("expected CLCK high after Raise")
	}

	f.Drop(CLCK)
	if f.Read(CLCK) {
		t.Error("expected CLCK low after Drop")
	}
}

func TestSubscribeCapEnforced(t *testing.T) {
	f := New()
	for i := 0; i < maxSubscribers; i++ {
		if _, err := f.Subscribe(WAIT, func(bool) {}); err != nil {
			t.Fatalf("subscribe %d: unexpected error: %v", i, err)
		}
	}
	if _, err := f.Subscribe(WAIT, func(bool) {}); err == nil {
		t.Error("expected error on 17th subscription")
	}
}

func TestUnsubscribeFreesSlot(t *testing.T) {
	f := New()
	var handles []Handle
	for i := 0; i < maxSubscribers; i++ {
		h, err := f.Subscribe(RD, func(bool) {})
		if err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
		handles = append(handles, h)
	}
	f.Unsubscribe(RD, handles[0])
	if _, err := f.Subscribe(RD, func(bool) {}); err != nil {
		t.Errorf("expected room after unsubscribe, got: %v", err)
	}
}

func TestUnsubscribedListenerNotInvoked(t *testing.T) {
	f := New()
	fired := false
	h, _ := f.Subscribe(NMI, func(bool) { fired = true })
	f.Unsubscribe(NMI, h)
	f.Raise(NMI)
	if fired {
		t.Error("unsubscribed listener should not fire")
	}
}

func TestBusWritesAreImmediate(t *testing.T) {
	f := New()
	f.SetAddress(0x1234)
	f.SetData(0xAB)
	if f.Address() != 0x1234 {
		t.Errorf("address bus: got %#04x", f.Address())
	}
	if f.Data() != 0xAB {
		t.Errorf("data bus: got %#02x", f.Data())
	}
}
