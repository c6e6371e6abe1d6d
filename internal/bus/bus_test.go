package bus

import (
	"errors"
	"testing"
)

func TestBus_PublishFansOut(t *testing.T) {
	b := New()
	id1, ch1 := b.Subscribe(1)
	_, ch2 := b.Subscribe(1)

	if n := b.Publish(Message{ID: "X", Body: "{}"}); n != 2 {
		t.Fatalf("delivered=%d want 2", n)
	}
	if m := <-ch1; m.ID != "X" {
		t.Fatalf("ch1 got %+v", m)
	}
	if m := <-ch2; m.ID != "X" {
		t.Fatalf("ch2 got %+v", m)
	}

	b.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if n := b.Publish(Message{ID: "Y"}); n != 1 {
		t.Fatalf("delivered=%d want 1", n)
	}
}

func TestBus_FullSubscriberDrops(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(1)
	b.Publish(Message{ID: "A"})
	if n := b.Publish(Message{ID: "B"}); n != 0 {
		t.Fatalf("delivered=%d want 0 (full)", n)
	}
	if m := <-ch; m.ID != "A" {
		t.Fatalf("got %+v want A", m)
	}
}

func TestDecode_Waypoints(t *testing.T) {
	ev, err := Decode(Message{ID: WaypointActivatedID, Body: `{"GUID":"wp-1","extra":3}`})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if wa, ok := ev.(WaypointActivated); !ok || wa.GUID != "wp-1" {
		t.Fatalf("got %#v", ev)
	}

	ev, err = Decode(Message{ID: WaypointArrivedID, Body: `{"GUID":"wp-2"}`})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if wa, ok := ev.(WaypointArrived); !ok || wa.GUID != "wp-2" {
		t.Fatalf("got %#v", ev)
	}
}

func TestDecode_MalformedIsAbsentData(t *testing.T) {
	bad := []Message{
		{ID: WaypointActivatedID, Body: `not json`},
		{ID: WaypointActivatedID, Body: `{}`},
		{ID: WaypointArrivedID, Body: `{"GUID":""}`},
		{ID: VariationID, Body: `{"Decl":"abc"}`},
		{ID: VariationID, Body: `{}`},
		{ID: VariationID, Body: `{"Decl":"NaN"}`},
		{ID: VariationID, Body: `{"Decl":"Infinity"}`},
		{ID: VariationID, Body: `{"Decl":"-inf"}`},
	}
	for _, m := range bad {
		if _, err := Decode(m); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%+v) err=%v want ErrMalformed", m, err)
		}
	}
	if _, err := Decode(Message{ID: "NOPE"}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("err=%v want ErrUnknown", err)
	}
}

func TestDecode_VariationStringOrNumber(t *testing.T) {
	for _, body := range []string{`{"Decl":"-12.5"}`, `{"Decl":-12.5}`} {
		ev, err := Decode(Message{ID: VariationID, Body: body})
		if err != nil {
			t.Fatalf("Decode(%s): %v", body, err)
		}
		if v := ev.(Variation); v.Decl != -12.5 {
			t.Fatalf("decl=%v want -12.5", v.Decl)
		}
	}
}

func TestEncode_DecodeVariation(t *testing.T) {
	m, err := Encode(Variation{Decl: 3.25})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	ev, err := Decode(m)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.(Variation).Decl != 3.25 {
		t.Fatalf("got %#v", ev)
	}
	req, err := Encode(VariationRequest{})
	if err != nil || req.ID != VariationRequestID || req.Body != "{}" {
		t.Fatalf("request=%+v err=%v", req, err)
	}
}
