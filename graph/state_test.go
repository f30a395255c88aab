package graph

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestReducers(t *testing.T) {
	t.Run("replace", func(t *testing.T) {
		if got := Replace(1, 2); got != 2 {
			t.Errorf("Replace = %d", got)
		}
	})

	t.Run("append allocates", func(t *testing.T) {
		base := make([]int, 2, 10)
		base[0], base[1] = 1, 2
		a := Append(base, []int{3})
		b := Append(base, []int{4})
		if !reflect.DeepEqual(a, []int{1, 2, 3}) || !reflect.DeepEqual(b, []int{1, 2, 4}) {
			t.Errorf("appends interfered: %v %v", a, b)
		}
	})

	t.Run("overwrite if present", func(t *testing.T) {
		cases := []struct {
			name     string
			current  any
			incoming any
			want     any
		}{
			{"empty string keeps", "x", "", "x"},
			{"value replaces", "x", "y", "y"},
			{"nil map keeps", map[string]int{"a": 1}, map[string]int(nil), map[string]int{"a": 1}},
			{"empty map keeps", map[string]int{"a": 1}, map[string]int{}, map[string]int{"a": 1}},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				var got any
				switch cur := c.current.(type) {
				case string:
					got = OverwriteIfPresent(cur, c.incoming.(string))
				case map[string]int:
					got = OverwriteIfPresent(cur, c.incoming.(map[string]int))
				}
				if !reflect.DeepEqual(got, c.want) {
					t.Errorf("got %v, want %v", got, c.want)
				}
			})
		}
	})
}

func TestSchema_New(t *testing.T) {
	if _, err := NewSchema("dup", counterField, ReplaceField[string]("counter")); err == nil {
		t.Error("expected error for duplicate field")
	}
	s := testSchema()
	if got := s.Fields(); !reflect.DeepEqual(got, []string{"counter", "log", "topic", "response"}) {
		t.Errorf("fields = %v", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustSchema did not panic")
		}
	}()
	MustSchema("bad", counterField, counterField)
}

func TestSchema_Merge(t *testing.T) {
	s := testSchema()
	base := s.Defaults()

	t.Run("reducers applied", func(t *testing.T) {
		st, err := s.Merge(base, Updates(counterField.Set(2), logField.Set([]string{"a"}), topicField.Set("t")))
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
		st, err = s.Merge(st, Updates(logField.Set([]string{"b"}), topicField.Set("")))
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
		if counterField.Get(st) != 2 || topicField.Get(st) != "t" {
			t.Errorf("state = %v", st.Map())
		}
		if got := logField.Get(st); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Errorf("log = %v", got)
		}
	})

	t.Run("snapshots immutable", func(t *testing.T) {
		first, _ := s.Merge(base, logField.Set([]string{"a"}))
		second, _ := s.Merge(first, logField.Set([]string{"b"}))
		if got := logField.Get(first); !reflect.DeepEqual(got, []string{"a"}) {
			t.Errorf("earlier snapshot changed: %v", got)
		}
		if len(logField.Get(second)) != 2 {
			t.Errorf("later snapshot = %v", logField.Get(second))
		}
	})

	t.Run("clear", func(t *testing.T) {
		st, _ := s.Merge(base, topicField.Set("trip"))
		st, err := s.Merge(st, topicField.Clear())
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
		if topicField.Get(st) != "" {
			t.Errorf("topic = %q, want cleared", topicField.Get(st))
		}
	})

	t.Run("undeclared field", func(t *testing.T) {
		st, _ := s.Merge(base, counterField.Set(5))
		out, err := s.Merge(st, Update{"counter": 6, "ghost": true})
		var sv *SchemaViolationError
		if !errors.As(err, &sv) || sv.Field != "ghost" {
			t.Fatalf("err = %v", err)
		}
		if counterField.Get(out) != 5 {
			t.Errorf("partial merge applied: %v", out.Map())
		}
	})

	t.Run("coerces json shapes", func(t *testing.T) {
		st, err := s.Merge(base, Update{"response": map[string]any{"type": "edit", "content": "x"}, "counter": float64(3)})
		if err != nil {
			t.Fatalf("Merge: %v", err)
		}
		r := responseField.Get(st)
		if r == nil || r.Type != "edit" || r.Content != "x" {
			t.Errorf("response = %+v", r)
		}
		if counterField.Get(st) != 3 {
			t.Errorf("counter = %d", counterField.Get(st))
		}
	})
}

func TestField_Default(t *testing.T) {
	f := ReplaceField[int]("limit").WithDefault(10)
	s := MustSchema("d", f)
	st := s.Defaults()
	if f.Get(st) != 10 {
		t.Errorf("default = %d", f.Get(st))
	}
	st, _ = s.Merge(st, f.Set(3))
	st, _ = s.Merge(st, f.Clear())
	if f.Get(st) != 10 {
		t.Errorf("cleared value = %d, want default", f.Get(st))
	}
	if f.Get(State{}) != 10 {
		t.Error("Get on empty state should return default")
	}
}

func TestSchema_EncodeDecode(t *testing.T) {
	s := testSchema()
	st, _ := s.Merge(s.Defaults(), Updates(
		counterField.Set(4),
		logField.Set([]string{"x", "y"}),
		responseField.Set(&review{Type: "response", Content: "shorter"}),
	))
	raw, err := s.Encode(st)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := s.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(st.Map(), back.Map()) {
		t.Errorf("decoded %v, want %v", back.Map(), st.Map())
	}

	if _, err := s.Decode(json.RawMessage(`{"ghost":1}`)); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("decode undeclared field: %v", err)
	}
	if _, err := s.Decode(json.RawMessage(`{"counter":"x"}`)); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("decode wrong type: %v", err)
	}
}

func TestSchema_DecodeUpdate(t *testing.T) {
	s := testSchema()
	u, err := s.DecodeUpdate(json.RawMessage(`{"log":["hello"],"topic":"trip"}`))
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if !reflect.DeepEqual(u["log"], []string{"hello"}) || u["topic"] != "trip" {
		t.Errorf("update = %#v", u)
	}
	if _, err := s.DecodeUpdate(json.RawMessage(`{"nope":1}`)); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected schema violation, got %v", err)
	}
}

func TestField_Delta(t *testing.T) {
	t.Run("append suffix", func(t *testing.T) {
		d, ok := logField.delta([]string{"a"}, []string{"a", "b", "c"})
		if !ok || !reflect.DeepEqual(d, []string{"b", "c"}) {
			t.Errorf("delta = %v, %v", d, ok)
		}
	})
	t.Run("unchanged", func(t *testing.T) {
		if _, ok := counterField.delta(1, 1); ok {
			t.Error("expected no change")
		}
	})
	t.Run("optional emptied", func(t *testing.T) {
		d, ok := topicField.delta("x", "")
		if _, isClear := d.(clearValue); !ok || !isClear {
			t.Errorf("delta = %#v, want clear", d)
		}
	})
}
