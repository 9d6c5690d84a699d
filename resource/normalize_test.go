package resource

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeCanonicalizesNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input Value
		want  Value
	}{
		{"int", 7, int64(7)},
		{"int32", int32(-3), int64(-3)},
		{"uint", uint(12), int64(12)},
		{"whole float", float64(42), int64(42)},
		{"fractional float", 1.5, 1.5},
		{"json number int", json.Number("1001"), int64(1001)},
		{"json number float", json.Number("2.25"), 2.25},
		{"string", "svc1", "svc1"},
		{"bool", true, true},
		{"nil", nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.input)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize(%v) = %#v, want %#v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeRejectsUnsupportedValues(t *testing.T) {
	t.Parallel()

	if _, err := Normalize(struct{ X int }{1}); err == nil {
		t.Fatalf("expected error for struct payload")
	}
	if _, err := Normalize(map[string]any{"x": make(chan int)}); err == nil {
		t.Fatalf("expected error for channel payload")
	}
}

func TestNormalizeBodyNestedCollections(t *testing.T) {
	t.Parallel()

	body := Body{
		"name":  "svc1",
		"ports": []any{80, 443},
		"labels": map[string]any{
			"tier": "edge",
			"slot": uint8(2),
		},
	}

	got, err := NormalizeBody(body)
	if err != nil {
		t.Fatalf("NormalizeBody returned error: %v", err)
	}

	want := Body{
		"name":  "svc1",
		"ports": []any{int64(80), int64(443)},
		"labels": map[string]any{
			"tier": "edge",
			"slot": int64(2),
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeBody = %#v, want %#v", got, want)
	}

	// Input body is not mutated.
	if _, ok := body["ports"].([]any)[0].(int); !ok {
		t.Fatalf("input body was mutated")
	}
}
