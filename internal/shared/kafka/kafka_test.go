package kafka

import (
	"context"
	"reflect"
	"testing"
)

func TestBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092, b:9092,", []string{"a:9092", "b:9092"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := Brokers(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Brokers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "result_declared")
	defer w.Close()
	if w.Topic != "result_declared" {
		t.Errorf("Topic = %q", w.Topic)
	}
	if w.Addr == nil {
		t.Error("Addr = nil")
	}
}

func TestEnsureTopics_NoBrokers(t *testing.T) {
	if _, err := EnsureTopics(context.Background(), " , ", 1, "result_detected"); err == nil {
		t.Error("EnsureTopics() without brokers succeeded, want error")
	}
}
