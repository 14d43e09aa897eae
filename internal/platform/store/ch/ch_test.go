package ch

import (
	"context"
	"testing"
)

func TestOpen_EmptyURL(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "  "}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestOpen_BadDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestClose_NilSafe(t *testing.T) {
	var c *CH
	if err := c.Close(); err != nil {
		t.Fatalf("nil Close = %v", err)
	}
	if err := (&CH{}).Close(); err != nil {
		t.Fatalf("zero Close = %v", err)
	}
}
