package util

import (
	"strings"
	"testing"

	"github.com/pramitgaha/map-error/rpc/common"
	"lukechampine.com/uint128"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %q is longer than %d characters", line, Wrap)
		}
	}
	if got := WrapString("short text"); got != "short text" {
		t.Errorf("WrapString changed a short text: %q", got)
	}
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(" 340282366920938463463374607431768211455 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != uint128.Max {
		t.Errorf("expected the largest key, got %s", key)
	}

	for _, arg := range []string{"", "-1", "abc", "340282366920938463463374607431768211456"} {
		if _, err := ParseKey(arg); err == nil {
			t.Errorf("expected an error for %q", arg)
		}
	}
}

func TestParseShards(t *testing.T) {
	shards, err := ParseShards("1:stable, 2:heap,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []common.ServerShard{
		{ShardID: 1, Type: common.ShardTypeStable},
		{ShardID: 2, Type: common.ShardTypeHeap},
	}
	if len(shards) != len(expected) {
		t.Fatalf("expected %d shards, got %d", len(expected), len(shards))
	}
	for i := range expected {
		if shards[i] != expected[i] {
			t.Errorf("shard %d: expected %+v, got %+v", i, expected[i], shards[i])
		}
	}

	for _, list := range []string{"1=stable", "x:heap"} {
		if _, err := ParseShards(list); err == nil {
			t.Errorf("expected an error for %q", list)
		}
	}
}
