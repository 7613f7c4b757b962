package canopy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestDebugModeDisposedNodePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"disposed child", func() {
			child := NewNode("child", 10, 10)
			child.Dispose()
			NewContainer("parent").AddChild(child)
		}},
		{"disposed parent", func() {
			parent := NewContainer("parent")
			parent.Dispose()
			parent.AddChild(NewNode("child", 10, 10))
		}},
	}
	s := NewScene()
	s.SetDebugMode(true)
	defer s.SetDebugMode(false)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic, got none")
				}
				if msg := fmt.Sprint(r); !strings.Contains(msg, "disposed") {
					t.Errorf("panic message should mention 'disposed', got: %s", msg)
				}
			}()
			tt.fn()
		})
	}
}

func TestReleaseModeDisposedNodeNoPanic(t *testing.T) {
	s := NewScene()
	s.SetDebugMode(false)

	child := NewNode("child", 10, 10)
	child.Dispose()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("release mode should not panic on disposed node, got: %v", r)
		}
	}()
	s.Root().AddChild(child)
}

func captureWarnings(t *testing.T, s *Scene) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	s.SetDebugOutput(&buf)
	s.SetDebugMode(true)
	t.Cleanup(func() {
		s.SetDebugMode(false)
		debugWarnOut = os.Stderr
	})
	return &buf
}

func TestDebugModeTreeDepthWarning(t *testing.T) {
	s := NewScene()
	buf := captureWarnings(t, s)

	current := s.Root()
	for i := 0; i < debugMaxTreeDepth+5; i++ {
		child := NewContainer(fmt.Sprintf("depth_%d", i))
		current.AddChild(child)
		current = child
	}

	if !strings.Contains(buf.String(), "warning: tree depth") {
		t.Errorf("expected tree depth warning, got: %q", buf.String())
	}
}

func TestDebugModeChildCountWarning(t *testing.T) {
	s := NewScene()
	buf := captureWarnings(t, s)

	parent := NewContainer("many_children")
	s.Root().AddChild(parent)
	for i := 0; i < debugMaxChildCount+1; i++ {
		parent.AddChild(NewContainer(fmt.Sprintf("c_%d", i)))
	}

	out := buf.String()
	if !strings.Contains(out, `warning: node "many_children"`) || !strings.Contains(out, "1001 children") {
		t.Errorf("expected child count warning, got: %q", out)
	}
}

func TestDebugLogSync(t *testing.T) {
	tests := []struct {
		name  string
		stats indexSyncStats
		want  []string
	}{
		{"idle frame", indexSyncStats{total: 10}, nil},
		{
			"rebuild",
			indexSyncStats{added: 1500, dirty: 1500, total: 1500, action: UpdateRebuild},
			[]string{"action=rebuild", "dirty: 1,500/1,500", "added: 1500"},
		},
		{
			"removal only",
			indexSyncStats{removed: 2, total: 8, action: UpdateIncremental},
			[]string{"action=incremental", "removed: 2"},
		},
		{
			"error",
			indexSyncStats{dirty: 1, total: 2, action: UpdateIncremental, err: errors.New("boom")},
			[]string{"sync error: boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewScene()
			s.debug = true
			s.debugOut = &buf

			s.debugLogSync(tt.stats)

			out := buf.String()
			if tt.want == nil && out != "" {
				t.Errorf("expected no output, got %q", out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
		})
	}
}

func TestDebugLogSyncDisabled(t *testing.T) {
	var buf bytes.Buffer
	s := NewScene()
	s.debugOut = &buf
	s.debugLogSync(indexSyncStats{dirty: 1, total: 1})
	if buf.Len() != 0 {
		t.Errorf("debug off should log nothing, got %q", buf.String())
	}
}
