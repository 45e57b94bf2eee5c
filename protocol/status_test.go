package protocol

import "testing"

func TestScanStatusLines(t *testing.T) {
	buf := []byte("HOMING COMPLETE\r\nhello world\nMOVING J3\npartial")

	lines, consumed := ScanStatusLines(buf)
	if len(lines) != 2 {
		t.Fatalf("状态行数 = %d, 期望 2: %v", len(lines), lines)
	}
	if lines[0] != "HOMING COMPLETE" || lines[1] != "MOVING J3" {
		t.Errorf("状态行内容不符: %v", lines)
	}
	// "partial" 没有换行结尾，应保留在缓冲区
	if rest := string(buf[consumed:]); rest != "partial" {
		t.Errorf("剩余缓冲 = %q, 期望 partial", rest)
	}
}

func TestScanStatusLinesEmpty(t *testing.T) {
	lines, consumed := ScanStatusLines([]byte("\n\n  \n"))
	if len(lines) != 0 {
		t.Errorf("空行不应上报: %v", lines)
	}
	if consumed != 4 {
		t.Errorf("consumed = %d, 期望 4", consumed)
	}
}

func TestIsStatusMessage(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"SAVE COMPLETE", true},
		{"TELEOP START", true},
		{"MOTOR BLOCKED", true},
		{"COMM TIMEOUT", true},
		{"TARGET REACHED", true},
		{"ERROR: overcurrent", true},
		{"debug tick 42", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsStatusMessage(c.line); got != c.want {
			t.Errorf("IsStatusMessage(%q) = %v, 期望 %v", c.line, got, c.want)
		}
	}
}
