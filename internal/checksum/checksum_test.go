package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("---\nheadline: x\n---\n<p>a</p>\n"))
	b := Sum([]byte("---\nheadline: x\n---\n<p>a</p>\n"))
	if a != b {
		t.Fatalf("same input, different sums: %s %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == Sum([]byte("---\nheadline: y\n---\n<p>a</p>\n")) {
		t.Error("different input should change the sum")
	}
}

func TestSum_IgnoresLineEndingsAndBOM(t *testing.T) {
	lf := Sum([]byte("---\nheadline: x\n---\n<p>a</p>\n"))
	crlf := Sum([]byte("---\r\nheadline: x\r\n---\r\n<p>a</p>\r\n"))
	bom := Sum([]byte("\xef\xbb\xbf---\nheadline: x\n---\n<p>a</p>\n"))
	if lf != crlf {
		t.Error("CRLF document should match LF document")
	}
	if lf != bom {
		t.Error("BOM document should match plain document")
	}
}

func TestNormalize_KeepsLoneCR(t *testing.T) {
	got := string(Normalize([]byte("a\rb\r\nc")))
	if got != "a\rb\nc" {
		t.Errorf("Normalize = %q", got)
	}
}
