package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("") is a well-known constant.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs must not share a digest")
	}
}

func TestSumString(t *testing.T) {
	if SumString("note body") != Sum([]byte("note body")) {
		t.Error("SumString must match Sum")
	}
	if !Equal([]byte("x"), SumString("x")) {
		t.Error("Equal should accept matching digest")
	}
	if Equal([]byte("x"), SumString("y")) {
		t.Error("Equal should reject mismatched digest")
	}
}
