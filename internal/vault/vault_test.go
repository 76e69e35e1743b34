package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	waLog "go.mau.fi/whatsmeow/util/log"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return New(t.TempDir(), waLog.Noop)
}

func TestSaveAndListImages(t *testing.T) {
	v := newTestVault(t)

	handle, err := v.SaveImage("972545460223", "vacation", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if handle != "vacation.jpg" {
		t.Fatalf("handle = %q, want vacation.jpg", handle)
	}

	names, err := v.List("972545460223", KindImage)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "vacation.jpg" {
		t.Fatalf("list = %v", names)
	}
}

func TestListSortedDeterministically(t *testing.T) {
	v := newTestVault(t)
	for _, name := range []string{"zebra", "apple", "mango"} {
		if _, err := v.SaveText("972545460223", name, "x"); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	names, err := v.List("972545460223", KindText)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"apple.txt", "mango.txt", "zebra.txt"}
	if len(names) != len(want) {
		t.Fatalf("list = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("list = %v, want %v", names, want)
		}
	}
}

func TestGetByOrdinal(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.SaveText("972545460223", "note", "the content"); err != nil {
		t.Fatalf("save: %v", err)
	}

	name, data, err := v.GetByOrdinal("972545460223", KindText, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if name != "note.txt" || string(data) != "the content" {
		t.Fatalf("get = %q, %q", name, data)
	}
}

func TestGetByOrdinalOutOfRange(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.SaveText("972545460223", "only", "x"); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, n := range []int{0, -1, 2, 99} {
		_, _, err := v.GetByOrdinal("972545460223", KindText, n)
		if !errors.Is(err, ErrSelectionOutOfRange) {
			t.Fatalf("ordinal %d error = %v, want ErrSelectionOutOfRange", n, err)
		}
	}
	// An owner with no namespace at all behaves the same.
	_, _, err := v.GetByOrdinal("972500000000", KindImage, 1)
	if !errors.Is(err, ErrSelectionOutOfRange) {
		t.Fatalf("empty owner error = %v", err)
	}
}

func TestDuplicateNameCreatesSecondArtifact(t *testing.T) {
	v := newTestVault(t)

	h1, err := v.SaveImage("972545460223", "vacation", []byte("first"))
	if err != nil {
		t.Fatalf("save 1: %v", err)
	}
	h2, err := v.SaveImage("972545460223", "vacation", []byte("second"))
	if err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("second save reused handle %q", h1)
	}
	if !strings.HasPrefix(h2, "vacation-") || !strings.HasSuffix(h2, ".jpg") {
		t.Fatalf("collision handle = %q", h2)
	}

	names, err := v.List("972545460223", KindImage)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("list = %v, want both artifacts", names)
	}
	// First artifact is untouched.
	_, data, err := v.GetByOrdinal("972545460223", KindImage, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(data, []byte("first")) {
		t.Fatalf("first artifact overwritten: %q", data)
	}
}

func TestListEmptyOwner(t *testing.T) {
	v := newTestVault(t)
	names, err := v.List("nobody", KindImage)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("list = %v", names)
	}
}

func TestKindsAreSeparate(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.SaveImage("972545460223", "pic", []byte("i")); err != nil {
		t.Fatalf("save image: %v", err)
	}
	if _, err := v.SaveText("972545460223", "doc", "t"); err != nil {
		t.Fatalf("save text: %v", err)
	}

	images, _ := v.List("972545460223", KindImage)
	texts, _ := v.List("972545460223", KindText)
	if len(images) != 1 || len(texts) != 1 {
		t.Fatalf("images = %v, texts = %v", images, texts)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"vacation", "vacation"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"חופשה 2025", "חופשה 2025"},
		{"  ", "unnamed"},
	}
	for _, c := range cases {
		if got := sanitizeName(c.in); got != c.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
