package notifications

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBodyPreview(t *testing.T) {
	t.Run("short body keeps its full text", func(t *testing.T) {
		if got := BodyPreview("hello"); got != "hello..." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long body cuts at 100 characters", func(t *testing.T) {
		body := strings.Repeat("x", 250)
		got := BodyPreview(body)
		if got != strings.Repeat("x", 100)+"..." {
			t.Errorf("got %d chars: %q", len(got), got)
		}
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		body := strings.Repeat("م", 150)
		got := BodyPreview(body)
		if []rune(got)[0] != 'م' {
			t.Errorf("got %q", got)
		}
		if n := len([]rune(got)); n != 103 {
			t.Errorf("rune length = %d, want 103", n)
		}
	})
}

func TestMessage(t *testing.T) {
	if got := Message("Launch day"); got != "A new post has been created: Launch day" {
		t.Errorf("got %q", got)
	}
}

func TestActionURL(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	if got := ActionURL(id); got != "/posts/6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Errorf("got %q", got)
	}
}
