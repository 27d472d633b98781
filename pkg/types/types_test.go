package types_test

import (
	"testing"
	"time"

	"github.com/realtalk/realtalk/pkg/types"
)

func TestDetectLanguage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		want types.Language
	}{
		{"devanagari", "नमस्ते दुनिया", types.LangHindi},
		{"latin", "hello world", types.LangEnglish},
		{"mixed scripts", "order number १२३ के लिए", types.LangHindi},
		{"single devanagari rune", "a ब c", types.LangHindi},
		{"empty", "", types.LangEnglish},
		{"digits and punctuation", "42!?", types.LangEnglish},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := types.DetectLanguage(tc.text); got != tc.want {
				t.Errorf("DetectLanguage(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}

func TestLanguage_Opposite(t *testing.T) {
	t.Parallel()
	if got := types.LangHindi.Opposite(); got != types.LangEnglish {
		t.Errorf("hi.Opposite() = %s, want en", got)
	}
	if got := types.LangEnglish.Opposite(); got != types.LangHindi {
		t.Errorf("en.Opposite() = %s, want hi", got)
	}
	if got := types.Language("fr").Opposite(); got != types.LangHindi {
		t.Errorf("fr.Opposite() = %s, want hi (capture default)", got)
	}
}

func TestLanguage_IsValid(t *testing.T) {
	t.Parallel()
	if !types.LangHindi.IsValid() || !types.LangEnglish.IsValid() {
		t.Error("hi/en reported invalid")
	}
	if types.Language("de").IsValid() {
		t.Error("de reported valid")
	}
	if types.Language("").IsValid() {
		t.Error("empty language reported valid")
	}
}

func TestAudioClip_Duration(t *testing.T) {
	t.Parallel()
	clip := types.AudioClip{PCM: make([]byte, 32000), SampleRate: 16000}
	if got := clip.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}

	empty := types.AudioClip{SampleRate: 16000}
	if got := empty.Duration(); got != 0 {
		t.Errorf("empty clip Duration() = %v, want 0", got)
	}

	unset := types.AudioClip{PCM: make([]byte, 320)}
	if got := unset.Duration(); got != 0 {
		t.Errorf("unset sample rate Duration() = %v, want 0", got)
	}
}
