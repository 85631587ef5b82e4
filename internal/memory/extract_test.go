package memory

import (
	"strings"
	"testing"
)

func TestExtract_EmptyInput(t *testing.T) {
	if got := Extract(""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestExtract_NoFirstPersonMarker(t *testing.T) {
	got := Extract("The weather is nice. Mondays are hard for everyone.")
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestExtract_KeepsOnlyFirstPersonSentences(t *testing.T) {
	got := Extract("I am anxious about work. The weather is nice.")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(got), got)
	}
	if got[0] != "I am anxious about work." {
		t.Errorf("expected %q, got %q", "I am anxious about work.", got[0])
	}
}

func TestExtract_AllMarkers(t *testing.T) {
	for _, text := range []string{
		"I am a morning person.",
		"I'm not sleeping well.",
		"My goal is to meditate daily.",
		"I need more structure.",
		"I prefer short sessions.",
		"I struggle with consistency.",
		"I feel calmer after walks.",
		"I want inner peace.",
	} {
		if got := Extract(text); len(got) != 1 {
			t.Errorf("Extract(%q) = %v, expected 1 candidate", text, got)
		}
	}
}

func TestExtract_CapsCandidates(t *testing.T) {
	text := "I want a. I want b. I want c. I want d. I want e."
	got := Extract(text)
	if len(got) != MaxCandidates {
		t.Fatalf("expected %d candidates, got %d", MaxCandidates, len(got))
	}
	// Original order preserved
	if got[0] != "I want a." || got[2] != "I want c." {
		t.Errorf("candidates out of order: %v", got)
	}
}

func TestExtract_SplitsOnAllTerminators(t *testing.T) {
	got := Extract("I want calm! The sky is blue. I need rest? Sure.")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(got), got)
	}
	if got[0] != "I want calm!" || got[1] != "I need rest?" {
		t.Errorf("unexpected candidates: %v", got)
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := Normalize("  I   need\t\tmore \n sleep  ")
	if got != "I need more sleep" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_StripsBulletPrefix(t *testing.T) {
	for in, want := range map[string]string{
		"- I need rest":      "I need rest",
		"* I need rest":      "I need rest",
		"1. I need rest":     "I need rest",
		"2) I need rest":     "I need rest",
		"  3.  I need rest":  "I need rest",
		"I need rest - more": "I need rest - more",
	} {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Truncates(t *testing.T) {
	long := "I am " + strings.Repeat("very ", 200) + "tired"
	got := Normalize(long)
	if len(got) > 320 {
		t.Errorf("expected content capped at 320 chars, got %d", len(got))
	}
}

func TestNormalize_BulletOnlyBecomesEmpty(t *testing.T) {
	if got := Normalize(" - 12. "); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
