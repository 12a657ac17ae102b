package transcript

import (
	"reflect"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

func words(pairs ...any) []stt.Word {
	// pairs is speaker, punctuated, speaker, punctuated, ...
	var out []stt.Word
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, stt.Word{Speaker: pairs[i].(int), Punctuated: pairs[i+1].(string)})
	}
	return out
}

func TestDiarize(t *testing.T) {
	tests := []struct {
		name  string
		words []stt.Word
		want  []string
		spk   []int
	}{
		{
			name:  "empty",
			words: nil,
		},
		{
			name:  "sentence split",
			words: words(0, "Hello", 0, "there.", 0, "How", 0, "are", 0, "you?"),
			want:  []string{"Hello there.", "How are you?"},
			spk:   []int{0, 0},
		},
		{
			name:  "speaker change mid sentence",
			words: words(0, "So", 0, "the", 1, "Wait", 1, "what!"),
			want:  []string{"So the", "Wait what!"},
			spk:   []int{0, 1},
		},
		{
			name:  "trailing fragment flushed",
			words: words(1, "Done.", 1, "and", 1, "then"),
			want:  []string{"Done.", "and then"},
			spk:   []int{1, 1},
		},
		{
			name:  "speaker returns",
			words: words(0, "Yes.", 1, "No.", 0, "Maybe."),
			want:  []string{"Yes.", "No.", "Maybe."},
			spk:   []int{0, 1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Diarize(tt.words)
			var texts []string
			var spk []int
			for _, s := range segs {
				texts = append(texts, s.Text)
				spk = append(spk, s.Speaker)
			}
			if !reflect.DeepEqual(texts, tt.want) {
				t.Errorf("texts = %q, want %q", texts, tt.want)
			}
			if !reflect.DeepEqual(spk, tt.spk) {
				t.Errorf("speakers = %v, want %v", spk, tt.spk)
			}
		})
	}
}

func TestDiarize_FallsBackToRawWordAndTracksTimes(t *testing.T) {
	segs := Diarize([]stt.Word{
		{Speaker: 2, Text: "ok", Start: 1.0, End: 1.2},
		{Speaker: 2, Text: "go", Punctuated: "go.", Start: 1.3, End: 1.6},
	})
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	want := Segment{Speaker: 2, Text: "ok go.", Start: 1.0, End: 1.6}
	if segs[0] != want {
		t.Errorf("segment = %+v, want %+v", segs[0], want)
	}
}

func TestFormat(t *testing.T) {
	got := Format([]Segment{{Speaker: 0, Text: "Hello there."}, {Speaker: 1, Text: "Hi."}})
	want := "Speaker 0: Hello there.\nSpeaker 1: Hi.\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
	if Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}
}

func TestSpeakers(t *testing.T) {
	if n := Speakers([]Segment{{Speaker: 0}, {Speaker: 1}, {Speaker: 0}}); n != 2 {
		t.Errorf("Speakers = %d, want 2", n)
	}
}
