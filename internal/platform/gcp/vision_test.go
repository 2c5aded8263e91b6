package gcp

import (
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func word(symbols ...string) *visionpb.Word {
	w := &visionpb.Word{}
	for _, s := range symbols {
		w.Symbols = append(w.Symbols, &visionpb.Symbol{Text: s})
	}
	return w
}

func annotation(paragraphs ...[]*visionpb.Word) *visionpb.TextAnnotation {
	block := &visionpb.Block{}
	for _, words := range paragraphs {
		block.Paragraphs = append(block.Paragraphs, &visionpb.Paragraph{Words: words})
	}
	return &visionpb.TextAnnotation{Pages: []*visionpb.Page{{Blocks: []*visionpb.Block{block}}}}
}

func TestTextFromAnnotationChineseJoinsWithoutSpaces(t *testing.T) {
	fta := annotation(
		[]*visionpb.Word{word("今", "天"), word("我"), word("跑", "步")},
		[]*visionpb.Word{word("很", "开", "心")},
	)
	got := TextFromAnnotation(fta, []string{"zh-Hans"})
	if want := "今天我跑步\n很开心"; got != want {
		t.Fatalf("text: want=%q got=%q", want, got)
	}
}

func TestTextFromAnnotationLatinJoinsWithSpaces(t *testing.T) {
	fta := annotation([]*visionpb.Word{word("I"), word("r", "a", "n"), word("t", "o", "d", "a", "y")})
	if got := TextFromAnnotation(fta, []string{"en"}); got != "I ran today" {
		t.Fatalf("text: got=%q", got)
	}
}

func TestTextFromAnnotationFallsBackToFullText(t *testing.T) {
	fta := &visionpb.TextAnnotation{Text: "  hello \n  world "}
	if got := TextFromAnnotation(fta, nil); got != "hello world" {
		t.Fatalf("text: got=%q", got)
	}
	if got := TextFromAnnotation(nil, nil); got != "" {
		t.Fatalf("nil annotation: got=%q", got)
	}
}
