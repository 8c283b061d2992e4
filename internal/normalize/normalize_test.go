package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwell/law-search/internal/lawxml"
)

func TestClean(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tabs and newlines collapse", "これは\tテスト\nです。", "これは テスト です。"},
		{"ideographic space collapses", "全角　　空白", "全角 空白"},
		{"ascii word chars survive", "Law 123 abc_def", "Law 123 abc_def"},
		{"symbols removed", "条文※①★テスト", "条文テスト"},
		{"cjk punctuation survives", "第一条「定義」、以下。", "第一条「定義」、以下。"},
		{"whitespace only", " \t\n　", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Clean(tt.in))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	n := New(nil)
	inputs := []string{
		"これは\tテスト\nです。",
		"第一条　この法律は※所得税について定める。",
		"Mixed 混合 text ★ with symbols",
	}
	for _, in := range inputs {
		once := n.Clean(in)
		assert.Equal(t, once, n.Clean(once))
	}
}

func TestDocument_CleansAndAnnotates(t *testing.T) {
	n := New(nil)
	doc := &lawxml.StatuteDocument{
		LawID: "TEST001",
		Name:  "所得税法",
		Fragments: []lawxml.Fragment{
			{LawID: "TEST001", Number: "第1条", Content: "これは\tテスト\nです。"},
			{LawID: "TEST001", Number: "第2条", Content: "※★①"},
		},
	}

	out := n.Document(doc)

	require.Len(t, out.Fragments, 1, "fragment empty after cleaning must be dropped")
	frag := out.Fragments[0]
	assert.Equal(t, "これは テスト です。", frag.Content)
	assert.Equal(t, utf8.RuneCountInString(frag.Content), frag.Metadata["content_length"])
	assert.Equal(t, 3, frag.Metadata["word_count"])
	assert.NotEmpty(t, frag.Metadata["processed_at"])

	// input untouched
	assert.Len(t, doc.Fragments, 2)
	assert.Equal(t, "これは\tテスト\nです。", doc.Fragments[0].Content)
}

func TestSplit_OversizedFragment(t *testing.T) {
	sentence := "この法律は所得税について定める。"
	content := strings.Repeat(sentence, 5)
	maxLen := utf8.RuneCountInString(sentence) * 2

	n := New(nil)
	parts := n.Split(lawxml.Fragment{
		LawID:   "TEST002",
		Number:  "第1条",
		Content: content,
	}, maxLen)

	require.Len(t, parts, 3)
	var rebuilt strings.Builder
	for i, part := range parts {
		assert.Equal(t, "第1条", part.Metadata["split_from"])
		assert.Equal(t, i+1, part.Metadata["split_index"])
		assert.LessOrEqual(t, utf8.RuneCountInString(part.Content), maxLen)
		rebuilt.WriteString(part.Content)
	}
	assert.Equal(t, "第1条-1", parts[0].Number)
	assert.Equal(t, "第1条-2", parts[1].Number)
	assert.Equal(t, "第1条-3", parts[2].Number)
	assert.Equal(t, content, rebuilt.String(), "split must preserve all content in order")
}

func TestSplit_ShortFragmentUnchanged(t *testing.T) {
	n := New(nil)
	frag := lawxml.Fragment{Number: "第1条", Content: "短い条文。"}

	parts := n.Split(frag, 1000)

	require.Len(t, parts, 1)
	assert.Equal(t, "第1条", parts[0].Number)
	assert.Nil(t, parts[0].Metadata["split_from"])
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("一文目。二文目。終端なし")
	assert.Equal(t, []string{"一文目。", "二文目。", "終端なし"}, got)
}
