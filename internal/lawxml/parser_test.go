package lawxml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lserrors "github.com/redwell/law-search/internal/errors"
)

const taxLawXML = `<?xml version="1.0" encoding="UTF-8"?>
<Law xmlns:law="http://elaws.e-gov.go.jp/XMLSchema">
  <LawNum>明治三十二年法律第八十九号</LawNum>
  <LawBody>
    <LawTitle Kana="しょとくぜいほう">所得税法</LawTitle>
    <LawTitleKana>しょとくぜいほう</LawTitleKana>
    <PromulgateDate>1899-02-13</PromulgateDate>
    <EffectiveDate>1899-04-01</EffectiveDate>
    <MainProvision>
      <Article Num="1">
        <ArticleNum>第1条</ArticleNum>
        <ArticleCaption>この法律は、所得税について定める。</ArticleCaption>
      </Article>
      <Article Num="2">
        <ArticleNum>第2条</ArticleNum>
        <ArticleCaption>この法律において居住者とは国内に住所を有する個人をいう。</ArticleCaption>
      </Article>
    </MainProvision>
  </LawBody>
</Law>`

func TestParse_TwoArticles(t *testing.T) {
	p := NewParser(nil)

	doc, err := p.Parse(strings.NewReader(taxLawXML), "M32HO089")
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "M32HO089", doc.LawID)
	assert.Equal(t, "所得税法", doc.Name)
	assert.Equal(t, "しょとくぜいほう", doc.NameKana)
	assert.Equal(t, "明治三十二年法律第八十九号", doc.Number)
	assert.Equal(t, "1899-02-13", doc.PromulgationDate)
	assert.Equal(t, "1899-04-01", doc.EffectiveDate)
	assert.Equal(t, CategoryTax, doc.Category)
	assert.Equal(t, "所得税法に関する法律", doc.Description)

	require.Len(t, doc.Fragments, 2)
	assert.Equal(t, "第1条", doc.Fragments[0].Number)
	assert.Equal(t, "第2条", doc.Fragments[1].Number)
	assert.NotEmpty(t, doc.Fragments[0].Content)
	assert.Equal(t, "Article", doc.Fragments[0].Metadata["xml_element"])
}

func TestParse_ItemFallback(t *testing.T) {
	xml := `<?xml version="1.0"?>
<Law>
  <LawTitle>試験規則</LawTitle>
  <Item Num="1">
    <ItemNum>一</ItemNum>
    <ItemCaption>最初の項目である。</ItemCaption>
  </Item>
</Law>`

	doc, err := NewParser(nil).Parse(strings.NewReader(xml), "TEST001")
	require.NoError(t, err)

	require.Len(t, doc.Fragments, 1)
	assert.Equal(t, "一", doc.Fragments[0].Number)
	assert.Equal(t, "最初の項目である。", doc.Fragments[0].Content)
	assert.Equal(t, "Item", doc.Fragments[0].Metadata["xml_element"])
}

func TestParse_NumberFromAttributeFallback(t *testing.T) {
	xml := `<?xml version="1.0"?>
<Law>
  <LawTitle>附則</LawTitle>
  <Article Num="第3条">
    <ArticleCaption>番号要素を持たない条文。</ArticleCaption>
  </Article>
</Law>`

	doc, err := NewParser(nil).Parse(strings.NewReader(xml), "TEST002")
	require.NoError(t, err)

	require.Len(t, doc.Fragments, 1)
	assert.Equal(t, "第3条", doc.Fragments[0].Number)
}

func TestParse_DropsIncompleteFragments(t *testing.T) {
	xml := `<?xml version="1.0"?>
<Law>
  <LawTitle>欠落試験</LawTitle>
  <Article>
    <ArticleCaption>番号がない。</ArticleCaption>
  </Article>
  <Article Num="2">
    <ArticleNum>第2条</ArticleNum>
  </Article>
  <Article Num="3">
    <ArticleNum>第3条</ArticleNum>
    <ArticleCaption>完全な条文。</ArticleCaption>
  </Article>
</Law>`

	doc, err := NewParser(nil).Parse(strings.NewReader(xml), "TEST003")
	require.NoError(t, err)

	require.Len(t, doc.Fragments, 1)
	assert.Equal(t, "第3条", doc.Fragments[0].Number)
}

func TestParse_StructuralHints(t *testing.T) {
	xml := `<?xml version="1.0"?>
<Law>
  <LawTitle>構造試験</LawTitle>
  <Chapter Num="1">
    <ChapterTitle>第一章 総則</ChapterTitle>
    <Section Num="1">
      <SectionTitle>第一節 通則</SectionTitle>
      <Article Num="1">
        <ArticleNum>第1条</ArticleNum>
        <ArticleCaption>章節の下にある条文。</ArticleCaption>
      </Article>
    </Section>
  </Chapter>
</Law>`

	doc, err := NewParser(nil).Parse(strings.NewReader(xml), "TEST004")
	require.NoError(t, err)

	require.Len(t, doc.Fragments, 1)
	assert.Equal(t, "第一章 総則", doc.Fragments[0].Chapter)
	assert.Equal(t, "第一節 通則", doc.Fragments[0].Section)
	assert.Empty(t, doc.Fragments[0].Subsection)
}

func TestParse_CategoryInference(t *testing.T) {
	tests := []struct {
		title    string
		category string
	}{
		{"所得税法", CategoryTax},
		{"民法", CategoryCivil},
		{"刑法", CategoryCriminal},
		{"商法", CategoryCommerce},
		{"労働基準法", CategoryLabor},
		{"道路交通法", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.category, inferCategory(tt.title), "title %q", tt.title)
	}
}

func TestParse_MalformedXML(t *testing.T) {
	doc, err := NewParser(nil).Parse(strings.NewReader("<Law><unclosed"), "BAD001")
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeXMLMalformed, lserrors.GetCode(err))
}

func TestParseFile_NotFound(t *testing.T) {
	doc, err := NewParser(nil).ParseFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeFileNotFound, lserrors.GetCode(err))
}

func TestParseFile_LawIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "M40HO034.xml")
	require.NoError(t, os.WriteFile(path, []byte(taxLawXML), 0o644))

	doc, err := NewParser(nil).ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "M40HO034", doc.LawID)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "これは テスト です。", cleanText("これは\tテスト\nです。"))
	assert.Equal(t, "全角 空白", cleanText("全角　空白"))
	assert.Equal(t, "", cleanText("  \t\n "))
}
