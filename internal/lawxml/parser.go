package lawxml

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"

	lserrors "github.com/redwell/law-search/internal/errors"
)

// Parser parses e-Gov statute XML into StatuteDocuments.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile parses the statute XML at path. The document identifier is the
// filename stem; content is never inspected for an ID.
//
// A missing file and malformed XML both yield a nil document; only the
// logged diagnostic and error code differ.
func (p *Parser) ParseFile(path string) (*StatuteDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		p.logger.Error("statute file not found", slog.String("path", path), slog.String("error", err.Error()))
		return nil, lserrors.Wrap(lserrors.ErrCodeFileNotFound, err)
	}
	defer f.Close()

	lawID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p.Parse(f, lawID)
}

// Parse parses statute XML from r, using lawID as the document identifier.
func (p *Parser) Parse(r io.Reader, lawID string) (*StatuteDocument, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		p.logger.Error("xml parse failed", slog.String("law_id", lawID), slog.String("error", err.Error()))
		return nil, lserrors.Wrap(lserrors.ErrCodeXMLMalformed, err)
	}

	root := doc.Root()
	if root == nil {
		p.logger.Error("xml has no root element", slog.String("law_id", lawID))
		return nil, lserrors.StructuralError("document has no root element", nil)
	}

	statute := &StatuteDocument{LawID: lawID}
	p.extractLawInfo(root, statute)
	statute.Fragments = p.extractFragments(root, lawID)

	p.logger.Info("statute parsed",
		slog.String("law_id", lawID),
		slog.Int("fragments", len(statute.Fragments)))
	return statute, nil
}

// extractLawInfo fills title, dates, category, and description. Each field
// comes from the first matching element anywhere in the tree; absence leaves
// the field unset.
func (p *Parser) extractLawInfo(root *etree.Element, statute *StatuteDocument) {
	statute.Name = firstElementText(root, "LawTitle")
	statute.NameKana = firstElementText(root, "LawTitleKana")
	statute.Number = firstElementText(root, "LawNum")
	statute.PromulgationDate = firstElementText(root, "PromulgateDate")
	statute.EffectiveDate = firstElementText(root, "EffectiveDate")
	statute.Category = inferCategory(statute.Name)
	statute.Description = fmt.Sprintf("%sに関する法律", statute.Name)
}

// inferCategory matches title keywords in fixed priority order.
func inferCategory(title string) string {
	switch {
	case strings.Contains(title, "税"):
		return CategoryTax
	case strings.Contains(title, "民法"):
		return CategoryCivil
	case strings.Contains(title, "刑法"):
		return CategoryCriminal
	case strings.Contains(title, "商法"):
		return CategoryCommerce
	case strings.Contains(title, "労働"):
		return CategoryLabor
	default:
		return CategoryOther
	}
}

// extractFragments collects Article elements; when none exist it falls back
// to Item elements.
func (p *Parser) extractFragments(root *etree.Element, lawID string) []Fragment {
	var fragments []Fragment

	for _, elem := range root.FindElements(".//Article") {
		if frag, ok := p.parseArticle(elem, lawID); ok {
			fragments = append(fragments, frag)
		}
	}

	if len(fragments) == 0 {
		for _, elem := range root.FindElements(".//Item") {
			if frag, ok := p.parseItem(elem, lawID); ok {
				fragments = append(fragments, frag)
			}
		}
	}

	return fragments
}

// parseArticle parses one Article element. A fragment missing its number or
// its text is dropped with a log line, never fatally.
func (p *Parser) parseArticle(elem *etree.Element, lawID string) (Fragment, bool) {
	number := fragmentNumber(elem, "ArticleNum")
	if number == "" {
		p.logger.Debug("article without number skipped", slog.String("law_id", lawID))
		return Fragment{}, false
	}

	content := articleText(elem)
	if content == "" {
		p.logger.Debug("article without content skipped",
			slog.String("law_id", lawID), slog.String("number", number))
		return Fragment{}, false
	}

	chapter, section, subsection := structuralHints(elem)

	return Fragment{
		LawID:      lawID,
		Number:     number,
		Content:    content,
		Chapter:    chapter,
		Section:    section,
		Subsection: subsection,
		Metadata: map[string]any{
			"xml_element": "Article",
			"parsed_at":   time.Now().Format(time.RFC3339),
		},
	}, true
}

// parseItem parses one Item element from the fallback path.
func (p *Parser) parseItem(elem *etree.Element, lawID string) (Fragment, bool) {
	number := fragmentNumber(elem, "ItemNum")
	if number == "" {
		return Fragment{}, false
	}

	content := itemText(elem)
	if content == "" {
		return Fragment{}, false
	}

	return Fragment{
		LawID:   lawID,
		Number:  number,
		Content: content,
		Metadata: map[string]any{
			"xml_element": "Item",
			"parsed_at":   time.Now().Format(time.RFC3339),
		},
	}, true
}

// fragmentNumber resolves a fragment number: dedicated child element first,
// then the Num attribute.
func fragmentNumber(elem *etree.Element, numberTag string) string {
	if num := elem.SelectElement(numberTag); num != nil {
		if text := strings.TrimSpace(num.Text()); text != "" {
			return text
		}
	}
	return strings.TrimSpace(elem.SelectAttrValue("Num", ""))
}

// articleText resolves article text: caption element, then a child Item's
// text, then the element's own direct text.
func articleText(elem *etree.Element) string {
	if caption := elem.SelectElement("ArticleCaption"); caption != nil {
		if text := cleanText(caption.Text()); text != "" {
			return text
		}
	}
	if item := elem.SelectElement("Item"); item != nil {
		if text := cleanText(item.Text()); text != "" {
			return text
		}
	}
	return cleanText(elem.Text())
}

// itemText resolves item text: caption element, then direct text.
func itemText(elem *etree.Element) string {
	if caption := elem.SelectElement("ItemCaption"); caption != nil {
		if text := cleanText(caption.Text()); text != "" {
			return text
		}
	}
	return cleanText(elem.Text())
}

// structuralHints walks the ancestor path collecting chapter, section, and
// subsection titles.
func structuralHints(elem *etree.Element) (chapter, section, subsection string) {
	for parent := elem.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Tag {
		case "Chapter":
			if chapter == "" {
				chapter = firstElementText(parent, "ChapterTitle")
			}
		case "Section":
			if section == "" {
				section = firstElementText(parent, "SectionTitle")
			}
		case "Subsection":
			if subsection == "" {
				subsection = firstElementText(parent, "SubsectionTitle")
			}
		}
	}
	return chapter, section, subsection
}

// firstElementText finds the first descendant with the given tag and returns
// its trimmed text, or "".
func firstElementText(root *etree.Element, tag string) string {
	if elem := root.FindElement(".//" + tag); elem != nil {
		return strings.TrimSpace(elem.Text())
	}
	return ""
}

// cleanText collapses whitespace runs to a single space, converts ideographic
// space, and trims.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "　", " ")
	return strings.Join(strings.Fields(text), " ")
}
