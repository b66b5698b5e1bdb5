package emailbuilder

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	mjmlgo "github.com/Boostport/mjml-go"
)

// mjmlRenderer writes one block at the given indent level. nested is true when
// the block already sits inside an mj-column.
type mjmlRenderer func(sb *strings.Builder, block Block, indent int, nested bool)

var mjmlRenderers map[BlockType]mjmlRenderer

func init() {
	mjmlRenderers = map[BlockType]mjmlRenderer{
		BlockTypeSection:   renderSectionMJML,
		BlockTypeHeading:   renderHeadingMJML,
		BlockTypeParagraph: renderParagraphMJML,
		BlockTypeButton:    renderButtonMJML,
		BlockTypeImage:     renderImageMJML,
		BlockTypeSpacer:    renderSpacerMJML,
	}
}

// CompileResult holds both renditions of a compiled tree
type CompileResult struct {
	MJML string
	HTML string
}

// ToMJML converts a tree into an MJML document. Consecutive top-level blocks
// that are not sections share an implicit section.
func ToMJML(tree Tree) string {
	return BlocksToMJML(tree.Blocks())
}

// BlocksToMJML converts a block sequence into an MJML document
func BlocksToMJML(blocks []Block) string {
	var sb strings.Builder
	sb.WriteString("<mjml>\n")
	sb.WriteString("  <mj-head>\n")
	sb.WriteString("    <mj-attributes>\n")
	sb.WriteString(`      <mj-all font-family="Arial, Helvetica, sans-serif" />` + "\n")
	sb.WriteString("    </mj-attributes>\n")
	sb.WriteString("  </mj-head>\n")
	sb.WriteString(fmt.Sprintf(`  <mj-body width="%dpx" background-color="#f3f4f6">`, ContainerWidth) + "\n")

	var loose []Block
	flush := func() {
		if len(loose) == 0 {
			return
		}
		sb.WriteString(`    <mj-section background-color="#ffffff">` + "\n")
		sb.WriteString("      <mj-column>\n")
		for _, block := range loose {
			renderBlockMJML(&sb, block, 4, true)
		}
		sb.WriteString("      </mj-column>\n")
		sb.WriteString("    </mj-section>\n")
		loose = nil
	}
	for _, block := range blocks {
		if _, ok := mjmlRenderers[block.Type]; !ok {
			continue
		}
		if block.Type == BlockTypeSection {
			flush()
			renderBlockMJML(&sb, block, 2, false)
			continue
		}
		loose = append(loose, block)
	}
	flush()

	sb.WriteString("  </mj-body>\n")
	sb.WriteString("</mjml>\n")
	return sb.String()
}

// CompileMJML converts a tree to MJML and compiles it to HTML with mjml-go
func CompileMJML(ctx context.Context, tree Tree) (*CompileResult, error) {
	mjmlString := ToMJML(tree)
	html, err := mjmlgo.ToHTML(ctx, mjmlString)
	if err != nil {
		return nil, fmt.Errorf("failed to compile MJML: %w", err)
	}
	return &CompileResult{
		MJML: mjmlString,
		HTML: decodeURLAttributeEntities(html),
	}, nil
}

func renderBlockMJML(sb *strings.Builder, block Block, indent int, nested bool) {
	render, ok := mjmlRenderers[block.Type]
	if !ok || block.Props == nil || block.Props.BlockType() != block.Type {
		return
	}
	render(sb, block, indent, nested)
}

// renderSectionMJML emits mj-section > mj-column. MJML sections cannot nest, so a
// section inside a column contributes its children only.
func renderSectionMJML(sb *strings.Builder, block Block, indent int, nested bool) {
	p, ok := block.Props.(SectionProps)
	if !ok {
		return
	}
	if nested {
		for _, child := range block.Children {
			renderBlockMJML(sb, child, indent, true)
		}
		return
	}

	pad := strings.Repeat("  ", indent)
	sb.WriteString(pad + "<mj-section" + mjmlAttributes(map[string]string{
		"padding":          fmt.Sprintf("%dpx", p.Padding),
		"background-color": p.BackgroundColor,
		"text-align":       string(p.Align),
	}) + ">\n")
	sb.WriteString(pad + "  <mj-column>\n")
	for _, child := range block.Children {
		renderBlockMJML(sb, child, indent+2, true)
	}
	sb.WriteString(pad + "  </mj-column>\n")
	sb.WriteString(pad + "</mj-section>\n")
}

func renderHeadingMJML(sb *strings.Builder, block Block, indent int, _ bool) {
	p, ok := block.Props.(HeadingProps)
	if !ok {
		return
	}
	writeMJMLElement(sb, indent, "mj-text", map[string]string{
		"font-size":   fmt.Sprintf("%dpx", fontSize(headingSizes, p.Size, SizeLarge)),
		"font-weight": "700",
		"line-height": "1.3",
		"color":       p.Color,
		"align":       string(p.Align),
	}, `<h2 style="margin: 0; font-size: inherit; font-weight: inherit">`+escapeText(p.Text)+"</h2>")
}

func renderParagraphMJML(sb *strings.Builder, block Block, indent int, _ bool) {
	p, ok := block.Props.(ParagraphProps)
	if !ok {
		return
	}
	writeMJMLElement(sb, indent, "mj-text", map[string]string{
		"font-size":   fmt.Sprintf("%dpx", fontSize(paragraphSizes, p.Size, SizeMedium)),
		"line-height": "1.6",
		"color":       p.Color,
		"align":       string(p.Align),
	}, `<p style="margin: 0">`+escapeText(p.Text)+"</p>")
}

func renderButtonMJML(sb *strings.Builder, block Block, indent int, _ bool) {
	p, ok := block.Props.(ButtonProps)
	if !ok {
		return
	}
	background, text := p.Color, p.TextColor
	if p.Style == ButtonStyleOutline {
		background, text = "transparent", p.Color
	}
	href := p.Href
	if href == "" {
		href = "#"
	}
	writeMJMLElement(sb, indent, "mj-button", map[string]string{
		"href":             href,
		"background-color": background,
		"color":            text,
		"border":           borderValue(p.Color),
		"border-radius":    "6px",
		"font-weight":      "600",
		"inner-padding":    "12px 24px",
		"align":            string(p.Align),
	}, escapeHTML(p.Text))
}

func renderImageMJML(sb *strings.Builder, block Block, indent int, _ bool) {
	p, ok := block.Props.(ImageProps)
	if !ok || strings.TrimSpace(p.Src) == "" {
		return
	}
	attrs := map[string]string{
		"src":   p.Src,
		"alt":   p.Alt,
		"align": string(p.Align),
		"href":  p.Href,
	}
	if p.Width > 0 {
		attrs["width"] = fmt.Sprintf("%dpx", p.Width)
	}
	writeMJMLElement(sb, indent, "mj-image", attrs, "")
}

func renderSpacerMJML(sb *strings.Builder, block Block, indent int, _ bool) {
	p, ok := block.Props.(SpacerProps)
	if !ok {
		return
	}
	writeMJMLElement(sb, indent, "mj-spacer", map[string]string{
		"height": fmt.Sprintf("%dpx", p.Height),
	}, "")
}

func writeMJMLElement(sb *strings.Builder, indent int, tag string, attrs map[string]string, content string) {
	pad := strings.Repeat("  ", indent)
	if content == "" {
		sb.WriteString(fmt.Sprintf("%s<%s%s />\n", pad, tag, mjmlAttributes(attrs)))
		return
	}
	sb.WriteString(fmt.Sprintf("%s<%s%s>%s</%s>\n", pad, tag, mjmlAttributes(attrs), content, tag))
}

// mjmlAttributes formats attributes as sorted key="value" pairs, skipping empty values
func mjmlAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(` %s="%s"`, k, escapeAttributeValue(attrs[k], k)))
	}
	return sb.String()
}

var urlAttrRegex = regexp.MustCompile(`((?:href|src)=["'])([^"']+)(["'])`)

// decodeURLAttributeEntities undoes the &amp; encoding the MJML compiler applies
// to href and src attributes so query strings keep working
func decodeURLAttributeEntities(html string) string {
	return urlAttrRegex.ReplaceAllStringFunc(html, func(match string) string {
		parts := urlAttrRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + strings.ReplaceAll(parts[2], "&amp;", "&") + parts[3]
	})
}
