package emailbuilder

import (
	"fmt"
	"strings"
)

// ContainerWidth is the width in pixels of the exported email body
const ContainerWidth = 600

var headingSizes = map[Size]int{
	SizeSmall:      14,
	SizeMedium:     16,
	SizeLarge:      24,
	SizeExtraLarge: 32,
}

var paragraphSizes = map[Size]int{
	SizeSmall:      13,
	SizeMedium:     15,
	SizeLarge:      18,
	SizeExtraLarge: 22,
}

// htmlRenderer writes one block. renderChildren writes the block's children in order.
type htmlRenderer func(sb *strings.Builder, props Props, renderChildren func())

var htmlRenderers = map[BlockType]htmlRenderer{
	BlockTypeSection:   renderSectionHTML,
	BlockTypeHeading:   renderHeadingHTML,
	BlockTypeParagraph: renderParagraphHTML,
	BlockTypeButton:    renderButtonHTML,
	BlockTypeImage:     renderImageHTML,
	BlockTypeSpacer:    renderSpacerHTML,
}

// Export serializes a tree into a complete email HTML document.
// The output depends only on the tree and is byte-identical across calls.
func Export(tree Tree) string {
	return ExportBlocks(tree.Blocks())
}

// ExportBlocks serializes a block sequence into a complete email HTML document.
// Blocks whose type has no renderer contribute nothing.
func ExportBlocks(blocks []Block) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" lang="en">` + "\n")
	sb.WriteString("<head>\n")
	sb.WriteString(`<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />` + "\n")
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0" />` + "\n")
	sb.WriteString("<title></title>\n")
	sb.WriteString("</head>\n")
	sb.WriteString(`<body style="margin: 0; padding: 0; background-color: #f3f4f6">` + "\n")
	sb.WriteString(fmt.Sprintf(`<div style="max-width: %dpx; margin: 0 auto; background-color: #ffffff; font-family: Arial, Helvetica, sans-serif">`, ContainerWidth) + "\n")
	renderBlocksHTML(&sb, blocks)
	sb.WriteString("</div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")
	return sb.String()
}

// RenderFragment serializes blocks without the surrounding document
func RenderFragment(blocks []Block) string {
	var sb strings.Builder
	renderBlocksHTML(&sb, blocks)
	return sb.String()
}

func renderBlocksHTML(sb *strings.Builder, blocks []Block) {
	for _, block := range blocks {
		render, ok := htmlRenderers[block.Type]
		if !ok || block.Props == nil || block.Props.BlockType() != block.Type {
			continue
		}
		children := block.Children
		render(sb, block.Props, func() {
			renderBlocksHTML(sb, children)
		})
	}
}

func renderSectionHTML(sb *strings.Builder, props Props, renderChildren func()) {
	p, ok := props.(SectionProps)
	if !ok {
		return
	}
	sb.WriteString("<div")
	sb.WriteString(formatStyleAttr([]string{
		fmt.Sprintf("padding: %dpx", p.Padding),
		styleDecl("background-color", p.BackgroundColor),
		styleDecl("text-align", string(p.Align)),
	}))
	sb.WriteString(">\n")
	renderChildren()
	sb.WriteString("</div>\n")
}

func renderHeadingHTML(sb *strings.Builder, props Props, _ func()) {
	p, ok := props.(HeadingProps)
	if !ok {
		return
	}
	sb.WriteString("<h2")
	sb.WriteString(formatStyleAttr([]string{
		"margin: 0 0 12px 0",
		fmt.Sprintf("font-size: %dpx", fontSize(headingSizes, p.Size, SizeLarge)),
		"line-height: 1.3",
		"font-weight: 700",
		styleDecl("color", p.Color),
		styleDecl("text-align", string(p.Align)),
	}))
	sb.WriteString(">")
	sb.WriteString(escapeText(p.Text))
	sb.WriteString("</h2>\n")
}

func renderParagraphHTML(sb *strings.Builder, props Props, _ func()) {
	p, ok := props.(ParagraphProps)
	if !ok {
		return
	}
	sb.WriteString("<p")
	sb.WriteString(formatStyleAttr([]string{
		"margin: 0 0 12px 0",
		fmt.Sprintf("font-size: %dpx", fontSize(paragraphSizes, p.Size, SizeMedium)),
		"line-height: 1.6",
		styleDecl("color", p.Color),
		styleDecl("text-align", string(p.Align)),
	}))
	sb.WriteString(">")
	sb.WriteString(escapeText(p.Text))
	sb.WriteString("</p>\n")
}

func renderButtonHTML(sb *strings.Builder, props Props, _ func()) {
	p, ok := props.(ButtonProps)
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

	sb.WriteString("<div")
	sb.WriteString(formatStyleAttr([]string{
		styleDecl("text-align", string(p.Align)),
		"padding: 8px 0",
	}))
	sb.WriteString(">\n")
	sb.WriteString(fmt.Sprintf(`<a href="%s" target="_blank"`, escapeAttributeValue(href, "href")))
	sb.WriteString(formatStyleAttr([]string{
		"display: inline-block",
		"padding: 12px 24px",
		"border-radius: 6px",
		styleDecl("border", borderValue(p.Color)),
		styleDecl("background-color", background),
		styleDecl("color", text),
		"font-weight: 600",
		"text-decoration: none",
	}))
	sb.WriteString(">")
	sb.WriteString(escapeHTML(p.Text))
	sb.WriteString("</a>\n")
	sb.WriteString("</div>\n")
}

func renderImageHTML(sb *strings.Builder, props Props, _ func()) {
	p, ok := props.(ImageProps)
	if !ok {
		return
	}
	if strings.TrimSpace(p.Src) == "" {
		return
	}

	sb.WriteString("<div")
	sb.WriteString(formatStyleAttr([]string{styleDecl("text-align", string(p.Align))}))
	sb.WriteString(">\n")
	if p.Href != "" {
		sb.WriteString(fmt.Sprintf(`<a href="%s" target="_blank">`, escapeAttributeValue(p.Href, "href")))
	}
	sb.WriteString(fmt.Sprintf(`<img src="%s" alt="%s"`, escapeAttributeValue(p.Src, "src"), escapeAttributeValue(p.Alt, "alt")))
	if p.Width > 0 {
		sb.WriteString(fmt.Sprintf(` width="%d"`, p.Width))
	}
	sb.WriteString(formatStyleAttr([]string{
		"display: inline-block",
		"max-width: 100%",
		"height: auto",
		"border: 0",
	}))
	sb.WriteString(" />")
	if p.Href != "" {
		sb.WriteString("</a>")
	}
	sb.WriteString("\n</div>\n")
}

func renderSpacerHTML(sb *strings.Builder, props Props, _ func()) {
	p, ok := props.(SpacerProps)
	if !ok {
		return
	}
	sb.WriteString("<div")
	sb.WriteString(formatStyleAttr([]string{
		fmt.Sprintf("height: %dpx", p.Height),
		fmt.Sprintf("line-height: %dpx", p.Height),
		"font-size: 1px",
	}))
	sb.WriteString(">&nbsp;</div>\n")
}

func fontSize(scale map[Size]int, size Size, fallback Size) int {
	if px, ok := scale[size]; ok {
		return px
	}
	return scale[fallback]
}

func borderValue(color string) string {
	if color == "" {
		return ""
	}
	return "2px solid " + color
}

// styleDecl returns "name: value", or an empty string when value is empty
func styleDecl(name, value string) string {
	// a value able to close the declaration is dropped
	if value == "" || strings.ContainsAny(value, ";{}<>\"") {
		return ""
	}
	return name + ": " + escapeAttributeValue(value, name)
}

// formatStyleAttr formats a list of styles into a style="..." attribute string.
// Empty declarations are dropped.
func formatStyleAttr(styles []string) string {
	valid := make([]string, 0, len(styles))
	for _, s := range styles {
		if strings.TrimSpace(s) != "" {
			valid = append(valid, strings.TrimSpace(s))
		}
	}
	if len(valid) == 0 {
		return ""
	}
	return fmt.Sprintf(` style="%s"`, strings.Join(valid, "; "))
}

// escapeHTML performs basic HTML escaping for text content
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;") // must be first
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// escapeText escapes text content and keeps line breaks
func escapeText(s string) string {
	return strings.ReplaceAll(escapeHTML(s), "\n", "<br />")
}

// escapeAttributeValue escapes attribute values. URL attributes keep their
// ampersands when the value looks like an absolute URL so query strings survive.
func escapeAttributeValue(value string, attributeName string) string {
	isURLAttribute := attributeName == "src" || attributeName == "href"
	looksLikeURL := strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "//")

	if !(isURLAttribute && looksLikeURL) {
		value = strings.ReplaceAll(value, "&", "&amp;")
	}
	value = strings.ReplaceAll(value, `"`, "&quot;")
	value = strings.ReplaceAll(value, "'", "&#39;")
	value = strings.ReplaceAll(value, "<", "&lt;")
	value = strings.ReplaceAll(value, ">", "&gt;")
	return value
}
