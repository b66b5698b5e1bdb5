package emailbuilder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
)

// BlockType represents the available block types of the email builder
type BlockType string

const (
	BlockTypeSection   BlockType = "section"
	BlockTypeHeading   BlockType = "heading"
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeButton    BlockType = "button"
	BlockTypeImage     BlockType = "image"
	BlockTypeSpacer    BlockType = "spacer"
)

// Size is the typographic scale shared by text blocks
type Size string

const (
	SizeSmall      Size = "sm"
	SizeMedium     Size = "md"
	SizeLarge      Size = "lg"
	SizeExtraLarge Size = "xl"
)

func (s Size) Validate() error {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
		return nil
	}
	return fmt.Errorf("invalid size: %q", s)
}

// Align is the horizontal alignment of a block's content
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

func (a Align) Validate() error {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return nil
	}
	return fmt.Errorf("invalid align: %q", a)
}

// ButtonStyle selects how the button colour is applied
type ButtonStyle string

const (
	ButtonStyleSolid   ButtonStyle = "solid"
	ButtonStyleOutline ButtonStyle = "outline"
)

func (b ButtonStyle) Validate() error {
	switch b {
	case ButtonStyleSolid, ButtonStyleOutline:
		return nil
	}
	return fmt.Errorf("invalid button style: %q", b)
}

// Props is the typed property set of one block type.
// Each block type owns exactly one implementation.
type Props interface {
	BlockType() BlockType
	Validate() error
}

type SectionProps struct {
	Padding         int    `json:"padding"`
	BackgroundColor string `json:"backgroundColor"`
	Align           Align  `json:"align"`
}

type HeadingProps struct {
	Text  string `json:"text"`
	Size  Size   `json:"size"`
	Align Align  `json:"align"`
	Color string `json:"color"`
}

type ParagraphProps struct {
	Text  string `json:"text"`
	Size  Size   `json:"size"`
	Align Align  `json:"align"`
	Color string `json:"color"`
}

type ButtonProps struct {
	Text      string      `json:"text"`
	Href      string      `json:"href"`
	Style     ButtonStyle `json:"style"`
	Color     string      `json:"color"`
	TextColor string      `json:"textColor"`
	Align     Align       `json:"align"`
}

type ImageProps struct {
	Src   string `json:"src"`
	Alt   string `json:"alt"`
	Width int    `json:"width"` // 0 keeps the natural width
	Align Align  `json:"align"`
	Href  string `json:"href,omitempty"`
}

type SpacerProps struct {
	Height int `json:"height"`
}

// UnknownProps holds the raw props of a block whose type is not registered.
// It survives load and save untouched and is skipped by the renderers.
type UnknownProps struct {
	Type BlockType       `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (p SectionProps) BlockType() BlockType   { return BlockTypeSection }
func (p HeadingProps) BlockType() BlockType   { return BlockTypeHeading }
func (p ParagraphProps) BlockType() BlockType { return BlockTypeParagraph }
func (p ButtonProps) BlockType() BlockType    { return BlockTypeButton }
func (p ImageProps) BlockType() BlockType     { return BlockTypeImage }
func (p SpacerProps) BlockType() BlockType    { return BlockTypeSpacer }
func (p UnknownProps) BlockType() BlockType   { return p.Type }

func (p SectionProps) Validate() error {
	if p.Padding < 0 {
		return fmt.Errorf("invalid section props: padding must be non-negative")
	}
	if err := validateColor(p.BackgroundColor); err != nil {
		return fmt.Errorf("invalid section props: %w", err)
	}
	if err := p.Align.Validate(); err != nil {
		return fmt.Errorf("invalid section props: %w", err)
	}
	return nil
}

func (p HeadingProps) Validate() error {
	if err := validateText(p.Size, p.Align, p.Color); err != nil {
		return fmt.Errorf("invalid heading props: %w", err)
	}
	return nil
}

func (p ParagraphProps) Validate() error {
	if err := validateText(p.Size, p.Align, p.Color); err != nil {
		return fmt.Errorf("invalid paragraph props: %w", err)
	}
	return nil
}

func (p ButtonProps) Validate() error {
	if err := p.Style.Validate(); err != nil {
		return fmt.Errorf("invalid button props: %w", err)
	}
	if err := p.Align.Validate(); err != nil {
		return fmt.Errorf("invalid button props: %w", err)
	}
	if err := validateColor(p.Color); err != nil {
		return fmt.Errorf("invalid button props: %w", err)
	}
	if err := validateColor(p.TextColor); err != nil {
		return fmt.Errorf("invalid button props: %w", err)
	}
	if err := validateLink(p.Href); err != nil {
		return fmt.Errorf("invalid button props: %w", err)
	}
	return nil
}

func (p ImageProps) Validate() error {
	if p.Width < 0 {
		return fmt.Errorf("invalid image props: width must be non-negative")
	}
	if err := p.Align.Validate(); err != nil {
		return fmt.Errorf("invalid image props: %w", err)
	}
	if err := validateLink(p.Src); err != nil {
		return fmt.Errorf("invalid image props: src: %w", err)
	}
	if err := validateLink(p.Href); err != nil {
		return fmt.Errorf("invalid image props: href: %w", err)
	}
	return nil
}

func (p SpacerProps) Validate() error {
	if p.Height < 0 {
		return fmt.Errorf("invalid spacer props: height must be non-negative")
	}
	return nil
}

func (p UnknownProps) Validate() error {
	return nil
}

func validateText(size Size, align Align, color string) error {
	if err := size.Validate(); err != nil {
		return err
	}
	if err := align.Validate(); err != nil {
		return err
	}
	return validateColor(color)
}

// validateColor accepts an empty value (inherit) or a hex colour
func validateColor(color string) error {
	if color == "" || govalidator.IsHexcolor(color) {
		return nil
	}
	return fmt.Errorf("invalid color: %q", color)
}

// validateLink accepts an empty value, a liquid placeholder, mailto:/tel: links
// and absolute or protocol-relative URLs
func validateLink(link string) error {
	if link == "" {
		return nil
	}
	if strings.Contains(link, "{{") || strings.Contains(link, "{%") {
		return nil
	}
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "#") {
		return nil
	}
	if strings.HasPrefix(lower, "javascript:") {
		return fmt.Errorf("invalid link: %q", link)
	}
	if govalidator.IsURL(link) {
		return nil
	}
	return fmt.Errorf("invalid link: %q", link)
}
