package emailbuilder

import (
	"fmt"
)

// BlockDefinition describes one registered block type
type BlockDefinition struct {
	Type         BlockType
	DisplayName  string
	Category     string
	Container    bool // only containers may own children
	DefaultProps func() Props
}

// Registry is the single source of truth for which block types exist.
// Adding a type means registering it here together with an HTML and an MJML
// renderer; RegistryConsistencyErrors reports any half-registered type.
type Registry struct {
	definitions map[BlockType]BlockDefinition
	palette     []BlockType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[BlockType]BlockDefinition),
	}
}

// DefaultRegistry returns a registry holding the six built-in block types in palette order
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BlockDefinition{
		Type:        BlockTypeSection,
		DisplayName: "Section",
		Category:    "Layout",
		Container:   true,
		DefaultProps: func() Props {
			return SectionProps{Padding: 24, BackgroundColor: "#ffffff", Align: AlignLeft}
		},
	})
	r.Register(BlockDefinition{
		Type:        BlockTypeHeading,
		DisplayName: "Heading",
		Category:    "Content",
		DefaultProps: func() Props {
			return HeadingProps{Text: "Heading", Size: SizeLarge, Align: AlignLeft, Color: "#111827"}
		},
	})
	r.Register(BlockDefinition{
		Type:        BlockTypeParagraph,
		DisplayName: "Paragraph",
		Category:    "Content",
		DefaultProps: func() Props {
			return ParagraphProps{Text: "Write something...", Size: SizeMedium, Align: AlignLeft, Color: "#374151"}
		},
	})
	r.Register(BlockDefinition{
		Type:        BlockTypeButton,
		DisplayName: "Button",
		Category:    "Content",
		DefaultProps: func() Props {
			return ButtonProps{
				Text:      "Click me",
				Href:      "https://example.com",
				Style:     ButtonStyleSolid,
				Color:     "#2563eb",
				TextColor: "#ffffff",
				Align:     AlignCenter,
			}
		},
	})
	r.Register(BlockDefinition{
		Type:        BlockTypeImage,
		DisplayName: "Image",
		Category:    "Content",
		DefaultProps: func() Props {
			return ImageProps{Align: AlignCenter}
		},
	})
	r.Register(BlockDefinition{
		Type:        BlockTypeSpacer,
		DisplayName: "Spacer",
		Category:    "Spacing",
		DefaultProps: func() Props {
			return SpacerProps{Height: 24}
		},
	})
	return r
}

// Register adds or replaces a block definition. New types are appended to the palette.
func (r *Registry) Register(def BlockDefinition) {
	if _, exists := r.definitions[def.Type]; !exists {
		r.palette = append(r.palette, def.Type)
	}
	r.definitions[def.Type] = def
}

// Lookup returns the definition of a block type
func (r *Registry) Lookup(blockType BlockType) (BlockDefinition, bool) {
	def, ok := r.definitions[blockType]
	return def, ok
}

// IsRegistered checks if a block type is known
func (r *Registry) IsRegistered(blockType BlockType) bool {
	_, ok := r.definitions[blockType]
	return ok
}

// DefaultProps returns a fresh default property set for a block type
func (r *Registry) DefaultProps(blockType BlockType) (Props, bool) {
	def, ok := r.definitions[blockType]
	if !ok || def.DefaultProps == nil {
		return nil, false
	}
	return def.DefaultProps(), true
}

// IsContainer checks if blocks of this type may own children
func (r *Registry) IsContainer(blockType BlockType) bool {
	def, ok := r.definitions[blockType]
	return ok && def.Container
}

// Palette returns the insertable block types in display order
func (r *Registry) Palette() []BlockType {
	palette := make([]BlockType, len(r.palette))
	copy(palette, r.palette)
	return palette
}

// DisplayName returns a human-readable name for a block type
func (r *Registry) DisplayName(blockType BlockType) string {
	if def, ok := r.definitions[blockType]; ok && def.DisplayName != "" {
		return def.DisplayName
	}
	return string(blockType)
}

// RegistryConsistencyErrors lists registered types that are missing defaults,
// an HTML renderer or an MJML renderer
func RegistryConsistencyErrors(r *Registry) []error {
	var errs []error
	for _, blockType := range r.palette {
		def := r.definitions[blockType]
		if def.DefaultProps == nil {
			errs = append(errs, fmt.Errorf("block type %s has no default props", blockType))
		} else if props := def.DefaultProps(); props.BlockType() != blockType {
			errs = append(errs, fmt.Errorf("block type %s defaults report type %s", blockType, props.BlockType()))
		}
		if _, ok := htmlRenderers[blockType]; !ok {
			errs = append(errs, fmt.Errorf("block type %s has no html renderer", blockType))
		}
		if _, ok := mjmlRenderers[blockType]; !ok {
			errs = append(errs, fmt.Errorf("block type %s has no mjml renderer", blockType))
		}
	}
	return errs
}

var defaultRegistry = DefaultRegistry()
