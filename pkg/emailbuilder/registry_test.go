package emailbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_IsConsistent(t *testing.T) {
	assert.Empty(t, RegistryConsistencyErrors(DefaultRegistry()))
}

func TestDefaultRegistry_Palette(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []BlockType{
		BlockTypeSection,
		BlockTypeHeading,
		BlockTypeParagraph,
		BlockTypeButton,
		BlockTypeImage,
		BlockTypeSpacer,
	}, r.Palette())

	// callers cannot reorder the registry's palette
	palette := r.Palette()
	palette[0] = BlockTypeSpacer
	assert.Equal(t, BlockTypeSection, r.Palette()[0])
}

func TestDefaultRegistry_Defaults(t *testing.T) {
	r := DefaultRegistry()

	for _, blockType := range r.Palette() {
		t.Run(string(blockType), func(t *testing.T) {
			props, ok := r.DefaultProps(blockType)
			require.True(t, ok)
			assert.Equal(t, blockType, props.BlockType())
			assert.NoError(t, props.Validate())
			assert.NotEmpty(t, r.DisplayName(blockType))
		})
	}

	heading, _ := r.DefaultProps(BlockTypeHeading)
	assert.Equal(t, HeadingProps{Text: "Heading", Size: SizeLarge, Align: AlignLeft, Color: "#111827"}, heading)

	spacer, _ := r.DefaultProps(BlockTypeSpacer)
	assert.Equal(t, SpacerProps{Height: 24}, spacer)
}

func TestRegistry_Containers(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.IsContainer(BlockTypeSection))
	for _, blockType := range []BlockType{BlockTypeHeading, BlockTypeParagraph, BlockTypeButton, BlockTypeImage, BlockTypeSpacer} {
		assert.False(t, r.IsContainer(blockType), blockType)
	}
	assert.False(t, r.IsContainer("video"))
}

func TestRegistry_UnknownType(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.DefaultProps("video")
	assert.False(t, ok)
	assert.False(t, r.IsRegistered("video"))
	assert.Equal(t, "video", r.DisplayName("video"))
}

func TestRegistryConsistencyErrors_ReportsMissingRenderers(t *testing.T) {
	r := DefaultRegistry()
	r.Register(BlockDefinition{
		Type:        "divider",
		DisplayName: "Divider",
		DefaultProps: func() Props {
			return UnknownProps{Type: "divider"}
		},
	})
	r.Register(BlockDefinition{Type: "video", DisplayName: "Video"})

	errs := RegistryConsistencyErrors(r)

	// divider: no html and no mjml renderer; video: additionally no defaults
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0].Error(), "divider")
	assert.Contains(t, errs[2].Error(), "video has no default props")
}
