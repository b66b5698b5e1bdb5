package emailbuilder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTemplateData(t *testing.T) {
	tree := treeOf(t,
		heading("h1", "Hello {{ contact.first_name }}"),
		section("s1",
			Block{ID: "b1", Type: BlockTypeButton, Props: ButtonProps{
				Text:  "Open {{ product }}",
				Href:  "https://example.com/{{ product | downcase }}",
				Style: ButtonStyleSolid,
				Align: AlignCenter,
			}},
			paragraph("p1", "static text"),
		),
		Block{ID: "i1", Type: BlockTypeImage, Props: ImageProps{Src: "https://cdn.example.com/{{ product }}.png", Alt: "{{ product }}", Align: AlignCenter}},
	)
	data := map[string]interface{}{
		"contact": map[string]interface{}{"first_name": "Ada"},
		"product": "Widget",
	}

	rendered, err := ApplyTemplateData(context.Background(), tree, data)
	require.NoError(t, err)

	h1, _ := rendered.Props("h1")
	assert.Equal(t, "Hello Ada", h1.(HeadingProps).Text)
	b1, _ := rendered.Props("b1")
	assert.Equal(t, "Open Widget", b1.(ButtonProps).Text)
	assert.Equal(t, "https://example.com/widget", b1.(ButtonProps).Href)
	i1, _ := rendered.Props("i1")
	assert.Equal(t, "https://cdn.example.com/Widget.png", i1.(ImageProps).Src)
	assert.Equal(t, "Widget", i1.(ImageProps).Alt)

	// the input keeps its markup
	original, _ := tree.Props("h1")
	assert.Equal(t, "Hello {{ contact.first_name }}", original.(HeadingProps).Text)
	assert.Equal(t, tree.IDs(), rendered.IDs())

	assert.Contains(t, Export(rendered), ">Hello Ada</h2>")
}

func TestApplyTemplateData_MissingVariables(t *testing.T) {
	tree := treeOf(t, heading("h1", "Hi {{ name }}!"))

	rendered, err := ApplyTemplateData(context.Background(), tree, nil)
	require.NoError(t, err)

	props, _ := rendered.Props("h1")
	assert.Equal(t, "Hi !", props.(HeadingProps).Text)
}

func TestApplyTemplateData_RenderedPropsRevalidated(t *testing.T) {
	tree := treeOf(t, Block{ID: "b1", Type: BlockTypeButton, Props: ButtonProps{
		Text:  "Open",
		Href:  "{{ link }}",
		Style: ButtonStyleSolid,
		Align: AlignCenter,
	}})

	_, err := ApplyTemplateData(context.Background(), tree, map[string]interface{}{"link": "javascript:alert(1)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b1")

	rendered, err := ApplyTemplateData(context.Background(), tree, map[string]interface{}{"link": "https://example.com/go"})
	require.NoError(t, err)
	props, _ := rendered.Props("b1")
	assert.Equal(t, "https://example.com/go", props.(ButtonProps).Href)
}

func TestApplyTemplateData_InvalidMarkup(t *testing.T) {
	tree := treeOf(t, paragraph("p1", "{% if %}"))

	_, err := ApplyTemplateData(context.Background(), tree, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p1")
}

func TestLiquidRenderer_Limits(t *testing.T) {
	r := NewLiquidRendererWithOptions(time.Second, 16)

	_, err := r.Render(context.Background(), "{{ a }}"+strings.Repeat("x", 20), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")

	// plain text is never parsed, whatever its size
	out, err := r.Render(context.Background(), strings.Repeat("x", 100), nil)
	require.NoError(t, err)
	assert.Len(t, out, 100)
}
