package emailbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/osteele/liquid"
)

// Limits applied to every Liquid render
const (
	DefaultRenderTimeout   = 5 * time.Second
	DefaultMaxTemplateSize = 100 * 1024 // 100KB
)

// LiquidRenderer renders Liquid markup with a size limit and a timeout
type LiquidRenderer struct {
	timeout time.Duration
	maxSize int
	engine  *liquid.Engine
}

func NewLiquidRenderer() *LiquidRenderer {
	return NewLiquidRendererWithOptions(DefaultRenderTimeout, DefaultMaxTemplateSize)
}

func NewLiquidRendererWithOptions(timeout time.Duration, maxSize int) *LiquidRenderer {
	return &LiquidRenderer{
		timeout: timeout,
		maxSize: maxSize,
		engine:  liquid.NewEngine(),
	}
}

// Render renders content against data. Content without Liquid markup is returned as is.
func (r *LiquidRenderer) Render(ctx context.Context, content string, data map[string]interface{}) (string, error) {
	if !strings.Contains(content, "{{") && !strings.Contains(content, "{%") {
		return content, nil
	}
	if len(content) > r.maxSize {
		return "", fmt.Errorf("template size (%d bytes) exceeds maximum allowed size (%d bytes)", len(content), r.maxSize)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errorChan <- fmt.Errorf("panic during liquid rendering: %v", rec)
			}
		}()

		rendered, err := r.engine.ParseAndRenderString(content, data)
		if err != nil {
			errorChan <- fmt.Errorf("liquid rendering failed: %w", err)
			return
		}
		resultChan <- rendered
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("liquid rendering timeout after %v", r.timeout)
	}
}

// ApplyTemplateData returns a copy of tree where Liquid markup in text-bearing
// props is rendered against data. The input tree is not modified.
func ApplyTemplateData(ctx context.Context, tree Tree, data map[string]interface{}) (Tree, error) {
	return NewLiquidRenderer().Apply(ctx, tree, data)
}

// Apply renders every text-bearing prop of tree against data
func (r *LiquidRenderer) Apply(ctx context.Context, tree Tree, data map[string]interface{}) (Tree, error) {
	if data == nil {
		data = map[string]interface{}{}
	}

	result := tree
	for _, id := range tree.IDs() {
		props, _ := tree.Props(id)
		rendered, changed, err := r.renderProps(ctx, props, data)
		if err != nil {
			return tree, fmt.Errorf("failed to render block %s: %w", id, err)
		}
		if !changed {
			continue
		}
		// data may turn a placeholder into a link the store would reject
		if err := rendered.Validate(); err != nil {
			return tree, fmt.Errorf("block %s renders invalid props: %w", id, err)
		}
		result, _ = result.Map(id, func(Props) Props { return rendered })
	}
	return result, nil
}

func (r *LiquidRenderer) renderProps(ctx context.Context, props Props, data map[string]interface{}) (Props, bool, error) {
	var err error
	changed := false
	render := func(s string) string {
		if err != nil {
			return s
		}
		out, renderErr := r.Render(ctx, s, data)
		if renderErr != nil {
			err = renderErr
			return s
		}
		if out != s {
			changed = true
		}
		return out
	}

	switch p := props.(type) {
	case HeadingProps:
		p.Text = render(p.Text)
		return p, changed, err
	case ParagraphProps:
		p.Text = render(p.Text)
		return p, changed, err
	case ButtonProps:
		p.Text = render(p.Text)
		p.Href = render(p.Href)
		return p, changed, err
	case ImageProps:
		p.Src = render(p.Src)
		p.Alt = render(p.Alt)
		p.Href = render(p.Href)
		return p, changed, err
	default:
		return props, false, nil
	}
}
