package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blocksJSON = `[
	{"id":"s1","type":"section","props":{"padding":24,"backgroundColor":"#ffffff","align":"center"},"children":[
		{"id":"h1","type":"heading","props":{"text":"Hello {{ name }}","size":"xl","align":"center","color":"#111827"}}
	]},
	{"id":"b1","type":"button","props":{"text":"Open","href":"https://example.com","style":"solid","color":"#2563eb","textColor":"#ffffff","align":"center"}}
]`

const blocksYAML = `blocks:
  - id: h1
    type: heading
    props:
      text: From YAML
      size: lg
      align: left
      color: "#111827"
`

func TestRun_HTMLFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(nil, strings.NewReader(blocksJSON), &stdout, &stderr)
	require.NoError(t, err)

	html := stdout.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "Hello {{ name }}")
	assert.Contains(t, html, `href="https://example.com"`)
}

func TestRun_MJMLWithTemplateData(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.json")
	data := filepath.Join(dir, "data.yml")
	require.NoError(t, os.WriteFile(input, []byte(blocksJSON), 0o600))
	require.NoError(t, os.WriteFile(data, []byte("name: Ada\n"), 0o600))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-i", input, "--format", "mjml", "--data", data}, nil, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "<mjml>")
	assert.Contains(t, stdout.String(), "Hello Ada")
}

func TestRun_YAMLDocumentToFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.yaml")
	output := filepath.Join(dir, "out.html")
	require.NoError(t, os.WriteFile(input, []byte(blocksYAML), 0o600))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--input", input, "--output", output}, nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(written), ">From YAML</h2>")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr string
	}{
		{"unknown format", []string{"--format", "pdf"}, "[]", "unknown format"},
		{"extra argument", []string{"extra"}, "[]", "unexpected argument"},
		{"invalid json", nil, "{not json", "failed to decode blocks"},
		{"duplicate ids", nil, `[{"id":"a","type":"spacer","props":{"height":8}},{"id":"a","type":"spacer","props":{"height":8}}]`, "invalid document"},
		{"invalid yaml", []string{"--input-format", "yaml"}, "a: [", "failed to parse YAML"},
		{"missing input file", []string{"-i", "/nonexistent/doc.json"}, "", "failed to read input"},
		{"invalid recipient", []string{"--send-to", "nobody"}, "[]", "invalid --send-to address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, strings.NewReader(tt.stdin), &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "yaml", formatFromPath("doc.YML"))
	assert.Equal(t, "yaml", formatFromPath("doc.yaml"))
	assert.Equal(t, "json", formatFromPath("doc.json"))
	assert.Equal(t, "json", formatFromPath("-"))
}

func TestRun_DrySend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MJML compilation in short mode")
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"--format", "mjml", "--send-to", "ada@example.com", "--subject", "Preview", "--dry-send"},
		strings.NewReader(blocksJSON), &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "<mjml>")
	assert.Contains(t, stderr.String(), "ada@example.com")
	assert.Contains(t, stderr.String(), "Preview")
}
