// docrender renders a block document to email HTML, MJML or compiled MJML.
//
// The document is read from a JSON or YAML file (or stdin) holding either a
// block array or an object with a "blocks" field. With --document the blocks
// are read from the document database instead. With --send-to the compiled
// email is also sent through the configured SMTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/Notifuse/emailbuilder/config"
	"github.com/Notifuse/emailbuilder/internal/database"
	"github.com/Notifuse/emailbuilder/internal/repository"
	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/Notifuse/emailbuilder/pkg/logger"
	"github.com/Notifuse/emailbuilder/pkg/mailer"
	"github.com/Notifuse/emailbuilder/pkg/tracing"
)

// osExit is a variable to allow mocking os.Exit in tests
var osExit = os.Exit

type options struct {
	input       string
	inputFormat string
	output      string
	format      string
	dataFile    string
	document    string
	initDB      bool
	timeout     time.Duration
	logLevel    string
	sendTo      string
	subject     string
	drySend     bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("docrender", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.input, "input", "i", "-", "document file, - for stdin")
	flagSet.StringVar(&opts.inputFormat, "input-format", "", "json or yaml (default: from the file extension, json for stdin)")
	flagSet.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	flagSet.StringVarP(&opts.format, "format", "f", "html", "html, mjml or compiled")
	flagSet.StringVar(&opts.dataFile, "data", "", "JSON or YAML file with template data for liquid markup")
	flagSet.StringVar(&opts.document, "document", "", "render a stored document by id instead of --input")
	flagSet.BoolVar(&opts.initDB, "init-db", false, "create the document tables before reading --document")
	flagSet.DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall render timeout")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flagSet.StringVar(&opts.sendTo, "send-to", "", "send the compiled email to this address")
	flagSet.StringVar(&opts.subject, "subject", "Test email", "subject of the email sent with --send-to")
	flagSet.BoolVar(&opts.drySend, "dry-send", false, "print the --send-to message to stderr instead of using SMTP")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	switch opts.format {
	case "html", "mjml", "compiled":
	default:
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.sendTo != "" && !govalidator.IsEmail(opts.sendTo) {
		return nil, fmt.Errorf("invalid --send-to address %q", opts.sendTo)
	}
	return opts, nil
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	log := logger.NewLoggerWithWriter(stderr, logger.ParseLevel(opts.logLevel))

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	var cfg *config.Config
	if opts.document != "" || (opts.sendTo != "" && !opts.drySend) {
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		shutdown, err := tracing.InitTracing(&cfg.Tracing, log)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.WithField("error", err.Error()).Warn("Failed to flush telemetry")
			}
		}()
	}

	var blocks []emailbuilder.Block
	if opts.document != "" {
		blocks, err = loadStoredBlocks(ctx, cfg, opts, log)
	} else {
		blocks, err = loadFileBlocks(opts, stdin)
	}
	if err != nil {
		return err
	}

	tree, err := emailbuilder.NewTree(blocks)
	if err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	log.WithField("blocks", tree.Len()).Debug("Document loaded")

	if opts.dataFile != "" {
		data, err := readTemplateData(opts.dataFile)
		if err != nil {
			return err
		}
		if tree, err = emailbuilder.ApplyTemplateData(ctx, tree, data); err != nil {
			return err
		}
	}

	var compiled *emailbuilder.CompileResult
	if opts.format == "compiled" || opts.sendTo != "" {
		if compiled, err = emailbuilder.CompileMJML(ctx, tree); err != nil {
			return err
		}
	}

	var rendered string
	switch opts.format {
	case "html":
		rendered = emailbuilder.Export(tree)
	case "mjml":
		rendered = emailbuilder.ToMJML(tree)
	case "compiled":
		rendered = compiled.HTML
	}

	if err := writeOutput(opts.output, stdout, rendered); err != nil {
		return err
	}

	if opts.sendTo == "" {
		return nil
	}
	m, err := newMailer(cfg, opts, stderr)
	if err != nil {
		return err
	}
	if err := m.Send(ctx, mailer.Message{
		To:      []string{opts.sendTo},
		Subject: opts.subject,
		HTML:    compiled.HTML,
		Text:    mailer.PlainText(compiled.HTML),
	}); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.WithField("to", opts.sendTo).Info("Email sent")
	return nil
}

func newMailer(cfg *config.Config, opts *options, stderr io.Writer) (mailer.Mailer, error) {
	if opts.drySend {
		return mailer.NewConsoleMailer(stderr), nil
	}
	if !cfg.SMTP.Enabled() {
		return nil, fmt.Errorf("--send-to requires SMTP_HOST and SMTP_FROM_EMAIL")
	}
	return mailer.NewSMTPMailer(&mailer.Config{
		SMTPHost:     cfg.SMTP.Host,
		SMTPPort:     cfg.SMTP.Port,
		SMTPUsername: cfg.SMTP.Username,
		SMTPPassword: cfg.SMTP.Password,
		FromEmail:    cfg.SMTP.FromEmail,
		FromName:     cfg.SMTP.FromName,
		TLSPolicy:    cfg.SMTP.TLSPolicy,
		Timeout:      opts.timeout,
	}), nil
}

func loadFileBlocks(opts *options, stdin io.Reader) ([]emailbuilder.Block, error) {
	var data []byte
	var err error
	if opts.input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	format := opts.inputFormat
	if format == "" {
		format = formatFromPath(opts.input)
	}
	if format == "yaml" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}

	// a stored document export carries its blocks under "blocks"
	if nested := gjson.GetBytes(data, "blocks"); nested.Exists() && nested.IsArray() {
		data = []byte(nested.Raw)
	}

	blocks, err := emailbuilder.UnmarshalBlocks(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	return blocks, nil
}

func loadStoredBlocks(ctx context.Context, cfg *config.Config, opts *options, log logger.Logger) ([]emailbuilder.Block, error) {
	var connectOpts []database.ConnectOption
	if cfg.Tracing.Enabled {
		connectOpts = append(connectOpts, database.WithTracing(0))
	}

	db, err := database.Connect(&cfg.Database, connectOpts...)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if opts.initDB {
		if err := database.InitializeDatabase(db); err != nil {
			return nil, err
		}
		log.Info("Document tables initialized")
	}

	doc, err := repository.NewDocumentRepository(db).GetDocument(ctx, opts.document)
	if err != nil {
		return nil, err
	}
	return doc.Blocks, nil
}

func readTemplateData(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template data: %w", err)
	}
	if formatFromPath(path) == "yaml" {
		if raw, err = yamlToJSON(raw); err != nil {
			return nil, err
		}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("template data must be an object: %w", err)
	}
	return data, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// yamlToJSON re-encodes a YAML document so the JSON block decoder can read it
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML document cannot be represented as JSON: %w", err)
	}
	return out, nil
}

func writeOutput(path string, stdout io.Writer, content string) error {
	if path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		osExit(1)
	}
}
