package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	markitdown "github.com/nicholasgasior/markitdown-enrich"
	"github.com/nicholasgasior/markitdown-enrich/internal/config"
	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

var (
	output        string
	extension     string
	mimeType      string
	charset       string
	keepDataURIs  bool
	enrichPDF     bool
	includeImages bool
	providerName  string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "markitdown [source]",
	Short: "Convert documents to Markdown",
	Long: `Convert a file, URL or stdin to Markdown. With --enrich, images embedded in
PDFs are described by a vision model and interleaved with the page text.`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	f.StringVarP(&extension, "extension", "x", "", "file extension hint for stdin input")
	f.StringVarP(&mimeType, "mime-type", "m", "", "MIME type hint")
	f.StringVarP(&charset, "charset", "c", "", "charset hint")
	f.BoolVar(&keepDataURIs, "keep-data-uris", false, "keep full base64 data URIs in HTML output")
	f.BoolVar(&enrichPDF, "enrich", false, "describe images embedded in PDFs")
	f.BoolVar(&includeImages, "include-images", true, "embed described images as data URIs")
	f.StringVar(&providerName, "provider", string(describe.KindAzureOpenAI), "image description provider: azure_openai or aws_bedrock")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel, "console")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := markitdown.ConvertOptions{
		RequestID:     uuid.NewString(),
		EnrichPDF:     enrichPDF,
		IncludeImages: includeImages,
	}
	if enrichPDF {
		if opts.Provider, err = buildProvider(ctx, log); err != nil {
			return err
		}
	}

	mdOpts := []markitdown.Option{markitdown.WithLogger(log)}
	if keepDataURIs {
		mdOpts = append(mdOpts, markitdown.WithKeepDataURIs(true))
	}
	m := markitdown.New(mdOpts...)

	var result *markitdown.DocumentConverterResult
	if len(args) == 0 {
		result, err = convertStdin(ctx, m, cmd.InOrStdin(), opts)
	} else {
		result, err = m.Convert(ctx, args[0], opts)
	}
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), result.Markdown)
}

func buildProvider(ctx context.Context, log *zap.Logger) (describe.Provider, error) {
	kind, err := describe.ParseKind(providerName)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return describe.New(ctx, kind, cfg, log)
}

func convertStdin(ctx context.Context, m *markitdown.MarkItDown, in io.Reader, opts markitdown.ConvertOptions) (*markitdown.DocumentConverterResult, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}

	info := markitdown.StreamInfo{MIMEType: mimeType, Charset: charset}
	if extension != "" {
		info.Extension = strings.ToLower(extension)
		if !strings.HasPrefix(info.Extension, ".") {
			info.Extension = "." + info.Extension
		}
	}
	if info.MIMEType == "" && info.Extension != "" {
		info.MIMEType = markitdown.MIMEFromExtension(info.Extension)
	}
	return m.ConvertReader(ctx, bytes.NewReader(data), info, opts)
}

func writeOutput(stdout io.Writer, md string) error {
	if output == "" {
		_, err := fmt.Fprintln(stdout, md)
		return err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, []byte(md+"\n"), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
