package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/chrisbigart/odata.net/internal/app"
	"github.com/chrisbigart/odata.net/internal/cliconfig"
	"github.com/chrisbigart/odata.net/pkg/batch"
	"github.com/chrisbigart/odata.net/pkg/log"
	"github.com/chrisbigart/odata.net/pkg/sender"
	"github.com/chrisbigart/odata.net/pkg/sink"
)

const helpDescription = `
Build a batch payload from a TOML script and write it to a file or stdout,
or submit it straight to a data service's $batch endpoint.

Highlights:
  - multipart/mixed and JSON batch encodings behind the same script format.
  - Atomic changesets with Content-ID cross-referencing ($1/Orders style).
  - Byte-exact payloads suitable for golden-file testing of batch readers.
`

var exampleUsage = strings.TrimSpace(`
  batchpack --script batch.toml
  batchpack --script batch.toml --output payload.txt --base-uri https://host/service
  batchpack --script batch.toml --submit https://host/service --auth-token <token>
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	var (
		scriptPath string
		outputPath string
		baseURI    string
		encoding   string
		response   bool
		submitURL  string
		authToken  string
		verbose    bool
	)

	root := &cobra.Command{
		Use:     "batchpack",
		Short:   "Build and submit batch payloads from TOML scripts",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				With().Timestamp().Logger().Level(zerolog.InfoLevel)
			if verbose {
				zl = zl.Level(zerolog.DebugLevel)
			}
			logger := log.NewZerologAdapterWithLogger(zl)

			cfg, err := cliconfig.LoadScript(scriptPath)
			if err != nil {
				return err
			}

			// Flag overrides beat script settings
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if changed["base-uri"] {
				cfg.BaseURI = baseURI
			}
			if changed["encoding"] {
				cfg.Encoding = encoding
			}
			if changed["response"] {
				cfg.Response = response
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var payload bytes.Buffer
			s := sink.NewBuffered(&payload)

			opts := []batch.Option{
				batch.WithLogger(logger),
				batch.WithBaseURI(cfg.BaseURI),
			}
			if cfg.Response {
				opts = append(opts, batch.ForResponsePayload())
			}

			var w batch.Writer
			var boundary string
			if cfg.Encoding == cliconfig.EncodingJSON {
				w = batch.NewJSONWriter(s, opts...)
			} else {
				mw := batch.NewMultipartWriter(s, opts...)
				boundary = mw.BatchBoundary()
				w = mw
			}

			if err := app.NewBuilder(logger).Build(ctx, w, cfg); err != nil {
				return err
			}

			if submitURL != "" {
				hs := sender.NewHTTPSender(http.DefaultClient, logger)
				respBody, err := hs.Submit(ctx, &payload, sender.Metadata{
					ServiceURL: submitURL,
					AuthToken:  authToken,
					Boundary:   boundary,
				})
				if err != nil {
					return fmt.Errorf("submit batch: %w", err)
				}
				_, err = os.Stdout.Write(respBody)
				return err
			}

			if outputPath == "" || outputPath == "-" {
				_, err = os.Stdout.Write(payload.Bytes())
				return err
			}
			if err := os.WriteFile(outputPath, payload.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			logger.Info("payload written",
				log.String("path", outputPath),
				log.Int("bytes", payload.Len()))
			return nil
		},
	}

	root.Flags().StringVarP(&scriptPath, "script", "s", "", "path to the TOML batch script (required)")
	root.Flags().StringVarP(&outputPath, "output", "o", "-", "output file, or - for stdout")
	root.Flags().StringVar(&baseURI, "base-uri", "", "base URI for relative operation URIs")
	root.Flags().StringVar(&encoding, "encoding", cliconfig.EncodingMultipart, "payload encoding: multipart or json")
	root.Flags().BoolVar(&response, "response", false, "build the response side of the batch")
	root.Flags().StringVar(&submitURL, "submit", "", "submit the payload to this service URL instead of writing it")
	root.Flags().StringVar(&authToken, "auth-token", "", "bearer token for --submit")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = root.MarkFlagRequired("script")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
