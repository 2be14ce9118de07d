package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"webrag/internal/config"
	"webrag/internal/domain"
	"webrag/internal/logging"
	"webrag/internal/scraper"
	"webrag/internal/server"
	"webrag/internal/summarizer"
	"webrag/internal/tui"
)

// overrides are flags that replace individual config fields when set.
type overrides struct {
	addr       string
	searxngURL string
	scraperURL string
	store      string
	qdrantURL  string
}

func backendFlags(o *overrides) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "searxng-url",
			Usage:       "SearXNG base URL",
			Sources:     cli.EnvVars("WEBRAG_SEARXNG_URL"),
			Destination: &o.searxngURL,
		},
		&cli.StringFlag{
			Name:        "scraper-url",
			Usage:       "Scrape service base URL",
			Sources:     cli.EnvVars("WEBRAG_SCRAPER_URL"),
			Destination: &o.scraperURL,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Vector store (memory, qdrant, sqlite)",
			Sources:     cli.EnvVars("WEBRAG_VECTOR_STORE"),
			Destination: &o.store,
		},
		&cli.StringFlag{
			Name:        "qdrant-url",
			Usage:       "Qdrant base URL",
			Sources:     cli.EnvVars("WEBRAG_QDRANT_URL"),
			Destination: &o.qdrantURL,
		},
	}
}

func (o *overrides) apply(cfg *config.AppConfig) {
	if o.searxngURL != "" {
		cfg.Search.URL = o.searxngURL
	}
	if o.scraperURL != "" {
		cfg.Extractor.URL = o.scraperURL
	}
	if o.store != "" {
		cfg.VectorStore.Type = o.store
	}
	if o.qdrantURL != "" {
		cfg.VectorStore.Qdrant.URL = o.qdrantURL
	}
}

func serveCommand(a *app) *cli.Command {
	o := &overrides{}
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the tool API",
			Sources:     cli.EnvVars("WEBRAG_ADDR"),
			Destination: &o.addr,
		},
	}, backendFlags(o)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web_search and memory_lookup tools over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			o.apply(a.cfg)
			if o.addr != "" {
				a.cfg.Server.Addr = o.addr
			}

			d, err := buildDeps(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ingest, recall := d.pipelines(a.cfg)
			srv := server.New(server.Config{
				Addr:        a.cfg.Server.Addr,
				CORSOrigins: a.cfg.Server.CORSOrigins,
			}, ingest, recall)
			return srv.Run(ctx)
		},
	}
}

func scraperCommand(a *app) *cli.Command {
	var addr string
	return &cli.Command{
		Name:  "scraper",
		Usage: "Serve the HTML-to-text scrape service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "Listen address of the scrape service",
				Sources:     cli.EnvVars("WEBRAG_SCRAPER_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			sc := a.cfg.Scraper
			if addr != "" {
				sc.Addr = addr
			}
			fetcher := scraper.NewFetcher(scraper.FetcherConfig{
				Timeout:      config.Seconds(sc.TimeoutSecs),
				MaxBodyBytes: sc.MaxBodyBytes,
				UserAgent:    sc.UserAgent,
			})
			return scraper.NewServer(sc.Addr, fetcher).Run(ctx)
		},
	}
}

func ingestCommand(a *app) *cli.Command {
	o := &overrides{}
	var asJSON bool
	flags := append([]cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the result as JSON",
			Destination: &asJSON,
		},
	}, backendFlags(o)...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Search the web for a query once and print the assembled context",
		ArgsUsage: "<query...>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return goerr.New("query is required")
			}
			o.apply(a.cfg)

			d, err := buildDeps(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ingest, _ := d.pipelines(a.cfg)
			res := ingest.Ingest(ctx, query)
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return goerr.Wrap(err, "failed to write result")
				}
				return nil
			}
			return printIngestion(a.out, res.Statuses, res.Context)
		},
	}
}

func tuiCommand(a *app) *cli.Command {
	o := &overrides{}
	var logFile string
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "Write logs to this file while the TUI owns the terminal",
			Destination: &logFile,
		},
	}, backendFlags(o)...)

	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive search and memory console",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			o.apply(a.cfg)

			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return goerr.Wrap(err, "failed to open log file", goerr.V("path", logFile))
				}
				defer f.Close()
				w = f
			}
			ctx = logging.With(ctx, logging.New(a.cfg.LogLevel, w))

			d, err := buildDeps(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ingest, recall := d.pipelines(a.cfg)
			m := tui.New(ctx, ingest, recall, summarizer.NewFrequencySummarizer(), a.cfg.Summarizer.MaxSentences)
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return goerr.Wrap(err, "tui failed")
			}
			return nil
		},
	}
}

func printIngestion(w io.Writer, statuses []domain.SourceStatus, text string) error {
	for _, st := range statuses {
		line := fmt.Sprintf("%-14s %s", st.State, st.URL)
		if st.Err != "" {
			line += "  (" + st.Err + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return goerr.Wrap(err, "failed to write result")
		}
	}
	if _, err := fmt.Fprintf(w, "\n%s", text); err != nil {
		return goerr.Wrap(err, "failed to write result")
	}
	return nil
}
