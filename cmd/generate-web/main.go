package main

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	cli "github.com/jawher/mow.cli"

	dataio "github.com/geniass/pricecompare/pkg/io"
	"github.com/geniass/pricecompare/pkg/web"
)

func main() {
	app := cli.App("generate-web", "Render static HTML pages from exported price comparisons")

	var (
		dataDir    = app.StringOpt("d data-dir", "./data", "directory that contains exported comparisons")
		outputDir  = app.StringOpt("o output-dir", "docs", "directory to write rendered HTML content to")
		pathPrefix = app.StringOpt("p path-prefix", "", "prefix page link URLs (in case pages are hosted at a subpath); should start with '/'")
	)

	app.Action = func() {
		if err := generate(*dataDir, *outputDir, *pathPrefix, time.Now()); err != nil {
			log.Fatal(err)
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(dataDir, outputDir, pathPrefix string, lastUpdated time.Time) error {
	if err := os.MkdirAll(outputDir, os.ModeDir|0775); err != nil {
		return err
	}

	base := web.BaseContext{PathPrefix: pathPrefix}

	err := renderToFile(outputDir, "index.html", func(w io.Writer) error {
		return web.RenderHome(w, base)
	})
	if err != nil {
		return err
	}

	cs, err := dataio.LoadFromDir(dataDir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARNING: data dir %q does not exist, assuming no comparisons...\n", dataDir)
	} else if err != nil {
		return err
	}

	return renderToFile(outputDir, "comparisons.html", func(w io.Writer) error {
		return web.RenderExports(w, web.ExportsContext{
			BaseContext: base,
			Title:       "Price Comparisons",
			LastUpdated: lastUpdated,
			Comparisons: cs,
		})
	})
}

func renderToFile(dir string, filename string, renderFunc func(w io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	return renderFunc(f)
}
