package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/ingest"
	"github.com/teranos/iiify/internal/httpclient"
	"github.com/teranos/iiify/logger"
	"github.com/teranos/iiify/mets"
	"github.com/teranos/iiify/storage"
)

// ImportCmd imports a single METS document synchronously
var ImportCmd = &cobra.Command{
	Use:   "import <mets-url>",
	Short: "Import a METS document and exit",
	Long: `Fetch a METS/MODS document, convert it into a IIIF manifest and store
it, without going through the server's job queue.

DFG Viewer URLs are unwrapped to the METS URL they carry.

Example:
  iiify import https://digital.example.org/oai?verb=GetRecord&id=123`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	sourceURL := mets.ResolveSourceURL(args[0])

	client := httpclient.NewSaferClient(cfg.Import.FetchTimeout)
	fetcher := mets.NewFetcher(client, cfg.Import.ProbesPerSecond, logger.Logger)
	manifests := storage.NewManifestStore(database)
	images := storage.NewImageStore(database)
	importer := ingest.NewManifestImporter(fetcher, manifests, images, cfg.Server.BaseURL, logger.Logger)

	spinner, _ := pterm.DefaultSpinner.Start("Importing " + sourceURL)

	job := ingest.NewJob(sourceURL, ingest.Meta{})
	result, pagesDropped, err := importer.Import(context.Background(), job)
	if err != nil {
		spinner.Fail("Import failed")
		return errors.Wrapf(err, "failed to import %s", sourceURL)
	}

	spinner.Success("Import complete")
	pterm.Info.Printf("Manifest: %s\n", result.ID)
	if pagesDropped > 0 {
		pterm.Warning.Printf("Dropped %d page(s) without resolvable image files\n", pagesDropped)
	}
	return nil
}
