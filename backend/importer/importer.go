package importer

import (
	"fmt"

	"github.com/google/uuid"
)

// Block is one unit of course content to copy into a library bundle.
type Block struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// BlockSource lists the blocks of a course. The course content itself lives
// outside this service (the modulestore).
type BlockSource interface {
	FetchBlocks(courseID string) ([]Block, error)
}

// BundleStore writes blocks into a content bundle. Bundles live in the
// external bundle store, addressed by UUID.
type BundleStore interface {
	WriteBlock(bundleUUID uuid.UUID, block Block) error
}

// Importer copies every block of a course into a library's bundle, reporting
// a progress fraction after each block through Progress.
type Importer struct {
	Source   BlockSource
	Store    BundleStore
	Progress func(progress float64) error
}

// Run performs the copy. The first failing block aborts the import and its
// error is returned as-is wrapped with the block ID.
func (imp *Importer) Run(courseID string, bundleUUID uuid.UUID) error {
	blocks, err := imp.Source.FetchBlocks(courseID)
	if err != nil {
		return fmt.Errorf("fetch blocks for %s: %w", courseID, err)
	}

	if len(blocks) == 0 {
		return imp.report(1.0)
	}

	for i, block := range blocks {
		if err := imp.Store.WriteBlock(bundleUUID, block); err != nil {
			return fmt.Errorf("import block %s: %w", block.ID, err)
		}
		if err := imp.report(float64(i+1) / float64(len(blocks))); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) report(progress float64) error {
	if imp.Progress == nil {
		return nil
	}
	return imp.Progress(progress)
}
