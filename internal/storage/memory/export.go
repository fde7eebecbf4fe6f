package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dronelab/swarmsim/internal/storage/memory/export/v1"
	"github.com/dronelab/swarmsim/internal/util"
	"github.com/dronelab/swarmsim/pkg/core"
)

const exportTimeLayout = "20060102_150405"

// exportFileName is <name>_<start>.json with a .gz suffix when compressed.
func (b *Backend) exportFileName() string {
	name := util.SanitizeFileName(b.session.Name)
	if name == "" {
		name = "swarm"
	}
	name += "_" + b.session.StartTime.UTC().Format(exportTimeLayout) + ".json"
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

// exportJSON writes the recorded session to the output directory and keeps
// the path and metadata for a later upload.
func (b *Backend) exportJSON() error {
	doc := v1.Build(b.session, b.obstacles, b.frames, b.events)

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, b.exportFileName())
	if err := writeExport(path, doc, b.cfg.CompressOutput); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	b.lastExportPath = path
	b.lastExportMetadata = core.UploadMetadata{
		SessionID:   b.session.ID,
		SessionName: b.session.Name,
		Tag:         b.session.Tag,
		DroneCount:  b.session.DroneCount,
		Duration:    doc.Duration,
	}
	return nil
}

func writeExport(path string, doc v1.Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() { err = errors.Join(err, gz.Close()) }()
		w = gz
	}
	return json.NewEncoder(w).Encode(doc)
}
