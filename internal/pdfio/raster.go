package pdfio

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lipiscan/extract-worker/internal/execx"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

// Rasterizer renders PDF pages to PNG images using the pdftoppm binary.
type Rasterizer struct {
	bin    string
	dpi    int
	runner execx.CommandRunner
	tmp    *tempfiles.Manager
}

// NewRasterizer creates a Rasterizer.
func NewRasterizer(bin string, dpi int, runner execx.CommandRunner, tmp *tempfiles.Manager) *Rasterizer {
	return &Rasterizer{bin: bin, dpi: dpi, runner: runner, tmp: tmp}
}

// RasterizePage renders one 1-based page to a PNG transient artifact and
// returns its path. The caller owns the artifact.
func (r *Rasterizer) RasterizePage(ctx context.Context, pdfPath string, page int) (string, error) {
	prefix := strings.TrimSuffix(r.tmp.Path(".png"), ".png")

	args := []string{
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		pdfPath,
		prefix,
	}
	if _, err := r.runner.Run(ctx, r.bin, args...); err != nil {
		return "", fmt.Errorf("rasterization of page %d failed: %w", page, err)
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("rasterization of page %d produced no image: %w", page, err)
	}
	return out, nil
}
