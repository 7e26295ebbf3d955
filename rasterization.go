package carver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Remap is the block-index rasterization descriptor: it regroups the
// row-major 2D block index into vertical panels of PanelWidth rows,
// traversed serpentine-wise (alternating direction per panel) so that
// consecutive thread groups share more cached rows of one operand across
// panel boundaries.
//
// The lowering stage renders the same arithmetic into device-specific index
// expressions; Source gives the CUDA-flavored rendition.
type Remap struct {
	gridX, gridY int
	panelWidth   int
}

// BlockRemap derives the remapping for a gridX x gridY block grid and the
// requested panel width (thread-group rows per panel).
func BlockRemap(gridX, gridY, panelWidth int) (*Remap, error) {
	if gridX <= 0 || gridY <= 0 {
		return nil, errors.Errorf("rasterization: grid must be positive, got %dx%d", gridX, gridY)
	}
	if panelWidth <= 0 {
		return nil, errors.Errorf("rasterization: panel width must be positive, got %d", panelWidth)
	}
	return &Remap{gridX: gridX, gridY: gridY, panelWidth: panelWidth}, nil
}

// PanelWidth returns the panel height in thread-group rows.
func (r *Remap) PanelWidth() int { return r.panelWidth }

// Panels returns the total panel count: the ceiling division of the grid
// height by the panel width.
func (r *Remap) Panels() int {
	return (r.gridY + r.panelWidth - 1) / r.panelWidth
}

// Blocks returns the total number of thread groups in the grid.
func (r *Remap) Blocks() int { return r.gridX * r.gridY }

// Reversed returns the boustrophedon direction flag of one panel: even
// panels traverse forward, odd panels reversed. A panel width of 1 keeps
// every panel forward, reducing the remap to the row-major identity.
func (r *Remap) Reversed(panel int) bool {
	return r.panelWidth > 1 && panel%2 == 1
}

// At maps a linear block index to the remapped (bx, by) block coordinates.
// As i sweeps [0, Blocks()), every grid cell is visited exactly once.
func (r *Remap) At(i int) (bx, by int) {
	perPanel := r.panelWidth * r.gridX
	panel := i / perPanel
	height := min(r.panelWidth, r.gridY-panel*r.panelWidth)
	local := i - panel*perPanel
	bx = local / height
	by = panel*r.panelWidth + local%height
	if r.Reversed(panel) {
		bx = r.gridX - 1 - bx
	}
	return bx, by
}

// Source emits the block-index remapping as a CUDA text fragment, to be
// inlined at the top of the generated kernel by the lowering stage.
func (r *Remap) Source() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "const int PANEL_WIDTH = %d;\n", r.panelWidth)
	sb.WriteString(`const auto baseBlockIdx = blockIdx.x + gridDim.x * blockIdx.y;
const auto totalPanels = (gridDim.y + PANEL_WIDTH - 1) / PANEL_WIDTH;
const auto panelIdx = baseBlockIdx / (PANEL_WIDTH * gridDim.x);
const auto panelHeight = panelIdx + 1 < totalPanels
    ? PANEL_WIDTH
    : gridDim.y - panelIdx * PANEL_WIDTH;
const auto panelLocal = baseBlockIdx - panelIdx * (PANEL_WIDTH * gridDim.x);
const auto bx = (PANEL_WIDTH > 1 && (panelIdx & 1))
    ? gridDim.x - 1 - panelLocal / panelHeight
    : panelLocal / panelHeight;
const auto by = panelIdx * PANEL_WIDTH + panelLocal % panelHeight;
`)
	return sb.String()
}
