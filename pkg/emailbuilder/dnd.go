package emailbuilder

import (
	"math"
	"time"

	"github.com/Notifuse/emailbuilder/pkg/logger"
)

// SourceKind tells palette drags apart from canvas drags
type SourceKind string

const (
	SourcePalette SourceKind = "palette"
	SourceCanvas  SourceKind = "canvas"
)

// Source is the thing being dragged: a palette entry or an existing block
type Source struct {
	Kind      SourceKind
	BlockType BlockType // palette sources
	BlockID   string    // canvas sources
}

func PaletteSource(blockType BlockType) Source {
	return Source{Kind: SourcePalette, BlockType: blockType}
}

func CanvasSource(blockID string) Source {
	return Source{Kind: SourceCanvas, BlockID: blockID}
}

// InputKind selects the activation sensor
type InputKind string

const (
	InputPointer InputKind = "pointer"
	InputTouch   InputKind = "touch"
)

type Point struct {
	X float64
	Y float64
}

func (p Point) distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Region is one rendered drop candidate. A block region targets the block itself.
// An into region targets the body of a container (BlockID) or the canvas body
// (empty BlockID) and appends inside it.
type Region struct {
	BlockID string
	Rect    Rect
	Into    bool
}

// Layout is the set of regions rendered at drop time. A zero Canvas rect
// disables the outside-the-canvas check.
type Layout struct {
	Canvas  Rect
	Regions []Region
}

// DragState is the gesture state of the coordinator
type DragState string

const (
	DragIdle     DragState = "idle"
	DragPending  DragState = "pending"
	DragDragging DragState = "dragging"
)

// DropAction reports how a gesture ended
type DropAction string

const (
	ActionCancelled DropAction = "cancelled"
	ActionClick     DropAction = "click"
	ActionInsert    DropAction = "insert"
	ActionMove      DropAction = "move"
)

// DropResult describes the end of a gesture. Outcome is the store outcome for
// insert and move actions and OK otherwise.
type DropResult struct {
	Action  DropAction
	Source  Source
	Target  Region
	BlockID string // the inserted or moved block
	Outcome Outcome
}

// SensorConfig holds the activation thresholds of the drag sensors
type SensorConfig struct {
	PointerDistance float64
	TouchDelay      time.Duration
	TouchTolerance  float64
}

func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		PointerDistance: 8,
		TouchDelay:      250 * time.Millisecond,
		TouchTolerance:  5,
	}
}

// Coordinator turns drag gestures into store insertions and moves.
// It handles one gesture at a time and is not safe for concurrent use.
type Coordinator struct {
	store  *Store
	config SensorConfig
	logger logger.Logger

	state     DragState
	source    Source
	input     InputKind
	origin    Point
	startedAt time.Time
	last      Point
}

func NewCoordinator(store *Store, config SensorConfig) *Coordinator {
	defaults := DefaultSensorConfig()
	if config.PointerDistance <= 0 {
		config.PointerDistance = defaults.PointerDistance
	}
	if config.TouchDelay <= 0 {
		config.TouchDelay = defaults.TouchDelay
	}
	if config.TouchTolerance <= 0 {
		config.TouchTolerance = defaults.TouchTolerance
	}
	return &Coordinator{
		store:  store,
		config: config,
		logger: store.logger,
		state:  DragIdle,
	}
}

func (c *Coordinator) State() DragState {
	return c.state
}

// Source returns the source of the gesture in progress
func (c *Coordinator) Source() (Source, bool) {
	return c.source, c.state != DragIdle
}

// Position returns the last point fed to the gesture in progress
func (c *Coordinator) Position() Point {
	return c.last
}

// Locked reports whether block-level clicks must be suppressed
func (c *Coordinator) Locked() bool {
	return c.state == DragDragging
}

func (c *Coordinator) AllowsClick() bool {
	return !c.Locked()
}

// Start begins a gesture. It returns false when a gesture is already running or
// the source does not exist.
func (c *Coordinator) Start(source Source, input InputKind, point Point, at time.Time) bool {
	if c.state != DragIdle {
		return false
	}
	switch source.Kind {
	case SourcePalette:
		if !c.store.Registry().IsRegistered(source.BlockType) {
			return false
		}
	case SourceCanvas:
		if !c.store.Tree().Contains(source.BlockID) {
			return false
		}
	default:
		return false
	}
	c.state = DragPending
	c.source = source
	c.input = input
	c.origin = point
	c.last = point
	c.startedAt = at
	return true
}

// Move feeds a pointer position. Pointer gestures activate once they travel far
// enough; touch gestures that move beyond the tolerance before activating are
// treated as scrolling and abandoned.
func (c *Coordinator) Move(point Point, at time.Time) DragState {
	switch c.state {
	case DragPending:
		travelled := point.distance(c.origin)
		if c.input == InputTouch {
			if travelled > c.config.TouchTolerance {
				c.logger.WithField("source", string(c.source.Kind)).Debug("Touch gesture released as scroll")
				c.reset()
				return c.state
			}
			c.last = point
			c.Tick(at)
			return c.state
		}
		c.last = point
		if travelled >= c.config.PointerDistance {
			c.activate()
		}
	case DragDragging:
		c.last = point
	}
	return c.state
}

// Tick advances time for the touch hold sensor
func (c *Coordinator) Tick(at time.Time) DragState {
	if c.state == DragPending && c.input == InputTouch && at.Sub(c.startedAt) >= c.config.TouchDelay {
		c.activate()
	}
	return c.state
}

// Cancel abandons the gesture without touching the store
func (c *Coordinator) Cancel() {
	if c.state != DragIdle {
		c.logger.WithField("source", string(c.source.Kind)).Debug("Drag cancelled")
	}
	c.reset()
}

// Drop ends the gesture at point and time at. A touch hold that reached
// its delay counts as a drag even when no Tick arrived; a gesture that
// never activated is a click.
func (c *Coordinator) Drop(point Point, layout Layout, at time.Time) DropResult {
	c.Tick(at)
	source := c.source
	state := c.state
	c.reset()

	switch state {
	case DragIdle:
		return DropResult{Action: ActionCancelled, Outcome: OK}
	case DragPending:
		return DropResult{Action: ActionClick, Source: source, Outcome: OK}
	}

	target, ok := c.resolveTarget(point, layout)
	if !ok {
		c.logger.WithField("source", string(source.Kind)).Debug("Drop outside any target")
		return DropResult{Action: ActionCancelled, Source: source, Outcome: OK}
	}

	var result DropResult
	if source.Kind == SourcePalette {
		result = c.dropPalette(source, target)
	} else {
		result = c.dropCanvas(source, target)
	}
	c.logger.WithFields(map[string]interface{}{
		"action":   string(result.Action),
		"block_id": result.BlockID,
		"target":   target.BlockID,
		"outcome":  result.Outcome.String(),
	}).Debug("Drop resolved")
	return result
}

func (c *Coordinator) dropPalette(source Source, target Region) DropResult {
	result := DropResult{Action: ActionInsert, Source: source, Target: target}
	tree := c.store.Tree()

	parentID, index := "", 0
	if target.Into {
		children, ok := tree.Children(target.BlockID)
		if !ok {
			result.Outcome = NotFound
			return result
		}
		parentID, index = target.BlockID, len(children)
	} else {
		var ok bool
		parentID, index, ok = tree.Locate(target.BlockID)
		if !ok {
			result.Outcome = NotFound
			return result
		}
	}

	result.BlockID, result.Outcome = c.store.CreateBlock(source.BlockType, parentID, index)
	return result
}

func (c *Coordinator) dropCanvas(source Source, target Region) DropResult {
	result := DropResult{Action: ActionMove, Source: source, Target: target, BlockID: source.BlockID}
	if !target.Into {
		result.Outcome = c.store.MoveBlock(source.BlockID, target.BlockID)
		return result
	}

	// dropping on a sequence body moves the block to the end of that sequence
	tree := c.store.Tree()
	children, ok := tree.Children(target.BlockID)
	if !ok {
		result.Outcome = NotFound
		return result
	}
	parentID, _, ok := tree.Locate(source.BlockID)
	if !ok {
		result.Outcome = NotFound
		return result
	}
	if parentID != target.BlockID {
		result.Outcome = InvalidOperation
		return result
	}
	result.Outcome = c.store.MoveBlock(source.BlockID, children[len(children)-1])
	return result
}

// resolveTarget picks the region whose centre is nearest to point. Ties go to
// the region listed first.
func (c *Coordinator) resolveTarget(point Point, layout Layout) (Region, bool) {
	if len(layout.Regions) == 0 {
		return Region{}, false
	}
	if !layout.Canvas.IsEmpty() && !layout.Canvas.Contains(point) {
		return Region{}, false
	}

	best := -1
	bestDistance := math.Inf(1)
	for i, region := range layout.Regions {
		d := point.distance(region.Rect.Center())
		if d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return layout.Regions[best], true
}

func (c *Coordinator) activate() {
	c.state = DragDragging
	c.logger.WithFields(map[string]interface{}{
		"source":     string(c.source.Kind),
		"block_type": string(c.source.BlockType),
		"block_id":   c.source.BlockID,
		"input":      string(c.input),
	}).Debug("Drag activated")
}

func (c *Coordinator) reset() {
	c.state = DragIdle
	c.source = Source{}
	c.input = ""
	c.origin = Point{}
	c.last = Point{}
	c.startedAt = time.Time{}
}
