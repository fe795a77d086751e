package mapdraw

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
	"agrotrace/company-portal/portal-backend/pkg/workflows"
)

// State is the draw controller's lifecycle state.
type State string

const (
	StateEmpty   State = "empty"
	StateDrawing State = "drawing"
	StatePlaced  State = "placed"
)

// CenterMethod selects how a polygon's reference point is derived.
type CenterMethod int

const (
	// CenterVertexMean averages the ring's distinct vertices.
	CenterVertexMean CenterMethod = iota
	// CenterBoundingBox uses the bounding-box center, preferring the one the
	// drawn shape reports itself.
	CenterBoundingBox
)

// ErrShapeAlreadyPlaced is returned when drawing starts while a polygon exists.
var ErrShapeAlreadyPlaced = errors.New("a polygon is already placed; delete it before drawing a new one")

// ChangeEvent is sent to the hosting form on every create, edit and delete.
type ChangeEvent struct {
	GeoJSON string            `json:"geoJson"`
	AreaHa  float64           `json:"areaHa"`
	Center  geospatial.LatLng `json:"center"`
}

// Options configures a Controller.
type Options struct {
	// Padding around fitted bounds; nil means DefaultPadding. A zero value
	// fits the polygon edge to edge.
	Padding       *Padding
	DefaultCenter geospatial.LatLng
	DefaultZoom   int
	CenterMethod  CenterMethod
	OnChange      func(ChangeEvent)
}

// Controller owns the single-polygon lifecycle of one map surface. It is the
// only writer of the surface's shapes.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	machine *workflows.StateMachine[State]
	state   State
	current orb.Polygon
	padding Padding
	opts    Options
	logger  *zap.Logger
}

func newMachine() *workflows.StateMachine[State] {
	return workflows.NewStateMachine(map[State][]State{
		StateEmpty:   {StateDrawing, StatePlaced},
		StateDrawing: {StateEmpty, StatePlaced},
		StatePlaced:  {StatePlaced, StateEmpty},
	})
}

// NewController creates a controller in the Empty state.
func NewController(surface Surface, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	padding := DefaultPadding
	if opts.Padding != nil {
		padding = *opts.Padding
	}
	if opts.DefaultZoom == 0 {
		opts.DefaultZoom = 5
	}
	return &Controller{
		surface: surface,
		machine: newMachine(),
		state:   StateEmpty,
		padding: padding,
		opts:    opts,
		logger:  logger,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Event returns the payload describing the current polygon, or the empty
// payload when there is none.
func (c *Controller) Event() ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaced {
		return emptyEvent()
	}
	ev, err := c.describe(c.current, nil)
	if err != nil {
		return emptyEvent()
	}
	return ev
}

// Mount resets the surface and loads a previously saved polygon. A malformed
// polygon is logged and the controller starts Empty at the default view.
func (c *Controller) Mount(initial string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface.ClearShapes()
	c.current = nil
	c.state = StateEmpty

	if initial == "" {
		c.surface.SetView(c.opts.DefaultCenter, c.opts.DefaultZoom, mapview.ViewOptions{})
		return
	}

	p, err := geospatial.ParsePolygon(initial)
	if err != nil {
		c.logger.Warn("Ignoring malformed initial polygon", zap.Error(err))
		c.surface.SetView(c.opts.DefaultCenter, c.opts.DefaultZoom, mapview.ViewOptions{})
		return
	}

	c.surface.AddShape(p)
	c.surface.FitBounds(geospatial.Bounds(p), c.padding)
	c.current = p
	c.state = StatePlaced
}

// BeginDrawing moves Empty -> Drawing.
func (c *Controller) BeginDrawing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePlaced {
		return ErrShapeAlreadyPlaced
	}
	return c.moveTo(StateDrawing)
}

// CancelDrawing abandons an unfinished polygon.
func (c *Controller) CancelDrawing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveTo(StateEmpty)
}

// ShapeCreated handles a finished polygon. Any shape already on the surface
// is replaced so the layer never holds more than one.
func (c *Controller) ShapeCreated(shape geospatial.Shape) error {
	ev, err := c.placeShape(shape, true)
	if err != nil {
		return err
	}
	c.emit(ev)
	return nil
}

// ShapeEdited handles vertex edits of the placed polygon.
func (c *Controller) ShapeEdited(shape geospatial.Shape) error {
	ev, err := c.placeShape(shape, false)
	if err != nil {
		return err
	}
	c.emit(ev)
	return nil
}

// ShapeDeleted removes the placed polygon and emits the empty payload.
func (c *Controller) ShapeDeleted() error {
	c.mu.Lock()
	if c.state == StateEmpty {
		c.mu.Unlock()
		return nil
	}
	if err := c.moveTo(StateEmpty); err != nil {
		c.mu.Unlock()
		return err
	}
	c.surface.ClearShapes()
	c.current = nil
	c.mu.Unlock()

	c.emit(emptyEvent())
	return nil
}

func (c *Controller) placeShape(shape geospatial.Shape, created bool) (ChangeEvent, error) {
	p, err := geospatial.FromShape(shape)
	if err != nil {
		c.logger.Warn("Ignoring unusable shape", zap.Error(err))
		return ChangeEvent{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !created && c.state != StatePlaced {
		return ChangeEvent{}, fmt.Errorf("edit without a placed polygon: %w", &workflows.TransitionError[State]{From: c.state, To: StatePlaced})
	}

	ev, err := c.describe(p, shape)
	if err != nil {
		return ChangeEvent{}, err
	}
	// A surface may report a finished polygon without a separate draw start.
	if created && c.state == StateEmpty {
		if err := c.moveTo(StateDrawing); err != nil {
			return ChangeEvent{}, err
		}
	}
	if err := c.moveTo(StatePlaced); err != nil {
		return ChangeEvent{}, err
	}

	c.surface.ClearShapes()
	c.surface.AddShape(p)
	c.current = p
	return ev, nil
}

func (c *Controller) describe(p orb.Polygon, shape geospatial.Shape) (ChangeEvent, error) {
	encoded, err := geospatial.SerializePolygon(p)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{
		GeoJSON: encoded,
		AreaHa:  geospatial.RoundTo(geospatial.PolygonAreaHectares(p), 2),
		Center:  c.center(p, shape),
	}, nil
}

func (c *Controller) center(p orb.Polygon, shape geospatial.Shape) geospatial.LatLng {
	if c.opts.CenterMethod == CenterBoundingBox {
		if bc, ok := shape.(BoundsCenterer); ok {
			if center, ok := bc.BoundsCenter(); ok {
				return center
			}
		}
		return geospatial.BoundsCenter(p[0])
	}
	return geospatial.VertexMeanCenter(p[0])
}

// moveTo must be called with c.mu held.
func (c *Controller) moveTo(next State) error {
	if err := c.machine.Transition(c.state, next); err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) emit(ev ChangeEvent) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(ev)
	}
}

func emptyEvent() ChangeEvent {
	return ChangeEvent{GeoJSON: "", AreaHa: 0, Center: geospatial.LatLng{}}
}
