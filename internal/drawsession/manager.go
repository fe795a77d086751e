package drawsession

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/geosearch"
	"agrotrace/company-portal/portal-backend/internal/mapdraw"
	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Options configures the sessions a Manager opens.
type Options struct {
	Map            mapdraw.Options
	SearchDelay    time.Duration
	Icons          *mapview.IconRegistry
	AllowedOrigins []string
}

// Manager upgrades draw requests to WebSocket sessions and tracks them.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	geocoder geosearch.Geocoder
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewManager creates a session manager. geocoder may be nil, in which case
// search messages are answered with an error.
func NewManager(geocoder geosearch.Geocoder, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchDelay <= 0 {
		opts.SearchDelay = geosearch.DefaultDebounceDelay
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		geocoder: geocoder,
		opts:     opts,
		logger:   logger,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(m.opts.AllowedOrigins, origin)
}

// HandleConnection upgrades the request and starts a draw session. The
// initial polygon, if any, is loaded onto the map before any client message
// is read.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, initial string) (*Session, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s := newSession(conn, companyID, m.geocoder, m.opts, m.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Draw session opened",
		zap.String("session_id", s.ID),
		zap.String("company_id", companyID.String()),
		zap.String("ip_address", r.RemoteAddr))

	go s.writePump()
	s.start(initial)
	go func() {
		s.readPump()
		m.remove(s)
	}()

	return s, nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	s.Close()

	m.logger.Info("Draw session closed", zap.String("session_id", s.ID))
}

// SessionCount returns the number of open sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every open session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Session is one browser map bound to a draw controller, a view
// synchronizer and a search debouncer.
type Session struct {
	ID        string
	CompanyID uuid.UUID

	conn       *websocket.Conn
	send       chan interface{}
	done       chan struct{}
	closeOnce  sync.Once
	controller *mapdraw.Controller
	viewSync   *mapview.Synchronizer
	search     *geosearch.Debouncer
	icons      *mapview.IconRegistry
	logger     *zap.Logger
}

func newSession(conn *websocket.Conn, companyID uuid.UUID, geocoder geosearch.Geocoder, opts Options, logger *zap.Logger) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		conn:      conn,
		send:      make(chan interface{}, sendBuffer),
		done:      make(chan struct{}),
		icons:     opts.Icons,
	}
	s.logger = logger.With(zap.String("session_id", s.ID))

	surface := newRemoteSurface(s.enqueue, s.logger)
	mapOpts := opts.Map
	mapOpts.OnChange = func(ev mapdraw.ChangeEvent) {
		s.enqueue(changeMessage{Type: TypeChange, ChangeEvent: ev})
	}
	s.controller = mapdraw.NewController(surface, mapOpts, s.logger)
	s.viewSync = mapview.NewSynchronizer(surface, s.logger)
	if geocoder != nil {
		s.search = geosearch.NewDebouncer(geocoder, opts.SearchDelay, s.deliverSearch, s.logger)
	}
	return s
}

func (s *Session) start(initial string) {
	s.enqueue(toolsMessage{Type: TypeTools, Tools: mapdraw.ToolConfig()})
	if s.icons != nil {
		if icons, err := s.icons.Icons(); err == nil {
			s.enqueue(iconsMessage{Type: TypeIcons, IconConfig: icons})
		}
	}
	s.controller.Mount(initial)
}

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.search != nil {
			s.search.Close()
		}
		s.conn.Close()
	})
}

// enqueue hands a message to the write pump without blocking. Messages for
// a slow client are dropped.
func (s *Session) enqueue(msg interface{}) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- msg:
	case <-s.done:
	default:
		s.logger.Warn("Draw session send buffer full, dropping message")
	}
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Inbound
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Draw session read failed", zap.Error(err))
			}
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("Draw session write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) handleMessage(msg Inbound) {
	var err error
	switch msg.Type {
	case TypeBeginDraw:
		err = s.controller.BeginDrawing()
	case TypeCancelDraw:
		err = s.controller.CancelDrawing()
	case TypeShapeCreated:
		err = s.controller.ShapeCreated(msg)
	case TypeShapeEdited:
		err = s.controller.ShapeEdited(msg)
	case TypeShapeDeleted:
		err = s.controller.ShapeDeleted()
	case TypeCenter:
		s.viewSync.Apply(geospatial.LatLng{Lat: msg.Lat, Lng: msg.Lng})
	case TypeSearch:
		if s.search == nil {
			s.enqueue(errorMessage{Type: TypeSearchError, Message: "location search is not configured"})
			return
		}
		s.search.Query(msg.Query)
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		s.logger.Debug("Rejected draw message", zap.String("type", msg.Type), zap.Error(err))
		s.enqueue(errorMessage{Type: TypeError, Message: err.Error()})
	}
}

func (s *Session) deliverSearch(res geosearch.Result) {
	if res.Err != nil {
		message := "location search failed"
		if errors.Is(res.Err, geosearch.ErrLocationNotFound) {
			message = "location not found"
		} else {
			s.logger.Warn("Location search failed", zap.String("query", res.Query), zap.Error(res.Err))
		}
		s.enqueue(errorMessage{Type: TypeSearchError, Message: message})
		return
	}

	places := res.Places
	if places == nil {
		places = []geosearch.Place{}
	}
	s.enqueue(suggestionsMessage{Type: TypeSuggestions, Query: res.Query, Results: places})
}
