package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dogwalk/gameserver/game/model"
	"github.com/dogwalk/gameserver/game/service"
	"github.com/dogwalk/gameserver/transport/websocket"
)

// Error codes clients dispatch on.
const (
	codeBadRequest       = "badRequest"
	codeInvalidMethod    = "invalidMethod"
	codeInvalidArgument  = "invalidArgument"
	codeInvalidToken     = "invalidToken"
	codeUnknownToken     = "unknownToken"
	codeMapNotFound      = "mapNotFound"
	codeInternalError    = "internalError"
	codeMethodNotAllowed = "methodNotAllowed"
)

// Config wires the server to the rest of the process.
type Config struct {
	Service service.GameService
	// Hub, when set, mounts the live-state socket at /ws.
	Hub *websocket.Hub
	// MCP, when set, is mounted at /mcp.
	MCP     http.Handler
	WWWRoot string
	Logger  *zap.Logger
}

// Server routes HTTP traffic to the game service and the file tree.
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	mcp     http.Handler
	wwwRoot string
	log     *zap.Logger
	router  *mux.Router
}

// NewServer creates the HTTP front end.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		service: cfg.Service,
		hub:     cfg.Hub,
		mcp:     cfg.MCP,
		wwwRoot: filepath.Clean(cfg.WWWRoot),
		log:     log,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	// The static handler rejects paths that escape the root; letting the
	// router clean-and-redirect first would hide those attempts.
	s.router.SkipClean(true)
	s.router.Use(requestLogger(s.log), recoverer(s.log))

	api := s.router.PathPrefix("/api").Subrouter()

	// Catalog
	api.HandleFunc("/v1/maps", s.handleMapList).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/v1/maps", s.getHeadOnly)
	api.HandleFunc("/v1/maps/{id}", s.handleMapByID).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/v1/maps/{id}", s.getHeadOnly)

	// Play
	api.HandleFunc("/v1/game/join", s.handleJoin).Methods(http.MethodPost)
	api.HandleFunc("/v1/game/join", s.postOnly)
	api.HandleFunc("/v1/game/players", s.handlePlayers).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/v1/game/players", s.getHeadOnly)
	api.HandleFunc("/v1/game/state", s.handleState).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/v1/game/state", s.getHeadOnly)
	api.HandleFunc("/v1/game/player/action", s.handleAction).Methods(http.MethodPost)
	api.HandleFunc("/v1/game/player/action", s.postOnly)

	// Time. Without the route, a tick request in normal mode falls
	// through to the catch-all below and reads as a bad request.
	if s.service.TickEnabled() {
		api.HandleFunc("/v1/game/tick", s.handleTick).Methods(http.MethodPost)
		api.HandleFunc("/v1/game/tick", s.postOnly)
	}

	// Leaderboard
	api.HandleFunc("/v1/game/records", s.handleRecords).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/v1/game/records", s.getHeadOnly)

	// Anything else under /api is a protocol error, never a file.
	s.router.PathPrefix("/api").HandlerFunc(s.handleBadRequest)

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	}
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods(http.MethodPost)
	}

	s.router.PathPrefix("/").HandlerFunc(s.handleStatic)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"code": code, "message": message})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", zap.String("URI", r.RequestURI), zap.Error(err))
	respondError(w, http.StatusInternalServerError, codeInternalError, "Internal server error")
}

func (s *Server) handleBadRequest(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
}

func (s *Server) getHeadOnly(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	respondError(w, http.StatusMethodNotAllowed, codeInvalidMethod, "Only GET & HEAD method is expected")
}

func (s *Server) postOnly(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST")
	respondError(w, http.StatusMethodNotAllowed, codeInvalidMethod, "Only POST method is expected")
}

// Authorization

// bearerToken extracts the token from the Authorization header. A
// malformed header gets the same body as a missing one.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		respondError(w, http.StatusUnauthorized, codeInvalidToken, "Authorization header is missing")
		return "", false
	}
	fields := strings.Fields(header)
	if len(fields) < 2 || !isHexToken(fields[1]) {
		respondError(w, http.StatusUnauthorized, codeInvalidToken, "Authorization header is missing")
		return "", false
	}
	return fields[1], true
}

func isHexToken(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isValidMove(move string) bool {
	switch move {
	case "U", "D", "L", "R", "":
		return true
	}
	return false
}

// Catalog Handlers

func (s *Server) handleMapList(w http.ResponseWriter, r *http.Request) {
	maps, err := s.service.ListMaps(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if maps == nil {
		maps = []service.MapInfo{}
	}
	respondJSON(w, http.StatusOK, maps)
}

func (s *Server) handleMapByID(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetMap(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, model.ErrMapNotFound) {
		respondError(w, http.StatusNotFound, codeMapNotFound, "Map not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Play Handlers

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName *string `json:"userName"`
		MapID    *string `json:"mapId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserName == nil || req.MapID == nil {
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "Join game request parse error")
		return
	}

	result, err := s.service.Join(r.Context(), *req.UserName, *req.MapID)
	switch {
	case errors.Is(err, service.ErrInvalidName):
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "Invalid player name")
	case errors.Is(err, model.ErrMapNotFound):
		respondError(w, http.StatusNotFound, codeMapNotFound, "Map not found")
	case err != nil:
		s.serverError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	players, err := s.service.Players(r.Context(), token)
	if errors.Is(err, service.ErrUnknownToken) {
		respondError(w, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, players)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	state, err := s.service.State(r.Context(), token)
	if errors.Is(err, service.ErrUnknownToken) {
		respondError(w, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(w, r)
	if !ok {
		return
	}

	// The token is resolved before the request body is touched; an
	// unknown player outranks a malformed request.
	if _, err := s.service.SessionID(r.Context(), token); err != nil {
		if errors.Is(err, service.ErrUnknownToken) {
			respondError(w, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
			return
		}
		s.serverError(w, r, err)
		return
	}

	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "Invalid content type")
		return
	}

	var req struct {
		Move *string `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Move == nil || !isValidMove(*req.Move) {
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "Failed to parse action")
		return
	}

	if err := s.service.Action(r.Context(), token, *req.Move); err != nil {
		if errors.Is(err, service.ErrUnknownToken) {
			respondError(w, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

// Time Handler

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeDelta *int64 `json:"timeDelta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TimeDelta == nil || *req.TimeDelta < 0 {
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "Failed to parse tick request JSON")
		return
	}

	if err := s.service.Tick(r.Context(), time.Duration(*req.TimeDelta)*time.Millisecond); err != nil {
		if errors.Is(err, service.ErrTickDisabled) {
			s.handleBadRequest(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

// Leaderboard Handler

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start := 0
	if v := query.Get("start"); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			s.log.Warn("failed to parse start parameter", zap.String("value", v))
		} else if n > 0 {
			start = n
		}
	}

	maxItems := service.MaxRecordItems
	if v := query.Get("maxItems"); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			s.log.Warn("failed to parse maxItems parameter", zap.String("value", v))
		} else if n >= 0 {
			maxItems = n
		} else {
			maxItems = 0
		}
	}

	records, err := s.service.Records(r.Context(), start, maxItems)
	if errors.Is(err, service.ErrTooManyItems) {
		respondError(w, http.StatusBadRequest, codeInvalidArgument, "maxItems cannot exceed 100")
		return
	}
	if err != nil {
		s.log.Error("failed to retrieve records", zap.Error(err))
		respondError(w, http.StatusInternalServerError, codeInternalError, "Failed to retrieve records")
		return
	}
	if records == nil {
		records = []service.RecordInfo{}
	}
	respondJSON(w, http.StatusOK, records)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("authToken")
	if !isHexToken(token) {
		http.Error(w, "authToken query parameter is missing or malformed", http.StatusUnauthorized)
		return
	}

	sessionID, err := s.service.SessionID(r.Context(), token)
	if err != nil {
		http.Error(w, "Player token has not been found", http.StatusUnauthorized)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}
