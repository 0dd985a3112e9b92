// Package httpapi is the HTTP surface of the auction service: operator
// controls, buyer actions and read endpoints for the storefront.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkalra/gavel/go/internal/auction/clock"
	"github.com/mkalra/gavel/go/internal/auction/ledger"
	"github.com/mkalra/gavel/go/internal/auction/session"
	"github.com/mkalra/gavel/go/internal/blob"
	"github.com/mkalra/gavel/go/internal/identity"
	"github.com/mkalra/gavel/go/internal/models"
	"github.com/mkalra/gavel/go/internal/storage"
)

// maxImageSize bounds player image uploads.
const maxImageSize = 5 << 20

// PlayerStore is the player catalog surface the API needs.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, player models.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	ListPlayersByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Player, error)
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
}

// BuyerStore is the buyer surface the API needs.
type BuyerStore interface {
	UpsertBuyer(ctx context.Context, buyer models.Buyer) error
	GetBuyer(ctx context.Context, id uuid.UUID) (*models.Buyer, error)
}

type Handler struct {
	coordinator *session.Coordinator
	players     PlayerStore
	buyers      BuyerStore
	images      blob.Store
	auth        *identity.Authenticator
	operatorKey string
	validate    *validator.Validate
}

func NewHandler(
	coordinator *session.Coordinator,
	players PlayerStore,
	buyers BuyerStore,
	images blob.Store,
	auth *identity.Authenticator,
	operatorKey string,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		players:     players,
		buyers:      buyers,
		images:      images,
		auth:        auth,
		operatorKey: operatorKey,
		validate:    validator.New(),
	}
}

type openRequest struct {
	BidWindowSec int `json:"bid_window_sec" validate:"required,gt=0"`
}

type bidRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type createPlayerRequest struct {
	Name          string `json:"name" validate:"required"`
	BasePrice     int64  `json:"base_price" validate:"required,gt=0"`
	BattingRating int    `json:"batting_rating" validate:"gte=0,lte=100"`
	BowlingRating int    `json:"bowling_rating" validate:"gte=0,lte=100"`
}

type registerBuyerRequest struct {
	Name    string `json:"name" validate:"required"`
	Deposit int64  `json:"deposit" validate:"gte=0"`
}

type operatorTokenRequest struct {
	Key string `json:"key" validate:"required"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetSession returns the live session snapshot, the resync point for
// page loads and websocket reconnects.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coordinator.Snapshot())
}

func (h *Handler) OpenAuction(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req openRequest
	if !h.decode(w, r, &req) {
		return
	}

	snap, err := h.coordinator.Open(r.Context(), playerID, time.Duration(req.BidWindowSec)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	user := identity.FromContext(r.Context())
	if user == nil {
		writeErrorCode(w, http.StatusUnauthorized, "Unauthenticated", "a buyer token is required to bid")
		return
	}
	var req bidRequest
	if !h.decode(w, r, &req) {
		return
	}

	bid, err := h.coordinator.PlaceBid(r.Context(), user.ID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (h *Handler) WithdrawAuction(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Withdraw(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coordinator.Snapshot())
}

func (h *Handler) RetrySettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.RetrySettlement(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coordinator.Snapshot())
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.ListPlayers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.itemID(w, r)
	if !ok {
		return
	}
	player, err := h.players.GetPlayer(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if !h.decode(w, r, &req) {
		return
	}

	player := models.Player{
		ID:            uuid.New(),
		Name:          req.Name,
		BasePrice:     req.BasePrice,
		BattingRating: req.BattingRating,
		BowlingRating: req.BowlingRating,
		CreatedAt:     time.Now(),
	}
	if err := h.players.CreatePlayer(r.Context(), player); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

// UploadPlayerImage accepts a raw image body, sniffs its type and
// attaches the stored URL to the player.
func (h *Handler) UploadPlayerImage(w http.ResponseWriter, r *http.Request) {
	playerID, ok := h.itemID(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageSize+1))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BadRequest", "failed to read request body")
		return
	}
	if len(data) > maxImageSize {
		writeErrorCode(w, http.StatusRequestEntityTooLarge, "ImageTooLarge", "image exceeds the upload limit")
		return
	}

	if _, err := h.players.GetPlayer(r.Context(), playerID); err != nil {
		writeError(w, err)
		return
	}

	url, err := h.images.Put(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.players.SetImageURL(r.Context(), playerID, url); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

// RegisterBuyer creates a buyer, or tops up the balance when called
// again for the same buyer through UpsertBuyer semantics. The response
// carries a token the buyer bids with.
func (h *Handler) RegisterBuyer(w http.ResponseWriter, r *http.Request) {
	var req registerBuyerRequest
	if !h.decode(w, r, &req) {
		return
	}

	buyer := models.Buyer{
		ID:        uuid.New(),
		Name:      req.Name,
		Balance:   req.Deposit,
		CreatedAt: time.Now(),
	}
	if err := h.buyers.UpsertBuyer(r.Context(), buyer); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.SignToken(identity.User{ID: buyer.ID, Name: buyer.Name, Role: identity.RoleBuyer})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"buyer": buyer,
		"token": token,
	})
}

// Deposit adds funds to an existing buyer.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.buyerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	existing, err := h.buyers.GetBuyer(r.Context(), buyerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.buyers.UpsertBuyer(r.Context(), models.Buyer{
		ID:      existing.ID,
		Name:    existing.Name,
		Balance: req.Amount,
	}); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.buyers.GetBuyer(r.Context(), buyerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetBuyer(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.buyerID(w, r)
	if !ok {
		return
	}
	buyer, err := h.buyers.GetBuyer(r.Context(), buyerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyer)
}

// GetBuyerTeam lists the players a buyer has won.
func (h *Handler) GetBuyerTeam(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.buyerID(w, r)
	if !ok {
		return
	}
	if _, err := h.buyers.GetBuyer(r.Context(), buyerID); err != nil {
		writeError(w, err)
		return
	}
	players, err := h.players.ListPlayersByTeam(r.Context(), buyerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// OperatorToken exchanges the configured operator key for a token that
// passes the operator-only routes.
func (h *Handler) OperatorToken(w http.ResponseWriter, r *http.Request) {
	var req operatorTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if h.operatorKey == "" || req.Key != h.operatorKey {
		writeErrorCode(w, http.StatusUnauthorized, "InvalidOperatorKey", "operator key rejected")
		return
	}

	token, err := h.auth.SignToken(identity.User{ID: uuid.New(), Name: "operator", Role: identity.RoleOperator})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BadRequest", "invalid item id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) buyerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "buyerID"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BadRequest", "invalid buyer id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BadRequest", "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "ValidationFailed", err.Error())
		return false
	}
	return true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps domain sentinels to stable reason codes the
// storefront can branch on.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrPlayerNotFound), errors.Is(err, storage.ErrBuyerNotFound):
		writeErrorCode(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, session.ErrSessionBusy):
		writeErrorCode(w, http.StatusConflict, "SessionBusy", err.Error())
	case errors.Is(err, session.ErrItemUnavailable):
		writeErrorCode(w, http.StatusConflict, "ItemUnavailable", err.Error())
	case errors.Is(err, session.ErrNoActiveAuction):
		writeErrorCode(w, http.StatusConflict, "NoActiveAuction", err.Error())
	case errors.Is(err, session.ErrAuctionClosed):
		writeErrorCode(w, http.StatusConflict, "AuctionClosed", err.Error())
	case errors.Is(err, session.ErrNotWithdrawable):
		writeErrorCode(w, http.StatusConflict, "NotWithdrawable", err.Error())
	case errors.Is(err, session.ErrNothingToSettle):
		writeErrorCode(w, http.StatusConflict, "NothingToSettle", err.Error())
	case errors.Is(err, session.ErrInsufficientBalance):
		writeErrorCode(w, http.StatusUnprocessableEntity, "InsufficientBalance", err.Error())
	case errors.Is(err, ledger.ErrNonPositiveAmount):
		writeErrorCode(w, http.StatusUnprocessableEntity, "NonPositiveAmount", err.Error())
	case errors.Is(err, ledger.ErrBidTooLow):
		writeErrorCode(w, http.StatusUnprocessableEntity, "BidTooLow", err.Error())
	case errors.Is(err, clock.ErrInvalidDuration):
		writeErrorCode(w, http.StatusBadRequest, "InvalidBidWindow", err.Error())
	case errors.Is(err, blob.ErrUnsupportedType):
		writeErrorCode(w, http.StatusUnsupportedMediaType, "UnsupportedImageType", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeErrorCode(w, http.StatusInternalServerError, "Internal", "internal error")
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
