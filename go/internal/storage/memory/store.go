package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mkalra/gavel/go/internal/auction/settlement"
	"github.com/mkalra/gavel/go/internal/models"
	"github.com/mkalra/gavel/go/internal/storage"
)

var (
	ErrPlayerNotFound = storage.ErrPlayerNotFound
	ErrBuyerNotFound  = storage.ErrBuyerNotFound
)

// Store is an in-memory implementation of the player, buyer and settlement
// store contracts. Used in tests and for local runs without Postgres.
type Store struct {
	mu      sync.Mutex
	players map[uuid.UUID]models.Player
	buyers  map[uuid.UUID]models.Buyer
}

func NewStore() *Store {
	return &Store{
		players: make(map[uuid.UUID]models.Player),
		buyers:  make(map[uuid.UUID]models.Buyer),
	}
}

func (s *Store) CreatePlayer(ctx context.Context, player models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; ok {
		return fmt.Errorf("player %s already exists", player.ID)
	}
	s.players[player.ID] = player
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return clonePlayer(player), nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *clonePlayer(p))
	}
	return out, nil
}

func (s *Store) ListPlayersByTeam(ctx context.Context, teamID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		if p.TeamID != nil && *p.TeamID == teamID {
			out = append(out, *clonePlayer(p))
		}
	}
	return out, nil
}

func (s *Store) SetBiddingOpen(ctx context.Context, id uuid.UUID, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	player.BiddingOpen = open
	s.players[id] = player
	return nil
}

func (s *Store) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	player.ImageURL = url
	s.players[id] = player
	return nil
}

func (s *Store) UpsertBuyer(ctx context.Context, buyer models.Buyer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.buyers[buyer.ID]; ok {
		// deposits top up the balance; team membership is never replaced
		existing.Name = buyer.Name
		existing.Balance += buyer.Balance
		s.buyers[buyer.ID] = existing
		return nil
	}
	s.buyers[buyer.ID] = buyer
	return nil
}

func (s *Store) GetBuyer(ctx context.Context, id uuid.UUID) (*models.Buyer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buyer, ok := s.buyers[id]
	if !ok {
		return nil, ErrBuyerNotFound
	}
	return cloneBuyer(buyer), nil
}

// ApplySale applies the sale under the store mutex: the balance re-check
// and all three mutations are a single atomic unit.
func (s *Store) ApplySale(ctx context.Context, sale settlement.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[sale.PlayerID]
	if !ok {
		return ErrPlayerNotFound
	}
	buyer, ok := s.buyers[sale.BuyerID]
	if !ok {
		return ErrBuyerNotFound
	}

	if player.Sold {
		if player.TeamID != nil && *player.TeamID == sale.BuyerID {
			// sale already applied
			return nil
		}
		return fmt.Errorf("player %s already sold to another buyer", sale.PlayerID)
	}

	if buyer.Balance < sale.Amount {
		return settlement.ErrInsufficientBalance
	}

	buyer.Balance -= sale.Amount
	if !buyer.HasPlayer(sale.PlayerID) {
		buyer.TeamList = append(buyer.TeamList, sale.PlayerID)
	}
	player.Sold = true
	player.BiddingOpen = false
	teamID := sale.BuyerID
	player.TeamID = &teamID

	s.buyers[sale.BuyerID] = buyer
	s.players[sale.PlayerID] = player
	return nil
}

func clonePlayer(p models.Player) *models.Player {
	out := p
	if p.TeamID != nil {
		teamID := *p.TeamID
		out.TeamID = &teamID
	}
	return &out
}

func cloneBuyer(b models.Buyer) *models.Buyer {
	out := b
	out.TeamList = make([]uuid.UUID, len(b.TeamList))
	copy(out.TeamList, b.TeamList)
	return &out
}
