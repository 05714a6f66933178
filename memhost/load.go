package memhost

import (
	"fmt"
	"os"
	"strings"

	economy "github.com/0x5487/economy-engine"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a standalone world: item definitions and players.
type File struct {
	RangeMeters float64          `yaml:"range_meters"`
	Items       []ItemDefinition `yaml:"items"`
	Players     []PlayerFile     `yaml:"players"`
}

// PlayerFile is one player entry of a world file.
type PlayerFile struct {
	SteamID   uint64         `yaml:"steam_id"`
	Name      string         `yaml:"name"`
	Online    bool           `yaml:"online"`
	Admin     bool           `yaml:"admin"`
	Alive     bool           `yaml:"alive"`
	Position  [3]float64     `yaml:"position"`
	Inventory []InventoryRow `yaml:"inventory"`
}

// InventoryRow is an item stack; amount is a decimal string.
type InventoryRow struct {
	TypeID      string `yaml:"type_id"`
	SubtypeName string `yaml:"subtype_name"`
	Amount      string `yaml:"amount"`
}

// LoadFile builds a Host from a world file.
func LoadFile(path string) (*Host, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Build()
}

// Build turns the parsed file into a Host.
func (f File) Build() (*Host, error) {
	h := NewHost(NewRegistry(f.Items...), f.RangeMeters)
	for _, pf := range f.Players {
		if pf.SteamID == 0 || pf.SteamID == economy.MerchantID {
			return nil, fmt.Errorf("player %q: invalid steam_id %d", pf.Name, pf.SteamID)
		}
		inv := NewInventory()
		for _, row := range pf.Inventory {
			amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
			if err != nil {
				return nil, fmt.Errorf("player %q: item %s/%s: %w", pf.Name, row.TypeID, row.SubtypeName, err)
			}
			inv.Add(economy.ItemID{TypeID: row.TypeID, SubtypeName: row.SubtypeName}, amount)
		}
		h.AddPlayer(&Player{
			SteamID:   pf.SteamID,
			Name:      pf.Name,
			Online:    pf.Online,
			Admin:     pf.Admin,
			Alive:     pf.Alive,
			Position:  pf.Position,
			Inventory: inv,
		})
	}
	return h, nil
}
