package economy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger holds every bank account, including the merchant.
type Ledger struct {
	accounts []*Account
	index    map[uint64]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make([]*Account, 0),
		index:    make(map[uint64]int),
	}
}

// Len returns the number of accounts.
func (l *Ledger) Len() int {
	return len(l.accounts)
}

// Get returns the account with the given id.
func (l *Ledger) Get(id uint64) (*Account, bool) {
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.accounts[i], true
}

// FindByName matches nicknames case-insensitively. The merchant is never returned.
func (l *Ledger) FindByName(name string) (*Account, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	for _, acc := range l.accounts {
		if acc.SteamID == MerchantID {
			continue
		}
		if strings.EqualFold(acc.NickName, name) {
			return acc, true
		}
	}
	return nil, false
}

// FindOrCreate returns the account for id, creating it with a zero balance.
// Calling it again never resets the balance; a non-empty nickName or language refreshes the profile.
func (l *Ledger) FindOrCreate(id uint64, nickName string, language string, now time.Time) *Account {
	if acc, ok := l.Get(id); ok {
		if nickName != "" {
			acc.NickName = nickName
		}
		if language != "" {
			acc.Language = language
		}
		return acc
	}

	acc := &Account{
		SteamID:     id,
		NickName:    nickName,
		Language:    language,
		BankBalance: decimal.Zero,
		Date:        now,
	}
	l.insert(acc)
	logger.Info("account created", "steam_id", id, "nick_name", nickName)
	return acc
}

// EnsureMerchant creates the merchant account once. An existing merchant keeps its balance.
func (l *Ledger) EnsureMerchant(startingBalance decimal.Decimal, now time.Time) *Account {
	if acc, ok := l.Get(MerchantID); ok {
		return acc
	}
	acc := &Account{
		SteamID:     MerchantID,
		NickName:    MerchantNickName,
		BankBalance: startingBalance,
		Date:        now,
	}
	l.insert(acc)
	logger.Info("merchant account created", "steam_id", MerchantID, "balance", startingBalance.String())
	return acc
}

// Merchant returns the merchant account if it exists.
func (l *Ledger) Merchant() (*Account, bool) {
	return l.Get(MerchantID)
}

// Accounts returns copies of all accounts in creation order.
func (l *Ledger) Accounts() []*Account {
	out := make([]*Account, len(l.accounts))
	for i, acc := range l.accounts {
		out[i] = acc.clone()
	}
	return out
}

// Restore replaces the ledger content. When ids repeat the first account wins.
func (l *Ledger) Restore(accounts []*Account) {
	l.accounts = make([]*Account, 0, len(accounts))
	l.index = make(map[uint64]int, len(accounts))
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		if _, exists := l.index[acc.SteamID]; exists {
			logger.Warn("duplicate account dropped", "steam_id", acc.SteamID)
			continue
		}
		l.insert(acc.clone())
	}
}

func (l *Ledger) insert(acc *Account) {
	l.index[acc.SteamID] = len(l.accounts)
	l.accounts = append(l.accounts, acc)
}
