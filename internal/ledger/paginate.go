package ledger

import (
	"github.com/fixora/wallet/internal/repository"
)

// Filter narrows a page of entries to credits or debits. It is a pure view
// over rows that have already been fetched: applying a filter never changes
// which page is fetched and never triggers another fetch. Infinite scroll
// only advances under the unfiltered view.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterCredit Filter = "credit"
	FilterDebit  Filter = "debit"
)

func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterAll, "":
		return FilterAll, true
	case FilterCredit:
		return FilterCredit, true
	case FilterDebit:
		return FilterDebit, true
	}
	return FilterAll, false
}

// AllowsPaging reports whether further pages may be loaded while this
// filter is active.
func (f Filter) AllowsPaging() bool {
	return f == FilterAll
}

type Page struct {
	Items   []repository.Transaction
	HasMore bool
}

// ListPage returns one page of a wallet's history, most recent first.
// Pages are 1-indexed. HasMore is true iff entries exist beyond the
// returned slice. Page state is per-request; concurrent readers of the
// same wallet never interfere with each other's cursors.
func (l *Ledger) ListPage(walletID string, page, pageSize int) (*Page, error) {
	if page < 1 || pageSize <= 0 {
		return nil, ErrInvalidPage
	}

	if _, err := l.Wallet(walletID); err != nil {
		return nil, err
	}

	// Fetch one extra row to learn whether a further page exists.
	items, err := l.db.Transaction().List(walletID, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	hasMore := false
	if len(items) > pageSize {
		hasMore = true
		items = items[:pageSize]
	}

	return &Page{Items: items, HasMore: hasMore}, nil
}

// FilterEntries applies f to already-fetched entries. Credit keeps
// non-negative amounts, debit keeps negative ones.
func FilterEntries(items []repository.Transaction, f Filter) []repository.Transaction {
	if f == FilterAll {
		return items
	}

	filtered := make([]repository.Transaction, 0, len(items))
	for _, item := range items {
		switch f {
		case FilterCredit:
			if item.Amount >= 0 {
				filtered = append(filtered, item)
			}
		case FilterDebit:
			if item.Amount < 0 {
				filtered = append(filtered, item)
			}
		}
	}

	return filtered
}
